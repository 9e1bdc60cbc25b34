// Command edge is the origin-response function that attaches security
// headers to every response CloudFront serves for the web app.
package main

import (
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/compactconnect/apps/edge/internal/config"
	"github.com/compactconnect/apps/edge/internal/csp"
	"github.com/compactconnect/apps/edge/internal/edge"
	"github.com/compactconnect/apps/edge/internal/environment"
	"github.com/compactconnect/apps/edge/internal/headers"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := config.LoadEdge()

	table, err := environment.Load(cfg.EnvironmentsFile)
	if err != nil {
		logger.Error("load environments", "error", err)
		os.Exit(1)
	}

	var opts []csp.Option
	if cfg.ReportURI != "" {
		opts = append(opts, csp.WithReportURI(cfg.ReportURI))
	}
	injector := headers.NewInjector(table, csp.NewBuilder(logger, opts...), nil)
	handler := edge.NewHandler(injector, logger, nil)

	lambda.Start(handler.Handle)
}
