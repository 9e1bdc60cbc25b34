package app

import (
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	openapimiddleware "github.com/oapi-codegen/nethttp-middleware"

	"github.com/compactconnect/apps/edge/internal/config"
	"github.com/compactconnect/apps/edge/internal/handlers"
	"github.com/compactconnect/apps/edge/internal/httpx"
	"github.com/compactconnect/apps/edge/internal/middleware"
)

//go:embed openapi.yaml
var openapiSpec []byte

const maxReportBytes = 16 * 1024

func loadSpec() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		return nil, fmt.Errorf("load openapi spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate openapi spec: %w", err)
	}
	return doc, nil
}

func NewRouter(cfg config.Config, h *handlers.Server, logger *slog.Logger) (http.Handler, error) {
	doc, err := loadSpec()
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.SecurityHeaders(h.Injector))
	r.Use(middleware.Logging(logger))

	r.Handle("/metrics", h.Metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.CORS(cfg.CORSAllowedOrigins))
		api.Use(middleware.LimitBody(cfg.APIMaxBodyBytes,
			middleware.BodyLimitOverride{PathPrefix: "/api/csp-reports", MaxBytes: maxReportBytes},
		))

		// Browsers post reports as application/csp-report, which the request
		// validator has no body decoder for, so this route sits outside it.
		reportLimiter := middleware.NewIPRateLimiterWithMaxEntries(cfg.ReportRateLimit, time.Minute, cfg.RateLimitMaxIPs)
		api.With(reportLimiter.Middleware("Too many CSP reports")).Post("/csp-reports", h.PostCSPReport)

		api.Group(func(validated chi.Router) {
			validated.Use(openapimiddleware.OapiRequestValidatorWithOptions(doc, &openapimiddleware.Options{
				SilenceServersWarning: true,
				ErrorHandler:          httpx.ValidationErrorHandler,
			}))
			validated.Get("/health", h.GetHealth)
			validated.Get("/policy", h.GetPolicy)
			validated.Get("/environments", h.GetEnvironments)
			validated.Get("/csp-reports", h.GetCSPReports)
		})
	})

	r.Handle("/*", handlers.SPA(cfg.StaticDir))
	return r, nil
}
