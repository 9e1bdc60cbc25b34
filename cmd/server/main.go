package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/compactconnect/apps/edge/internal/app"
	"github.com/compactconnect/apps/edge/internal/config"
	"github.com/compactconnect/apps/edge/internal/csp"
	"github.com/compactconnect/apps/edge/internal/environment"
	"github.com/compactconnect/apps/edge/internal/handlers"
	"github.com/compactconnect/apps/edge/internal/headers"
	"github.com/compactconnect/apps/edge/internal/metrics"
	"github.com/compactconnect/apps/edge/internal/report"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	table, err := environment.Load(cfg.EnvironmentsFile)
	if err != nil {
		logger.Error("load environments", "error", err)
		os.Exit(1)
	}

	var reports report.Store = report.NewMemoryStore()
	if cfg.DatabaseURL != "" {
		pool, err := report.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		reports = report.NewPGStore(pool)
	} else {
		logger.Warn("DATABASE_URL not set, csp reports are kept in memory")
	}

	m := metrics.New()
	var opts []csp.Option
	if cfg.ReportURI != "" {
		opts = append(opts, csp.WithReportURI(cfg.ReportURI))
	}
	injector := headers.NewInjector(table, csp.NewBuilder(logger, opts...), m)

	h := handlers.NewServer(cfg, table, injector, reports, m, logger)
	router, err := app.NewRouter(cfg, h, logger)
	if err != nil {
		logger.Error("build router", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	go func() {
		logger.Info("api_started", "addr", cfg.Addr, "env", cfg.Env, "default_environment", table.Default().Name)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
