// Package main is the entry point for the gridlink gateway. It wires the
// protocol clients together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/varnlund/gridlink/internal/config"
	"github.com/varnlund/gridlink/internal/forms"
	"github.com/varnlund/gridlink/internal/gateway"
	"github.com/varnlund/gridlink/internal/ionapi"
	"github.com/varnlund/gridlink/internal/mi"
	"github.com/varnlund/gridlink/internal/observability"
	"github.com/varnlund/gridlink/internal/transport"
	"github.com/varnlund/gridlink/model"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "gridlink", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.InitMetrics(registry)

	executor := transport.NewHTTPExecutor(cfg.ERP, metrics)

	formsClient := forms.NewClient(cfg.ERP, executor, staticIdentity(cfg.ERP), logger, metrics)
	miClient := mi.NewClient(cfg.ERP, executor, formsClient, logger, metrics)
	ionBroker := ionapi.NewBroker(cfg.ERP, cfg.Ion, executor, formsClient, logger, metrics)

	router := gateway.NewRouter(gateway.Dependencies{
		Config:   cfg,
		Forms:    formsClient,
		MI:       miClient,
		Ion:      ionBroker,
		Logger:   logger,
		Metrics:  metrics,
		Registry: registry,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("erp", cfg.ERP.BaseURL),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// End the backend session so the server frees it promptly.
	if err := formsClient.Logoff(shutdownCtx); err != nil {
		logger.Warn("logoff failed", zap.Error(err))
	}

	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// staticIdentity delivers the configured principal as the logon identity.
func staticIdentity(cfg config.ERPConfig) forms.IdentitySource {
	return forms.IdentityFunc(func(context.Context) (*model.Identity, error) {
		if cfg.User == "" {
			return nil, model.NewTokenError("no principal configured for logon")
		}
		return &model.Identity{User: cfg.User, Context: cfg.LogonParams}, nil
	})
}
