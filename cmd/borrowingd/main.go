// Command borrowingd serves the borrowing ledger over HTTP.
//
// Configuration comes from the environment (and an optional .env file), see package config.
// Without BORROWING_POSTGRES_DSN the service runs on the in-memory engine.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AntonStoeckl/borrowing-ledger-go/borrowing"
	"github.com/AntonStoeckl/borrowing-ledger-go/config"
	"github.com/AntonStoeckl/borrowing-ledger-go/httpapi"
	"github.com/AntonStoeckl/borrowing-ledger-go/ledger"
	"github.com/AntonStoeckl/borrowing-ledger-go/ledger/oteladapters"
	"github.com/AntonStoeckl/borrowing-ledger-go/ledger/postgresengine"
)

const (
	instrumentationName = "github.com/AntonStoeckl/borrowing-ledger-go"
	shutdownGrace       = 10 * time.Second
	readHeaderTimeout   = 5 * time.Second
)

type telemetry struct {
	contextualLogger ledger.ContextualLogger
	metrics          ledger.MetricsCollector
	tracing          ledger.TracingCollector
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("borrowingd: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.LogMode)
	if err != nil {
		return err
	}
	defer logger.Sync()

	providers, err := config.InitObservability(ctx, cfg.OTel, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("otel shutdown failed", "error", err)
		}
	}()

	tel := buildTelemetry(providers, cfg.OTel.ServiceName)

	st, closeStore, err := config.OpenStore(ctx, cfg, logger, storeOptions(tel)...)
	if err != nil {
		return err
	}
	defer closeStore()

	coordinator, err := buildCoordinator(cfg, st, logger, tel)
	if err != nil {
		return err
	}

	routerConfig := httpapi.RouterConfig{
		Borrowings:   coordinator,
		Catalog:      st,
		Logger:       logger,
		ServiceName:  cfg.OTel.ServiceName,
		AllowOrigins: cfg.AllowOrigins,
	}
	if providers != nil {
		routerConfig.TracerProvider = providers.TracerProvider
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(routerConfig),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr, "db_adapter", cfg.DBAdapter)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

func buildTelemetry(providers *config.ObservabilityProviders, serviceName string) telemetry {
	if providers == nil {
		return telemetry{}
	}

	return telemetry{
		contextualLogger: oteladapters.NewSlogBridgeLogger(serviceName),
		metrics:          oteladapters.NewMetricsCollector(providers.MeterProvider.Meter(instrumentationName)),
		tracing:          oteladapters.NewTracingCollector(providers.TracerProvider.Tracer(instrumentationName)),
	}
}

func storeOptions(tel telemetry) []postgresengine.Option {
	if tel.contextualLogger == nil {
		return nil
	}

	return []postgresengine.Option{
		postgresengine.WithContextualLogger(tel.contextualLogger),
		postgresengine.WithMetrics(tel.metrics),
		postgresengine.WithTracing(tel.tracing),
	}
}

func buildCoordinator(cfg config.Config, st ledger.Store, logger ledger.Logger, tel telemetry) (borrowing.Coordinator, error) {
	policy, err := cfg.FeePolicy()
	if err != nil {
		return borrowing.Coordinator{}, err
	}

	options := []borrowing.Option{
		borrowing.WithFeePolicy(policy),
		borrowing.WithRetryOptions(
			borrowing.WithMaxAttempts(cfg.RetryMaxAttempts),
			borrowing.WithBaseDelay(cfg.RetryBaseDelay),
		),
		borrowing.WithLogger(logger),
	}

	if tel.contextualLogger != nil {
		options = append(options,
			borrowing.WithContextualLogger(tel.contextualLogger),
			borrowing.WithMetrics(tel.metrics),
			borrowing.WithTracing(tel.tracing),
		)
	}

	return borrowing.NewCoordinator(st, options...)
}
