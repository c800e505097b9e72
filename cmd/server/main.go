package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/socialchef/beacon/internal/api"
	"github.com/socialchef/beacon/internal/config"
	"github.com/socialchef/beacon/internal/observe"
	"github.com/socialchef/beacon/internal/telemetry"
	"github.com/socialchef/beacon/internal/telemetry/batch"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Telemetry failures are reported on stderr only, never through the
	// observation chain that feeds the exporters.
	diag := telemetry.NewDiagnostics(slog.New(slog.NewTextHandler(os.Stderr, nil)).With("component", "telemetry"))

	providers, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:    cfg.OtelExporterOTLPEndpoint,
		LicenseKey:  cfg.NewRelicLicenseKey,
		ServiceName: cfg.ServiceName,
		HostName:    cfg.HostName,
		Encoding:    telemetry.Encoding(cfg.OtelExporterOTLPEncoding),
		Batch: batch.Config{
			MaxQueueSize:       cfg.Telemetry.MaxQueueSize,
			MaxExportBatchSize: cfg.Telemetry.MaxExportBatchSize,
			ExportInterval:     cfg.Telemetry.ExportInterval,
			ExportTimeout:      cfg.Telemetry.ExportTimeout,
		},
		MetricInterval: cfg.Telemetry.MetricInterval,
		Diagnostics:    diag,
	})
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}

	level, levelErr := observe.ParseLevel(cfg.LogLevel)
	chain := observe.New(observe.Options{
		Env:            cfg.Env,
		Level:          level,
		TracerProvider: providers.TracerProvider,
		MeterProvider:  providers.MeterProvider,
		LoggerProvider: providers.LoggerProvider,
	})
	if err := observe.Install(chain); err != nil {
		log.Fatalf("Failed to install observation chain: %v", err)
	}
	if levelErr != nil {
		slog.Warn("Invalid LOG_LEVEL, using info", "error", levelErr)
	}

	apiServer := api.NewServer(cfg, chain)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(apiServer, providers.MeterProvider),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		fmt.Printf("listening on %s\n", srv.Addr)
		slog.Info("Starting server", "addr", srv.Addr, "service", cfg.ServiceName, "env", cfg.Env)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			shutdownTelemetry(providers)
			log.Fatalf("Server failed: %v", err)
		}
	case <-ctx.Done():
		slog.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	shutdownTelemetry(providers)
}

func shutdownTelemetry(providers *telemetry.Providers) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := providers.Shutdown(ctx); err != nil {
		log.Printf("Telemetry shutdown failed: %v", err)
	}
}
