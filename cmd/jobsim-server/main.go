// jobsim-server serves the job console API from the simulated backend, or
// proxies it to a remote backend selected at runtime.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"jobconsole/internal/api"
	"jobconsole/internal/client"
	"jobconsole/internal/config"
	"jobconsole/internal/dispatcher"
	"jobconsole/internal/health"
	"jobconsole/internal/observability"
	"jobconsole/internal/remote"
	"jobconsole/internal/simulator"
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(config.GetEnv("LOG_LEVEL", "info")),
	})))

	if err := run(); err != nil {
		slog.Error("Service failed", "error", err)
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func run() error {
	ctx := context.Background()

	svcCfg := config.LoadServiceConfig()
	simCfg := simulator.LoadConfigFromEnv()
	dispatcherCfg := dispatcher.LoadConfigFromEnv()

	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	// Lifecycle webhooks are optional
	var (
		eventDispatcher *dispatcher.MemoryDispatcher
		simOpts         = []simulator.Option{simulator.WithMetrics(metrics)}
	)
	if svcCfg.WebhookURL != "" {
		eventDispatcher = dispatcher.NewMemory(dispatcherCfg, dispatcher.WithMetrics(metrics))
		simOpts = append(simOpts, simulator.WithNotifier(dispatcher.NewWebhook(eventDispatcher, dispatcher.WebhookConfig{
			URL:        svcCfg.WebhookURL,
			SigningKey: svcCfg.WebhookSigningKey,
			Events:     svcCfg.WebhookEvents,
		})))
		slog.Info("Lifecycle webhooks enabled", "events", svcCfg.WebhookEvents)
	}

	sim := simulator.New(simCfg, simOpts...)
	defer sim.Close()

	settings := client.NewSettings()
	settings.SetBackendAddress(svcCfg.BackendAddress)
	settings.SetUseSimulatedBackend(svcCfg.UseSimulated)

	jobClient := client.New(settings, sim, remote.New(settings, remote.Options{Timeout: svcCfg.RequestTimeout}), metrics)

	checks := []health.Option{health.WithCheck("backend", jobClient)}
	if eventDispatcher != nil {
		checks = append(checks, health.WithOptionalCheck("webhooks", eventDispatcher))
	}
	healthChecker := health.NewChecker(checks...)

	router := api.NewRouter(api.RouterConfig{
		Backend:       jobClient,
		Settings:      settings,
		Metrics:       metrics,
		HealthChecker: healthChecker,
		APIKey:        svcCfg.APIKey,
	})

	if svcCfg.APIKey != "" {
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled - no API_KEY_FILE configured")
	}

	apiServer := &http.Server{
		Addr:         ":" + svcCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:         ":" + svcCfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 2)

	go func() {
		slog.Info("Starting API server", "port", svcCfg.Port, "simulated", svcCfg.UseSimulated)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	go func() {
		slog.Info("Starting metrics server", "port", svcCfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	shutdown := func(timeout time.Duration) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		slog.Error("Server failed to start", "error", err)
		shutdown(5 * time.Second)
		return err
	}

	// Phase 1: fail readiness so load balancers stop sending traffic
	healthChecker.SetShuttingDown()
	if svcCfg.ShutdownDrainWait > 0 {
		slog.Info("Waiting for traffic to drain", "duration", svcCfg.ShutdownDrainWait)
		time.Sleep(svcCfg.ShutdownDrainWait)
	}

	// Phase 2: finish in-flight requests
	slog.Info("Starting graceful shutdown")
	shutdown(25 * time.Second)

	// Phase 3: deliver queued lifecycle events
	if eventDispatcher != nil {
		dispatcherCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := eventDispatcher.Close(dispatcherCtx); err != nil {
			slog.Warn("Dispatcher shutdown error", "error", err)
		}
		stats := eventDispatcher.Stats()
		slog.Info("Dispatcher stats",
			"delivered", stats.Delivered,
			"failed", stats.Failed,
			"dropped", stats.Dropped,
		)
	}

	slog.Info("Shutdown complete", "jobs", sim.Registry().Len())
	return nil
}
