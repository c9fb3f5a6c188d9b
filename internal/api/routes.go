package api

import (
	"net/http"

	"jobconsole/internal/client"
	"jobconsole/internal/health"
	"jobconsole/internal/job"
	"jobconsole/internal/observability"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	Backend       job.Backend
	Settings      *client.Settings
	Metrics       *observability.Metrics
	HealthChecker *health.Checker
	APIKey        string
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(cfg RouterConfig) http.Handler {
	handler := NewHandler(cfg.Backend, cfg.Settings, cfg.HealthChecker)

	mux := http.NewServeMux()

	// Health checks - no auth required
	mux.HandleFunc("GET /livez", handler.Livez)
	mux.HandleFunc("GET /readyz", handler.Readyz)

	auth := AuthMiddleware(cfg.APIKey)
	route := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, auth(fn))
	}
	route("GET /api/images", handler.ListImages)
	route("GET /api/jobs", handler.ListJobs)
	route("POST /api/jobs", handler.StartJob)
	route("GET /api/jobs/{id}", handler.GetJob)
	route("GET /api/jobs/{id}/logs", handler.GetLogs)
	route("POST /api/jobs/{id}/stop", handler.StopJob)
	route("POST /api/jobs/{id}/restart", handler.RestartJob)
	route("GET /api/settings", handler.GetSettings)
	route("PUT /api/settings", handler.PutSettings)

	var metrics HTTPMetrics
	if cfg.Metrics != nil {
		metrics = cfg.Metrics
	}
	return Chain(mux,
		RecoveryMiddleware(),
		ObserveMiddleware(metrics),
		CORSMiddleware(),
		JSONBodyMiddleware(),
	)
}
