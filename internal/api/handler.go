// Package api serves the job console wire API over HTTP on top of a
// job.Backend, plus runtime settings and health checks.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"jobconsole/internal/apperrors"
	"jobconsole/internal/client"
	"jobconsole/internal/health"
	"jobconsole/internal/job"
)

// maxRequestBodySize limits request body to 1MB to prevent memory exhaustion
const maxRequestBodySize = 1 << 20 // 1 MB

// StartRequest is the body of POST /api/jobs.
type StartRequest struct {
	Image string `json:"image"`
	job.Config
}

// SettingsRequest is the body of PUT /api/settings. Absent fields keep
// their current value.
type SettingsRequest struct {
	UseSimulatedBackend *bool   `json:"useSimulatedBackend"`
	BackendAddress      *string `json:"backendAddress"`
}

// Handler contains HTTP handlers for the job console API.
type Handler struct {
	backend  job.Backend
	settings *client.Settings
	health   *health.Checker
}

// NewHandler creates a new API handler.
func NewHandler(backend job.Backend, settings *client.Settings, healthChecker *health.Checker) *Handler {
	return &Handler{
		backend:  backend,
		settings: settings,
		health:   healthChecker,
	}
}

// ListImages handles GET /api/images
func (h *Handler) ListImages(w http.ResponseWriter, r *http.Request) {
	images, err := h.backend.ListImages(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, images)
}

// ListJobs handles GET /api/jobs with an optional ?status= filter.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	var want job.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		s, ok := job.ParseStatus(raw)
		if !ok {
			h.handleError(w, r, apperrors.Validation("status", "unknown status "+raw))
			return
		}
		want = s
	}

	jobs, err := h.backend.ListJobs(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	if want != "" {
		filtered := make([]job.Job, 0, len(jobs))
		for _, j := range jobs {
			if j.Status == want {
				filtered = append(filtered, j)
			}
		}
		jobs = filtered
	}
	h.writeJSON(w, http.StatusOK, jobs)
}

// GetJob handles GET /api/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.backend.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, j)
}

// GetLogs handles GET /api/jobs/{id}/logs. The body is a JSON string.
func (h *Handler) GetLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.backend.GetLogs(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, logs)
}

// StartJob handles POST /api/jobs
func (h *Handler) StartJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	req.Image = strings.TrimSpace(req.Image)
	if err := job.ValidateStart(req.Image, req.Config); err != nil {
		h.handleError(w, r, err)
		return
	}

	j, err := h.backend.StartJob(r.Context(), req.Image, req.Config)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, j)
}

// StopJob handles POST /api/jobs/{id}/stop
func (h *Handler) StopJob(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.StopJob(r.Context(), r.PathValue("id")); err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RestartJob handles POST /api/jobs/{id}/restart
func (h *Handler) RestartJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.backend.RestartJob(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, j)
}

// GetSettings handles GET /api/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.settings.Snapshot())
}

// PutSettings handles PUT /api/settings. The address must be a valid
// http(s) URL whenever it is changed or the remote backend is selected.
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	next := h.settings.Snapshot()
	if req.BackendAddress != nil {
		next.BackendAddress = strings.TrimSpace(*req.BackendAddress)
	}
	if req.UseSimulatedBackend != nil {
		next.UseSimulatedBackend = *req.UseSimulatedBackend
	}
	if req.BackendAddress != nil || !next.UseSimulatedBackend {
		if err := job.ValidateAddress(next.BackendAddress); err != nil {
			h.handleError(w, r, err)
			return
		}
	}

	h.settings.Apply(next)
	h.writeJSON(w, http.StatusOK, h.settings.Snapshot())
}

// Livez handles GET /livez - liveness check.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.health.Liveness(r.Context()))
}

// Readyz handles GET /readyz - readiness check.
// Returns 503 when the selected backend cannot serve requests.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	response := h.health.Readiness(r.Context())

	status := http.StatusOK
	if !response.IsHealthy() {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, response)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// handleError maps domain errors to HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		slog.Error("Request failed", "error", err, "path", r.URL.Path, "status", status)
	} else {
		slog.Warn("Client error", "error", err, "path", r.URL.Path, "status", status)
	}
	h.writeError(w, status, err.Error())
}
