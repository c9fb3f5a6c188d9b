package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	testclock "k8s.io/utils/clock/testing"

	"jobconsole/internal/client"
	"jobconsole/internal/health"
	"jobconsole/internal/job"
	"jobconsole/internal/remote"
	"jobconsole/internal/simulator"
)

var epoch = time.Date(2024, 3, 24, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	router   http.Handler
	sim      *simulator.Simulator
	clock    *testclock.FakeClock
	settings *client.Settings
}

func newTestEnv(t *testing.T, apiKey string) *testEnv {
	t.Helper()
	fc := testclock.NewFakeClock(epoch)
	sim := simulator.New(simulator.Config{
		BootDelay:    3 * time.Second,
		RestartDelay: 2 * time.Second,
		SeedData:     true,
	}, simulator.WithClock(fc), simulator.WithRand(rand.New(rand.NewPCG(1, 2))))
	t.Cleanup(func() { sim.Close() })

	settings := client.NewSettings()
	c := client.New(settings, sim, remote.New(settings, remote.Options{Timeout: time.Second}), nil)

	return &testEnv{
		router: NewRouter(RouterConfig{
			Backend:       c,
			Settings:      settings,
			HealthChecker: health.NewChecker(health.WithCheck("backend", c)),
			APIKey:        apiKey,
		}),
		sim:      sim,
		clock:    fc,
		settings: settings,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func TestHandler_ListImages(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/api/images", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	images := decode[[]string](t, w)
	if len(images) != 8 || images[0] != "nginx:latest" {
		t.Errorf("unexpected images %v", images)
	}
}

func TestHandler_ListJobs(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "")

	tests := []struct {
		query      string
		wantStatus int
		wantCount  int
	}{
		{"", http.StatusOK, 5},
		{"?status=RUNNING", http.StatusOK, 3},
		{"?status=failed", http.StatusOK, 1},
		{"?status=PENDING", http.StatusOK, 0},
		{"?status=bogus", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		w := env.do(t, http.MethodGet, "/api/jobs"+tt.query, "")
		if w.Code != tt.wantStatus {
			t.Errorf("GET /api/jobs%s: status %d, want %d", tt.query, w.Code, tt.wantStatus)
			continue
		}
		if tt.wantStatus != http.StatusOK {
			continue
		}
		if jobs := decode[[]job.Job](t, w); len(jobs) != tt.wantCount {
			t.Errorf("GET /api/jobs%s: %d jobs, want %d", tt.query, len(jobs), tt.wantCount)
		}
	}
}

func TestHandler_GetJob(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/api/jobs/1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if j := decode[job.Job](t, w); j.Name != "Web Server" || j.Status != job.StatusRunning {
		t.Errorf("unexpected job %+v", j)
	}

	w = env.do(t, http.MethodGet, "/api/jobs/99", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
	if body := decode[map[string]string](t, w); body["error"] != "job 99 not found" {
		t.Errorf("unexpected error body %v", body)
	}
}

func TestHandler_GetLogs(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/api/jobs/1/logs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	if logs := decode[string](t, w); !strings.Contains(logs, "nginx") {
		t.Errorf("unexpected logs %q", logs)
	}

	w = env.do(t, http.MethodGet, "/api/jobs/77/logs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("logs of an unknown job: status %d", w.Code)
	}
	if logs := decode[string](t, w); !strings.HasSuffix(logs, "[info] No detailed logs available for this job") {
		t.Errorf("unexpected placeholder %q", logs)
	}
}

func TestHandler_StartJob(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodPost, "/api/jobs",
		`{"image":"redis:alpine","name":"cache","ports":["6379:6379"],"resources":{"cpus":0.5,"memory":"256m"}}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	created := decode[job.Job](t, w)
	if created.ID != "6" || created.Name != "cache" || created.Status != job.StatusPending {
		t.Errorf("unexpected job %+v", created)
	}
	if created.Config.Resources == nil || created.Config.Resources.Memory != "256m" {
		t.Errorf("resources not carried: %+v", created.Config)
	}

	env.clock.Step(3 * time.Second)

	w = env.do(t, http.MethodGet, "/api/jobs/6", "")
	if j := decode[job.Job](t, w); j.Status != job.StatusRunning {
		t.Errorf("Expected RUNNING after boot delay, got %s", j.Status)
	}
}

func TestHandler_StartJob_Invalid(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "")

	tests := []struct {
		name string
		body string
	}{
		{"malformed JSON", "invalid json"},
		{"empty body", ""},
		{"missing image", `{"name":"x"}`},
		{"blank image", `{"image":"   "}`},
		{"bad port", `{"image":"nginx","ports":["80:http"]}`},
		{"bad volume", `{"image":"nginx","volumes":["/data"]}`},
		{"bad memory", `{"image":"nginx","resources":{"memory":"lots"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
			}
		})
	}

	if n := env.sim.Registry().Len(); n != 5 {
		t.Errorf("invalid requests must not create jobs, registry has %d", n)
	}
}

func TestHandler_StopAndRestart(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodPost, "/api/jobs/1/stop", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("stop: expected %d, got %d", http.StatusNoContent, w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/jobs/1/stop", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("second stop: expected %d, got %d", http.StatusConflict, w.Code)
	}
	if body := decode[map[string]string](t, w); body["error"] != "cannot stop job 1 with status STOPPED" {
		t.Errorf("unexpected error body %v", body)
	}

	w = env.do(t, http.MethodPost, "/api/jobs/1/restart", "")
	if w.Code != http.StatusOK {
		t.Fatalf("restart: expected %d, got %d", http.StatusOK, w.Code)
	}
	if j := decode[job.Job](t, w); j.Status != job.StatusPending || j.Finished != nil {
		t.Errorf("unexpected restarted job %+v", j)
	}

	w = env.do(t, http.MethodPost, "/api/jobs/2/restart", "")
	if w.Code != http.StatusConflict {
		t.Errorf("restart of a running job: expected %d, got %d", http.StatusConflict, w.Code)
	}

	w = env.do(t, http.MethodPost, "/api/jobs/42/stop", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("stop of unknown job: expected %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestHandler_Settings(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/api/settings", "")
	if snap := decode[client.Snapshot](t, w); !snap.UseSimulatedBackend || snap.BackendAddress != "http://localhost:8080/api" {
		t.Errorf("unexpected default settings %+v", snap)
	}

	w = env.do(t, http.MethodPut, "/api/settings", `{"backendAddress":"ftp://example.com"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid address: expected %d, got %d", http.StatusBadRequest, w.Code)
	}

	w = env.do(t, http.MethodPut, "/api/settings", `{"backendAddress":"https://jobs.example.com/api"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("valid address: expected %d, got %d", http.StatusOK, w.Code)
	}
	if got := env.settings.BackendAddress(); got != "https://jobs.example.com/api" {
		t.Errorf("address not applied: %q", got)
	}
	if !env.settings.UseSimulatedBackend() {
		t.Error("backend selection changed without being requested")
	}

	w = env.do(t, http.MethodPut, "/api/settings", `{"useSimulatedBackend":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("switch to remote: expected %d, got %d", http.StatusOK, w.Code)
	}
	if snap := decode[client.Snapshot](t, w); snap.UseSimulatedBackend {
		t.Errorf("expected remote backend selected, got %+v", snap)
	}
}

func TestHandler_Settings_RejectsRemoteWithoutAddress(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "")
	env.settings.SetBackendAddress("")

	w := env.do(t, http.MethodPut, "/api/settings", `{"useSimulatedBackend":false}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected %d, got %d", http.StatusBadRequest, w.Code)
	}
	if !env.settings.UseSimulatedBackend() {
		t.Error("rejected request must not change the settings")
	}
}

func TestHandler_HealthChecks(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "secret")

	w := env.do(t, http.MethodGet, "/livez", "")
	if w.Code != http.StatusOK {
		t.Errorf("livez: expected %d, got %d", http.StatusOK, w.Code)
	}

	w = env.do(t, http.MethodGet, "/readyz", "")
	if w.Code != http.StatusOK {
		t.Errorf("readyz: expected %d, got %d", http.StatusOK, w.Code)
	}
	if resp := decode[health.Response](t, w); resp.Checks["backend"].Status != health.StatusHealthy {
		t.Errorf("unexpected readiness %+v", resp)
	}
}

func TestHandler_Readyz_RemoteUnreachable(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "")
	env.settings.SetBackendAddress("http://127.0.0.1:1/api")
	env.settings.SetUseSimulatedBackend(false)

	w := env.do(t, http.MethodGet, "/readyz", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/jobs", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("transient failure: expected %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestHandler_Auth(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, "secret")

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic secret", http.StatusUnauthorized},
		{"wrong key", "Bearer nope", http.StatusUnauthorized},
		{"valid key", "Bearer secret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestHandler_ContextCancelled(t *testing.T) {
	t.Parallel()
	fc := testclock.NewFakeClock(epoch)
	sim := simulator.New(simulator.Config{MinLatency: time.Second, MaxLatency: 2 * time.Second, SeedData: true},
		simulator.WithClock(fc), simulator.WithRand(rand.New(rand.NewPCG(1, 2))))
	defer sim.Close()

	h := NewHandler(sim, client.NewSettings(), health.NewChecker())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	h.ListJobs(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
}
