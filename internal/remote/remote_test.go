package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	testclock "k8s.io/utils/clock/testing"

	"jobconsole/internal/apperrors"
	"jobconsole/internal/job"
	"jobconsole/pkg/circuitbreaker"
)

// fakeAPI serves a minimal version of the job API under /api.
type fakeAPI struct {
	mu       sync.Mutex
	lastBody map[string]any
	status   atomic.Int32 // forced status for every request, 0 = normal
	hits     atomic.Int32
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	sample := job.Job{
		ID:      "1",
		Name:    "Web Server",
		Image:   "nginx:latest",
		Status:  job.StatusRunning,
		Created: time.Date(2024, 3, 24, 12, 0, 0, 0, time.UTC),
		Config:  job.Config{Ports: []string{"80:80"}},
	}

	mux.HandleFunc("GET /api/images", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []string{"nginx:latest", "redis:alpine"})
	})
	mux.HandleFunc("GET /api/jobs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []job.Job{sample})
	})
	mux.HandleFunc("GET /api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "1" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
			return
		}
		writeJSON(w, http.StatusOK, sample)
	})
	mux.HandleFunc("GET /api/jobs/{id}/logs", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "plain" {
			_, _ = io.WriteString(w, "raw text logs")
			return
		}
		writeJSON(w, http.StatusOK, "line one\nline two")
	})
	mux.HandleFunc("POST /api/jobs", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.lastBody = body
		f.mu.Unlock()
		created := sample
		created.ID = "2"
		created.Status = job.StatusPending
		created.Image, _ = body["image"].(string)
		writeJSON(w, http.StatusCreated, created)
	})
	mux.HandleFunc("POST /api/jobs/{id}/stop", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "not json at all")
	})
	mux.HandleFunc("POST /api/jobs/{id}/restart", func(w http.ResponseWriter, r *http.Request) {
		restarted := sample
		restarted.ID = r.PathValue("id")
		restarted.Status = job.StatusPending
		writeJSON(w, http.StatusOK, restarted)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		if code := f.status.Load(); code != 0 {
			http.Error(w, "forced failure", int(code))
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestBackend(t *testing.T) (*Backend, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	return New(StaticAddress(srv.URL+"/api/"), Options{Timeout: 5 * time.Second}), api
}

func TestReads(t *testing.T) {
	t.Parallel()
	b, _ := newTestBackend(t)
	ctx := context.Background()

	images, err := b.ListImages(ctx)
	if err != nil || len(images) != 2 || images[1] != "redis:alpine" {
		t.Fatalf("ListImages() = %v, %v", images, err)
	}

	jobs, err := b.ListJobs(ctx)
	if err != nil || len(jobs) != 1 || jobs[0].Status != job.StatusRunning {
		t.Fatalf("ListJobs() = %v, %v", jobs, err)
	}

	j, err := b.GetJob(ctx, "1")
	if err != nil {
		t.Fatalf("GetJob() error: %v", err)
	}
	if j.Name != "Web Server" || j.Config.Ports[0] != "80:80" {
		t.Errorf("unexpected job: %+v", j)
	}

	logs, err := b.GetLogs(ctx, "1")
	if err != nil || logs != "line one\nline two" {
		t.Errorf("GetLogs() = %q, %v", logs, err)
	}

	plain, err := b.GetLogs(ctx, "plain")
	if err != nil || plain != "raw text logs" {
		t.Errorf("GetLogs(plain) = %q, %v", plain, err)
	}
}

func TestStartJobFlattensConfig(t *testing.T) {
	t.Parallel()
	b, api := newTestBackend(t)

	cfg := job.Config{
		Name:      "cache",
		Env:       map[string]string{"A": "1"},
		Ports:     []string{"6379:6379"},
		Resources: &job.Resources{CPUs: 0.5, Memory: "256m"},
	}
	j, err := b.StartJob(context.Background(), "redis:alpine", cfg)
	if err != nil {
		t.Fatalf("StartJob() error: %v", err)
	}
	if j.ID != "2" || j.Image != "redis:alpine" || j.Status != job.StatusPending {
		t.Errorf("unexpected job: %+v", j)
	}

	api.mu.Lock()
	body := api.lastBody
	api.mu.Unlock()
	if body["image"] != "redis:alpine" || body["name"] != "cache" {
		t.Errorf("unexpected body: %v", body)
	}
	if _, nested := body["Config"]; nested {
		t.Error("config must be flattened into the body")
	}
	if _, ok := body["volumes"]; ok {
		t.Error("empty fields must be omitted")
	}
	res, _ := body["resources"].(map[string]any)
	if res["memory"] != "256m" {
		t.Errorf("resources = %v", body["resources"])
	}
}

func TestStopAndRestart(t *testing.T) {
	t.Parallel()
	b, _ := newTestBackend(t)
	ctx := context.Background()

	if err := b.StopJob(ctx, "1"); err != nil {
		t.Errorf("StopJob() error: %v", err)
	}

	j, err := b.RestartJob(ctx, "1")
	if err != nil || j.Status != job.StatusPending {
		t.Errorf("RestartJob() = %+v, %v", j, err)
	}
}

func TestNonSuccessIsTransient(t *testing.T) {
	t.Parallel()
	b, _ := newTestBackend(t)

	_, err := b.GetJob(context.Background(), "999")
	if !errors.Is(err, apperrors.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
	if code, ok := StatusCode(err); !ok || code != http.StatusNotFound {
		t.Errorf("StatusCode() = %d, %v", code, ok)
	}
}

func TestAddressReadPerCall(t *testing.T) {
	t.Parallel()
	first := &fakeAPI{}
	second := &fakeAPI{}
	srv1 := httptest.NewServer(first.handler())
	srv2 := httptest.NewServer(second.handler())
	t.Cleanup(srv1.Close)
	t.Cleanup(srv2.Close)

	addr := &mutableAddress{}
	addr.set(srv1.URL + "/api")
	b := New(addr, Options{})

	if _, err := b.ListImages(context.Background()); err != nil {
		t.Fatalf("ListImages() error: %v", err)
	}
	addr.set(srv2.URL + "/api")
	if _, err := b.ListImages(context.Background()); err != nil {
		t.Fatalf("ListImages() error: %v", err)
	}

	if first.hits.Load() != 1 || second.hits.Load() != 1 {
		t.Errorf("hits = %d/%d, want 1/1", first.hits.Load(), second.hits.Load())
	}
}

type mutableAddress struct {
	mu   sync.Mutex
	addr string
}

func (m *mutableAddress) set(a string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addr = a
}

func (m *mutableAddress) BackendAddress() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}

func TestCircuitBreakerFailsFast(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{}
	api.status.Store(http.StatusBadGateway)
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	b := New(StaticAddress(srv.URL+"/api"), Options{
		Breaker: circuitbreaker.Config{Threshold: 2, Cooldown: time.Hour},
	})
	ctx := context.Background()

	for range 2 {
		if _, err := b.ListJobs(ctx); !errors.Is(err, apperrors.ErrTransient) {
			t.Fatalf("expected ErrTransient, got %v", err)
		}
	}

	_, err := b.ListJobs(ctx)
	if !errors.Is(err, circuitbreaker.ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if !errors.Is(err, apperrors.ErrTransient) {
		t.Error("open circuit must still be reported as transient")
	}
	if hits := api.hits.Load(); hits != 2 {
		t.Errorf("server hits = %d, want 2", hits)
	}
}

func TestCancelledCallAfterCooldownDoesNotWedgeBreaker(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{}
	api.status.Store(http.StatusBadGateway)
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	fc := testclock.NewFakePassiveClock(time.Date(2024, 3, 24, 12, 0, 0, 0, time.UTC))
	b := New(StaticAddress(srv.URL+"/api"), Options{
		Breaker: circuitbreaker.Config{Threshold: 2, Cooldown: time.Second, Clock: fc},
	})

	for range 2 {
		if _, err := b.ListJobs(context.Background()); !errors.Is(err, apperrors.ErrTransient) {
			t.Fatalf("expected ErrTransient, got %v", err)
		}
	}

	// The first call after the cooldown is abandoned by its caller.
	fc.SetTime(fc.Now().Add(2 * time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.ListJobs(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	api.status.Store(0)
	jobs, err := b.ListJobs(context.Background())
	if err != nil {
		t.Fatalf("ListJobs() after cancelled call: %v", err)
	}
	if len(jobs) != 1 {
		t.Errorf("got %d jobs, want 1", len(jobs))
	}
	if hits := api.hits.Load(); hits != 3 {
		t.Errorf("server hits = %d, want 3", hits)
	}

	if _, err := b.ListJobs(context.Background()); err != nil {
		t.Errorf("breaker should be closed again, got %v", err)
	}
}

func TestMalformedAddressIsTransient(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	addr := &mutableAddress{addr: srv.URL + "/api"}
	b := New(addr, Options{Breaker: circuitbreaker.Config{Threshold: 1, Cooldown: time.Hour}})

	addr.set("http://bad host/api")
	for range 3 {
		if _, err := b.ListJobs(context.Background()); !errors.Is(err, apperrors.ErrTransient) {
			t.Fatalf("expected ErrTransient, got %v", err)
		}
	}

	addr.set(srv.URL + "/api")
	if _, err := b.ListJobs(context.Background()); err != nil {
		t.Errorf("ListJobs() after fixing address: %v", err)
	}
}

func TestUnreachableServer(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	b := New(StaticAddress(addr), Options{Timeout: time.Second})
	err := b.Ready(context.Background())
	if !errors.Is(err, apperrors.ErrTransient) {
		t.Errorf("expected ErrTransient, got %v", err)
	}
}

func TestContextCancelled(t *testing.T) {
	t.Parallel()
	b, _ := newTestBackend(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := b.ListJobs(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
