package client

import (
	"log/slog"
	"sync"

	"jobconsole/internal/config"
)

// Snapshot is a point-in-time copy of the settings.
type Snapshot struct {
	UseSimulatedBackend bool   `json:"useSimulatedBackend" yaml:"useSimulatedBackend"`
	BackendAddress      string `json:"backendAddress" yaml:"backendAddress"`
}

// Settings holds which backend the client talks to and where the remote
// backend lives. Changes apply to the next call; calls already in flight are
// unaffected. Setters do not validate; see job.ValidateAddress.
type Settings struct {
	mu           sync.RWMutex
	useSimulated bool
	address      string
	logger       *slog.Logger
}

// NewSettings returns settings with the simulated backend selected and the
// default remote address.
func NewSettings() *Settings {
	return &Settings{
		useSimulated: true,
		address:      config.DefaultBackendAddress,
		logger:       slog.With("component", "settings"),
	}
}

// SetBackendAddress sets the base address of the remote backend.
func (s *Settings) SetBackendAddress(addr string) {
	s.mu.Lock()
	s.address = addr
	s.mu.Unlock()

	s.logger.Info("API base URL updated", "backendAddress", addr)
}

// SetUseSimulatedBackend selects the simulated (true) or remote (false) backend.
func (s *Settings) SetUseSimulatedBackend(use bool) {
	s.mu.Lock()
	s.useSimulated = use
	s.mu.Unlock()

	s.logger.Info("Backend selected", "backend", backendName(use))
}

// BackendAddress returns the current remote base address.
func (s *Settings) BackendAddress() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.address
}

// UseSimulatedBackend reports whether the simulated backend is selected.
func (s *Settings) UseSimulatedBackend() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.useSimulated
}

// Snapshot returns both values read under one lock.
func (s *Settings) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{UseSimulatedBackend: s.useSimulated, BackendAddress: s.address}
}

// Apply sets both values.
func (s *Settings) Apply(snap Snapshot) {
	s.SetBackendAddress(snap.BackendAddress)
	s.SetUseSimulatedBackend(snap.UseSimulatedBackend)
}

func backendName(simulated bool) string {
	if simulated {
		return BackendSimulated
	}
	return BackendRemote
}
