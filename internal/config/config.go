// Package config provides configuration loading from environment variables
// and config files.
package config

import (
	"strings"
	"time"
)

// Defaults shared by the server and the CLI.
const (
	DefaultBackendAddress = "http://localhost:8080/api"
	DefaultRequestTimeout = 10 * time.Second
)

// ServiceConfig holds configuration for the jobsim server.
type ServiceConfig struct {
	Port              string
	MetricsPort       string
	APIKey            string
	ShutdownDrainWait time.Duration // Time to wait for load balancer to drain (0 to skip)
	LogLevel          string

	UseSimulated   bool          // serve from the simulator rather than a remote backend
	BackendAddress string        // base address of the remote backend
	RequestTimeout time.Duration // per-request timeout for the remote backend

	WebhookURL        string   // lifecycle events destination, empty = disabled
	WebhookSigningKey string   // HMAC key for webhook payloads
	WebhookEvents     []string // event type filter, empty = all
}

// LoadServiceConfig loads service configuration from environment variables.
func LoadServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Port:              GetEnv("PORT", "8080"),
		MetricsPort:       GetEnv("METRICS_PORT", "9090"),
		APIKey:            GetSecretFile(GetEnv("API_KEY_FILE", "")),
		ShutdownDrainWait: GetDurationEnv("SHUTDOWN_DRAIN_WAIT", 5*time.Second),
		LogLevel:          GetEnv("LOG_LEVEL", "info"),
		UseSimulated:      GetBoolEnv("USE_SIMULATED_BACKEND", true),
		BackendAddress:    strings.TrimRight(GetEnv("BACKEND_ADDRESS", DefaultBackendAddress), "/"),
		RequestTimeout:    GetDurationEnv("BACKEND_TIMEOUT", DefaultRequestTimeout),
		WebhookURL:        GetEnv("WEBHOOK_URL", ""),
		WebhookSigningKey: GetSecretFile(GetEnv("WEBHOOK_SIGNING_KEY_FILE", "")),
		WebhookEvents:     GetListEnv("WEBHOOK_EVENTS"),
	}
}
