package dispatcher

import (
	"time"

	"jobconsole/internal/config"
)

// Defaults for MemoryConfig.
const (
	defaultBufferSize       = 1000
	defaultWorkers          = 2
	defaultHTTPTimeout      = 10 * time.Second
	defaultMaxRetries       = 3
	defaultInitialBackoff   = 100 * time.Millisecond
	defaultMaxBackoff       = 5 * time.Second
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30 * time.Second
	defaultMaxRequeues      = 10
)

// MemoryConfig holds configuration for the in-memory dispatcher.
type MemoryConfig struct {
	BufferSize       int           // pending deliveries (default: 1000)
	Workers          int           // concurrent delivery goroutines (default: 2)
	HTTPTimeout      time.Duration // per-request timeout (default: 10s)
	MaxRetries       int           // retries after the first attempt (default: 3)
	InitialBackoff   time.Duration // first retry delay (default: 100ms)
	MaxBackoff       time.Duration // retry delay cap (default: 5s)
	BreakerThreshold int           // consecutive failures before a host's circuit opens (default: 5)
	BreakerCooldown  time.Duration // open circuit duration, also the requeue delay (default: 30s)
	MaxRequeues      int           // requeues before a delivery is dropped (default: 10)
}

// LoadConfigFromEnv loads dispatcher configuration from environment variables.
func LoadConfigFromEnv() MemoryConfig {
	cfg := MemoryConfig{
		BufferSize:       config.GetIntEnv("DISPATCHER_BUFFER_SIZE", defaultBufferSize),
		Workers:          config.GetIntEnv("DISPATCHER_WORKERS", defaultWorkers),
		HTTPTimeout:      config.GetDurationEnv("DISPATCHER_HTTP_TIMEOUT", defaultHTTPTimeout),
		MaxRetries:       config.GetIntEnv("DISPATCHER_MAX_RETRIES", defaultMaxRetries),
		BreakerThreshold: config.GetIntEnv("DISPATCHER_BREAKER_THRESHOLD", defaultBreakerThreshold),
		BreakerCooldown:  config.GetDurationEnv("DISPATCHER_BREAKER_COOLDOWN", defaultBreakerCooldown),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults.
func (c MemoryConfig) withDefaults() MemoryConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = defaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = defaultBreakerThreshold
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = defaultBreakerCooldown
	}
	if c.MaxRequeues <= 0 {
		c.MaxRequeues = defaultMaxRequeues
	}
	return c
}
