package simulator

import (
	"time"

	"jobconsole/internal/config"
)

// Defaults for the simulated backend.
const (
	defaultBootDelay    = 3 * time.Second
	defaultRestartDelay = 2 * time.Second
	defaultMinLatency   = 200 * time.Millisecond
	defaultMaxLatency   = 800 * time.Millisecond
	defaultFailureRate  = 0.05
)

// Config holds the timing and failure characteristics of the simulator.
type Config struct {
	BootDelay    time.Duration // PENDING -> RUNNING after start (default: 3s)
	RestartDelay time.Duration // PENDING -> RUNNING after restart (default: 2s)
	MinLatency   time.Duration // lower bound of injected latency, inclusive (default: 200ms)
	MaxLatency   time.Duration // upper bound of injected latency, exclusive (default: 800ms)
	FailureRate  float64       // probability of an injected transient failure (default: 0.05)
	SeedData     bool          // load the sample image catalog and jobs (default: true)
	RandomSeed   uint64        // fixed seed for the random source, 0 = random
}

// DefaultConfig returns the stock simulator configuration.
func DefaultConfig() Config {
	return Config{
		BootDelay:    defaultBootDelay,
		RestartDelay: defaultRestartDelay,
		MinLatency:   defaultMinLatency,
		MaxLatency:   defaultMaxLatency,
		FailureRate:  defaultFailureRate,
		SeedData:     true,
	}
}

// LoadConfigFromEnv loads simulator configuration from environment variables.
func LoadConfigFromEnv() Config {
	cfg := Config{
		BootDelay:    config.GetDurationEnv("SIM_BOOT_DELAY", defaultBootDelay),
		RestartDelay: config.GetDurationEnv("SIM_RESTART_DELAY", defaultRestartDelay),
		MinLatency:   config.GetDurationEnv("SIM_MIN_LATENCY", defaultMinLatency),
		MaxLatency:   config.GetDurationEnv("SIM_MAX_LATENCY", defaultMaxLatency),
		FailureRate:  config.GetFloatEnv("SIM_FAILURE_RATE", defaultFailureRate),
		SeedData:     config.GetBoolEnv("SIM_SEED", true),
		RandomSeed:   uint64(config.GetIntEnv("SIM_RANDOM_SEED", 0)),
	}
	return cfg.normalize()
}

// normalize clamps out-of-range values. Zero durations are valid and mean
// "no delay".
func (c Config) normalize() Config {
	c.BootDelay = max(c.BootDelay, 0)
	c.RestartDelay = max(c.RestartDelay, 0)
	c.MinLatency = max(c.MinLatency, 0)
	c.MaxLatency = max(c.MaxLatency, c.MinLatency)
	c.FailureRate = min(max(c.FailureRate, 0), 1)
	return c
}
