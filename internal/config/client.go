package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Client config keys, usable with ClientConfig.Viper for flag binding.
const (
	EnvPrefix  = "JOBCTL"
	ConfigName = "jobctl"

	BackendAddressKey = "backendAddress"
	UseSimulatedKey   = "useSimulated"
	OutputKey         = "output"
	TimeoutKey        = "timeout"
)

// ClientConfig holds jobctl settings resolved from file, environment and defaults.
type ClientConfig struct {
	BackendAddress string        `mapstructure:"backendAddress"`
	UseSimulated   bool          `mapstructure:"useSimulated"`
	Output         string        `mapstructure:"output"`
	Timeout        time.Duration `mapstructure:"timeout"`

	v *viper.Viper
}

// LoadClientConfig loads jobctl configuration with its own viper instance.
// An explicit cfgFile must exist; otherwise jobctl.yaml in the working
// directory is used when present. JOBCTL_* environment variables override
// file values.
func LoadClientConfig(cfgFile string) (*ClientConfig, error) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// AutomaticEnv upper-cases keys, which does not match camelCase names.
	_ = v.BindEnv(BackendAddressKey, EnvPrefix+"_BACKEND_ADDRESS")
	_ = v.BindEnv(UseSimulatedKey, EnvPrefix+"_USE_SIMULATED")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	} else {
		for _, name := range []string{ConfigName + ".yaml", ConfigName + ".yml", "." + ConfigName + ".yaml"} {
			if _, err := os.Stat(name); err == nil {
				v.SetConfigFile(name)
				if err := v.ReadInConfig(); err == nil {
					break
				}
			}
		}
	}

	setClientDefaults(v)

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.BackendAddress = strings.TrimRight(cfg.BackendAddress, "/")
	cfg.v = v
	return &cfg, nil
}

func setClientDefaults(v *viper.Viper) {
	v.SetDefault(BackendAddressKey, DefaultBackendAddress)
	v.SetDefault(UseSimulatedKey, true)
	v.SetDefault(OutputKey, "table")
	v.SetDefault(TimeoutKey, DefaultRequestTimeout)
}

// Viper returns the underlying viper instance.
func (c *ClientConfig) Viper() *viper.Viper {
	return c.v
}

// ConfigFileUsed returns the config file that was used (if any).
func (c *ClientConfig) ConfigFileUsed() string {
	if c.v == nil {
		return ""
	}
	return c.v.ConfigFileUsed()
}
