package job

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"jobconsole/internal/apperrors"
)

// Validation limits
const (
	maxNameLength  = 128
	maxImageLength = 256
	maxCPUs        = 64
	maxEnvEntries  = 128
	maxMappings    = 64
)

var memoryPattern = regexp.MustCompile(`^(?i)[0-9]+[bkmg]?$`)

// ValidateStart checks a start request the way the create-job form does.
// Backends do not call it; the CLI and HTTP server do.
func ValidateStart(image string, cfg Config) error {
	image = strings.TrimSpace(image)
	if image == "" {
		return apperrors.Validation("image", "image is required")
	}
	if len(image) > maxImageLength {
		return apperrors.Validation("image", fmt.Sprintf("image exceeds maximum length of %d", maxImageLength))
	}
	if len(cfg.Name) > maxNameLength {
		return apperrors.Validation("name", fmt.Sprintf("name exceeds maximum length of %d", maxNameLength))
	}

	if len(cfg.Env) > maxEnvEntries {
		return apperrors.Validation("env", fmt.Sprintf("env exceeds maximum of %d entries", maxEnvEntries))
	}
	for k := range cfg.Env {
		if strings.TrimSpace(k) == "" {
			return apperrors.Validation("env", "env keys must not be empty")
		}
	}

	if len(cfg.Ports) > maxMappings {
		return apperrors.Validation("ports", fmt.Sprintf("ports exceed maximum of %d", maxMappings))
	}
	for _, p := range cfg.Ports {
		if err := validatePort(p); err != nil {
			return apperrors.Validation("ports", err.Error())
		}
	}

	if len(cfg.Volumes) > maxMappings {
		return apperrors.Validation("volumes", fmt.Sprintf("volumes exceed maximum of %d", maxMappings))
	}
	for _, v := range cfg.Volumes {
		if _, _, err := splitMapping(v); err != nil {
			return apperrors.Validation("volumes", err.Error())
		}
	}

	if r := cfg.Resources; r != nil {
		// Zero means no limit; the field is omitted on the wire.
		if r.CPUs < 0 || math.IsNaN(r.CPUs) || math.IsInf(r.CPUs, 0) {
			return apperrors.Validation("resources.cpus", "cpus must be greater than zero")
		}
		if r.CPUs > maxCPUs {
			return apperrors.Validation("resources.cpus", fmt.Sprintf("cpus exceeds maximum of %d", maxCPUs))
		}
		if r.Memory != "" && !memoryPattern.MatchString(r.Memory) {
			return apperrors.Validation("resources.memory", fmt.Sprintf("invalid memory size %q", r.Memory))
		}
	}
	return nil
}

// ValidateAddress checks a backend base address. It must be an absolute
// http or https URL.
func ValidateAddress(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return apperrors.Validation("backendAddress", "API base URL cannot be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return apperrors.Validation("backendAddress", "malformed URL")
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return apperrors.Validation("backendAddress", fmt.Sprintf("URL scheme must be http or https, got %q", parsed.Scheme))
	}
	if parsed.Host == "" {
		return apperrors.Validation("backendAddress", "URL must have a host")
	}
	return nil
}

// ParseEnv turns KEY=VALUE pairs into a map. The value is everything after
// the first '='; later duplicates win.
func ParseEnv(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, apperrors.Validation("env", fmt.Sprintf("invalid env entry %q, expected KEY=VALUE", pair))
		}
		env[key] = value
	}
	return env, nil
}

// ParseCommand splits a command line on whitespace. An empty line means the
// image default command.
func ParseCommand(line string) []string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func validatePort(mapping string) error {
	host, container, err := splitMapping(mapping)
	if err != nil {
		return err
	}
	for _, p := range []string{host, container} {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return fmt.Errorf("invalid port %q in %q", p, mapping)
		}
	}
	return nil
}

func splitMapping(mapping string) (string, string, error) {
	host, container, ok := strings.Cut(mapping, ":")
	if !ok || strings.TrimSpace(host) == "" || strings.TrimSpace(container) == "" {
		return "", "", fmt.Errorf("invalid mapping %q, expected host:container", mapping)
	}
	return host, container, nil
}

// ValidateCPUs checks an explicitly given CPU limit, where zero is not a
// way to say "unset".
func ValidateCPUs(cpus float64) error {
	if !(cpus > 0) || math.IsInf(cpus, 0) {
		return apperrors.Validation("resources.cpus", "cpus must be greater than zero")
	}
	return nil
}
