package config

import (
	"fmt"
	"os"
	"strings"
)

// Validate checks the loaded values.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Backend)) {
	case BackendMemory, BackendLevelDB:
	default:
		return fmt.Errorf("config: unsupported backend %q", c.Backend)
	}
	for _, module := range c.Paused {
		if !knownModule(module) {
			return fmt.Errorf("config: unknown pausable module %q", module)
		}
	}
	if c.Auth.Enabled && c.Auth.Secret() == "" {
		return fmt.Errorf("auth: HMACSecret or HMACSecretEnv required when enabled")
	}
	if c.Auth.ClockSkewSeconds < 0 {
		return fmt.Errorf("auth: ClockSkewSeconds must be non-negative")
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit: values must be non-negative")
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst == 0 {
		return fmt.Errorf("rate_limit: Burst must be positive when RequestsPerSecond is set")
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("config: MaxConnections must be non-negative")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0,1]")
	}
	return nil
}

// Secret resolves the HMAC secret, preferring the environment variable.
func (a Auth) Secret() string {
	if env := strings.TrimSpace(a.HMACSecretEnv); env != "" {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return strings.TrimSpace(a.HMACSecret)
}

func knownModule(module string) bool {
	normalized := strings.ToLower(strings.TrimSpace(module))
	for _, m := range PausableModules {
		if m == normalized {
			return true
		}
	}
	return false
}
