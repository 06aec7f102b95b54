package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/merlox/ethereum-store/observability/logging"
)

type Config struct {
	ListenAddress   string   `toml:"ListenAddress"`
	Environment     string   `toml:"Environment"`
	DataDir         string   `toml:"DataDir"`
	Backend         string   `toml:"Backend"`
	GenesisFile     string   `toml:"GenesisFile"`
	IdentityDB      string   `toml:"IdentityDB"`
	RequireIdentity bool     `toml:"RequireIdentity"`
	JournalDSN      string   `toml:"JournalDSN"`
	Paused          []string `toml:"Paused"`
	AllowedOrigins  []string `toml:"AllowedOrigins"`
	// MaxConnections caps concurrent HTTP connections; zero leaves them unbounded.
	MaxConnections int `toml:"MaxConnections"`

	Auth      Auth           `toml:"auth"`
	RateLimit RateLimit      `toml:"rate_limit"`
	Telemetry Telemetry      `toml:"telemetry"`
	Log       logging.Config `toml:"log"`
}

// Load loads the configuration from the given path, writing a default file
// first when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8080"
	}
	if strings.TrimSpace(c.Backend) == "" {
		c.Backend = BackendLevelDB
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./market-data"
	}
	if c.Paused == nil {
		c.Paused = []string{}
	}
	if c.RateLimit.RequestsPerSecond == 0 && c.RateLimit.Burst == 0 {
		c.RateLimit.RequestsPerSecond = 20
		c.RateLimit.Burst = 40
	}
	if c.Auth.ClockSkewSeconds == 0 {
		c.Auth.ClockSkewSeconds = 120
	}
	if strings.TrimSpace(c.Telemetry.ServiceName) == "" {
		c.Telemetry.ServiceName = "marketd"
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
}

// StatePath returns the LevelDB directory under DataDir.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "state")
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress: ":8080",
		Environment:   "local",
		DataDir:       "./market-data",
		Backend:       BackendLevelDB,
		GenesisFile:   "",
		JournalDSN:    "",
		Paused:        []string{},
		Auth: Auth{
			Issuer:   "marketd",
			Audience: "market",
		},
	}
	cfg.applyDefaults()

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
