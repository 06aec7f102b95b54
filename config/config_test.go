package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/merlox/ethereum-store/crypto"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "market.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.ListenAddress)
	require.Equal(t, BackendLevelDB, cfg.Backend)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, "marketd", cfg.Telemetry.ServiceName)

	_, err = os.Stat(path)
	require.NoError(t, err)

	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.DataDir, again.DataDir)
	require.Equal(t, cfg.RateLimit, again.RateLimit)
}

func TestLoadParsesSections(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "market.toml", `ListenAddress = "127.0.0.1:9000"
Backend = "memory"
RequireIdentity = true
Paused = ["Escrow"]
MaxConnections = 256

[auth]
Enabled = true
HMACSecret = "shh"
Issuer = "issuer"
Audience = "aud"

[rate_limit]
RequestsPerSecond = 5
Burst = 10

[telemetry]
Endpoint = "collector:4318"
Traces = true
SampleRatio = 0.5

[log]
Level = "debug"
File = "market.log"
MaxSizeMB = 50
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.ListenAddress)
	require.Equal(t, BackendMemory, cfg.Backend)
	require.True(t, cfg.RequireIdentity)
	require.Equal(t, []string{"Escrow"}, cfg.Paused)
	require.Equal(t, 256, cfg.MaxConnections)
	require.Equal(t, "shh", cfg.Auth.Secret())
	require.Equal(t, 5.0, cfg.RateLimit.RequestsPerSecond)
	require.Equal(t, 10, cfg.RateLimit.Burst)
	require.True(t, cfg.Telemetry.Traces)
	require.Equal(t, 0.5, cfg.Telemetry.SampleRatio)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, 50, cfg.Log.MaxSizeMB)
	require.Equal(t, filepath.Join(cfg.DataDir, "state"), cfg.StatePath())
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"backend":     func(c *Config) { c.Backend = "postgres" },
		"paused":      func(c *Config) { c.Paused = []string{"lending"} },
		"auth secret": func(c *Config) { c.Auth.Enabled = true },
		"burst":       func(c *Config) { c.RateLimit = RateLimit{RequestsPerSecond: 1} },
		"sample":      func(c *Config) { c.Telemetry.SampleRatio = 2 },
		"connections": func(c *Config) { c.MaxConnections = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := &Config{}
			cfg.applyDefaults()
			require.NoError(t, cfg.Validate())
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestAuthSecretPrefersEnv(t *testing.T) {
	t.Setenv("MARKET_TEST_SECRET", "from-env")
	auth := Auth{HMACSecret: "inline", HMACSecretEnv: "MARKET_TEST_SECRET"}
	require.Equal(t, "from-env", auth.Secret())

	auth.HMACSecretEnv = "MARKET_TEST_UNSET"
	require.Equal(t, "inline", auth.Secret())
}

func TestLoadGenesis(t *testing.T) {
	var seller [20]byte
	seller[19] = 0x07
	sellerBech := crypto.FormatAddress(seller)

	path := writeFile(t, t.TempDir(), "genesis.yaml", `vault: "0x00000000000000000000000000000000000000aa"
owner: "0x00000000000000000000000000000000000000bb"
operators:
  - "0x00000000000000000000000000000000000000cc"
balances:
  - address: "`+sellerBech+`"
    amount: "1000000000000000000000"
identities:
  - address: "`+sellerBech+`"
    alias: "Seller"
    verified: true
`)

	g, err := LoadGenesis(path)
	require.NoError(t, err)
	require.Equal(t, byte(0xaa), g.Vault[19])
	require.Equal(t, byte(0xbb), g.Owner[19])
	require.Len(t, g.Operators, 1)
	require.Equal(t, byte(0xcc), g.Operators[0][19])
	require.Len(t, g.Balances, 1)
	require.Equal(t, seller, g.Balances[0].Address)
	require.Equal(t, "1000000000000000000000", g.Balances[0].Amount.String())
	require.Len(t, g.Identities, 1)
	require.True(t, g.Identities[0].Verified)
}

func TestGenesisResolveRejects(t *testing.T) {
	valid := Genesis{
		Vault: "0x00000000000000000000000000000000000000aa",
		Owner: "0x00000000000000000000000000000000000000bb",
	}
	_, err := valid.Resolve()
	require.NoError(t, err)

	missingVault := valid
	missingVault.Vault = ""
	_, err = missingVault.Resolve()
	require.ErrorContains(t, err, "vault")

	zeroOwner := valid
	zeroOwner.Owner = "0x0000000000000000000000000000000000000000"
	_, err = zeroOwner.Resolve()
	require.ErrorContains(t, err, "zero address")

	vaultOwner := valid
	vaultOwner.Owner = valid.Vault
	_, err = vaultOwner.Resolve()
	require.ErrorContains(t, err, "differ from vault")

	vaultOperator := valid
	vaultOperator.Operators = []string{valid.Vault}
	_, err = vaultOperator.Resolve()
	require.ErrorContains(t, err, "differ from vault")

	badAmount := valid
	badAmount.Balances = []GenesisBalance{{Address: valid.Owner, Amount: "-5"}}
	_, err = badAmount.Resolve()
	require.ErrorContains(t, err, "amount")
}
