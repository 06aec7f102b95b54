package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/merlox/ethereum-store/crypto"
)

// Genesis seeds a fresh marketplace. Addresses may be 0x-hex or mkt bech32.
type Genesis struct {
	Vault      string            `yaml:"vault"`
	Owner      string            `yaml:"owner"`
	Operators  []string          `yaml:"operators"`
	Balances   []GenesisBalance  `yaml:"balances"`
	Identities []GenesisIdentity `yaml:"identities"`
}

type GenesisBalance struct {
	Address string `yaml:"address"`
	Amount  string `yaml:"amount"`
}

type GenesisIdentity struct {
	Address  string `yaml:"address"`
	Alias    string `yaml:"alias"`
	Verified bool   `yaml:"verified"`
}

// ResolvedGenesis carries the parsed seed.
type ResolvedGenesis struct {
	Vault      [20]byte
	Owner      [20]byte
	Operators  [][20]byte
	Balances   []ResolvedBalance
	Identities []ResolvedIdentity
}

type ResolvedBalance struct {
	Address [20]byte
	Amount  *big.Int
}

type ResolvedIdentity struct {
	Address  [20]byte
	Alias    string
	Verified bool
}

// LoadGenesis reads and resolves the YAML seed at path.
func LoadGenesis(path string) (*ResolvedGenesis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var g Genesis
	if err := yaml.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("genesis: decode %s: %w", path, err)
	}
	return g.Resolve()
}

// Resolve parses addresses and amounts.
func (g Genesis) Resolve() (*ResolvedGenesis, error) {
	out := &ResolvedGenesis{}
	var err error
	if out.Vault, err = parseRequired("vault", g.Vault); err != nil {
		return nil, err
	}
	if out.Owner, err = parseRequired("owner", g.Owner); err != nil {
		return nil, err
	}
	if out.Owner == out.Vault {
		return nil, fmt.Errorf("genesis: owner must differ from vault")
	}
	for i, raw := range g.Operators {
		addr, err := parseRequired(fmt.Sprintf("operators[%d]", i), raw)
		if err != nil {
			return nil, err
		}
		if addr == out.Vault {
			return nil, fmt.Errorf("genesis: operators[%d] must differ from vault", i)
		}
		out.Operators = append(out.Operators, addr)
	}
	for i, bal := range g.Balances {
		addr, err := parseRequired(fmt.Sprintf("balances[%d].address", i), bal.Address)
		if err != nil {
			return nil, err
		}
		amount, ok := new(big.Int).SetString(strings.TrimSpace(bal.Amount), 10)
		if !ok || amount.Sign() < 0 {
			return nil, fmt.Errorf("genesis: balances[%d].amount %q is not a non-negative integer", i, bal.Amount)
		}
		out.Balances = append(out.Balances, ResolvedBalance{Address: addr, Amount: amount})
	}
	for i, id := range g.Identities {
		addr, err := parseRequired(fmt.Sprintf("identities[%d].address", i), id.Address)
		if err != nil {
			return nil, err
		}
		out.Identities = append(out.Identities, ResolvedIdentity{Address: addr, Alias: id.Alias, Verified: id.Verified})
	}
	return out, nil
}

func parseRequired(field, raw string) ([20]byte, error) {
	if strings.TrimSpace(raw) == "" {
		return [20]byte{}, fmt.Errorf("genesis: %s required", field)
	}
	addr, err := crypto.ParseAddress(raw)
	if err != nil {
		return [20]byte{}, fmt.Errorf("genesis: %s: %w", field, err)
	}
	if addr == ([20]byte{}) {
		return [20]byte{}, fmt.Errorf("genesis: %s must not be the zero address", field)
	}
	return addr, nil
}
