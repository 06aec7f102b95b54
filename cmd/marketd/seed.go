package main

import (
	"errors"
	"fmt"

	"github.com/merlox/ethereum-store/config"
	"github.com/merlox/ethereum-store/core"
	"github.com/merlox/ethereum-store/crypto"
	"github.com/merlox/ethereum-store/native/identity"
)

func seedFromGenesis(g *config.ResolvedGenesis) core.Seed {
	seed := core.Seed{Owner: g.Owner}
	seed.Operators = append(seed.Operators, g.Operators...)
	for _, bal := range g.Balances {
		seed.Balances = append(seed.Balances, core.Allocation{Address: bal.Address, Amount: bal.Amount})
	}
	return seed
}

// seedIdentities registers the genesis identities, skipping aliases held by
// another address.
func seedIdentities(registry identityStore, g *config.ResolvedGenesis, now int64) error {
	for _, id := range g.Identities {
		_, err := registry.CreateIdentity(id.Address, id.Alias, id.Verified, now)
		if errors.Is(err, identity.ErrAliasTaken) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seed identity %s: %w", crypto.FormatAddress(id.Address), err)
		}
	}
	return nil
}
