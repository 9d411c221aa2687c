package explorer

import (
	"context"
	"fmt"

	"stacks-explorer-api/internal/aggregate"
	"stacks-explorer-api/internal/storage"
	"stacks-explorer-api/internal/vesting"
)

func (x *Explorer) newGenesisTotalsSpec() *aggregate.Spec[struct{}, *vesting.Totals] {
	return &aggregate.Spec[struct{}, *vesting.Totals]{
		Name: "genesis_totals",
		Key:  func(struct{}) string { return "GenesisTotals" },
		// nil TTL: the snapshot never changes.
		Setter: func(context.Context, struct{}) (*vesting.Totals, error) {
			if x.genesis == nil {
				return nil, fmt.Errorf("genesis snapshot not loaded: %w", storage.ErrNotFound)
			}
			return vesting.ComputeTotals(x.genesis.Accounts()), nil
		},
		Verbose: func(struct{}) bool { return true },
	}
}

// GenesisTotals returns the vesting totals over every genesis account.
func (x *Explorer) GenesisTotals(ctx context.Context) (*vesting.Totals, error) {
	return aggregate.Fetch(ctx, x.engine, x.genesisTotalsSpec, struct{}{})
}

// GenesisAccount returns the genesis schedule of an address.
func (x *Explorer) GenesisAccount(address string) (*vesting.Schedule, bool) {
	if x.genesis == nil {
		return nil, false
	}
	return x.genesis.Account(address)
}
