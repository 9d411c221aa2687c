package explorer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"stacks-explorer-api/internal/aggregate"
	"stacks-explorer-api/internal/c32"
	"stacks-explorer-api/internal/units"
)

// TotalSupply is the transferable share of the total STX supply. Amounts are STX.
type TotalSupply struct {
	BlockHeight             string `json:"blockHeight"`
	TotalStacks             string `json:"totalStacks"`
	TotalStacksFormatted    string `json:"totalStacksFormatted"`
	UnlockedSupply          string `json:"unlockedSupply"`
	UnlockedSupplyFormatted string `json:"unlockedSupplyFormatted"`
	UnlockedPercent         string `json:"unlockedPercent"`
}

// TopBalance is one of the largest STX balances.
type TopBalance struct {
	Address                string `json:"address"`
	StacksAddress          string `json:"stacksAddress,omitempty"`
	Balance                int64  `json:"balance"` // microstacks
	BalanceStacks          string `json:"balanceStacks"`
	BalanceStacksFormatted string `json:"balanceStacksFormatted"`
	DistributionPercent    string `json:"distributionPercent"`
}

func (x *Explorer) newTotalSupplySpec() *aggregate.Spec[struct{}, *TotalSupply] {
	return &aggregate.Spec[struct{}, *TotalSupply]{
		Name:   "total_supply",
		Key:    func(struct{}) string { return "TotalSupply" },
		TTL:    fixedTTL[struct{}](10 * time.Minute),
		Setter: x.computeTotalSupply,
	}
}

// TotalSupply returns the unlocked supply at the latest accounts block.
func (x *Explorer) TotalSupply(ctx context.Context) (*TotalSupply, error) {
	return aggregate.Fetch(ctx, x.engine, x.totalSupplySpec, struct{}{})
}

func (x *Explorer) computeTotalSupply(ctx context.Context, _ struct{}) (*TotalSupply, error) {
	supply, err := x.src.Accounts.UnlockedSupply(ctx)
	if err != nil {
		return nil, fmt.Errorf("accounts.unlocked_supply: %w", upstream(err))
	}

	unlocked := decimal.New(supply.UnlockedSupply, -units.StacksDecimals)
	total := units.TotalStacks.StringFixed(units.StacksDecimals)
	return &TotalSupply{
		BlockHeight:             strconv.FormatInt(supply.BlockHeight, 10),
		TotalStacks:             total,
		TotalStacksFormatted:    units.Thousands(total),
		UnlockedSupply:          units.Stacks(supply.UnlockedSupply),
		UnlockedSupplyFormatted: units.StacksFormatted(supply.UnlockedSupply),
		UnlockedPercent:         units.Percent(unlocked, units.TotalStacks),
	}, nil
}

func (x *Explorer) newTopBalancesSpec() *aggregate.Spec[int, []*TopBalance] {
	return &aggregate.Spec[int, []*TopBalance]{
		Name:   "top_balances",
		Key:    func(count int) string { return fmt.Sprintf("TopBalances:%d", count) },
		TTL:    fixedTTL[int](10 * time.Minute),
		Setter: x.computeTopBalances,
	}
}

// TopBalances returns the count largest STX balances. count is clamped to [1, 1000].
func (x *Explorer) TopBalances(ctx context.Context, count int) ([]*TopBalance, error) {
	switch {
	case count < 1:
		count = 1
	case count > maxTopBalances:
		count = maxTopBalances
	}
	return aggregate.Fetch(ctx, x.engine, x.topBalancesSpec, count)
}

func (x *Explorer) computeTopBalances(ctx context.Context, count int) ([]*TopBalance, error) {
	balances, err := x.src.Accounts.TopBalances(ctx, count)
	if err != nil {
		return nil, fmt.Errorf("accounts.top_balances: %w", upstream(err))
	}

	result := make([]*TopBalance, 0, len(balances))
	for _, b := range balances {
		item := &TopBalance{
			Address:                b.Address,
			Balance:                b.Balance,
			BalanceStacks:          units.Stacks(b.Balance),
			BalanceStacksFormatted: units.StacksFormatted(b.Balance),
			DistributionPercent:    units.Percent(decimal.New(b.Balance, -units.StacksDecimals), units.TotalStacks),
		}
		if stx, err := c32.FromBase58(b.Address); err == nil {
			item.StacksAddress = stx
		}
		result = append(result, item)
	}
	return result, nil
}
