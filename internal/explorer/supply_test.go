package explorer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stacks-explorer-api/internal/domain"
	"stacks-explorer-api/internal/storage"
)

func TestTotalSupply(t *testing.T) {
	f := newFixture()
	f.accounts.SetUnlockedSupply(&domain.UnlockedSupply{BlockHeight: 600000, UnlockedSupply: 676_232_300_000_000})
	x := f.explorer(t)

	supply, err := x.TotalSupply(context.Background())
	require.NoError(t, err)

	assert.Equal(t, &TotalSupply{
		BlockHeight:             "600000",
		TotalStacks:             "1352464600.000000",
		TotalStacksFormatted:    "1,352,464,600.000000",
		UnlockedSupply:          "676232300.000000",
		UnlockedSupplyFormatted: "676,232,300.000000",
		UnlockedPercent:         "50.00",
	}, supply)
}

func TestTotalSupply_NotFound(t *testing.T) {
	x := newFixture().explorer(t)

	_, err := x.TotalSupply(context.Background())
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestTopBalances(t *testing.T) {
	f := newFixture()
	f.accounts.InsertBalance(&domain.BalanceInfo{Address: "1small", Balance: 1_000_000})
	f.accounts.InsertBalance(&domain.BalanceInfo{Address: testBTCAddress, Balance: 13_524_646_000_000})
	x := f.explorer(t)
	ctx := context.Background()

	top, err := x.TopBalances(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, testBTCAddress, top[0].Address)
	assert.Equal(t, testSTXAddress, top[0].StacksAddress)
	assert.Equal(t, "13,524,646.000000", top[0].BalanceStacksFormatted)
	assert.Equal(t, "1.00", top[0].DistributionPercent)
	assert.Empty(t, top[1].StacksAddress)

	top, err = x.TopBalances(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 1)
	_, ok := f.engine.Peek("TopBalances:1")
	assert.True(t, ok)

	_, err = x.TopBalances(ctx, 5000)
	require.NoError(t, err)
	_, ok = f.engine.Peek("TopBalances:1000")
	assert.True(t, ok)
}
