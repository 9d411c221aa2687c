package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stacks-explorer-api/internal/domain"
	"stacks-explorer-api/internal/storage"
)

func TestAccountStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAccountStore(pool)
	ctx := context.Background()

	_, err := store.UnlockedSupply(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	const (
		alice = "1AliceAliceAliceAliceAliceAlice12"
		bob   = "1BobBobBobBobBobBobBobBobBobBob12"
	)
	require.NoError(t, store.InsertVesting(ctx, &domain.VestingRow{Address: alice, VestingValue: 300, BlockID: 540000}))
	require.NoError(t, store.InsertVesting(ctx, &domain.VestingRow{Address: alice, VestingValue: 100, BlockID: 539000}))

	require.NoError(t, store.InsertAccount(ctx, alice, 1000, 0, 373601, 0))
	require.NoError(t, store.InsertAccount(ctx, alice, 1500, 200, 600000, 1))
	require.NoError(t, store.InsertAccount(ctx, bob, 5000, 0, 600001, 0))
	// Not a plain base58 address.
	require.NoError(t, store.InsertAccount(ctx, "name-with-dash_xx-xxxxxxxxxxxxxxx", 9999, 0, 600001, 1))

	vesting, err := store.Vesting(ctx, alice)
	require.NoError(t, err)
	require.Len(t, vesting, 2)
	assert.Equal(t, int64(539000), vesting[0].BlockID)
	assert.Equal(t, int64(100), vesting[0].VestingValue)

	credit, err := store.CreditAtBlock(ctx, alice, 373601)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), credit)

	credit, err = store.CreditAtBlock(ctx, bob, 373601)
	require.NoError(t, err)
	assert.Equal(t, int64(0), credit)

	supply, err := store.UnlockedSupply(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(600001), supply.BlockHeight)
	assert.Equal(t, int64(1300+5000), supply.UnlockedSupply)

	top, err := store.TopBalances(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, bob, top[0].Address)
	assert.Equal(t, int64(5000), top[0].Balance)
}
