package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stacks-explorer-api/internal/aggregate"
	"stacks-explorer-api/internal/domain"
	"stacks-explorer-api/internal/node"
	"stacks-explorer-api/internal/storage"
	"stacks-explorer-api/internal/vesting"
)

func TestHomeInfo(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	seedDay(f)
	require.NoError(t, f.names.InsertName(ctx, &domain.NameRecord{Name: "muneeb.id", BlockNumber: 2}))
	require.NoError(t, f.names.InsertSubdomain(ctx, &domain.Subdomain{Name: "a.muneeb.id"}))
	require.NoError(t, f.history.Insert(ctx, &domain.HistoryRecord{
		BlockID:     100,
		Opcode:      domain.OpcodeTokenTransfer,
		TxID:        hash64("f1"),
		HistoryData: json.RawMessage(`{"sender":"a","recipient":"b","token_fee":5}`),
	}))
	f.accounts.SetUnlockedSupply(&domain.UnlockedSupply{BlockHeight: 1, UnlockedSupply: 1})
	x := f.explorer(t)

	home, err := x.HomeInfo(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(101), home.TipHeight)
	assert.Len(t, home.RecentBlocks, 3)
	require.Len(t, home.RecentTransfers, 1)
	assert.Equal(t, hash64("f1"), home.RecentTransfers[0].TxID)
	assert.Len(t, home.RecentNames, 1)
	assert.Len(t, home.RecentSubdomains, 1)
	assert.Equal(t, &NameCounts{Names: 1, Subdomains: 1, Total: 2}, home.NameCounts)
	require.NotNil(t, home.TotalSupply)

	_, ok := f.engine.Peek("NameCounts")
	assert.True(t, ok)
}

func TestHomeInfo_OptionalFailuresLeaveFieldsEmpty(t *testing.T) {
	f := newFixture()
	seedDay(f)
	f.sources.History = failingHistory{HistoryStore: f.history, err: errDown}
	f.sources.Names = failingNames{NameStore: f.names, err: errDown}
	x := f.explorer(t)

	home, err := x.HomeInfo(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(101), home.TipHeight)
	assert.Nil(t, home.RecentTransfers)
	assert.Nil(t, home.RecentNames)
	assert.Nil(t, home.TotalSupply)
	assert.NotNil(t, home.NameCounts)

	body, err := json.Marshal(home)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "recentNames")
	assert.NotContains(t, string(body), "totalSupply")
}

func TestHomeInfo_EmptyChain(t *testing.T) {
	x := newFixture().explorer(t)

	home, err := x.HomeInfo(context.Background())
	require.NoError(t, err)
	assert.Zero(t, home.TipHeight)
	assert.NotNil(t, home.RecentBlocks)
}

func TestOnNewTip_InvalidatesTipEntries(t *testing.T) {
	f := newFixture()
	seedDay(f)
	f.core.names = []string{"muneeb.id"}
	x := f.explorer(t)
	ctx := context.Background()

	_, err := x.HomeInfo(ctx)
	require.NoError(t, err)
	_, err = x.Blocks(ctx, "", 0)
	require.NoError(t, err)
	_, err = x.Blocks(ctx, "", 1)
	require.NoError(t, err)
	_, err = x.Blocks(ctx, "2019-10-21", 0)
	require.NoError(t, err)
	_, err = x.Names(ctx, 0)
	require.NoError(t, err)

	x.OnNewTip(node.Tip{Height: 102, Hash: hash64("b102")})

	for _, key := range []string{homeKey, "Blocks:2019-10-22:0", "Blocks:2019-10-22:1"} {
		_, ok := f.engine.Peek(key)
		assert.False(t, ok, key)
	}
	for _, key := range []string{"Blocks:2019-10-21:0", "Names:0"} {
		_, ok := f.engine.Peek(key)
		assert.True(t, ok, key)
	}
}

func TestGenesisTotals(t *testing.T) {
	f := newFixture()
	f.genesis = vesting.NewGenesis([]*vesting.Account{
		{
			Address:  testSTXAddress,
			Value:    100,
			Vesting:  map[int64]int64{100: 10, 200: 20, 300: 30},
			LockSend: 250,
		},
		{Address: "SP000000000000000000002Q6VF78", Value: 5},
	})
	x := f.explorer(t)

	totals, err := x.GenesisTotals(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(105), totals.InitialValue)
	assert.Equal(t, 2, totals.AddressCount)
	assert.Equal(t, int64(60), totals.TransferrableAtDate[vesting.BlockToTime(300)])
	assert.Equal(t, int64(60), totals.CumulativeVestedAtDate[vesting.BlockToTime(300)])

	entry, ok := f.engine.Peek("GenesisTotals")
	require.True(t, ok)
	assert.Equal(t, aggregate.Forever, entry.TTL)

	schedule, ok := x.GenesisAccount(testSTXAddress)
	require.True(t, ok)
	assert.Equal(t, vesting.BlockToTime(250), schedule.TransferUnlockDate)

	_, ok = x.GenesisAccount("SP000000000000000000002Q6VF78")
	assert.False(t, ok)
}

func TestGenesisTotals_NotLoaded(t *testing.T) {
	x := newFixture().explorer(t)

	_, err := x.GenesisTotals(context.Background())
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	_, ok := x.GenesisAccount(testSTXAddress)
	assert.False(t, ok)
}
