package explorer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stacks-explorer-api/internal/aggregate"
	"stacks-explorer-api/internal/domain"
	"stacks-explorer-api/internal/storage"
)

func seedBlock(f *fixture) string {
	hash := hash64("b100")
	f.chain.AddBlock(&domain.Block{Hash: hash, Height: 100, Time: 1571710607, Reward: 1_250_000_000, Processed: true})
	f.chain.AddBlock(&domain.Block{Hash: hash64("b110"), Height: 110, Time: 1571716607, Processed: true})

	f.chain.AddTransaction(hash64("a1"), hash, 100, 1571710607, 0, 200, 1_250_000_000, true)
	f.chain.AddTransaction(hash64("a2"), hash, 100, 1571710607, 1000, 250, 90000, false)
	f.core.raw[hash64("a1")] = "0100"
	return hash
}

func TestBlock_ByHeightAndHash(t *testing.T) {
	f := newFixture()
	hash := seedBlock(f)
	x := f.explorer(t)
	ctx := context.Background()

	byHeight, err := x.Block(ctx, "100", 0)
	require.NoError(t, err)
	assert.Equal(t, hash, byHeight.Hash)
	assert.Equal(t, int64(11), byHeight.Confirmations)
	assert.Equal(t, "12.50000000", byHeight.RewardBTC)
	assert.Equal(t, "2019-10-22T02:16:47.000Z", byHeight.BlockTime)

	byHash, err := x.Block(ctx, hash, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(100), byHash.Height)
}

func TestBlock_TransactionDegradesToIndexRecord(t *testing.T) {
	f := newFixture()
	hash := seedBlock(f)
	x := f.explorer(t)

	block, err := x.Block(context.Background(), hash, 0)
	require.NoError(t, err)
	require.Len(t, block.Transactions, 2)

	withDetail := block.Transactions[0]
	assert.Equal(t, hash64("a1"), withDetail.TxID)
	require.NotNil(t, withDetail.Detail)
	assert.Equal(t, int64(11), withDetail.Detail.Confirmations)

	degraded := block.Transactions[1]
	assert.Equal(t, hash64("a2"), degraded.TxID)
	assert.Nil(t, degraded.Detail)
	assert.Equal(t, int64(11), degraded.Confirmations)
}

func TestBlock_InvalidAndMissing(t *testing.T) {
	f := newFixture()
	seedBlock(f)
	x := f.explorer(t)
	ctx := context.Background()

	_, err := x.Block(ctx, "nonsense", 0)
	assert.True(t, errors.Is(err, storage.ErrInvalidInput))

	_, err = x.Block(ctx, "999", 0)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	assert.False(t, errors.Is(err, ErrUpstream))
}

func TestBlock_TTL(t *testing.T) {
	x := newFixture().explorer(t)

	assert.Equal(t, time.Hour, x.blockSpec.TTL(PageArgs{ID: hash64("b100")}))
	assert.Equal(t, 10*time.Minute, x.blockSpec.TTL(PageArgs{ID: "100"}))
	assert.Equal(t, "Block:100:2", x.blockSpec.Key(PageArgs{ID: "100", Page: 2}))
}

func seedDay(f *fixture) {
	f.chain.AddBlock(&domain.Block{Hash: hash64("b1"), Height: 100, Time: 1571710607, Processed: true})
	f.chain.AddBlock(&domain.Block{Hash: "beef", Height: 101, Time: 1571711207, Processed: true})
	f.chain.AddBlock(&domain.Block{Hash: hash64("b0"), Height: 99, Time: 1571616000, Processed: true})
}

func TestBlocks_TodayDegradesFailingBlocks(t *testing.T) {
	f := newFixture()
	seedDay(f)
	x := f.explorer(t)

	page, err := x.Blocks(context.Background(), "", 0)
	require.NoError(t, err)

	assert.Equal(t, "2019-10-22", page.Date)
	assert.Equal(t, int64(2), page.TotalCount)
	require.Len(t, page.Blocks, 2)

	assert.Nil(t, page.Blocks[0].Detail)
	assert.Equal(t, "beef", page.Blocks[0].Block.Hash)

	require.NotNil(t, page.Blocks[1].Detail)
	assert.Equal(t, int64(2), page.Blocks[1].Detail.Confirmations)

	_, cached := f.engine.Peek("Blocks:2019-10-22:0")
	assert.True(t, cached)
}

func TestBlocks_KeyAndTTL(t *testing.T) {
	x := newFixture().explorer(t)

	assert.Equal(t, "Blocks:2019-10-22:0", x.blocksKey(BlocksArgs{}))
	assert.Equal(t, "Blocks:2019-10-21:1", x.blocksKey(BlocksArgs{Date: "2019-10-21", Page: 1}))

	assert.Equal(t, 10*time.Minute, x.blocksSpec.TTL(BlocksArgs{}))
	assert.Equal(t, 10*time.Minute, x.blocksSpec.TTL(BlocksArgs{Date: "2019-10-22"}))
	assert.Equal(t, aggregate.Forever, x.blocksSpec.TTL(BlocksArgs{Date: "2019-10-21"}))

	assert.True(t, x.blocksSpec.Verbose(BlocksArgs{}))
	assert.False(t, x.blocksSpec.Verbose(BlocksArgs{Batch: true}))
}

func TestBlocks_InvalidDate(t *testing.T) {
	x := newFixture().explorer(t)

	_, err := x.Blocks(context.Background(), "22-10-2019", 0)
	assert.True(t, errors.Is(err, storage.ErrInvalidInput))
}

func TestPrefetch_WarmsRecentDays(t *testing.T) {
	f := newFixture()
	seedDay(f)
	x := f.explorer(t)

	x.Prefetch(context.Background(), 2)

	for _, key := range []string{"Blocks:2019-10-22:0", "Blocks:2019-10-21:0"} {
		_, ok := f.engine.Peek(key)
		assert.True(t, ok, key)
	}
	entry, _ := f.engine.Peek("Blocks:2019-10-21:0")
	assert.Equal(t, aggregate.Forever, entry.TTL)
}
