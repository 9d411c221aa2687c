package memory

import (
	"context"
	"encoding/base64"
	"sort"
	"sync"
	"time"

	"stacks-explorer-api/internal/domain"
	"stacks-explorer-api/internal/storage"
)

// ChainIndex is an in-memory implementation of storage.ChainIndex.
type ChainIndex struct {
	mu     sync.RWMutex
	blocks map[string]*domain.Block // keyed by hash
	txs    map[string]*txRecord     // keyed by txid
	coins  []*domain.Coin
}

type txRecord struct {
	TxID      string
	BlockHash string
	Height    int64
	Time      int64
	Coinbase  bool
	Fee       int64
	Size      int64
	Value     int64
}

// NewChainIndex creates a new in-memory chain index.
func NewChainIndex() *ChainIndex {
	return &ChainIndex{
		blocks: make(map[string]*domain.Block),
		txs:    make(map[string]*txRecord),
	}
}

// Compile-time interface check.
var _ storage.ChainIndex = (*ChainIndex)(nil)

// AddBlock stores a copy of b.
func (s *ChainIndex) AddBlock(b *domain.Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blockCopy := *b
	s.blocks[b.Hash] = &blockCopy
}

// AddTransaction stores a transaction mined in the block with blockHash.
// Inputs and outputs are derived from coins.
func (s *ChainIndex) AddTransaction(txid, blockHash string, height, blockTime, fee, size, value int64, coinbase bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs[txid] = &txRecord{
		TxID:      txid,
		BlockHash: blockHash,
		Height:    height,
		Time:      blockTime,
		Coinbase:  coinbase,
		Fee:       fee,
		Size:      size,
		Value:     value,
	}
}

// AddCoin stores a copy of c.
func (s *ChainIndex) AddCoin(c *domain.Coin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coinCopy := *c
	s.coins = append(s.coins, &coinCopy)
}

// LatestBlockHeight returns the height of the highest processed block.
func (s *ChainIndex) LatestBlockHeight(ctx context.Context) (int64, error) {
	b, err := s.LatestBlock(ctx)
	if err != nil {
		return 0, err
	}
	return b.Height, nil
}

// LatestBlock returns the highest processed block.
func (s *ChainIndex) LatestBlock(_ context.Context) (*domain.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blocks := s.processedDesc()
	if len(blocks) == 0 {
		return nil, storage.ErrNotFound
	}
	blockCopy := *blocks[0]
	return &blockCopy, nil
}

// RecentBlocks returns up to limit processed blocks, ordered by height DESC.
func (s *ChainIndex) RecentBlocks(_ context.Context, limit int) ([]*domain.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blocks := s.processedDesc()
	if limit > 0 && len(blocks) > limit {
		blocks = blocks[:limit]
	}
	return copyBlocks(blocks), nil
}

// BlockByHash retrieves a block by hash. Returns ErrNotFound if not exists.
func (s *ChainIndex) BlockByHash(_ context.Context, hash string) (*domain.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.blocks[hash]
	if !ok {
		return nil, storage.ErrNotFound
	}
	blockCopy := *b
	return &blockCopy, nil
}

// BlockByHeight retrieves a block by height. Returns ErrNotFound if not exists.
func (s *ChainIndex) BlockByHeight(_ context.Context, height int64) (*domain.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.blocks {
		if b.Height == height {
			blockCopy := *b
			return &blockCopy, nil
		}
	}
	return nil, storage.ErrNotFound
}

// BlocksByDate retrieves one page of blocks mined on the UTC day containing day.
func (s *ChainIndex) BlocksByDate(_ context.Context, day time.Time, page, limit int) (*domain.BlockPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC).Unix()
	end := start + 24*60*60

	var matched []*domain.Block
	for _, b := range s.blocks {
		if b.Time >= start && b.Time < end {
			matched = append(matched, b)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Height > matched[j].Height
	})

	return &domain.BlockPage{
		Blocks:     copyBlocks(paginate(matched, page, limit)),
		TotalCount: int64(len(matched)),
	}, nil
}

// BlockTransactions retrieves one page of a block's transactions.
func (s *ChainIndex) BlockTransactions(_ context.Context, blockHash string, page, limit int) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*txRecord
	for _, t := range s.txs {
		if t.BlockHash == blockHash {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].TxID < matched[j].TxID
	})

	var result []*domain.Transaction
	for _, t := range paginate(matched, page, limit) {
		result = append(result, s.buildTx(t))
	}
	return result, nil
}

// Transaction retrieves a transaction by id. Returns ErrNotFound if not exists.
func (s *ChainIndex) Transaction(_ context.Context, txid string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.txs[txid]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s.buildTx(t), nil
}

// AddressTransactions retrieves one page of an address's coins as transactions.
func (s *ChainIndex) AddressTransactions(_ context.Context, address string, page, limit int) ([]*domain.AddressTx, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var coins []*domain.Coin
	for _, c := range s.coins {
		if c.Address == address {
			coins = append(coins, c)
		}
	}
	sort.SliceStable(coins, func(i, j int) bool {
		return coins[i].MintHeight > coins[j].MintHeight
	})

	var result []*domain.AddressTx
	for _, c := range paginate(coins, page, limit) {
		mint, ok := s.txs[c.MintTxID]
		if !ok {
			continue
		}
		item := &domain.AddressTx{
			Address:   c.Address,
			MintIndex: c.MintIndex,
			Action:    domain.ActionReceived,
		}
		item.Transaction = *s.buildTx(mint)
		item.TotalTransferred = mint.Value
		item.Inputs = []domain.TxIO{}
		item.Outputs = []domain.TxIO{}
		item.Value = c.Value
		if spent, ok := s.txs[c.SpentTxID]; ok && c.SpentHeight >= 0 {
			item.Action = domain.ActionSent
			item.TotalTransferred = spent.Value
			item.Size = spent.Size
			item.Outputs = s.outputsOf(spent.TxID)
		}
		result = append(result, item)
	}
	return result, nil
}

// AddressCoinSummary groups an address's confirmed coins by status.
func (s *ChainIndex) AddressCoinSummary(_ context.Context, address string) (*domain.AddressCoinSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[domain.CoinStatus]*domain.CoinStatusTotal)
	txids := make(map[string]struct{})
	for _, c := range s.coins {
		if c.Address != address || c.MintHeight < 0 {
			continue
		}
		status := domain.StatusForSpentHeight(c.SpentHeight)
		t, ok := totals[status]
		if !ok {
			t = &domain.CoinStatusTotal{Status: status}
			totals[status] = t
		}
		t.Value += c.Value
		t.Count++
		txids[c.MintTxID] = struct{}{}
	}

	summary := &domain.AddressCoinSummary{UniqueTxCount: int64(len(txids))}
	for _, t := range totals {
		summary.Totals = append(summary.Totals, *t)
	}
	sort.Slice(summary.Totals, func(i, j int) bool {
		return summary.Totals[i].Status < summary.Totals[j].Status
	})
	return summary, nil
}

// BlockTimes returns block times keyed by height.
func (s *ChainIndex) BlockTimes(_ context.Context, heights []int64) (map[int64]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[int64]struct{}, len(heights))
	for _, h := range heights {
		wanted[h] = struct{}{}
	}
	result := make(map[int64]int64)
	for _, b := range s.blocks {
		if _, ok := wanted[b.Height]; ok {
			result[b.Height] = b.Time
		}
	}
	return result, nil
}

// processedDesc returns processed blocks ordered by height DESC. Caller holds the lock.
func (s *ChainIndex) processedDesc() []*domain.Block {
	var blocks []*domain.Block
	for _, b := range s.blocks {
		if b.Processed {
			blocks = append(blocks, b)
		}
	}
	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].Height > blocks[j].Height
	})
	return blocks
}

// buildTx resolves inputs and outputs of t. Caller holds the lock.
func (s *ChainIndex) buildTx(t *txRecord) *domain.Transaction {
	tx := &domain.Transaction{
		TxID:          t.TxID,
		BlockHash:     t.BlockHash,
		BlockHeight:   t.Height,
		BlockUnixTime: t.Time,
		BlockTime:     time.Unix(t.Time, 0).UTC().Format(time.RFC3339),
		Coinbase:      t.Coinbase,
		Value:         t.Value,
		Fee:           t.Fee,
		Size:          t.Size,
		Inputs:        []domain.TxIO{},
		Outputs:       s.outputsOf(t.TxID),
	}
	for _, c := range s.coins {
		if c.SpentTxID == t.TxID {
			tx.Inputs = append(tx.Inputs, domain.TxIO{
				Address:   c.Address,
				Value:     c.Value,
				PrevTxID:  c.MintTxID,
				PrevIndex: c.MintIndex,
			})
		}
	}
	return tx
}

// outputsOf returns the coins minted by txid ordered by mint index. Caller holds the lock.
func (s *ChainIndex) outputsOf(txid string) []domain.TxIO {
	var minted []*domain.Coin
	for _, c := range s.coins {
		if c.MintTxID == txid {
			minted = append(minted, c)
		}
	}
	sort.Slice(minted, func(i, j int) bool {
		return minted[i].MintIndex < minted[j].MintIndex
	})
	outputs := []domain.TxIO{}
	for _, c := range minted {
		outputs = append(outputs, domain.TxIO{
			Address: c.Address,
			Value:   c.Value,
			Script:  base64.StdEncoding.EncodeToString(c.Script),
		})
	}
	return outputs
}

func copyBlocks(blocks []*domain.Block) []*domain.Block {
	result := make([]*domain.Block, 0, len(blocks))
	for _, b := range blocks {
		blockCopy := *b
		result = append(result, &blockCopy)
	}
	return result
}

// paginate returns the page-th window of limit items. A non-positive limit returns all items.
func paginate[T any](items []T, page, limit int) []T {
	if limit <= 0 {
		return items
	}
	offset := storage.Offset(page, limit)
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
