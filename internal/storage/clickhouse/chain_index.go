package clickhouse

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"stacks-explorer-api/internal/domain"
	"stacks-explorer-api/internal/storage"
)

// ChainIndex implements storage.ChainIndex over the blocks, transactions and coins tables.
type ChainIndex struct {
	conn *Conn
}

// NewChainIndex creates a new ChainIndex.
func NewChainIndex(conn *Conn) *ChainIndex {
	return &ChainIndex{conn: conn}
}

// Compile-time interface check.
var _ storage.ChainIndex = (*ChainIndex)(nil)

const blockColumns = `hash, height, time, size, tx_count, reward, previous_block_hash, merkle_root, processed`

const txColumns = `txid, block_hash, block_height, block_time, coinbase, fee, size, value`

// InsertBlocks appends blocks in one batch. Rows sharing (height, hash) collapse on merge.
func (s *ChainIndex) InsertBlocks(ctx context.Context, blocks []*domain.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO blocks (`+blockColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare blocks batch: %w", err)
	}
	for _, b := range blocks {
		err := batch.Append(
			b.Hash, b.Height, time.Unix(b.Time, 0).UTC(), b.Size, b.TxCount, b.Reward,
			b.PreviousBlockHash, b.MerkleRoot, boolToUInt8(b.Processed),
		)
		if err != nil {
			return fmt.Errorf("append block %s: %w", b.Hash, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send blocks batch: %w", err)
	}
	return nil
}

// InsertTransactions appends transaction summaries in one batch. Inputs and outputs
// are not stored here; they are derived from coins.
func (s *ChainIndex) InsertTransactions(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO transactions (`+txColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare transactions batch: %w", err)
	}
	for _, t := range txs {
		err := batch.Append(
			t.TxID, t.BlockHash, t.BlockHeight, time.Unix(t.BlockUnixTime, 0).UTC(),
			boolToUInt8(t.Coinbase), t.Fee, t.Size, t.Value,
		)
		if err != nil {
			return fmt.Errorf("append transaction %s: %w", t.TxID, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send transactions batch: %w", err)
	}
	return nil
}

// InsertCoins appends coins in one batch.
func (s *ChainIndex) InsertCoins(ctx context.Context, coins []*domain.Coin) error {
	if len(coins) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO coins (
			address, mint_txid, mint_index, mint_height, spent_txid, spent_height, value, script, coinbase
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare coins batch: %w", err)
	}
	for _, c := range coins {
		err := batch.Append(
			c.Address, c.MintTxID, c.MintIndex, c.MintHeight, c.SpentTxID, c.SpentHeight,
			c.Value, string(c.Script), boolToUInt8(c.Coinbase),
		)
		if err != nil {
			return fmt.Errorf("append coin %s:%d: %w", c.MintTxID, c.MintIndex, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send coins batch: %w", err)
	}
	return nil
}

// LatestBlockHeight returns the height of the highest processed block.
func (s *ChainIndex) LatestBlockHeight(ctx context.Context) (int64, error) {
	var (
		height int64
		count  uint64
	)
	err := s.conn.QueryRow(ctx, `
		SELECT max(height), count() FROM blocks FINAL WHERE processed = 1
	`).Scan(&height, &count)
	if err != nil {
		return 0, fmt.Errorf("query latest block height: %w", err)
	}
	if count == 0 {
		return 0, storage.ErrNotFound
	}
	return height, nil
}

// LatestBlock returns the highest processed block.
func (s *ChainIndex) LatestBlock(ctx context.Context) (*domain.Block, error) {
	blocks, err := s.RecentBlocks(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, storage.ErrNotFound
	}
	return blocks[0], nil
}

// RecentBlocks returns up to limit processed blocks, ordered by height DESC.
func (s *ChainIndex) RecentBlocks(ctx context.Context, limit int) ([]*domain.Block, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+blockColumns+`
		FROM blocks FINAL
		WHERE processed = 1
		ORDER BY height DESC
		LIMIT ?
	`, uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("query recent blocks: %w", err)
	}
	defer rows.Close()

	return scanBlocks(rows)
}

// BlockByHash retrieves a block by hash. Returns ErrNotFound if not exists.
func (s *ChainIndex) BlockByHash(ctx context.Context, hash string) (*domain.Block, error) {
	return s.oneBlock(ctx, `WHERE hash = ?`, hash)
}

// BlockByHeight retrieves a block by height. Returns ErrNotFound if not exists.
func (s *ChainIndex) BlockByHeight(ctx context.Context, height int64) (*domain.Block, error) {
	return s.oneBlock(ctx, `WHERE height = ?`, height)
}

func (s *ChainIndex) oneBlock(ctx context.Context, where string, arg any) (*domain.Block, error) {
	rows, err := s.conn.Query(ctx, `SELECT `+blockColumns+` FROM blocks FINAL `+where+` LIMIT 1`, arg)
	if err != nil {
		return nil, fmt.Errorf("query block: %w", err)
	}
	defer rows.Close()

	blocks, err := scanBlocks(rows)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, storage.ErrNotFound
	}
	return blocks[0], nil
}

// BlocksByDate retrieves one page of blocks mined on the UTC day containing day.
func (s *ChainIndex) BlocksByDate(ctx context.Context, day time.Time, page, limit int) (*domain.BlockPage, error) {
	day = day.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	var total uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count() FROM blocks FINAL WHERE time >= ? AND time < ?
	`, start, end).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count blocks by date: %w", err)
	}

	rows, err := s.conn.Query(ctx, `
		SELECT `+blockColumns+`
		FROM blocks FINAL
		WHERE time >= ? AND time < ?
		ORDER BY height DESC
		LIMIT ? OFFSET ?
	`, start, end, uint64(limit), uint64(storage.Offset(page, limit)))
	if err != nil {
		return nil, fmt.Errorf("query blocks by date: %w", err)
	}
	defer rows.Close()

	blocks, err := scanBlocks(rows)
	if err != nil {
		return nil, err
	}
	if blocks == nil {
		blocks = []*domain.Block{}
	}
	return &domain.BlockPage{Blocks: blocks, TotalCount: int64(total)}, nil
}

// BlockTransactions retrieves one page of a block's transactions ordered by txid.
func (s *ChainIndex) BlockTransactions(ctx context.Context, blockHash string, page, limit int) ([]*domain.Transaction, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+txColumns+`
		FROM transactions FINAL
		WHERE block_hash = ?
		ORDER BY txid
		LIMIT ? OFFSET ?
	`, blockHash, uint64(limit), uint64(storage.Offset(page, limit)))
	if err != nil {
		return nil, fmt.Errorf("query block transactions: %w", err)
	}
	defer rows.Close()

	txs, err := scanTransactions(rows)
	if err != nil {
		return nil, err
	}
	if err := s.resolveIO(ctx, txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// Transaction retrieves a transaction by id. Returns ErrNotFound if not exists.
func (s *ChainIndex) Transaction(ctx context.Context, txid string) (*domain.Transaction, error) {
	txs, err := s.transactionsByID(ctx, []string{txid})
	if err != nil {
		return nil, err
	}
	tx, ok := txs[txid]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if err := s.resolveIO(ctx, []*domain.Transaction{tx}); err != nil {
		return nil, err
	}
	return tx, nil
}

// AddressTransactions retrieves one page of an address's coins as transactions.
// A coin spent at a confirmed height is reported as "sent" with the spending
// transaction's outputs; otherwise it is "received".
func (s *ChainIndex) AddressTransactions(ctx context.Context, address string, page, limit int) ([]*domain.AddressTx, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT address, mint_txid, mint_index, mint_height, spent_txid, spent_height, value, script, coinbase
		FROM coins FINAL
		WHERE address = ?
		ORDER BY mint_height DESC, mint_txid, mint_index
		LIMIT ? OFFSET ?
	`, address, uint64(limit), uint64(storage.Offset(page, limit)))
	if err != nil {
		return nil, fmt.Errorf("query address coins: %w", err)
	}
	defer rows.Close()

	coins, err := scanCoins(rows)
	if err != nil {
		return nil, err
	}
	if len(coins) == 0 {
		return []*domain.AddressTx{}, nil
	}

	var ids []string
	for _, c := range coins {
		ids = append(ids, c.MintTxID)
		if c.SpentHeight >= 0 && c.SpentTxID != "" {
			ids = append(ids, c.SpentTxID)
		}
	}
	txs, err := s.transactionsByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	outputs, err := s.outputsOf(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]*domain.AddressTx, 0, len(coins))
	for _, c := range coins {
		mint, ok := txs[c.MintTxID]
		if !ok {
			continue
		}
		item := &domain.AddressTx{
			Transaction:      *mint,
			Address:          c.Address,
			MintIndex:        c.MintIndex,
			TotalTransferred: mint.Value,
			Action:           domain.ActionReceived,
		}
		item.Value = c.Value
		item.Inputs = []domain.TxIO{}
		item.Outputs = []domain.TxIO{}
		if spent, ok := txs[c.SpentTxID]; ok && c.SpentHeight >= 0 {
			item.Action = domain.ActionSent
			item.TotalTransferred = spent.Value
			item.Size = spent.Size
			if out := outputs[spent.TxID]; out != nil {
				item.Outputs = out
			}
		}
		result = append(result, item)
	}
	return result, nil
}

// AddressCoinSummary groups an address's confirmed coins by status.
func (s *ChainIndex) AddressCoinSummary(ctx context.Context, address string) (*domain.AddressCoinSummary, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT
			multiIf(spent_height >= 0, 'spent',
			        spent_height = -1, 'pending',
			        spent_height = -2, 'unspent',
			        spent_height = -3, 'conflicting',
			        'error') AS status,
			sum(value),
			count()
		FROM coins FINAL
		WHERE address = ? AND mint_height >= 0
		GROUP BY status
		ORDER BY status
	`, address)
	if err != nil {
		return nil, fmt.Errorf("query coin summary: %w", err)
	}
	defer rows.Close()

	summary := &domain.AddressCoinSummary{}
	for rows.Next() {
		var (
			status string
			value  int64
			count  uint64
		)
		if err := rows.Scan(&status, &value, &count); err != nil {
			return nil, fmt.Errorf("scan coin summary row: %w", err)
		}
		summary.Totals = append(summary.Totals, domain.CoinStatusTotal{
			Status: domain.CoinStatus(status),
			Value:  value,
			Count:  int64(count),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coin summary rows: %w", err)
	}

	var unique uint64
	err = s.conn.QueryRow(ctx, `
		SELECT uniqExact(mint_txid) FROM coins FINAL WHERE address = ? AND mint_height >= 0
	`, address).Scan(&unique)
	if err != nil {
		return nil, fmt.Errorf("count address transactions: %w", err)
	}
	summary.UniqueTxCount = int64(unique)

	return summary, nil
}

// BlockTimes returns block times keyed by height.
func (s *ChainIndex) BlockTimes(ctx context.Context, heights []int64) (map[int64]int64, error) {
	result := make(map[int64]int64, len(heights))
	if len(heights) == 0 {
		return result, nil
	}

	rows, err := s.conn.Query(ctx, `
		SELECT height, toUnixTimestamp(time) FROM blocks FINAL WHERE height IN ?
	`, heights)
	if err != nil {
		return nil, fmt.Errorf("query block times: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			height int64
			ts     uint32
		)
		if err := rows.Scan(&height, &ts); err != nil {
			return nil, fmt.Errorf("scan block time row: %w", err)
		}
		result[height] = int64(ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate block time rows: %w", err)
	}
	return result, nil
}

// transactionsByID loads transaction summaries without inputs or outputs.
func (s *ChainIndex) transactionsByID(ctx context.Context, ids []string) (map[string]*domain.Transaction, error) {
	rows, err := s.conn.Query(ctx, `SELECT `+txColumns+` FROM transactions FINAL WHERE txid IN ?`, ids)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	txs, err := scanTransactions(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Transaction, len(txs))
	for _, t := range txs {
		byID[t.TxID] = t
	}
	return byID, nil
}

// resolveIO fills inputs (coins spent by) and outputs (coins minted by) of txs.
func (s *ChainIndex) resolveIO(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(txs))
	for _, t := range txs {
		ids = append(ids, t.TxID)
	}

	outputs, err := s.outputsOf(ctx, ids)
	if err != nil {
		return err
	}

	rows, err := s.conn.Query(ctx, `
		SELECT spent_txid, address, value, mint_txid, mint_index
		FROM coins FINAL
		WHERE spent_txid IN ?
		ORDER BY mint_txid, mint_index
	`, ids)
	if err != nil {
		return fmt.Errorf("query transaction inputs: %w", err)
	}
	defer rows.Close()

	inputs := make(map[string][]domain.TxIO)
	for rows.Next() {
		var (
			txid string
			io   domain.TxIO
		)
		if err := rows.Scan(&txid, &io.Address, &io.Value, &io.PrevTxID, &io.PrevIndex); err != nil {
			return fmt.Errorf("scan input row: %w", err)
		}
		inputs[txid] = append(inputs[txid], io)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate input rows: %w", err)
	}

	for _, t := range txs {
		t.Inputs = inputs[t.TxID]
		if t.Inputs == nil {
			t.Inputs = []domain.TxIO{}
		}
		t.Outputs = outputs[t.TxID]
		if t.Outputs == nil {
			t.Outputs = []domain.TxIO{}
		}
	}
	return nil
}

// outputsOf returns minted coins per transaction, ordered by mint index.
func (s *ChainIndex) outputsOf(ctx context.Context, ids []string) (map[string][]domain.TxIO, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT mint_txid, address, value, script
		FROM coins FINAL
		WHERE mint_txid IN ?
		ORDER BY mint_txid, mint_index
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("query transaction outputs: %w", err)
	}
	defer rows.Close()

	outputs := make(map[string][]domain.TxIO)
	for rows.Next() {
		var (
			txid   string
			script string
			io     domain.TxIO
		)
		if err := rows.Scan(&txid, &io.Address, &io.Value, &script); err != nil {
			return nil, fmt.Errorf("scan output row: %w", err)
		}
		io.Script = base64.StdEncoding.EncodeToString([]byte(script))
		outputs[txid] = append(outputs[txid], io)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate output rows: %w", err)
	}
	return outputs, nil
}

func scanBlocks(rows chRows) ([]*domain.Block, error) {
	var blocks []*domain.Block
	for rows.Next() {
		var (
			b         domain.Block
			ts        time.Time
			processed uint8
		)
		err := rows.Scan(
			&b.Hash, &b.Height, &ts, &b.Size, &b.TxCount, &b.Reward,
			&b.PreviousBlockHash, &b.MerkleRoot, &processed,
		)
		if err != nil {
			return nil, fmt.Errorf("scan block row: %w", err)
		}
		b.Time = ts.Unix()
		b.Processed = processed == 1
		blocks = append(blocks, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate block rows: %w", err)
	}
	return blocks, nil
}

func scanTransactions(rows chRows) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction
	for rows.Next() {
		var (
			t        domain.Transaction
			ts       time.Time
			coinbase uint8
		)
		err := rows.Scan(&t.TxID, &t.BlockHash, &t.BlockHeight, &ts, &coinbase, &t.Fee, &t.Size, &t.Value)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		t.BlockUnixTime = ts.Unix()
		t.BlockTime = ts.UTC().Format(time.RFC3339)
		t.Coinbase = coinbase == 1
		txs = append(txs, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txs, nil
}

func scanCoins(rows chRows) ([]*domain.Coin, error) {
	var coins []*domain.Coin
	for rows.Next() {
		var (
			c        domain.Coin
			script   string
			coinbase uint8
		)
		err := rows.Scan(
			&c.Address, &c.MintTxID, &c.MintIndex, &c.MintHeight, &c.SpentTxID, &c.SpentHeight,
			&c.Value, &script, &coinbase,
		)
		if err != nil {
			return nil, fmt.Errorf("scan coin row: %w", err)
		}
		c.Script = []byte(script)
		c.Coinbase = coinbase == 1
		coins = append(coins, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate coin rows: %w", err)
	}
	return coins, nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
