package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"stacks-explorer-api/internal/domain"
	"stacks-explorer-api/internal/storage"
)

// HistoryStore implements storage.HistoryStore using PostgreSQL.
type HistoryStore struct {
	pool *Pool
}

// NewHistoryStore creates a new HistoryStore.
func NewHistoryStore(pool *Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.HistoryStore = (*HistoryStore)(nil)

const historyColumns = `block_id, op, opcode, txid, history_id, creator_address, history_data, vtxindex, value_hash`

// Insert adds a history record.
func (s *HistoryStore) Insert(ctx context.Context, r *domain.HistoryRecord) error {
	if r == nil || r.TxID == "" {
		return storage.ErrInvalidInput
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO history (`+historyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, r.BlockID, r.Op, r.Opcode, r.TxID, r.HistoryID, r.CreatorAddress, string(r.HistoryData), r.VTxIndex, r.ValueHash)
	if err != nil {
		return fmt.Errorf("insert history %s: %w", r.TxID, err)
	}
	return nil
}

// ByTxID retrieves the history record of a transaction. Returns ErrNotFound if not exists.
func (s *HistoryStore) ByTxID(ctx context.Context, txid string) (*domain.HistoryRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+historyColumns+` FROM history WHERE txid = $1 LIMIT 1`, txid)
	r, err := scanHistory(row)
	if err != nil {
		if noRows(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get history by txid: %w", err)
	}
	return r, nil
}

// ByAddress retrieves history records whose history data mentions btcAddress.
func (s *HistoryStore) ByAddress(ctx context.Context, btcAddress string, page, limit int) ([]*domain.HistoryRecord, error) {
	return s.query(ctx, "get history by address", `
		SELECT `+historyColumns+`
		FROM history
		WHERE history_data LIKE $1
		ORDER BY block_id DESC, vtxindex DESC
		LIMIT $2 OFFSET $3
	`, "%"+btcAddress+"%", limit, storage.Offset(page, limit))
}

// ByName retrieves history records of a name, ordered by block_id DESC.
func (s *HistoryStore) ByName(ctx context.Context, name string, page, limit int) ([]*domain.HistoryRecord, error) {
	return s.query(ctx, "get history by name", `
		SELECT `+historyColumns+`
		FROM history
		WHERE history_id = $1
		ORDER BY block_id DESC, vtxindex DESC
		LIMIT $2 OFFSET $3
	`, name, limit, storage.Offset(page, limit))
}

// RecentTokenTransfers retrieves the latest TOKEN_TRANSFER records.
func (s *HistoryStore) RecentTokenTransfers(ctx context.Context, page, limit int) ([]*domain.HistoryRecord, error) {
	return s.query(ctx, "get recent token transfers", `
		SELECT `+historyColumns+`
		FROM history
		WHERE opcode = $1
		ORDER BY block_id DESC, vtxindex DESC
		LIMIT $2 OFFSET $3
	`, domain.OpcodeTokenTransfer, limit, storage.Offset(page, limit))
}

func (s *HistoryStore) query(ctx context.Context, op, sql string, args ...any) ([]*domain.HistoryRecord, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var records []*domain.HistoryRecord
	for rows.Next() {
		r, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return records, nil
}

func scanHistory(row pgx.Row) (*domain.HistoryRecord, error) {
	var (
		r    domain.HistoryRecord
		data string
	)
	err := row.Scan(
		&r.BlockID, &r.Op, &r.Opcode, &r.TxID, &r.HistoryID,
		&r.CreatorAddress, &data, &r.VTxIndex, &r.ValueHash,
	)
	if err != nil {
		return nil, err
	}
	r.HistoryData = []byte(data)
	return &r, nil
}
