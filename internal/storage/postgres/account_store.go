package postgres

import (
	"context"
	"fmt"
	"strconv"

	"stacks-explorer-api/internal/domain"
	"stacks-explorer-api/internal/storage"
)

// AccountStore implements storage.AccountStore using PostgreSQL.
// Monetary columns are TEXT in the core schema and are cast to bigint in SQL.
type AccountStore struct {
	pool *Pool
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(pool *Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AccountStore = (*AccountStore)(nil)

// Only whitelisted STACKS accounts with a plain base58 address take part in supply
// figures. The latest row per address wins.
const latestStacksBalances = `
	SELECT DISTINCT ON (address)
		address,
		CAST(credit_value AS bigint) - CAST(debit_value AS bigint) AS balance
	FROM accounts
	WHERE type = 'STACKS'
	  AND address !~ '(-|_)'
	  AND length(address) BETWEEN 33 AND 34
	  AND receive_whitelisted = '1'
	  AND lock_transfer_block_id <= (SELECT MAX(block_id) FROM accounts)
	ORDER BY address, block_id DESC, vtxindex DESC
`

// InsertVesting adds a vesting row.
func (s *AccountStore) InsertVesting(ctx context.Context, row *domain.VestingRow) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO account_vesting (address, vesting_value, block_id) VALUES ($1, $2, $3)
	`, row.Address, strconv.FormatInt(row.VestingValue, 10), row.BlockID)
	if err != nil {
		return fmt.Errorf("insert vesting %s@%d: %w", row.Address, row.BlockID, err)
	}
	return nil
}

// InsertAccount adds an accounts row of type STACKS.
func (s *AccountStore) InsertAccount(ctx context.Context, address string, credit, debit, block, vtxindex int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (address, type, credit_value, debit_value, block_id, vtxindex)
		VALUES ($1, 'STACKS', $2, $3, $4, $5)
	`, address, strconv.FormatInt(credit, 10), strconv.FormatInt(debit, 10), block, vtxindex)
	if err != nil {
		return fmt.Errorf("insert account %s@%d: %w", address, block, err)
	}
	return nil
}

// Vesting retrieves the vesting schedule of an address, ordered by block_id ASC.
func (s *AccountStore) Vesting(ctx context.Context, btcAddress string) ([]*domain.VestingRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT address, CAST(vesting_value AS bigint), block_id
		FROM account_vesting
		WHERE address = $1
		ORDER BY block_id ASC
	`, btcAddress)
	if err != nil {
		return nil, fmt.Errorf("get vesting: %w", err)
	}
	defer rows.Close()

	var result []*domain.VestingRow
	for rows.Next() {
		var v domain.VestingRow
		if err := rows.Scan(&v.Address, &v.VestingValue, &v.BlockID); err != nil {
			return nil, fmt.Errorf("scan vesting row: %w", err)
		}
		result = append(result, &v)
	}
	return result, rows.Err()
}

// CreditAtBlock sums the credits of an address recorded at block.
func (s *AccountStore) CreditAtBlock(ctx context.Context, btcAddress string, block int64) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(CAST(credit_value AS bigint)), 0)::bigint
		FROM accounts
		WHERE address = $1 AND block_id = $2
	`, btcAddress, block).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("get credit at block: %w", err)
	}
	return total, nil
}

// UnlockedSupply returns the transferable supply at the latest accounts block.
// Returns ErrNotFound when the accounts table is empty.
func (s *AccountStore) UnlockedSupply(ctx context.Context) (*domain.UnlockedSupply, error) {
	var (
		height *int64
		supply int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT MAX(block_id) FROM accounts),
			COALESCE((SELECT SUM(balance) FROM (`+latestStacksBalances+`) AS totals), 0)::bigint
	`).Scan(&height, &supply)
	if err != nil {
		return nil, fmt.Errorf("get unlocked supply: %w", err)
	}
	if height == nil {
		return nil, storage.ErrNotFound
	}
	return &domain.UnlockedSupply{BlockHeight: *height, UnlockedSupply: supply}, nil
}

// TopBalances returns the count largest balances.
func (s *AccountStore) TopBalances(ctx context.Context, count int) ([]*domain.BalanceInfo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT address, balance FROM (`+latestStacksBalances+`) AS balances
		ORDER BY balance DESC
		LIMIT $1
	`, count)
	if err != nil {
		return nil, fmt.Errorf("get top balances: %w", err)
	}
	defer rows.Close()

	var result []*domain.BalanceInfo
	for rows.Next() {
		var b domain.BalanceInfo
		if err := rows.Scan(&b.Address, &b.Balance); err != nil {
			return nil, fmt.Errorf("scan balance row: %w", err)
		}
		result = append(result, &b)
	}
	return result, rows.Err()
}
