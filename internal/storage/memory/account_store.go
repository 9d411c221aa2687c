package memory

import (
	"context"
	"sort"
	"sync"

	"stacks-explorer-api/internal/domain"
	"stacks-explorer-api/internal/storage"
)

// AccountStore is an in-memory implementation of storage.AccountStore.
type AccountStore struct {
	mu       sync.RWMutex
	vesting  []*domain.VestingRow
	credits  []credit
	supply   *domain.UnlockedSupply
	balances []*domain.BalanceInfo
}

type credit struct {
	address string
	block   int64
	value   int64
}

// NewAccountStore creates a new in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{}
}

// Compile-time interface check.
var _ storage.AccountStore = (*AccountStore)(nil)

// InsertVesting adds a vesting row.
func (s *AccountStore) InsertVesting(row *domain.VestingRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rowCopy := *row
	s.vesting = append(s.vesting, &rowCopy)
}

// InsertCredit records a credit to address at block.
func (s *AccountStore) InsertCredit(address string, block, value int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credits = append(s.credits, credit{address: address, block: block, value: value})
}

// SetUnlockedSupply sets the value returned by UnlockedSupply.
func (s *AccountStore) SetUnlockedSupply(u *domain.UnlockedSupply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	supplyCopy := *u
	s.supply = &supplyCopy
}

// InsertBalance adds a balance row.
func (s *AccountStore) InsertBalance(b *domain.BalanceInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	balanceCopy := *b
	s.balances = append(s.balances, &balanceCopy)
}

// Vesting retrieves the vesting schedule of an address, ordered by block_id ASC.
func (s *AccountStore) Vesting(_ context.Context, btcAddress string) ([]*domain.VestingRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.VestingRow
	for _, row := range s.vesting {
		if row.Address == btcAddress {
			rowCopy := *row
			result = append(result, &rowCopy)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].BlockID < result[j].BlockID
	})
	return result, nil
}

// CreditAtBlock sums the credits of an address recorded at block.
func (s *AccountStore) CreditAtBlock(_ context.Context, btcAddress string, block int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, c := range s.credits {
		if c.address == btcAddress && c.block == block {
			total += c.value
		}
	}
	return total, nil
}

// UnlockedSupply returns the transferable supply. Returns ErrNotFound if unset.
func (s *AccountStore) UnlockedSupply(_ context.Context) (*domain.UnlockedSupply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.supply == nil {
		return nil, storage.ErrNotFound
	}
	supplyCopy := *s.supply
	return &supplyCopy, nil
}

// TopBalances returns the count largest balances.
func (s *AccountStore) TopBalances(_ context.Context, count int) ([]*domain.BalanceInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.BalanceInfo, 0, len(s.balances))
	for _, b := range s.balances {
		balanceCopy := *b
		result = append(result, &balanceCopy)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Balance > result[j].Balance
	})
	if count > 0 && len(result) > count {
		result = result[:count]
	}
	return result, nil
}
