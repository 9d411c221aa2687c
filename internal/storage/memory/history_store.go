package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"stacks-explorer-api/internal/domain"
	"stacks-explorer-api/internal/storage"
)

// HistoryStore is an in-memory implementation of storage.HistoryStore.
type HistoryStore struct {
	mu      sync.RWMutex
	records []*domain.HistoryRecord
}

// NewHistoryStore creates a new in-memory history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{}
}

// Compile-time interface check.
var _ storage.HistoryStore = (*HistoryStore)(nil)

// Insert adds a copy of r.
func (s *HistoryStore) Insert(_ context.Context, r *domain.HistoryRecord) error {
	if r == nil || r.TxID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recordCopy := *r
	s.records = append(s.records, &recordCopy)
	return nil
}

// ByTxID retrieves the history record of a transaction.
func (s *HistoryStore) ByTxID(_ context.Context, txid string) (*domain.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.TxID == txid {
			recordCopy := *r
			return &recordCopy, nil
		}
	}
	return nil, storage.ErrNotFound
}

// ByAddress retrieves history records whose history data mentions btcAddress.
func (s *HistoryStore) ByAddress(_ context.Context, btcAddress string, page, limit int) ([]*domain.HistoryRecord, error) {
	return s.filter(func(r *domain.HistoryRecord) bool {
		return bytes.Contains(r.HistoryData, []byte(btcAddress))
	}, page, limit), nil
}

// ByName retrieves history records of a name.
func (s *HistoryStore) ByName(_ context.Context, name string, page, limit int) ([]*domain.HistoryRecord, error) {
	return s.filter(func(r *domain.HistoryRecord) bool {
		return r.HistoryID == name
	}, page, limit), nil
}

// RecentTokenTransfers retrieves the latest TOKEN_TRANSFER records.
func (s *HistoryStore) RecentTokenTransfers(_ context.Context, page, limit int) ([]*domain.HistoryRecord, error) {
	return s.filter(func(r *domain.HistoryRecord) bool {
		return r.IsTokenTransfer()
	}, page, limit), nil
}

func (s *HistoryStore) filter(match func(*domain.HistoryRecord) bool, page, limit int) []*domain.HistoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.HistoryRecord
	for _, r := range s.records {
		if match(r) {
			recordCopy := *r
			matched = append(matched, &recordCopy)
		}
	}

	// Sort by block_id DESC, vtxindex DESC
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].BlockID != matched[j].BlockID {
			return matched[i].BlockID > matched[j].BlockID
		}
		return matched[i].VTxIndex > matched[j].VTxIndex
	})

	return paginate(matched, page, limit)
}
