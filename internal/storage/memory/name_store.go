package memory

import (
	"context"
	"sort"
	"sync"

	"stacks-explorer-api/internal/domain"
	"stacks-explorer-api/internal/storage"
)

// NameStore is an in-memory implementation of storage.NameStore.
type NameStore struct {
	mu         sync.RWMutex
	names      map[string]*domain.NameRecord
	subdomains []*domain.Subdomain
	namespaces map[string]*domain.Namespace
}

// NewNameStore creates a new in-memory name store.
func NewNameStore() *NameStore {
	return &NameStore{
		names:      make(map[string]*domain.NameRecord),
		namespaces: make(map[string]*domain.Namespace),
	}
}

// Compile-time interface check.
var _ storage.NameStore = (*NameStore)(nil)

// InsertName adds or replaces a name record.
func (s *NameStore) InsertName(_ context.Context, n *domain.NameRecord) error {
	if n == nil || n.Name == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	nameCopy := *n
	s.names[n.Name] = &nameCopy
	return nil
}

// InsertSubdomain adds a subdomain record.
func (s *NameStore) InsertSubdomain(_ context.Context, sub *domain.Subdomain) error {
	if sub == nil || sub.Name == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	subCopy := *sub
	s.subdomains = append(s.subdomains, &subCopy)
	return nil
}

// InsertNamespace adds or replaces a namespace.
func (s *NameStore) InsertNamespace(_ context.Context, ns *domain.Namespace) error {
	if ns == nil || ns.NamespaceID == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	nsCopy := *ns
	s.namespaces[ns.NamespaceID] = &nsCopy
	return nil
}

// Name retrieves a name record.
func (s *NameStore) Name(_ context.Context, name string) (*domain.NameRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.names[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	nameCopy := *n
	return &nameCopy, nil
}

// RecentNames retrieves name records ordered by block_number DESC.
func (s *NameStore) RecentNames(_ context.Context, page, limit int) ([]*domain.NameRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.NameRecord
	for _, n := range s.names {
		nameCopy := *n
		result = append(result, &nameCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].BlockNumber != result[j].BlockNumber {
			return result[i].BlockNumber > result[j].BlockNumber
		}
		return result[i].Name < result[j].Name
	})
	return paginate(result, page, limit), nil
}

// RecentSubdomains retrieves subdomain records ordered by block_height DESC.
func (s *NameStore) RecentSubdomains(_ context.Context, page, limit int) ([]*domain.Subdomain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Subdomain, 0, len(s.subdomains))
	for _, sub := range s.subdomains {
		subCopy := *sub
		result = append(result, &subCopy)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].BlockHeight > result[j].BlockHeight
	})
	return paginate(result, page, limit), nil
}

// Namespaces retrieves all namespaces ordered by namespace_id.
func (s *NameStore) Namespaces(_ context.Context) ([]*domain.Namespace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Namespace, 0, len(s.namespaces))
	for _, ns := range s.namespaces {
		nsCopy := *ns
		result = append(result, &nsCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].NamespaceID < result[j].NamespaceID
	})
	return result, nil
}

// NameCount returns the number of distinct names.
func (s *NameStore) NameCount(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.names)), nil
}

// SubdomainCount returns the number of distinct subdomains.
func (s *NameStore) SubdomainCount(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	distinct := make(map[string]struct{})
	for _, sub := range s.subdomains {
		distinct[sub.Name] = struct{}{}
	}
	return int64(len(distinct)), nil
}
