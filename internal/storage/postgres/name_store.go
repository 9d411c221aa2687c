package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"stacks-explorer-api/internal/domain"
	"stacks-explorer-api/internal/storage"
)

// NameStore implements storage.NameStore using PostgreSQL.
type NameStore struct {
	pool *Pool
}

// NewNameStore creates a new NameStore.
func NewNameStore(pool *Pool) *NameStore {
	return &NameStore{pool: pool}
}

// Compile-time interface check.
var _ storage.NameStore = (*NameStore)(nil)

const nameColumns = `name, namespace_id, address, sender, value_hash, block_number, preorder_block_number,
	first_registered, last_renewed, revoked, op, txid, vtxindex, op_fee, token_fee`

const subdomainColumns = `fully_qualified_subdomain, owner, zonefile_hash, sequence, block_height, txid, accepted, resolver`

// InsertName adds or replaces a name record.
func (s *NameStore) InsertName(ctx context.Context, n *domain.NameRecord) error {
	if n == nil || n.Name == "" {
		return storage.ErrInvalidInput
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO name_records (`+nameColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (name) DO UPDATE SET
			address = EXCLUDED.address,
			value_hash = EXCLUDED.value_hash,
			block_number = EXCLUDED.block_number,
			last_renewed = EXCLUDED.last_renewed,
			revoked = EXCLUDED.revoked,
			op = EXCLUDED.op,
			txid = EXCLUDED.txid
	`,
		n.Name, n.NamespaceID, n.Address, n.Sender, n.ValueHash, n.BlockNumber, n.PreorderBlockNumber,
		n.FirstRegistered, n.LastRenewed, boolToInt(n.Revoked), n.Op, n.TxID, n.VTxIndex, n.OpFee, n.TokenFee,
	)
	if err != nil {
		return fmt.Errorf("insert name %s: %w", n.Name, err)
	}
	return nil
}

// InsertSubdomain adds a subdomain record.
func (s *NameStore) InsertSubdomain(ctx context.Context, sub *domain.Subdomain) error {
	if sub == nil || sub.Name == "" {
		return storage.ErrInvalidInput
	}
	var resolver *string
	if sub.Resolver != "" {
		resolver = &sub.Resolver
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subdomain_records (`+subdomainColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, sub.Name, sub.Owner, sub.ZonefileHash, sub.Sequence, sub.BlockHeight, sub.TxID, boolToInt(sub.Accepted), resolver)
	if err != nil {
		return fmt.Errorf("insert subdomain %s: %w", sub.Name, err)
	}
	return nil
}

// InsertNamespace adds or replaces a namespace.
func (s *NameStore) InsertNamespace(ctx context.Context, ns *domain.Namespace) error {
	if ns == nil || ns.NamespaceID == "" {
		return storage.ErrInvalidInput
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO namespaces (namespace_id, address, reveal_block, ready_block, ready, lifetime)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (namespace_id) DO UPDATE SET
			ready_block = EXCLUDED.ready_block,
			ready = EXCLUDED.ready
	`, ns.NamespaceID, ns.Address, ns.RevealBlock, ns.ReadyBlock, boolToInt(ns.Ready), ns.Lifetime)
	if err != nil {
		return fmt.Errorf("insert namespace %s: %w", ns.NamespaceID, err)
	}
	return nil
}

// Name retrieves a name record. Returns ErrNotFound if not exists.
func (s *NameStore) Name(ctx context.Context, name string) (*domain.NameRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+nameColumns+` FROM name_records WHERE name = $1`, name)
	n, err := scanName(row)
	if err != nil {
		if noRows(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get name: %w", err)
	}
	return n, nil
}

// RecentNames retrieves name records ordered by block_number DESC.
func (s *NameStore) RecentNames(ctx context.Context, page, limit int) ([]*domain.NameRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+nameColumns+`
		FROM name_records
		ORDER BY block_number DESC, name
		LIMIT $1 OFFSET $2
	`, limit, storage.Offset(page, limit))
	if err != nil {
		return nil, fmt.Errorf("get recent names: %w", err)
	}
	defer rows.Close()

	var names []*domain.NameRecord
	for rows.Next() {
		n, err := scanName(rows)
		if err != nil {
			return nil, fmt.Errorf("scan name row: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// RecentSubdomains retrieves subdomain records ordered by block_height DESC.
func (s *NameStore) RecentSubdomains(ctx context.Context, page, limit int) ([]*domain.Subdomain, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+subdomainColumns+`
		FROM subdomain_records
		ORDER BY block_height DESC
		LIMIT $1 OFFSET $2
	`, limit, storage.Offset(page, limit))
	if err != nil {
		return nil, fmt.Errorf("get recent subdomains: %w", err)
	}
	defer rows.Close()

	var subs []*domain.Subdomain
	for rows.Next() {
		var (
			sub      domain.Subdomain
			accepted int
			resolver *string
		)
		err := rows.Scan(&sub.Name, &sub.Owner, &sub.ZonefileHash, &sub.Sequence,
			&sub.BlockHeight, &sub.TxID, &accepted, &resolver)
		if err != nil {
			return nil, fmt.Errorf("scan subdomain row: %w", err)
		}
		sub.Accepted = accepted != 0
		if resolver != nil {
			sub.Resolver = *resolver
		}
		subs = append(subs, &sub)
	}
	return subs, rows.Err()
}

// Namespaces retrieves all namespaces ordered by namespace_id.
func (s *NameStore) Namespaces(ctx context.Context) ([]*domain.Namespace, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT namespace_id, address, reveal_block, ready_block, ready, lifetime
		FROM namespaces
		ORDER BY namespace_id
	`)
	if err != nil {
		return nil, fmt.Errorf("get namespaces: %w", err)
	}
	defer rows.Close()

	var namespaces []*domain.Namespace
	for rows.Next() {
		var (
			ns    domain.Namespace
			ready int
		)
		if err := rows.Scan(&ns.NamespaceID, &ns.Address, &ns.RevealBlock, &ns.ReadyBlock, &ready, &ns.Lifetime); err != nil {
			return nil, fmt.Errorf("scan namespace row: %w", err)
		}
		ns.Ready = ready != 0
		namespaces = append(namespaces, &ns)
	}
	return namespaces, rows.Err()
}

// NameCount returns the number of distinct names.
func (s *NameStore) NameCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(DISTINCT name) FROM name_records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count names: %w", err)
	}
	return count, nil
}

// SubdomainCount returns the number of distinct subdomains.
func (s *NameStore) SubdomainCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(DISTINCT fully_qualified_subdomain) FROM subdomain_records`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count subdomains: %w", err)
	}
	return count, nil
}

func scanName(row pgx.Row) (*domain.NameRecord, error) {
	var (
		n       domain.NameRecord
		revoked int
	)
	err := row.Scan(
		&n.Name, &n.NamespaceID, &n.Address, &n.Sender, &n.ValueHash, &n.BlockNumber, &n.PreorderBlockNumber,
		&n.FirstRegistered, &n.LastRenewed, &revoked, &n.Op, &n.TxID, &n.VTxIndex, &n.OpFee, &n.TokenFee,
	)
	if err != nil {
		return nil, err
	}
	n.Revoked = revoked != 0
	return &n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
