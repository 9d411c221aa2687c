package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stacks-explorer-api/internal/domain"
	"stacks-explorer-api/internal/storage"
)

func TestNameStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewNameStore(pool)
	ctx := context.Background()

	require.NoError(t, store.InsertName(ctx, &domain.NameRecord{Name: "alice.id", NamespaceID: "id", Address: "1alice", BlockNumber: 500, TxID: "t1"}))
	require.NoError(t, store.InsertName(ctx, &domain.NameRecord{Name: "bob.id", NamespaceID: "id", Address: "1bob", BlockNumber: 600, TxID: "t2", Revoked: true}))
	require.NoError(t, store.InsertName(ctx, &domain.NameRecord{Name: "bob.id", NamespaceID: "id", Address: "1carol", BlockNumber: 700, TxID: "t3"}))

	require.NoError(t, store.InsertSubdomain(ctx, &domain.Subdomain{Name: "x.alice.id", Owner: "1x", BlockHeight: 800, TxID: "t4", Accepted: true}))
	require.NoError(t, store.InsertSubdomain(ctx, &domain.Subdomain{Name: "x.alice.id", Owner: "1y", BlockHeight: 801, TxID: "t5", Sequence: 1, Resolver: "https://r"}))

	require.NoError(t, store.InsertNamespace(ctx, &domain.Namespace{NamespaceID: "id", Ready: true}))
	require.NoError(t, store.InsertNamespace(ctx, &domain.Namespace{NamespaceID: "btc"}))

	n, err := store.Name(ctx, "bob.id")
	require.NoError(t, err)
	assert.Equal(t, "1carol", n.Address)
	assert.False(t, n.Revoked)

	_, err = store.Name(ctx, "nobody.id")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	recent, err := store.RecentNames(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "bob.id", recent[0].Name)

	subs, err := store.RecentSubdomains(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "https://r", subs[0].Resolver)
	assert.True(t, subs[1].Accepted)

	namespaces, err := store.Namespaces(ctx)
	require.NoError(t, err)
	require.Len(t, namespaces, 2)
	assert.Equal(t, "btc", namespaces[0].NamespaceID)
	assert.True(t, namespaces[1].Ready)

	names, err := store.NameCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), names)

	subCount, err := store.SubdomainCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), subCount)
}
