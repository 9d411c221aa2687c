package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stacks-explorer-api/internal/aggregate"
	"stacks-explorer-api/internal/domain"
	"stacks-explorer-api/internal/explorer"
	"stacks-explorer-api/internal/node"
	"stacks-explorer-api/internal/search"
	"stacks-explorer-api/internal/storage"
	"stacks-explorer-api/internal/storage/memory"
)

// offlineCore answers every node call with a miss.
type offlineCore struct{}

func (offlineCore) RawTransaction(context.Context, string) (string, error) {
	return "", storage.ErrNotFound
}

func (offlineCore) Address(context.Context, string) (*node.AddressInfo, error) {
	return nil, storage.ErrNotFound
}

func (offlineCore) StacksBalance(context.Context, string) (int64, error) { return 0, nil }

func (offlineCore) Names(context.Context, int) ([]string, error) { return []string{}, nil }

func (offlineCore) NamespaceNames(context.Context, string, int) ([]string, error) {
	return []string{}, nil
}

func (offlineCore) Namespaces(context.Context) ([]string, error) { return []string{}, nil }

func (offlineCore) NameInfo(context.Context, string) (*node.NameInfo, error) {
	return nil, storage.ErrNotFound
}

func newTestServer(t *testing.T) (*httptest.Server, *memory.NameStore) {
	t.Helper()

	names := memory.NewNameStore()
	chain := memory.NewChainIndex()
	chain.AddBlock(&domain.Block{
		Hash:      "00000000000000000005e28a6ac5b1e5c3f0bba38d14bdc4e8fc2d1d4b5a9a10",
		Height:    600000,
		Time:      1571710607,
		Processed: true,
	})

	x, err := explorer.New(explorer.Options{
		Engine: aggregate.New(aggregate.Options{}),
		Sources: explorer.Sources{
			Chain:    chain,
			History:  memory.NewHistoryStore(),
			Names:    names,
			Accounts: memory.NewAccountStore(),
			Core:     offlineCore{},
		},
	})
	require.NoError(t, err)

	discard := log.New(io.Discard, "", 0)
	a := &api{
		x:       x,
		search:  search.NewResolver(x, x, offlineCore{}, discard),
		tip:     func() int64 { return 600000 },
		logger:  discard,
		started: time.Now(),
	}
	srv := httptest.NewServer(a.routes())
	t.Cleanup(srv.Close)
	return srv, names
}

func get(t *testing.T, srv *httptest.Server, path string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(body) > 0 && body[0] == '{' {
		require.NoError(t, json.Unmarshal(body, &decoded))
	}
	return resp.StatusCode, decoded
}

func TestRoutes_Health(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestRoutes_StatusCodes(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		path string
		want int
	}{
		{"/api/blocks/600000", http.StatusOK},
		{"/api/blocks/not-a-block", http.StatusBadRequest},
		{"/api/blocks/599999", http.StatusNotFound},
		{"/api/transactions/abc123", http.StatusNotFound},
		{"/api/accounts/global", http.StatusNotFound},
		{"/api/accounts/SP000000000000000000002Q6VF78", http.StatusNotFound},
		{"/api/stacks/addresses/garbage", http.StatusBadRequest},
		{"/api/total-supply", http.StatusNotFound},
		{"/api/home", http.StatusOK},
		{"/api/name-counts", http.StatusOK},
		{"/api/names?page=2", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			status, body := get(t, srv, tt.path)
			assert.Equal(t, tt.want, status)
			if tt.want != http.StatusOK {
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestRoutes_Namespaces(t *testing.T) {
	srv, names := newTestServer(t)
	require.NoError(t, names.InsertNamespace(context.Background(), &domain.Namespace{NamespaceID: "id", Ready: true}))

	status, body := get(t, srv, "/api/namespaces")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, explorer.SourceCoreDB, body["source"])
	assert.Equal(t, float64(1), body["total"])
}

func TestRoutes_Search(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := get(t, srv, "/api/search/nothing-matches")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"success": false}, body)

	status, body = get(t, srv, "/api/search/600000")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "block", body["type"])
	assert.Equal(t, "00000000000000000005e28a6ac5b1e5c3f0bba38d14bdc4e8fc2d1d4b5a9a10", body["id"])
}

func TestRoutes_Status(t *testing.T) {
	srv, _ := newTestServer(t)

	_, _ = get(t, srv, "/api/home")
	status, body := get(t, srv, "/status")

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, float64(600000), body["tip_height"])
	assert.GreaterOrEqual(t, body["cache_entries"], float64(1))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(fmt.Errorf("wrap: %w", storage.ErrNotFound)))
	assert.Equal(t, http.StatusBadRequest, statusFor(storage.ErrInvalidInput))
	assert.Equal(t, http.StatusBadGateway, statusFor(fmt.Errorf("%w: timeout", explorer.ErrUpstream)))
	assert.Equal(t, http.StatusBadGateway, statusFor(explorer.ErrDecode))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

func TestPageParam(t *testing.T) {
	for query, want := range map[string]int{"": 0, "?page=3": 3, "?page=-2": 0, "?page=x": 0} {
		r := httptest.NewRequest(http.MethodGet, "/api/names"+query, nil)
		assert.Equal(t, want, pageParam(r), query)
	}
}
