package explorer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stacks-explorer-api/internal/aggregate"
	"stacks-explorer-api/internal/btctx"
	"stacks-explorer-api/internal/domain"
	"stacks-explorer-api/internal/node"
	"stacks-explorer-api/internal/storage"
	"stacks-explorer-api/internal/storage/memory"
	"stacks-explorer-api/internal/vesting"
)

// Address pair taken from a genesis account.
const (
	testSTXAddress = "SPCFS0TX3MS91928283R36V2G14BGKSMVE3FMN93"
	testBTCAddress = "13H7iXRFRTQTgLnTi4SrTK4wzdTnZcaGES"
)

var errDown = errors.New("connection refused")

type fakeCore struct {
	mu    sync.Mutex
	calls map[string]int

	raw        map[string]string
	rawDelay   time.Duration
	balances   map[string]int64
	names      []string
	namespaces []string
	nameInfo   map[string]*node.NameInfo
	addresses  map[string]*node.AddressInfo

	rawErr        error
	balanceErr    error
	namespacesErr error
}

func newFakeCore() *fakeCore {
	return &fakeCore{
		calls:     make(map[string]int),
		raw:       make(map[string]string),
		balances:  make(map[string]int64),
		nameInfo:  make(map[string]*node.NameInfo),
		addresses: make(map[string]*node.AddressInfo),
	}
}

var _ node.CoreAPI = (*fakeCore)(nil)

func (f *fakeCore) record(method string) {
	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()
}

func (f *fakeCore) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeCore) RawTransaction(_ context.Context, txid string) (string, error) {
	f.record("rawtx")
	time.Sleep(f.rawDelay)
	if f.rawErr != nil {
		return "", f.rawErr
	}
	raw, ok := f.raw[txid]
	if !ok {
		return "", storage.ErrNotFound
	}
	return raw, nil
}

func (f *fakeCore) Address(_ context.Context, btcAddress string) (*node.AddressInfo, error) {
	f.record("address")
	info, ok := f.addresses[btcAddress]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return info, nil
}

func (f *fakeCore) StacksBalance(_ context.Context, btcAddress string) (int64, error) {
	f.record("balance")
	if f.balanceErr != nil {
		return 0, f.balanceErr
	}
	return f.balances[btcAddress], nil
}

func (f *fakeCore) Names(_ context.Context, page int) ([]string, error) {
	f.record("names")
	return f.names, nil
}

func (f *fakeCore) NamespaceNames(_ context.Context, namespace string, page int) ([]string, error) {
	f.record("namespace_names")
	return []string{"a." + namespace, "b." + namespace}, nil
}

func (f *fakeCore) Namespaces(_ context.Context) ([]string, error) {
	f.record("namespaces")
	if f.namespacesErr != nil {
		return nil, f.namespacesErr
	}
	return f.namespaces, nil
}

func (f *fakeCore) NameInfo(_ context.Context, name string) (*node.NameInfo, error) {
	f.record("name")
	info, ok := f.nameInfo[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return info, nil
}

// failingHistory fails every query with err.
type failingHistory struct {
	storage.HistoryStore
	err error
}

func (f failingHistory) ByTxID(context.Context, string) (*domain.HistoryRecord, error) {
	return nil, f.err
}

func (f failingHistory) ByName(context.Context, string, int, int) ([]*domain.HistoryRecord, error) {
	return nil, f.err
}

func (f failingHistory) RecentTokenTransfers(context.Context, int, int) ([]*domain.HistoryRecord, error) {
	return nil, f.err
}

// failingNames fails namespace and recent name queries with err.
type failingNames struct {
	storage.NameStore
	err error
}

func (f failingNames) Namespaces(context.Context) ([]*domain.Namespace, error) {
	return nil, f.err
}

func (f failingNames) RecentNames(context.Context, int, int) ([]*domain.NameRecord, error) {
	return nil, f.err
}

// failingChainTip fails LatestBlockHeight with err.
type failingChainTip struct {
	storage.ChainIndex
	err error
}

func (f failingChainTip) LatestBlockHeight(context.Context) (int64, error) {
	return 0, f.err
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// stubDecode decodes any raw payload except "bad" from the summary alone.
func stubDecode(raw string, summary *domain.Transaction) (*btctx.Decoded, error) {
	if raw == "bad" {
		return nil, btctx.ErrMalformed
	}
	return &btctx.Decoded{
		TxID:        summary.TxID,
		BlockHash:   summary.BlockHash,
		BlockHeight: summary.BlockHeight,
		Value:       summary.Value,
		Fee:         summary.Fee,
	}, nil
}

type fixture struct {
	chain    *memory.ChainIndex
	history  *memory.HistoryStore
	names    *memory.NameStore
	accounts *memory.AccountStore
	core     *fakeCore
	clock    *testClock
	engine   *aggregate.Engine
	sources  Sources
	genesis  *vesting.Genesis
}

func newFixture() *fixture {
	f := &fixture{
		chain:    memory.NewChainIndex(),
		history:  memory.NewHistoryStore(),
		names:    memory.NewNameStore(),
		accounts: memory.NewAccountStore(),
		core:     newFakeCore(),
		clock:    &testClock{now: time.Date(2019, 10, 22, 12, 0, 0, 0, time.UTC)},
	}
	f.engine = aggregate.New(aggregate.Options{Clock: f.clock.Now})
	f.sources = Sources{
		Chain:    f.chain,
		History:  f.history,
		Names:    f.names,
		Accounts: f.accounts,
		Core:     f.core,
	}
	return f
}

func (f *fixture) explorer(t *testing.T) *Explorer {
	t.Helper()
	x, err := New(Options{
		Engine:      f.engine,
		Sources:     f.sources,
		Genesis:     f.genesis,
		Concurrency: 2,
		Clock:       f.clock.Now,
		Decode:      stubDecode,
	})
	require.NoError(t, err)
	return x
}

// hash64 pads s into a 64 character hex hash.
func hash64(s string) string {
	const zeros = "0000000000000000000000000000000000000000000000000000000000000000"
	return zeros[:64-len(s)] + s
}
