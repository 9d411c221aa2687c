// Package explorer composes the chain index, the core database and the core node
// into cached explorer entities.
//
// Every entity is an aggregate.Spec: a key, a TTL policy and a setter that fans
// out to its sources through fanout.Group. Required sources fail the entity;
// optional sources are logged and leave their field empty.
package explorer

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"stacks-explorer-api/internal/aggregate"
	"stacks-explorer-api/internal/btctx"
	"stacks-explorer-api/internal/domain"
	"stacks-explorer-api/internal/node"
	"stacks-explorer-api/internal/storage"
	"stacks-explorer-api/internal/vesting"
)

// Error classes wrapped into setter failures. storage.ErrNotFound marks a
// well-formed miss and is kept distinct from ErrUpstream.
var (
	ErrUpstream = errors.New("upstream failure")
	ErrDecode   = errors.New("decode failure")
)

// Page sizes.
const (
	addressTxPageSize     = 20
	blockTxPageSize       = 20
	blocksPerDatePage     = 100
	stacksHistoryPageSize = 50
	nameHistoryPageSize   = 20
	homeListSize          = 10
	maxTopBalances        = 1000
)

// DecodeFunc decodes a raw transaction against its chain index summary.
type DecodeFunc func(rawHex string, summary *domain.Transaction) (*btctx.Decoded, error)

// Sources are the upstream collaborators of the aggregators.
type Sources struct {
	Chain    storage.ChainIndex
	History  storage.HistoryStore
	Names    storage.NameStore
	Accounts storage.AccountStore
	Core     node.CoreAPI
}

// Options configures an Explorer.
type Options struct {
	Engine  *aggregate.Engine
	Sources Sources
	Genesis *vesting.Genesis // nil disables the genesis entities

	// Concurrency bounds the per-block and per-date detail fan-out. Default 1.
	Concurrency int

	Logger *log.Logger      // default: discard
	Clock  func() time.Time // default: time.Now
	Decode DecodeFunc       // default: btctx.Decode
}

// Explorer serves every explorer entity through one aggregation engine.
type Explorer struct {
	engine      *aggregate.Engine
	src         Sources
	genesis     *vesting.Genesis
	concurrency int
	logger      *log.Logger
	now         func() time.Time
	decode      DecodeFunc

	txSpec             *aggregate.Spec[string, *Transaction]
	btcAddressSpec     *aggregate.Spec[PageArgs, *BTCAddress]
	stacksAddressSpec  *aggregate.Spec[PageArgs, *StacksAddress]
	blockSpec          *aggregate.Spec[PageArgs, *Block]
	blocksSpec         *aggregate.Spec[BlocksArgs, *BlocksPage]
	nameSpec           *aggregate.Spec[PageArgs, *Name]
	namespacesSpec     *aggregate.Spec[struct{}, *Namespaces]
	namespaceNamesSpec *aggregate.Spec[PageArgs, []string]
	namesSpec          *aggregate.Spec[int, []string]
	nameCountsSpec     *aggregate.Spec[struct{}, *NameCounts]
	totalSupplySpec    *aggregate.Spec[struct{}, *TotalSupply]
	topBalancesSpec    *aggregate.Spec[int, []*TopBalance]
	homeSpec           *aggregate.Spec[struct{}, *HomeInfo]
	genesisTotalsSpec  *aggregate.Spec[struct{}, *vesting.Totals]
}

// PageArgs identifies one page of a paginated entity.
type PageArgs struct {
	ID   string
	Page int
}

// New creates an Explorer.
func New(opts Options) (*Explorer, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("%w: engine is required", storage.ErrInvalidInput)
	}
	src := opts.Sources
	if src.Chain == nil || src.History == nil || src.Names == nil || src.Accounts == nil || src.Core == nil {
		return nil, fmt.Errorf("%w: every source is required", storage.ErrInvalidInput)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Decode == nil {
		opts.Decode = btctx.Decode
	}

	x := &Explorer{
		engine:      opts.Engine,
		src:         src,
		genesis:     opts.Genesis,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
		now:         opts.Clock,
		decode:      opts.Decode,
	}
	x.txSpec = x.transactionSpec()
	x.btcAddressSpec = x.newBTCAddressSpec()
	x.stacksAddressSpec = x.newStacksAddressSpec()
	x.blockSpec = x.newBlockSpec()
	x.blocksSpec = x.newBlocksSpec()
	x.nameSpec = x.newNameSpec()
	x.namespacesSpec = x.newNamespacesSpec()
	x.namespaceNamesSpec = x.newNamespaceNamesSpec()
	x.namesSpec = x.newNamesSpec()
	x.nameCountsSpec = x.newNameCountsSpec()
	x.totalSupplySpec = x.newTotalSupplySpec()
	x.topBalancesSpec = x.newTopBalancesSpec()
	x.homeSpec = x.newHomeSpec()
	x.genesisTotalsSpec = x.newGenesisTotalsSpec()
	return x, nil
}

// Engine returns the aggregation engine backing the explorer.
func (x *Explorer) Engine() *aggregate.Engine {
	return x.engine
}

// Core returns the core node client.
func (x *Explorer) Core() node.CoreAPI {
	return x.src.Core
}

// upstream classifies a source failure. Misses stay storage.ErrNotFound.
func upstream(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidInput) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}

func fixedTTL[A any](d time.Duration) func(A) time.Duration {
	return func(A) time.Duration { return d }
}

// isoTime renders unix seconds with millisecond precision, e.g. 2019-10-22T02:16:47.000Z.
func isoTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02T15:04:05.000Z")
}

func clampPage(page int) int {
	if page < 0 {
		return 0
	}
	return page
}
