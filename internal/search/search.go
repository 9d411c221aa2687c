// Package search resolves a free-form query to a transaction, address or block.
package search

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"strings"

	"stacks-explorer-api/internal/explorer"
	"stacks-explorer-api/internal/fanout"
	"stacks-explorer-api/internal/node"
)

// Match types.
const (
	TypeTransaction = "tx"
	TypeBTCAddress  = "btc-address"
	TypeBlock       = "block"
)

// TransactionFinder looks up a transaction by hash.
type TransactionFinder interface {
	Transaction(ctx context.Context, hash string) (*explorer.Transaction, error)
}

// BlockFinder looks up a block by hash or height.
type BlockFinder interface {
	Block(ctx context.Context, hashOrHeight string, page int) (*explorer.Block, error)
}

// AddressFinder looks up a bitcoin address. Any answer is a match.
type AddressFinder interface {
	Address(ctx context.Context, btcAddress string) (*node.AddressInfo, error)
}

// Result is a search outcome. A miss encodes as {"success":false}; a match as
// {"type":...,"id":...}.
type Result struct {
	Success bool
	Type    string
	ID      string
}

// NoMatch is the result of a query nothing matched.
var NoMatch = Result{}

// MarshalJSON implements json.Marshaler.
func (r Result) MarshalJSON() ([]byte, error) {
	if !r.Success {
		return json.Marshal(struct {
			Success bool `json:"success"`
		}{false})
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	}{r.Type, r.ID})
}

// Resolver races the transaction, address and block lookups for a query.
type Resolver struct {
	txs     TransactionFinder
	blocks  BlockFinder
	address AddressFinder
	logger  *log.Logger
}

// NewResolver creates a Resolver. logger may be nil.
func NewResolver(txs TransactionFinder, blocks BlockFinder, address AddressFinder, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Resolver{txs: txs, blocks: blocks, address: address, logger: logger}
}

// Search returns the first lookup to match query, whichever answers first, or
// NoMatch once every lookup failed or missed. It never returns an error; lookup
// failures count as misses and are bounded by the lookups' own timeouts.
func (r *Resolver) Search(ctx context.Context, query string) Result {
	query = strings.TrimSpace(query)
	if query == "" {
		return NoMatch
	}

	result, ok := fanout.First(ctx,
		r.transaction(query),
		r.btcAddress(query),
		r.block(query),
	)
	if !ok {
		return NoMatch
	}
	return result
}

func (r *Resolver) transaction(query string) fanout.Candidate[Result] {
	return func(ctx context.Context) (Result, bool, error) {
		tx, err := r.txs.Transaction(ctx, query)
		if err != nil || tx == nil || tx.Decoded == nil {
			r.miss(TypeTransaction, query, err)
			return NoMatch, false, err
		}
		return Result{Success: true, Type: TypeTransaction, ID: tx.TxID}, true, nil
	}
}

func (r *Resolver) btcAddress(query string) fanout.Candidate[Result] {
	return func(ctx context.Context) (Result, bool, error) {
		info, err := r.address.Address(ctx, query)
		if err != nil || info == nil {
			r.miss(TypeBTCAddress, query, err)
			return NoMatch, false, err
		}
		return Result{Success: true, Type: TypeBTCAddress, ID: query}, true, nil
	}
}

func (r *Resolver) block(query string) fanout.Candidate[Result] {
	return func(ctx context.Context) (Result, bool, error) {
		b, err := r.blocks.Block(ctx, query, 0)
		if err != nil || b == nil || b.Block == nil {
			r.miss(TypeBlock, query, err)
			return NoMatch, false, err
		}
		return Result{Success: true, Type: TypeBlock, ID: b.Hash}, true, nil
	}
}

func (r *Resolver) miss(kind, query string, err error) {
	if err != nil {
		r.logger.Printf("search %q: %s lookup: %v", query, kind, err)
	}
}
