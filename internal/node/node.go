// Package node is the client for the upstream core node API and its block feed.
package node

import "context"

// CoreAPI defines the core node HTTP interface used by the explorer.
type CoreAPI interface {
	// RawTransaction returns the hex-encoded raw bitcoin transaction.
	RawTransaction(ctx context.Context, txid string) (string, error)

	// Address returns the names owned by a bitcoin address.
	Address(ctx context.Context, btcAddress string) (*AddressInfo, error)

	// StacksBalance returns the STACKS balance of a bitcoin address in microstacks.
	StacksBalance(ctx context.Context, btcAddress string) (int64, error)

	// Names returns one page of registered names.
	Names(ctx context.Context, page int) ([]string, error)

	// NamespaceNames returns one page of the names registered in a namespace.
	NamespaceNames(ctx context.Context, namespace string, page int) ([]string, error)

	// Namespaces returns all namespace ids.
	Namespaces(ctx context.Context) ([]string, error)

	// NameInfo returns the current state of a name.
	NameInfo(ctx context.Context, name string) (*NameInfo, error)
}

// AddressInfo is the core node view of a bitcoin address.
type AddressInfo struct {
	Names []string `json:"names"`
}

// NameInfo is the core node view of a registered name.
type NameInfo struct {
	Address      string `json:"address"`
	Status       string `json:"status"`
	ZonefileHash string `json:"zonefile_hash"`
	Zonefile     string `json:"zonefile,omitempty"`
	LastTxID     string `json:"last_txid"`
	ExpireBlock  int64  `json:"expire_block"`
}

// Tip is a block feed notification.
type Tip struct {
	Height int64  `json:"height"`
	Hash   string `json:"hash"`
	Time   int64  `json:"time"` // Unix timestamp (seconds), zero when the feed omits it
}
