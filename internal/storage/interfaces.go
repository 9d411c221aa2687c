package storage

import (
	"context"
	"time"

	"stacks-explorer-api/internal/domain"
)

// ChainIndex provides read access to the UTXO chain index (blocks, transactions, coins).
// Transactions are returned with Confirmations unset.
type ChainIndex interface {
	// LatestBlockHeight returns the height of the highest processed block.
	LatestBlockHeight(ctx context.Context) (int64, error)

	// LatestBlock returns the highest processed block.
	LatestBlock(ctx context.Context) (*domain.Block, error)

	// RecentBlocks returns up to limit processed blocks, ordered by height DESC.
	RecentBlocks(ctx context.Context, limit int) ([]*domain.Block, error)

	// BlockByHash retrieves a block by hash. Returns ErrNotFound if not exists.
	BlockByHash(ctx context.Context, hash string) (*domain.Block, error)

	// BlockByHeight retrieves a block by height. Returns ErrNotFound if not exists.
	BlockByHeight(ctx context.Context, height int64) (*domain.Block, error)

	// BlocksByDate retrieves one page of blocks mined on the UTC day containing day,
	// ordered by height DESC.
	BlocksByDate(ctx context.Context, day time.Time, page, limit int) (*domain.BlockPage, error)

	// BlockTransactions retrieves one page of a block's transactions.
	BlockTransactions(ctx context.Context, blockHash string, page, limit int) ([]*domain.Transaction, error)

	// Transaction retrieves a transaction by id. Returns ErrNotFound if not exists.
	Transaction(ctx context.Context, txid string) (*domain.Transaction, error)

	// AddressTransactions retrieves one page of an address's coins as transactions,
	// ordered by mint height DESC.
	AddressTransactions(ctx context.Context, address string, page, limit int) ([]*domain.AddressTx, error)

	// AddressCoinSummary groups an address's confirmed coins by status.
	AddressCoinSummary(ctx context.Context, address string) (*domain.AddressCoinSummary, error)

	// BlockTimes returns block times (unix seconds) keyed by height. Unknown heights are absent.
	BlockTimes(ctx context.Context, heights []int64) (map[int64]int64, error)
}

// HistoryStore provides access to the core history table.
type HistoryStore interface {
	// ByTxID retrieves the history record of a transaction. Returns ErrNotFound if not exists.
	ByTxID(ctx context.Context, txid string) (*domain.HistoryRecord, error)

	// ByAddress retrieves history records mentioning a bitcoin address,
	// ordered by block_id DESC, vtxindex DESC.
	ByAddress(ctx context.Context, btcAddress string, page, limit int) ([]*domain.HistoryRecord, error)

	// ByName retrieves history records of a name, ordered by block_id DESC.
	ByName(ctx context.Context, name string, page, limit int) ([]*domain.HistoryRecord, error)

	// RecentTokenTransfers retrieves the latest TOKEN_TRANSFER records.
	RecentTokenTransfers(ctx context.Context, page, limit int) ([]*domain.HistoryRecord, error)
}

// NameStore provides access to name_records, subdomain_records and namespaces.
type NameStore interface {
	// Name retrieves a name record. Returns ErrNotFound if not exists.
	Name(ctx context.Context, name string) (*domain.NameRecord, error)

	// RecentNames retrieves name records ordered by block_number DESC.
	RecentNames(ctx context.Context, page, limit int) ([]*domain.NameRecord, error)

	// RecentSubdomains retrieves subdomain records ordered by block_height DESC.
	RecentSubdomains(ctx context.Context, page, limit int) ([]*domain.Subdomain, error)

	// Namespaces retrieves all namespaces ordered by namespace_id.
	Namespaces(ctx context.Context) ([]*domain.Namespace, error)

	// NameCount returns the number of distinct names.
	NameCount(ctx context.Context) (int64, error)

	// SubdomainCount returns the number of distinct subdomains.
	SubdomainCount(ctx context.Context) (int64, error)
}

// AccountStore provides access to accounts and account_vesting.
type AccountStore interface {
	// Vesting retrieves the vesting schedule of a bitcoin address, ordered by block_id ASC.
	Vesting(ctx context.Context, btcAddress string) ([]*domain.VestingRow, error)

	// CreditAtBlock sums the credits of an address recorded at a block.
	CreditAtBlock(ctx context.Context, btcAddress string, block int64) (int64, error)

	// UnlockedSupply returns the transferable supply at the latest accounts block.
	UnlockedSupply(ctx context.Context) (*domain.UnlockedSupply, error)

	// TopBalances returns the count largest STACKS balances, ordered by balance DESC.
	TopBalances(ctx context.Context, count int) ([]*domain.BalanceInfo, error)
}
