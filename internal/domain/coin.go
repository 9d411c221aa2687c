package domain

// CoinStatus classifies a coin by its spent height indicator.
type CoinStatus string

// Coin statuses. Negative spent heights are indicators, not heights.
const (
	CoinSpent       CoinStatus = "spent"       // spent_height >= 0
	CoinPending     CoinStatus = "pending"     // -1: spent by a mempool transaction
	CoinUnspent     CoinStatus = "unspent"     // -2
	CoinConflicting CoinStatus = "conflicting" // -3: minted by a transaction that can no longer confirm
	CoinError       CoinStatus = "error"       // -4: inconsistent index
)

// Spent height indicators.
const (
	SpentHeightPending     int64 = -1
	SpentHeightUnspent     int64 = -2
	SpentHeightConflicting int64 = -3
	SpentHeightError       int64 = -4
)

// StatusForSpentHeight maps a spent height to its CoinStatus.
func StatusForSpentHeight(h int64) CoinStatus {
	switch {
	case h >= 0:
		return CoinSpent
	case h == SpentHeightPending:
		return CoinPending
	case h == SpentHeightUnspent:
		return CoinUnspent
	case h == SpentHeightConflicting:
		return CoinConflicting
	default:
		return CoinError
	}
}

// Coin is a transaction output tracked by the chain index.
// Corresponds to coins table in ClickHouse.
type Coin struct {
	Address     string
	MintTxID    string
	MintIndex   int64
	MintHeight  int64
	SpentTxID   string
	SpentHeight int64
	Value       int64
	Script      []byte
	Coinbase    bool
}

// CoinStatusTotal is the grouped value of an address's coins in one status.
type CoinStatusTotal struct {
	Status CoinStatus
	Value  int64
	Count  int64
}

// AddressCoinSummary is the grouped coin aggregation for one address.
type AddressCoinSummary struct {
	Totals        []CoinStatusTotal
	UniqueTxCount int64
}

// AddressBalance summarizes an address's coins.
type AddressBalance struct {
	Balance           int64 `json:"balance"`
	TotalReceived     int64 `json:"totalReceived"`
	TotalSent         int64 `json:"totalSent"`
	TotalTransactions int64 `json:"totalTransactions"`
}
