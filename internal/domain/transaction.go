package domain

// TxIO is a transaction input or output resolved against the coins table.
// Address is empty when the script has no standard address.
type TxIO struct {
	Address   string `json:"address,omitempty"`
	Value     int64  `json:"value"`            // satoshis
	Script    string `json:"script,omitempty"` // base64, outputs only
	PrevTxID  string `json:"-"`                // inputs only: the spent coin's outpoint
	PrevIndex int64  `json:"-"`
}

// Transaction is a bitcoin transaction summary from the chain index.
// Confirmations is filled by the caller from the current tip height.
type Transaction struct {
	TxID          string `json:"txid"`
	BlockHash     string `json:"blockHash"`
	BlockHeight   int64  `json:"blockHeight"`
	BlockUnixTime int64  `json:"blockUnixTime"`
	BlockTime     string `json:"blockTime"` // RFC3339
	Confirmations int64  `json:"confirmations"`
	Coinbase      bool   `json:"coinbase"`
	Value         int64  `json:"value"`
	Fee           int64  `json:"fee"`
	Size          int64  `json:"size"`
	Inputs        []TxIO `json:"inputs"`
	Outputs       []TxIO `json:"outputs"`
}

// Address transaction actions.
const (
	ActionSent     = "sent"
	ActionReceived = "received"
)

// AddressTx is a transaction touching an address, seen from one of its coins.
type AddressTx struct {
	Transaction
	Address          string `json:"address"`
	MintIndex        int64  `json:"mintIndex"`
	TotalTransferred int64  `json:"totalTransferred"`
	Action           string `json:"action"` // "sent" | "received"
}

// Confirmations returns the confirmation count of a transaction mined at
// height given the current tip. Unmined or future heights yield zero.
func Confirmations(tip, height int64) int64 {
	if height <= 0 || height > tip {
		return 0
	}
	return tip - height + 1
}
