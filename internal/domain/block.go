package domain

// Block is a bitcoin block as recorded by the chain index.
// Corresponds to blocks table in ClickHouse.
type Block struct {
	Hash              string `json:"hash"`
	Height            int64  `json:"height"`
	Time              int64  `json:"time"` // Unix timestamp (seconds)
	Size              int64  `json:"size"`
	TxCount           int64  `json:"txCount"`
	Reward            int64  `json:"reward"` // satoshis
	PreviousBlockHash string `json:"previousBlockHash,omitempty"`
	MerkleRoot        string `json:"merkleRoot,omitempty"`
	Processed         bool   `json:"-"`
}

// BlockPage is one page of blocks plus the size of the unpaged result.
type BlockPage struct {
	Blocks     []*Block `json:"blocks"`
	TotalCount int64    `json:"totalCount"`
}
