package domain

// NameRecord is one row of the core name_records table.
type NameRecord struct {
	Name                string `json:"name"`
	NamespaceID         string `json:"namespace_id"`
	Address             string `json:"address"`
	Sender              string `json:"sender"`
	ValueHash           string `json:"value_hash"`
	BlockNumber         int64  `json:"block_number"`
	PreorderBlockNumber int64  `json:"preorder_block_number"`
	FirstRegistered     int64  `json:"first_registered"`
	LastRenewed         int64  `json:"last_renewed"`
	Revoked             bool   `json:"revoked"`
	Op                  string `json:"op"`
	TxID                string `json:"txid"`
	VTxIndex            int64  `json:"vtxindex"`
	OpFee               int64  `json:"op_fee"`
	TokenFee            string `json:"token_fee"`
}

// Subdomain is one row of the core subdomain_records table.
type Subdomain struct {
	Name         string `json:"name"` // fully qualified subdomain
	Owner        string `json:"owner"`
	ZonefileHash string `json:"zonefile_hash"`
	Sequence     int64  `json:"sequence"`
	BlockHeight  int64  `json:"blockHeight"`
	TxID         string `json:"txid"`
	Accepted     bool   `json:"accepted"`
	Resolver     string `json:"resolver,omitempty"`
}

// Namespace is one row of the core namespaces table.
type Namespace struct {
	NamespaceID string `json:"namespace_id"`
	Address     string `json:"address,omitempty"`
	RevealBlock int64  `json:"reveal_block,omitempty"`
	ReadyBlock  int64  `json:"ready_block,omitempty"`
	Ready       bool   `json:"ready"`
	Lifetime    int64  `json:"lifetime,omitempty"`
}
