package domain

import (
	"encoding/json"
	"fmt"
)

// History opcodes.
const (
	OpcodeTokenTransfer    = "TOKEN_TRANSFER"
	OpcodeNameUpdate       = "NAME_UPDATE"
	OpcodeNameRegistration = "NAME_REGISTRATION"
	OpcodeNamePreorder     = "NAME_PREORDER"
)

// HistoryRecord is one row of the core history table.
type HistoryRecord struct {
	BlockID        int64           `json:"block_id"`
	Op             string          `json:"op"`
	Opcode         string          `json:"opcode"`
	TxID           string          `json:"txid"`
	HistoryID      string          `json:"history_id"`
	CreatorAddress *string         `json:"creator_address"`
	HistoryData    json.RawMessage `json:"historyData"`
	VTxIndex       int64           `json:"vtxindex"`
	ValueHash      *string         `json:"value_hash"`
}

// TokenTransfer is the history_data payload of a TOKEN_TRANSFER record.
type TokenTransfer struct {
	Sender        string      `json:"sender"`
	Recipient     string      `json:"recipient"`
	TokenFee      json.Number `json:"token_fee"`
	TokenUnits    string      `json:"token_units"`
	ScratchArea   string      `json:"scratch_area"`
	ConsensusHash string      `json:"consensus_hash"`
}

// IsTokenTransfer reports whether the record is a token transfer.
func (h *HistoryRecord) IsTokenTransfer() bool {
	return h != nil && h.Opcode == OpcodeTokenTransfer
}

// TokenTransfer decodes the history data of a token transfer record.
func (h *HistoryRecord) TokenTransfer() (*TokenTransfer, error) {
	if !h.IsTokenTransfer() {
		return nil, fmt.Errorf("history %s: opcode %s is not %s", h.TxID, h.Opcode, OpcodeTokenTransfer)
	}
	var t TokenTransfer
	if err := json.Unmarshal(h.HistoryData, &t); err != nil {
		return nil, fmt.Errorf("decode token transfer %s: %w", h.TxID, err)
	}
	return &t, nil
}

// Value returns the transferred amount in microstacks.
func (t *TokenTransfer) Value() (int64, error) {
	if t.TokenFee == "" {
		return 0, nil
	}
	return t.TokenFee.Int64()
}
