// Package btctx decodes raw bitcoin transactions into explorer records.
package btctx

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"stacks-explorer-api/internal/domain"
)

// ErrMalformed is wrapped by every decoding failure.
var ErrMalformed = errors.New("malformed raw transaction")

// stacksMagic prefixes the OP_RETURN payload of Stacks virtualchain operations.
var stacksMagic = []byte("id")

// Input is a decoded transaction input. Address and Value are resolved from the
// chain index summary and are empty when the spent coin is unknown.
type Input struct {
	PrevTxID string `json:"prevTxid,omitempty"`
	PrevVout uint32 `json:"prevVout"`
	Sequence uint32 `json:"sequence"`
	Address  string `json:"address,omitempty"`
	Value    int64  `json:"value"`
}

// Output is a decoded transaction output.
type Output struct {
	Index      int    `json:"index"`
	Value      int64  `json:"value"`
	Address    string `json:"address,omitempty"`
	ScriptType string `json:"scriptType"`
	Script     string `json:"script"`         // hex
	Data       string `json:"data,omitempty"` // hex push data of OP_RETURN outputs
}

// Decoded is a raw transaction merged with its chain index summary.
type Decoded struct {
	TxID          string   `json:"txid"`
	Version       int32    `json:"version"`
	LockTime      uint32   `json:"locktime"`
	Size          int      `json:"size"`
	VSize         int      `json:"vsize"`
	Coinbase      bool     `json:"coinbase"`
	BlockHash     string   `json:"blockHash,omitempty"`
	BlockHeight   int64    `json:"blockHeight"`
	BlockTime     string   `json:"blockTime,omitempty"`
	BlockUnixTime int64    `json:"blockUnixTime,omitempty"`
	Value         int64    `json:"totalOutput"` // sum of outputs
	Fee           int64    `json:"fee"`
	Inputs        []Input  `json:"inputs"`
	Outputs       []Output `json:"outputs"`
	OpReturn      string   `json:"opReturn,omitempty"`     // hex payload of the first OP_RETURN
	StacksOpcode  string   `json:"stacksOpcode,omitempty"` // virtualchain opcode when OP_RETURN carries one
}

// Decode parses rawHex and resolves input values and block placement from summary.
// summary may be nil.
func Decode(rawHex string, summary *domain.Transaction) (*Decoded, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(rawHex))
	if err != nil {
		return nil, fmt.Errorf("%w: hex: %v", ErrMalformed, err)
	}

	var msg wire.MsgTx
	if err := msg.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	txid := msg.TxHash().String()
	if summary != nil && summary.TxID != "" && !strings.EqualFold(summary.TxID, txid) {
		return nil, fmt.Errorf("%w: raw transaction is %s, summary is %s", ErrMalformed, txid, summary.TxID)
	}

	stripped := msg.SerializeSizeStripped()
	total := msg.SerializeSize()
	d := &Decoded{
		TxID:     txid,
		Version:  msg.Version,
		LockTime: msg.LockTime,
		Size:     total,
		VSize:    (stripped*3 + total + 3) / 4,
		Coinbase: isCoinbase(&msg),
		Inputs:   make([]Input, 0, len(msg.TxIn)),
		Outputs:  make([]Output, 0, len(msg.TxOut)),
	}

	spent := make(map[string]domain.TxIO)
	if summary != nil {
		d.BlockHash = summary.BlockHash
		d.BlockHeight = summary.BlockHeight
		d.BlockTime = summary.BlockTime
		d.BlockUnixTime = summary.BlockUnixTime
		for _, in := range summary.Inputs {
			spent[outpointKey(in.PrevTxID, uint32(in.PrevIndex))] = in
		}
	}

	var (
		inputSum int64
		resolved = 0
	)
	for _, in := range msg.TxIn {
		input := Input{Sequence: in.Sequence}
		if !d.Coinbase {
			input.PrevTxID = in.PreviousOutPoint.Hash.String()
			input.PrevVout = in.PreviousOutPoint.Index
			if coin, ok := spent[outpointKey(input.PrevTxID, input.PrevVout)]; ok {
				input.Address = coin.Address
				input.Value = coin.Value
				inputSum += coin.Value
				resolved++
			}
		}
		d.Inputs = append(d.Inputs, input)
	}

	for i, out := range msg.TxOut {
		output := decodeOutput(i, out)
		d.Value += output.Value
		if output.Data != "" && d.OpReturn == "" {
			d.OpReturn = output.Data
			d.StacksOpcode = stacksOpcode(output.Data)
		}
		d.Outputs = append(d.Outputs, output)
	}

	switch {
	case d.Coinbase:
		d.Fee = 0
	case summary != nil && summary.Fee > 0:
		d.Fee = summary.Fee
	case resolved == len(msg.TxIn) && inputSum >= d.Value:
		d.Fee = inputSum - d.Value
	}
	return d, nil
}

func decodeOutput(index int, out *wire.TxOut) Output {
	o := Output{
		Index:  index,
		Value:  out.Value,
		Script: hex.EncodeToString(out.PkScript),
	}

	class, addrs, _, err := txscript.ExtractPkScriptAddrs(out.PkScript, &chaincfg.MainNetParams)
	if err != nil {
		o.ScriptType = txscript.NonStandardTy.String()
		return o
	}
	o.ScriptType = class.String()
	if len(addrs) == 1 {
		o.Address = addrs[0].EncodeAddress()
	}
	if class == txscript.NullDataTy {
		if pushes, err := txscript.PushedData(out.PkScript); err == nil {
			o.Data = hex.EncodeToString(bytes.Join(pushes, nil))
		}
	}
	return o
}

// stacksOpcode returns the operation byte following the "id" magic, if present.
func stacksOpcode(dataHex string) string {
	data, err := hex.DecodeString(dataHex)
	if err != nil || len(data) < len(stacksMagic)+1 || !bytes.HasPrefix(data, stacksMagic) {
		return ""
	}
	return string(data[len(stacksMagic)])
}

func isCoinbase(msg *wire.MsgTx) bool {
	if len(msg.TxIn) != 1 {
		return false
	}
	prev := msg.TxIn[0].PreviousOutPoint
	return prev.Index == wire.MaxPrevOutIndex && prev.Hash == (wire.OutPoint{}).Hash
}

func outpointKey(txid string, index uint32) string {
	return fmt.Sprintf("%s:%d", strings.ToLower(txid), index)
}
