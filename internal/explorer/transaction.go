package explorer

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"stacks-explorer-api/internal/aggregate"
	"stacks-explorer-api/internal/btctx"
	"stacks-explorer-api/internal/c32"
	"stacks-explorer-api/internal/domain"
	"stacks-explorer-api/internal/fanout"
	"stacks-explorer-api/internal/storage"
	"stacks-explorer-api/internal/units"
)

// Transaction is a decoded bitcoin transaction, merged with the token transfer it
// carries when there is one.
type Transaction struct {
	*btctx.Decoded
	FeeBTC        string `json:"feeBTC"`
	Confirmations int64  `json:"confirmations"`
	*TokenTransfer
}

// TokenTransfer is a TOKEN_TRANSFER history record with derived fields.
type TokenTransfer struct {
	BlockID              int64           `json:"block_id"`
	Op                   string          `json:"op"`
	Opcode               string          `json:"opcode"`
	HistoryID            string          `json:"history_id"`
	HistoryData          json.RawMessage `json:"historyData"`
	VTxIndex             int64           `json:"vtxindex"`
	Sender               string          `json:"sender"`
	Recipient            string          `json:"recipient"`
	SenderSTX            string          `json:"senderSTX,omitempty"`
	RecipientSTX         string          `json:"recipientSTX,omitempty"`
	Memo                 *string         `json:"memo"`
	Value                int64           `json:"value"`
	ValueStacks          string          `json:"valueStacks"`
	ValueStacksFormatted string          `json:"valueStacksFormatted"`
}

// NormalizeHash trims and lowercases a transaction or block hash.
func NormalizeHash(hash string) string {
	return strings.ToLower(strings.TrimSpace(hash))
}

// newTokenTransfer derives the enriched transfer of a TOKEN_TRANSFER record.
func newTokenTransfer(r *domain.HistoryRecord) (*TokenTransfer, error) {
	data, err := r.TokenTransfer()
	if err != nil {
		return nil, err
	}
	value, err := data.Value()
	if err != nil {
		return nil, fmt.Errorf("token transfer %s: value %q: %w", r.TxID, data.TokenFee, err)
	}

	t := &TokenTransfer{
		BlockID:              r.BlockID,
		Op:                   r.Op,
		Opcode:               r.Opcode,
		HistoryID:            r.HistoryID,
		HistoryData:          r.HistoryData,
		VTxIndex:             r.VTxIndex,
		Sender:               data.Sender,
		Recipient:            data.Recipient,
		Value:                value,
		ValueStacks:          units.Stacks(value),
		ValueStacksFormatted: units.StacksFormatted(value),
	}
	// Unconvertible addresses leave the STX fields empty.
	if stx, err := c32.FromBase58(data.Sender); err == nil {
		t.SenderSTX = stx
	}
	if stx, err := c32.FromBase58(data.Recipient); err == nil {
		t.RecipientSTX = stx
	}
	if data.ScratchArea != "" {
		memo, err := hex.DecodeString(data.ScratchArea)
		if err != nil {
			return nil, fmt.Errorf("token transfer %s: scratch area: %w", r.TxID, err)
		}
		m := string(memo)
		t.Memo = &m
	}
	return t, nil
}

func (x *Explorer) transactionSpec() *aggregate.Spec[string, *Transaction] {
	return &aggregate.Spec[string, *Transaction]{
		Name:   "transaction",
		Key:    func(hash string) string { return "Transaction:" + NormalizeHash(hash) },
		TTL:    fixedTTL[string](10 * time.Minute),
		Setter: x.computeTransaction,
	}
}

// Transaction returns the decoded transaction with the given hash.
func (x *Explorer) Transaction(ctx context.Context, hash string) (*Transaction, error) {
	return aggregate.Fetch(ctx, x.engine, x.txSpec, NormalizeHash(hash))
}

func (x *Explorer) computeTransaction(ctx context.Context, hash string) (*Transaction, error) {
	hash = NormalizeHash(hash)
	if hash == "" {
		return nil, fmt.Errorf("%w: empty transaction hash", storage.ErrInvalidInput)
	}

	var (
		summary  *domain.Transaction
		raw      string
		tip      int64
		transfer *TokenTransfer
	)

	g := fanout.NewGroup(ctx, x.logger, "Transaction:"+hash)
	g.Required("chain.transaction", func(ctx context.Context) error {
		tx, err := x.src.Chain.Transaction(ctx, hash)
		if err != nil {
			return upstream(err)
		}
		summary = tx
		return nil
	})
	g.Required("core.rawtx", func(ctx context.Context) error {
		r, err := x.src.Core.RawTransaction(ctx, hash)
		if err != nil {
			return upstream(err)
		}
		raw = r
		return nil
	})
	g.Required("chain.tip", func(ctx context.Context) error {
		h, err := x.src.Chain.LatestBlockHeight(ctx)
		if err != nil {
			return upstream(err)
		}
		tip = h
		return nil
	})
	g.Optional("history.txid", func(ctx context.Context) error {
		record, err := x.src.History.ByTxID(ctx, hash)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !record.IsTokenTransfer() {
			return nil
		}
		t, err := newTokenTransfer(record)
		if err != nil {
			return err
		}
		transfer = t
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	decoded, err := x.decode(raw, summary)
	if err != nil {
		return nil, fmt.Errorf("%w: transaction %s: %w", ErrDecode, hash, err)
	}

	return &Transaction{
		Decoded:       decoded,
		FeeBTC:        units.BTC(decoded.Fee),
		Confirmations: domain.Confirmations(tip, summary.BlockHeight),
		TokenTransfer: transfer,
	}, nil
}
