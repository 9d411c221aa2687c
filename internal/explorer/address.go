package explorer

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"stacks-explorer-api/internal/aggregate"
	"stacks-explorer-api/internal/c32"
	"stacks-explorer-api/internal/domain"
	"stacks-explorer-api/internal/fanout"
	"stacks-explorer-api/internal/storage"
	"stacks-explorer-api/internal/units"
	"stacks-explorer-api/internal/vesting"
)

// hardForkBlock is the block at which the hard fork credited token grants.
const hardForkBlock = 373601

// BTCAddress is one page of a bitcoin address's transactions with its balance.
type BTCAddress struct {
	Address       string `json:"address"`
	StacksAddress string `json:"stacksAddress,omitempty"`
	domain.AddressBalance
	BalanceBTC       string              `json:"balanceBTC"`
	TotalReceivedBTC string              `json:"totalReceivedBTC"`
	TotalSentBTC     string              `json:"totalSentBTC"`
	Transactions     []*domain.AddressTx `json:"transactions"`
	Names            []string            `json:"names,omitempty"`
	Page             int                 `json:"page"`
}

// StacksAddress is a Stacks account: vesting progress, balance and one page of
// token transfer history.
type StacksAddress struct {
	Address       string `json:"address"`
	BTCAddress    string `json:"btcAddress"`
	Balance       int64  `json:"balance"` // microstacks
	BalanceStacks string `json:"balanceStacks"`
	vesting.Unlock
	TokensGranted            int64           `json:"tokensGranted"`
	CumulativeVestedAtBlocks map[int64]int64 `json:"cumulativeVestedAtBlocks"`
	History                  []*HistoryItem  `json:"history"`
	Page                     int             `json:"page"`
}

// Token transfer directions seen from an address.
const (
	OperationSent     = "SENT"
	OperationReceived = "RECEIVED"
)

// HistoryItem is a token transfer seen from one address.
type HistoryItem struct {
	TxID string `json:"txid"`
	*TokenTransfer
	Operation     string `json:"operation"`
	BlockTime     string `json:"blockTime,omitempty"`
	BlockUnixTime int64  `json:"blockUnixTime,omitempty"`
}

func (x *Explorer) newBTCAddressSpec() *aggregate.Spec[PageArgs, *BTCAddress] {
	return &aggregate.Spec[PageArgs, *BTCAddress]{
		Name:   "btc_address",
		Key:    func(a PageArgs) string { return fmt.Sprintf("BTCAddress:%s:%d", a.ID, a.Page) },
		TTL:    fixedTTL[PageArgs](2 * time.Minute),
		Setter: x.computeBTCAddress,
	}
}

// BTCAddress returns one page of a bitcoin address.
func (x *Explorer) BTCAddress(ctx context.Context, address string, page int) (*BTCAddress, error) {
	return aggregate.Fetch(ctx, x.engine, x.btcAddressSpec, PageArgs{ID: address, Page: clampPage(page)})
}

func (x *Explorer) computeBTCAddress(ctx context.Context, args PageArgs) (*BTCAddress, error) {
	if args.ID == "" {
		return nil, fmt.Errorf("%w: empty address", storage.ErrInvalidInput)
	}

	var (
		txs     []*domain.AddressTx
		summary *domain.AddressCoinSummary
		tip     int64
		names   []string
	)

	g := fanout.NewGroup(ctx, x.logger, fmt.Sprintf("BTCAddress:%s:%d", args.ID, args.Page))
	g.Required("chain.address_transactions", func(ctx context.Context) error {
		page, err := x.src.Chain.AddressTransactions(ctx, args.ID, args.Page, addressTxPageSize)
		if err != nil {
			return upstream(err)
		}
		txs = page
		return nil
	})
	g.Required("chain.address_summary", func(ctx context.Context) error {
		s, err := x.src.Chain.AddressCoinSummary(ctx, args.ID)
		if err != nil {
			return upstream(err)
		}
		summary = s
		return nil
	})
	g.Optional("chain.tip", func(ctx context.Context) error {
		h, err := x.src.Chain.LatestBlockHeight(ctx)
		if err != nil {
			return err
		}
		tip = h
		return nil
	})
	g.Optional("core.address", func(ctx context.Context) error {
		info, err := x.src.Core.Address(ctx, args.ID)
		if err != nil {
			return err
		}
		names = info.Names
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if txs == nil {
		txs = []*domain.AddressTx{}
	}
	if tip > 0 {
		for _, tx := range txs {
			tx.Confirmations = domain.Confirmations(tip, tx.BlockHeight)
		}
	}

	balance := balanceFromSummary(summary)
	result := &BTCAddress{
		Address:          args.ID,
		AddressBalance:   balance,
		BalanceBTC:       units.BTC(balance.Balance),
		TotalReceivedBTC: units.BTC(balance.TotalReceived),
		TotalSentBTC:     units.BTC(balance.TotalSent),
		Transactions:     txs,
		Names:            names,
		Page:             args.Page,
	}
	if stx, err := c32.FromBase58(args.ID); err == nil {
		result.StacksAddress = stx
	}
	return result, nil
}

// balanceFromSummary folds grouped coin totals into a balance. Only unspent coins
// count toward the balance; conflicting and error coins count nowhere.
func balanceFromSummary(s *domain.AddressCoinSummary) domain.AddressBalance {
	var b domain.AddressBalance
	if s == nil {
		return b
	}
	for _, t := range s.Totals {
		switch t.Status {
		case domain.CoinUnspent:
			b.Balance += t.Value
			b.TotalReceived += t.Value
		case domain.CoinSpent:
			b.TotalSent += t.Value
			b.TotalReceived += t.Value
		case domain.CoinPending:
			b.TotalReceived += t.Value
		}
	}
	b.TotalTransactions = s.UniqueTxCount
	return b
}

func (x *Explorer) newStacksAddressSpec() *aggregate.Spec[PageArgs, *StacksAddress] {
	return &aggregate.Spec[PageArgs, *StacksAddress]{
		Name:   "stacks_address",
		Key:    func(a PageArgs) string { return fmt.Sprintf("StacksAddress:%s:%d", a.ID, a.Page) },
		TTL:    fixedTTL[PageArgs](5 * time.Minute),
		Setter: x.computeStacksAddress,
	}
}

// StacksAddress returns a Stacks account with one page of its transfer history.
func (x *Explorer) StacksAddress(ctx context.Context, address string, page int) (*StacksAddress, error) {
	return aggregate.Fetch(ctx, x.engine, x.stacksAddressSpec, PageArgs{ID: address, Page: clampPage(page)})
}

func (x *Explorer) computeStacksAddress(ctx context.Context, args PageArgs) (*StacksAddress, error) {
	btcAddress, err := c32.ToBase58(args.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: stacks address %q: %w", storage.ErrInvalidInput, args.ID, err)
	}

	var (
		rows    []*domain.VestingRow
		balance int64
		tip     int64
		history []*domain.HistoryRecord
		granted int64
	)

	label := fmt.Sprintf("StacksAddress:%s:%d", args.ID, args.Page)
	g := fanout.NewGroup(ctx, x.logger, label)
	g.Required("accounts.vesting", func(ctx context.Context) error {
		r, err := x.src.Accounts.Vesting(ctx, btcAddress)
		if err != nil {
			return upstream(err)
		}
		rows = r
		return nil
	})
	g.Required("core.balance", func(ctx context.Context) error {
		b, err := x.src.Core.StacksBalance(ctx, btcAddress)
		if err != nil {
			return upstream(err)
		}
		balance = b
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
	g.Required("history.address", func(ctx context.Context) error {
		h, err := x.src.History.ByAddress(ctx, btcAddress, args.Page, stacksHistoryPageSize)
		if err != nil {
			return upstream(err)
		}
		history = h
		return nil
	})
	g.Optional("accounts.hard_fork_credit", func(ctx context.Context) error {
		c, err := x.src.Accounts.CreditAtBlock(ctx, btcAddress, hardForkBlock)
		if err != nil {
			return err
		}
		granted = c
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	grants := make([]vesting.Grant, 0, len(rows))
	for _, r := range rows {
		grants = append(grants, vesting.Grant{Block: r.BlockID, Amount: r.VestingValue})
	}
	sort.SliceStable(grants, func(i, j int) bool { return grants[i].Block < grants[j].Block })

	cumulative := make(map[int64]int64, len(grants))
	var sum int64
	for _, gr := range grants {
		sum += gr.Amount
		cumulative[vesting.BlockToTime(gr.Block)] = sum
	}

	items := x.historyItems(ctx, label, btcAddress, history)

	return &StacksAddress{
		Address:                  args.ID,
		BTCAddress:               btcAddress,
		Balance:                  balance,
		BalanceStacks:            units.Stacks(balance),
		Unlock:                   vesting.UnlockAt(grants, tip),
		TokensGranted:            granted,
		CumulativeVestedAtBlocks: cumulative,
		History:                  items,
		Page:                     args.Page,
	}, nil
}

// historyItems turns token transfer records into history items and annotates them
// with block times. Block times are optional; other records are skipped.
func (x *Explorer) historyItems(ctx context.Context, label, btcAddress string, records []*domain.HistoryRecord) []*HistoryItem {
	items := make([]*HistoryItem, 0, len(records))
	heights := make([]int64, 0, len(records))
	for _, r := range records {
		if !r.IsTokenTransfer() {
			continue
		}
		transfer, err := newTokenTransfer(r)
		if err != nil {
			x.logger.Printf("%s: skip history %s: %v", label, r.TxID, err)
			continue
		}
		op := OperationReceived
		if transfer.Sender == btcAddress {
			op = OperationSent
		}
		items = append(items, &HistoryItem{TxID: r.TxID, TokenTransfer: transfer, Operation: op})
		heights = append(heights, r.BlockID)
	}
	if len(items) == 0 {
		return items
	}

	var times map[int64]int64
	g := fanout.NewGroup(ctx, x.logger, label)
	g.Optional("chain.block_times", func(ctx context.Context) error {
		t, err := x.src.Chain.BlockTimes(ctx, heights)
		if err != nil {
			return err
		}
		times = t
		return nil
	})
	_ = g.Wait()

	for _, item := range items {
		if t, ok := times[item.BlockID]; ok {
			item.BlockUnixTime = t
			item.BlockTime = isoTime(t)
		}
	}
	return items
}

// parseHeight reports whether s is a non-negative block height.
func parseHeight(s string) (int64, bool) {
	h, err := strconv.ParseInt(s, 10, 64)
	if err != nil || h < 0 {
		return 0, false
	}
	return h, true
}
