package explorer

import (
	"context"
	"time"

	"stacks-explorer-api/internal/aggregate"
	"stacks-explorer-api/internal/domain"
	"stacks-explorer-api/internal/fanout"
	"stacks-explorer-api/internal/node"
)

const homeKey = "HomeInfo"

// todayPages is how many pages of today's blocks a new tip invalidates.
const todayPages = 2

// HomeInfo is the landing page summary. Every list but RecentBlocks is optional.
type HomeInfo struct {
	TipHeight        int64                `json:"tipHeight"`
	RecentBlocks     []*domain.Block      `json:"recentBlocks"`
	RecentTransfers  []*HistoryItem       `json:"recentTransfers,omitempty"`
	RecentNames      []*domain.NameRecord `json:"recentNames,omitempty"`
	RecentSubdomains []*domain.Subdomain  `json:"recentSubdomains,omitempty"`
	NameCounts       *NameCounts          `json:"nameCounts,omitempty"`
	TotalSupply      *TotalSupply         `json:"totalSupply,omitempty"`
}

func (x *Explorer) newHomeSpec() *aggregate.Spec[struct{}, *HomeInfo] {
	return &aggregate.Spec[struct{}, *HomeInfo]{
		Name:   "home",
		Key:    func(struct{}) string { return homeKey },
		TTL:    fixedTTL[struct{}](time.Minute),
		Setter: x.computeHome,
	}
}

// HomeInfo returns the landing page summary.
func (x *Explorer) HomeInfo(ctx context.Context) (*HomeInfo, error) {
	return aggregate.Fetch(ctx, x.engine, x.homeSpec, struct{}{})
}

func (x *Explorer) computeHome(ctx context.Context, _ struct{}) (*HomeInfo, error) {
	var home HomeInfo

	g := fanout.NewGroup(ctx, x.logger, homeKey)
	g.Required("chain.recent_blocks", func(ctx context.Context) error {
		blocks, err := x.src.Chain.RecentBlocks(ctx, homeListSize)
		if err != nil {
			return upstream(err)
		}
		home.RecentBlocks = blocks
		return nil
	})
	g.Optional("history.recent_transfers", func(ctx context.Context) error {
		records, err := x.src.History.RecentTokenTransfers(ctx, 0, homeListSize)
		if err != nil {
			return err
		}
		items := make([]*HistoryItem, 0, len(records))
		for _, r := range records {
			t, err := newTokenTransfer(r)
			if err != nil {
				return err
			}
			items = append(items, &HistoryItem{TxID: r.TxID, TokenTransfer: t})
		}
		home.RecentTransfers = items
		return nil
	})
	g.Optional("names.recent", func(ctx context.Context) error {
		names, err := x.src.Names.RecentNames(ctx, 0, homeListSize)
		if err != nil {
			return err
		}
		home.RecentNames = names
		return nil
	})
	g.Optional("names.recent_subdomains", func(ctx context.Context) error {
		subs, err := x.src.Names.RecentSubdomains(ctx, 0, homeListSize)
		if err != nil {
			return err
		}
		home.RecentSubdomains = subs
		return nil
	})
	g.Optional("name_counts", func(ctx context.Context) error {
		counts, err := x.NameCounts(ctx)
		if err != nil {
			return err
		}
		home.NameCounts = counts
		return nil
	})
	g.Optional("total_supply", func(ctx context.Context) error {
		supply, err := x.TotalSupply(ctx)
		if err != nil {
			return err
		}
		home.TotalSupply = supply
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if home.RecentBlocks == nil {
		home.RecentBlocks = []*domain.Block{}
	}
	if len(home.RecentBlocks) > 0 {
		home.TipHeight = home.RecentBlocks[0].Height
	}
	return &home, nil
}

// OnNewTip drops the entries that summarize the chain tip: the home summary and
// the first pages of today's blocks. Computations already running are not
// interrupted.
func (x *Explorer) OnNewTip(tip node.Tip) {
	x.engine.Invalidate(homeKey)
	for page := 0; page < todayPages; page++ {
		x.engine.Invalidate(x.blocksKey(BlocksArgs{Page: page}))
	}
	x.logger.Printf("new tip %d (%s): invalidated tip-dependent entries", tip.Height, tip.Hash)
}
