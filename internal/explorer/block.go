package explorer

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"stacks-explorer-api/internal/aggregate"
	"stacks-explorer-api/internal/domain"
	"stacks-explorer-api/internal/fanout"
	"stacks-explorer-api/internal/storage"
	"stacks-explorer-api/internal/units"
)

const dateLayout = "2006-01-02"

// Block is a block with one page of its transactions.
type Block struct {
	*domain.Block
	Confirmations int64               `json:"confirmations"`
	RewardBTC     string              `json:"rewardBTC"`
	BlockTime     string              `json:"blockTime"`
	Transactions  []*BlockTransaction `json:"transactions"`
	Page          int                 `json:"page"`
}

// BlockTransaction is a block transaction from the chain index, with its decoded
// detail when that could be fetched.
type BlockTransaction struct {
	*domain.Transaction
	Detail *Transaction `json:"detail,omitempty"`
}

// BlocksArgs selects one page of the blocks mined on a UTC day. An empty Date
// means today. Batch marks bulk prefetches, which are not logged per page.
type BlocksArgs struct {
	Date  string
	Page  int
	Batch bool
}

// BlocksPage is one page of a day's blocks.
type BlocksPage struct {
	Date       string        `json:"date"`
	Page       int           `json:"page"`
	TotalCount int64         `json:"totalCount"`
	Blocks     []*BlockEntry `json:"blocks"`
}

// BlockEntry is a day's block. Detail is absent when the block aggregate failed.
type BlockEntry struct {
	Detail *Block        `json:"detail,omitempty"`
	Block  *domain.Block `json:"_block"`
}

// isBlockHash reports whether s is a 64 character hex hash.
func isBlockHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func blockKey(a PageArgs) string {
	return fmt.Sprintf("Block:%s:%d", a.ID, a.Page)
}

func (x *Explorer) newBlockSpec() *aggregate.Spec[PageArgs, *Block] {
	return &aggregate.Spec[PageArgs, *Block]{
		Name: "block",
		Key:  blockKey,
		// A hash names one block for good and only its confirmations age; a height follows reorgs.
		TTL: func(a PageArgs) time.Duration {
			if isBlockHash(a.ID) {
				return time.Hour
			}
			return 10 * time.Minute
		},
		Setter: x.computeBlock,
	}
}

// Block returns the block with the given hash or height and one page of its transactions.
func (x *Explorer) Block(ctx context.Context, hashOrHeight string, page int) (*Block, error) {
	return aggregate.Fetch(ctx, x.engine, x.blockSpec, PageArgs{ID: NormalizeHash(hashOrHeight), Page: clampPage(page)})
}

func (x *Explorer) computeBlock(ctx context.Context, args PageArgs) (*Block, error) {
	label := blockKey(args)

	var block *domain.Block
	switch {
	case isBlockHash(args.ID):
		b, err := x.src.Chain.BlockByHash(ctx, args.ID)
		if err != nil {
			return nil, fmt.Errorf("chain.block: %w", upstream(err))
		}
		block = b
	default:
		height, ok := parseHeight(args.ID)
		if !ok {
			return nil, fmt.Errorf("%w: %q is neither a block hash nor a height", storage.ErrInvalidInput, args.ID)
		}
		b, err := x.src.Chain.BlockByHeight(ctx, height)
		if err != nil {
			return nil, fmt.Errorf("chain.block: %w", upstream(err))
		}
		block = b
	}

	var (
		txs []*domain.Transaction
		tip int64
	)
	g := fanout.NewGroup(ctx, x.logger, label)
	g.Required("chain.block_transactions", func(ctx context.Context) error {
		t, err := x.src.Chain.BlockTransactions(ctx, block.Hash, args.Page, blockTxPageSize)
		if err != nil {
			return upstream(err)
		}
		txs = t
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
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// A failing transaction keeps its chain index record instead of failing the block.
	entries := fanout.Map(ctx, txs, x.concurrency, func(ctx context.Context, tx *domain.Transaction) *BlockTransaction {
		tx.Confirmations = domain.Confirmations(tip, tx.BlockHeight)
		detail, err := x.Transaction(ctx, tx.TxID)
		if err != nil {
			x.logger.Printf("%s: transaction %s degraded to index record: %v", label, tx.TxID, err)
			return &BlockTransaction{Transaction: tx}
		}
		return &BlockTransaction{Transaction: tx, Detail: detail}
	})

	return &Block{
		Block:         block,
		Confirmations: domain.Confirmations(tip, block.Height),
		RewardBTC:     units.BTC(block.Reward),
		BlockTime:     isoTime(block.Time),
		Transactions:  entries,
		Page:          args.Page,
	}, nil
}

func (x *Explorer) today() string {
	return x.now().UTC().Format(dateLayout)
}

func (x *Explorer) blocksKey(a BlocksArgs) string {
	date := a.Date
	if date == "" {
		date = x.today()
	}
	return fmt.Sprintf("Blocks:%s:%d", date, a.Page)
}

func (x *Explorer) newBlocksSpec() *aggregate.Spec[BlocksArgs, *BlocksPage] {
	return &aggregate.Spec[BlocksArgs, *BlocksPage]{
		Name: "blocks",
		Key:  x.blocksKey,
		// Past days are complete; today still grows.
		TTL: func(a BlocksArgs) time.Duration {
			if a.Date == "" || a.Date == x.today() {
				return 10 * time.Minute
			}
			return aggregate.Forever
		},
		Setter:  x.computeBlocks,
		Verbose: func(a BlocksArgs) bool { return !a.Batch },
	}
}

// Blocks returns one page of the blocks mined on date (YYYY-MM-DD, empty for today).
func (x *Explorer) Blocks(ctx context.Context, date string, page int) (*BlocksPage, error) {
	return aggregate.Fetch(ctx, x.engine, x.blocksSpec, BlocksArgs{Date: date, Page: clampPage(page)})
}

// Prefetch warms the first page of blocks for each of the last days days, today included.
// Failures are logged and skipped.
func (x *Explorer) Prefetch(ctx context.Context, days int) {
	now := x.now().UTC()
	for i := 0; i < days; i++ {
		if ctx.Err() != nil {
			return
		}
		date := now.AddDate(0, 0, -i).Format(dateLayout)
		if i == 0 {
			date = ""
		}
		if _, err := aggregate.Fetch(ctx, x.engine, x.blocksSpec, BlocksArgs{Date: date, Batch: true}); err != nil {
			x.logger.Printf("prefetch blocks %s: %v", date, err)
		}
	}
}

func (x *Explorer) computeBlocks(ctx context.Context, args BlocksArgs) (*BlocksPage, error) {
	date := args.Date
	if date == "" {
		date = x.today()
	}
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q: %w", storage.ErrInvalidInput, date, err)
	}

	page, err := x.src.Chain.BlocksByDate(ctx, day, args.Page, blocksPerDatePage)
	if err != nil {
		return nil, fmt.Errorf("chain.blocks_by_date: %w", upstream(err))
	}

	label := x.blocksKey(args)
	entries := fanout.Map(ctx, page.Blocks, x.concurrency, func(ctx context.Context, b *domain.Block) *BlockEntry {
		detail, err := x.Block(ctx, b.Hash, 0)
		if err != nil {
			x.logger.Printf("%s: block %s degraded to index record: %v", label, b.Hash, err)
			return &BlockEntry{Block: b}
		}
		return &BlockEntry{Detail: detail, Block: b}
	})

	return &BlocksPage{
		Date:       date,
		Page:       args.Page,
		TotalCount: page.TotalCount,
		Blocks:     entries,
	}, nil
}
