// Package fanout runs independent upstream calls concurrently and merges their
// outcomes under required, optional and first-success policies.
package fanout

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"stacks-explorer-api/internal/observability"
)

// Group fans out to required and optional sources. A required failure cancels
// the group context and is returned by Wait; an optional failure is logged and
// recorded as degraded.
type Group struct {
	eg     *errgroup.Group
	ctx    context.Context
	logger *log.Logger
	label  string

	mu       sync.Mutex
	degraded []string
}

// NewGroup creates a Group. label prefixes log lines, usually the cache key.
func NewGroup(ctx context.Context, logger *log.Logger, label string) *Group {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	eg, gctx := errgroup.WithContext(ctx)
	return &Group{eg: eg, ctx: gctx, logger: logger, label: label}
}

// Required runs fn; its error fails the whole group.
func (g *Group) Required(source string, fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		if err := fn(g.ctx); err != nil {
			return fmt.Errorf("%s: %w", source, err)
		}
		return nil
	})
}

// Optional runs fn; its error is logged and swallowed. fn must leave its output
// untouched on failure so the merged field stays absent.
func (g *Group) Optional(source string, fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		if err := fn(g.ctx); err != nil {
			g.logger.Printf("%s: optional source %s failed: %v", g.label, source, err)
			observability.RecordDegraded(source)
			g.mu.Lock()
			g.degraded = append(g.degraded, source)
			g.mu.Unlock()
		}
		return nil
	})
}

// Wait blocks until every source returned and reports the first required failure.
func (g *Group) Wait() error {
	return g.eg.Wait()
}

// Degraded lists optional sources that failed. Valid after Wait.
func (g *Group) Degraded() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.degraded...)
}
