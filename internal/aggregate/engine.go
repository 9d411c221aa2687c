// Package aggregate implements a keyed cache-aside engine with single-flight
// computation and lazy TTL expiry.
package aggregate

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"time"

	"golang.org/x/sync/singleflight"

	"stacks-explorer-api/internal/observability"
)

// Forever is the TTL of values that never expire during the process lifetime.
const Forever time.Duration = math.MaxInt64

// Spec configures one aggregator. A Spec is a value; aggregators are not types.
type Spec[A, V any] struct {
	// Name labels logs and metrics.
	Name string

	// Key derives the cache key. Equal keys must mean equal results.
	Key func(A) string

	// TTL returns how long a computed value stays fresh. Forever never expires;
	// zero or negative means the value is never stored. A nil TTL means Forever.
	TTL func(A) time.Duration

	// Setter computes the value on a miss.
	Setter func(ctx context.Context, args A) (V, error)

	// Verbose enables start/finish logging for expensive computations.
	Verbose func(A) bool
}

// Options configures an Engine.
type Options struct {
	Store  Store            // default: MemoryStore
	Clock  func() time.Time // default: time.Now
	Logger *log.Logger      // default: discard
}

// Engine serves Spec values from a Store and guarantees at most one setter in
// flight per key.
type Engine struct {
	store  Store
	flight singleflight.Group
	now    func() time.Time
	logger *log.Logger
}

// New creates an Engine.
func New(opts Options) *Engine {
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &Engine{
		store:  opts.Store,
		now:    opts.Clock,
		logger: opts.Logger,
	}
}

// Fetch returns the fresh cached value for spec.Key(args), or computes it.
// Concurrent callers with the same key share one setter invocation and its result.
// The setter runs detached from ctx: a caller whose ctx ends stops waiting, but the
// computation completes for the others and is cached on success.
func Fetch[A, V any](ctx context.Context, e *Engine, spec *Spec[A, V], args A) (V, error) {
	var zero V
	key := spec.Key(args)

	entry, found := e.store.Get(key)
	if found && entry.Fresh(e.now()) {
		if v, ok := entry.Value.(V); ok {
			observability.RecordCacheHit(spec.Name)
			return v, nil
		}
	}
	observability.RecordCacheMiss(spec.Name, found)

	detached := context.WithoutCancel(ctx)
	ch := e.flight.DoChan(key, func() (any, error) {
		// A flight for key may have finished between the lookup above and DoChan.
		if entry, ok := e.store.Get(key); ok && entry.Fresh(e.now()) {
			return entry.Value, nil
		}
		return compute(detached, e, spec, key, args)
	})

	select {
	case res := <-ch:
		if res.Shared {
			observability.RecordSharedWait(spec.Name)
		}
		if res.Err != nil {
			return zero, res.Err
		}
		if res.Val == nil {
			return zero, nil
		}
		v, ok := res.Val.(V)
		if !ok {
			return zero, &ComputeError{Key: key, Err: fmt.Errorf("cached value is %T, not %T", res.Val, zero)}
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func compute[A, V any](ctx context.Context, e *Engine, spec *Spec[A, V], key string, args A) (value any, err error) {
	verbose := spec.Verbose != nil && spec.Verbose(args)
	start := time.Now()
	if verbose {
		e.logger.Printf("%s: computing %s", spec.Name, key)
	}

	defer func() {
		if r := recover(); r != nil {
			err = &ComputeError{Key: key, Err: fmt.Errorf("setter panic: %v", r)}
		}
		elapsed := time.Since(start)
		observability.RecordComputation(spec.Name, elapsed.Seconds(), err)
		if verbose {
			e.logger.Printf("%s: computed %s in %s (err=%v)", spec.Name, key, elapsed, err)
		}
	}()

	v, err := spec.Setter(ctx, args)
	if err != nil {
		return nil, &ComputeError{Key: key, Err: err}
	}

	ttl := Forever
	if spec.TTL != nil {
		ttl = spec.TTL(args)
	}
	if ttl > 0 {
		e.store.Set(&Entry{Key: key, Value: v, ComputedAt: e.now(), TTL: ttl})
		observability.UpdateCacheEntries(e.store.Len())
	}
	return v, nil
}

// Invalidate drops the entry for key. A computation already in flight for key is
// not interrupted and stores its result when it finishes.
func (e *Engine) Invalidate(key string) {
	if _, ok := e.store.Get(key); !ok {
		return
	}
	e.store.Delete(key)
	observability.RecordInvalidation()
	observability.UpdateCacheEntries(e.store.Len())
}

// Peek returns the cached entry for key without computing or checking freshness.
func (e *Engine) Peek(key string) (*Entry, bool) {
	return e.store.Get(key)
}

// Len returns the number of stored entries, fresh or stale.
func (e *Engine) Len() int {
	return e.store.Len()
}
