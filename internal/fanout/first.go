package fanout

import "context"

// Candidate is one lookup raced by First. It reports ok=false for no match;
// an error also counts as no match.
type Candidate[T any] func(ctx context.Context) (value T, ok bool, err error)

// First runs every candidate concurrently and returns the first match to arrive,
// regardless of candidate order. It returns ok=false only after every candidate
// has reported no match. Losing candidates are not cancelled.
func First[T any](ctx context.Context, candidates ...Candidate[T]) (T, bool) {
	type outcome struct {
		value T
		ok    bool
	}
	var zero T

	// Buffered so losers never block after First has returned.
	results := make(chan outcome, len(candidates))
	for _, c := range candidates {
		go func() {
			v, ok, err := c(ctx)
			results <- outcome{value: v, ok: ok && err == nil}
		}()
	}

	for range candidates {
		if r := <-results; r.ok {
			return r.value, true
		}
	}
	return zero, false
}
