package index

import (
	"context"
	"time"
)

// Searcher is the read side of the index.
type Searcher interface {
	Search(ctx context.Context, query string, filter *Filter, topK int) ([]Result, error)
}

// TimedSearcher bounds every Search call with a fixed deadline so a
// hung embedding backend cannot stall callers that pass an unbounded
// context. A non-positive timeout disables the bound.
type TimedSearcher struct {
	inner   Searcher
	timeout time.Duration
}

// NewTimedSearcher wraps a searcher with a per-call timeout.
func NewTimedSearcher(inner Searcher, timeout time.Duration) *TimedSearcher {
	return &TimedSearcher{inner: inner, timeout: timeout}
}

func (t *TimedSearcher) Search(ctx context.Context, query string, filter *Filter, topK int) ([]Result, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return t.inner.Search(ctx, query, filter, topK)
}
