// Package collector ingests posts from social sources. Collectors classify
// text with a signal matcher while collecting and drop posts that carry no
// signal, so only analyzable material reaches the store.
package collector

import (
	"context"
	"time"

	"github.com/needscoop/needscoop/store"
)

// HandleFunc receives each collected post. Returning an error stops the
// collection run.
type HandleFunc func(ctx context.Context, post *store.Post) error

// Options control one collection run.
type Options struct {
	// Limit stops the run after this many posts. Zero means unbounded.
	Limit int
	// Duration stops the run after this long. Zero means unbounded.
	Duration time.Duration

	// Reddit listing options.
	Subreddits []string
	Sort       string // hot, new, top, rising
	MinScore   int
}

// Collector streams posts from one source.
type Collector interface {
	// Source returns the source identifier posts are stored under.
	Source() string
	// Collect runs until the limit or duration is reached, the handler
	// fails, or ctx is done. Context cancellation is a normal stop, not an
	// error.
	Collect(ctx context.Context, opts Options, handle HandleFunc) error
}

func withDuration(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}
