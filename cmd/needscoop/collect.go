package main

import (
	"context"
	"log/slog"
	"os"
	osignal "os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/needscoop/needscoop/analysis/signal"
	"github.com/needscoop/needscoop/collector"
	"github.com/needscoop/needscoop/internal/profile"
	"github.com/needscoop/needscoop/store"
)

func newCollectCmd() *cobra.Command {
	var (
		sources    []string
		limit      int
		duration   time.Duration
		subreddits []string
		sort       string
		minScore   int
	)
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect posts carrying need signals from the configured sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := osignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := initProfile()
			if err != nil {
				return err
			}
			st, err := newStore(ctx, p)
			if err != nil {
				return err
			}
			defer st.Close()

			match, err := newMatcher(p)
			if err != nil {
				return err
			}
			collectors, err := buildCollectors(p, match, sources)
			if err != nil {
				return err
			}

			opts := collector.Options{
				Limit:      limit,
				Duration:   duration,
				Subreddits: subreddits,
				Sort:       sort,
				MinScore:   minScore,
			}
			return runCollectors(ctx, st, collectors, opts)
		},
	}
	cmd.Flags().StringSliceVar(&sources, "source", []string{store.SourceBluesky, store.SourceReddit}, "sources to collect from (bluesky, reddit)")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many posts per source (0 = no limit)")
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long, e.g. 90s or 15m (0 = run until done)")
	cmd.Flags().StringSliceVar(&subreddits, "subreddit", nil, "subreddits to fetch (default: a founder-focused set)")
	cmd.Flags().StringVar(&sort, "sort", "hot", "reddit listing sort (hot, new, top, rising)")
	cmd.Flags().IntVar(&minScore, "min-score", 1, "minimum reddit score")
	return cmd
}

func buildCollectors(p *profile.Profile, match signal.MatchFunc, sources []string) ([]collector.Collector, error) {
	collectors := make([]collector.Collector, 0, len(sources))
	for _, source := range sources {
		switch source {
		case store.SourceBluesky:
			collectors = append(collectors, collector.NewBlueskyCollector(p.JetstreamURL, match))
		case store.SourceReddit:
			collectors = append(collectors, collector.NewRedditCollector(p, match))
		default:
			return nil, errors.Errorf("unknown source %q", source)
		}
	}
	return collectors, nil
}

// storeHandler persists each collected post.
func storeHandler(st *store.Store) collector.HandleFunc {
	return func(ctx context.Context, post *store.Post) error {
		_, err := st.UpsertPost(ctx, post)
		return err
	}
}

func runCollectors(ctx context.Context, st *store.Store, collectors []collector.Collector, opts collector.Options) error {
	var collected atomic.Int64
	handle := storeHandler(st)

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range collectors {
		c := c
		g.Go(func() error {
			err := c.Collect(ctx, opts, func(ctx context.Context, post *store.Post) error {
				if err := handle(ctx, post); err != nil {
					return errors.Wrapf(err, "failed to store %s post", c.Source())
				}
				collected.Add(1)
				return nil
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("collection finished", "posts", collected.Load())
	return nil
}
