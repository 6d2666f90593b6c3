package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	osignal "os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/needscoop/needscoop/analyzer"
	"github.com/needscoop/needscoop/collector"
	"github.com/needscoop/needscoop/internal/scheduler"
	"github.com/needscoop/needscoop/server"
)

func newDaemonCmd() *cobra.Command {
	var (
		collectCron  string
		analyzeEvery time.Duration
		subreddits   []string
		minScore     int
	)
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run collection, analysis and the API server together",
		Long: `Daemon mode streams bluesky posts continuously, polls reddit on a cron
schedule, re-runs embedding and clustering on a fixed interval, and serves
the JSON API.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			p, err := initProfile()
			if err != nil {
				return err
			}
			st, err := newStore(ctx, p)
			if err != nil {
				return err
			}
			match, err := newMatcher(p)
			if err != nil {
				_ = st.Close()
				return err
			}

			s, err := server.NewServer(ctx, p, st)
			if err != nil {
				_ = st.Close()
				return errors.Wrap(err, "failed to create server")
			}

			reddit := collector.NewRedditCollector(p, match)
			bluesky := collector.NewBlueskyCollector(p.JetstreamURL, match)
			handle := storeHandler(st)

			sched := scheduler.New(0)
			err = sched.AddJob("collect-reddit", collectCron, func(ctx context.Context) error {
				return reddit.Collect(ctx, collector.Options{
					Subreddits: subreddits,
					MinScore:   minScore,
				}, handle)
			})
			if err != nil {
				return err
			}
			sched.Start()

			runner := analyzer.NewRunner(analyzer.New(st, p), analyzeEvery)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				runner.Run(gctx)
				return nil
			})
			g.Go(func() error {
				for {
					err := bluesky.Collect(gctx, collector.Options{MinScore: minScore}, handle)
					if gctx.Err() != nil {
						return nil
					}
					slog.Error("bluesky stream dropped, reconnecting", "error", err)
					select {
					case <-gctx.Done():
						return nil
					case <-time.After(5 * time.Second):
					}
				}
			})

			c := make(chan os.Signal, 1)
			osignal.Notify(c, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-c
				<-sched.Stop().Done()
				s.Shutdown(ctx)
				cancel()
			}()

			printGreetings(p)
			if err := s.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			<-ctx.Done()
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&collectCron, "collect-cron", "@every 1h", "cron schedule for reddit collection")
	cmd.Flags().DurationVar(&analyzeEvery, "analyze-every", analyzer.DefaultInterval, "interval between analysis passes")
	cmd.Flags().StringSliceVar(&subreddits, "subreddit", nil, "subreddits to poll (default: a founder-focused set)")
	cmd.Flags().IntVar(&minScore, "min-score", 1, "minimum reddit score")
	return cmd
}
