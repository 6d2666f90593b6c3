package main

import (
	"fmt"
	"os"
	osignal "os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/needscoop/needscoop/plugin/ai"
	"github.com/needscoop/needscoop/store"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print collection and analysis statistics",
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

			total, err := st.CountPosts(ctx, &store.FindPost{})
			if err != nil {
				return err
			}
			byType, err := st.CountPostsBySignalType(ctx)
			if err != nil {
				return err
			}
			cfg := ai.NewEmbeddingConfigFromProfile(p)
			embeddings, err := st.ListPostEmbeddings(ctx, &store.FindPostEmbedding{Model: &cfg.Model})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "posts: %d\n", total)
			for _, source := range []string{store.SourceBluesky, store.SourceReddit} {
				n, err := st.CountPosts(ctx, &store.FindPost{Source: &source})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  %s: %d\n", source, n)
			}
			if len(byType) > 0 {
				names := make([]string, 0, len(byType))
				for name := range byType {
					names = append(names, name)
				}
				sort.Strings(names)
				fmt.Fprintln(out, "signal types:")
				for _, name := range names {
					fmt.Fprintf(out, "  %s: %d\n", name, byType[name])
				}
			}
			fmt.Fprintf(out, "embedded with %s: %d\n", cfg.Model, len(embeddings))
			return nil
		},
	}
}
