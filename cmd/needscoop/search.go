package main

import (
	"fmt"
	"os"
	osignal "os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/needscoop/needscoop/analysis/embedding"
	"github.com/needscoop/needscoop/plugin/ai"
	"github.com/needscoop/needscoop/store"
)

func newSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find posts semantically similar to a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			cfg := ai.NewEmbeddingConfigFromProfile(p)
			pipeline := embedding.NewPipeline(func() (ai.EmbeddingService, error) {
				return ai.NewEmbeddingService(cfg)
			})
			vector, err := pipeline.Generate(ctx, args[0])
			if err != nil {
				return err
			}
			results, err := st.VectorSearch(ctx, &store.VectorSearchOptions{
				Vector: vector,
				Model:  cfg.Model,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "no results")
				return nil
			}
			for _, result := range results {
				fmt.Fprintf(out, "%.3f  [%s] %s\n", result.Score, result.Post.Source, truncate(result.Post.Text, 100))
				fmt.Fprintf(out, "       %s\n", result.Post.URI)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of results")
	return cmd
}
