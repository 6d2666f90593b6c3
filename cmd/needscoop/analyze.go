package main

import (
	"fmt"
	"os"
	osignal "os/signal"
	"sort"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/needscoop/needscoop/analyzer"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		embeddingsOnly bool
		clusterOnly    bool
		minClusterSize int
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Embed new posts and refresh the need clusters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if embeddingsOnly && clusterOnly {
				return errors.New("--embeddings-only and --cluster-only are mutually exclusive")
			}

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

			a := analyzer.New(st, p)
			out := cmd.OutOrStdout()

			if !clusterOnly {
				report, err := a.GenerateEmbeddings(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "embedded %d posts (%d failed)\n", report.Generated, report.Failed)
			}
			if embeddingsOnly {
				return nil
			}

			run, err := a.RunClustering(ctx, minClusterSize)
			if err != nil {
				return err
			}
			if run == nil {
				fmt.Fprintln(out, "not enough embedded posts to cluster yet")
				return nil
			}

			fmt.Fprintf(out, "run %s: %d clusters, %d noise posts out of %d\n",
				run.RunID, run.NumClusters, run.NumNoise, run.Posts)
			labels := make([]int, 0, len(run.Summaries))
			for label := range run.Summaries {
				labels = append(labels, label)
			}
			sort.Ints(labels)
			for _, label := range labels {
				summary := run.Summaries[label]
				fmt.Fprintf(out, "  cluster %d (%d posts)\n", label, summary.Count)
				for _, sample := range summary.Samples {
					fmt.Fprintf(out, "    - %s\n", truncate(sample, 80))
				}
			}
			if run.ExportPath != "" {
				fmt.Fprintf(out, "artifact: %s\n", run.ExportPath)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&embeddingsOnly, "embeddings-only", false, "generate embeddings without reclustering")
	cmd.Flags().BoolVar(&clusterOnly, "cluster-only", false, "recluster without generating new embeddings")
	cmd.Flags().IntVar(&minClusterSize, "min-cluster-size", 0, "smallest cluster to report (0 = engine default)")
	return cmd
}
