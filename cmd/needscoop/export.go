package main

import (
	"encoding/json"
	"os"
	osignal "os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/needscoop/needscoop/internal/filter"
	"github.com/needscoop/needscoop/store"
)

// exportPost is the JSON shape written by the export command. Unlike the
// API it includes the raw source payload.
type exportPost struct {
	ID            int32  `json:"id"`
	Source        string `json:"source"`
	SourceUID     string `json:"sourceUid"`
	AuthorID      string `json:"authorId"`
	Text          string `json:"text"`
	Language      string `json:"language,omitempty"`
	URI           string `json:"uri"`
	Metadata      string `json:"metadata,omitempty"`
	CreatedTs     int64  `json:"createdTs"`
	CollectedTs   int64  `json:"collectedTs"`
	Likes         int32  `json:"likes"`
	Reposts       int32  `json:"reposts"`
	Replies       int32  `json:"replies"`
	SignalType    string `json:"signalType"`
	SignalMatches int32  `json:"signalMatches"`
	ClusterID     int32  `json:"clusterId"`
}

func newExportCmd() *cobra.Command {
	var (
		filterExpr string
		outPath    string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export posts as JSON",
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

			find := &store.FindPost{}
			if limit > 0 {
				find.Limit = &limit
			}
			posts, err := st.ListPosts(ctx, find)
			if err != nil {
				return err
			}
			if filterExpr != "" {
				engine, err := filter.NewEngine()
				if err != nil {
					return err
				}
				predicate, err := engine.Compile(filterExpr)
				if err != nil {
					return errors.Wrap(err, "invalid filter")
				}
				posts, err = predicate.Select(posts)
				if err != nil {
					return err
				}
			}

			exported := make([]*exportPost, 0, len(posts))
			for _, post := range posts {
				exported = append(exported, &exportPost{
					ID:            post.ID,
					Source:        post.Source,
					SourceUID:     post.SourceUID,
					AuthorID:      post.AuthorID,
					Text:          post.Text,
					Language:      post.Language,
					URI:           post.URI,
					Metadata:      post.Metadata,
					CreatedTs:     post.CreatedTs,
					CollectedTs:   post.CollectedTs,
					Likes:         post.Likes,
					Reposts:       post.Reposts,
					Replies:       post.Replies,
					SignalType:    post.SignalType,
					SignalMatches: post.SignalMatches,
					ClusterID:     post.ClusterID,
				})
			}

			out := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return errors.Wrapf(err, "failed to create %s", outPath)
				}
				defer f.Close()
				out = f
			}
			encoder := json.NewEncoder(out)
			encoder.SetIndent("", "  ")
			return encoder.Encode(exported)
		},
	}
	cmd.Flags().StringVar(&filterExpr, "filter", "", `filter expression, e.g. 'signal_type == "pain_point" && likes >= 10'`)
	cmd.Flags().StringVar(&outPath, "out", "", "write to a file instead of stdout")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of posts to export (0 = all)")
	return cmd
}
