// Package analyzer drives the analysis side of the pipeline: embedding
// collected posts and grouping the embedded corpus into need clusters.
package analyzer

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/needscoop/needscoop/analysis/cluster"
	"github.com/needscoop/needscoop/analysis/embedding"
	"github.com/needscoop/needscoop/internal/profile"
	"github.com/needscoop/needscoop/plugin/ai"
	"github.com/needscoop/needscoop/store"
)

const summarySamples = 5

// Analyzer embeds posts and clusters the embedded corpus. One instance is
// meant to run its passes sequentially; Fit state inside the engine is not
// safe for concurrent runs.
type Analyzer struct {
	store    *store.Store
	pipeline *embedding.Pipeline
	engine   *cluster.Engine

	model     string
	batchSize int
	dataDir   string
}

// New creates an analyzer configured from the profile. The embedding
// service is constructed lazily on first use, so creating an analyzer is
// cheap even when the provider needs model files or network access.
func New(st *store.Store, p *profile.Profile) *Analyzer {
	cfg := ai.NewEmbeddingConfigFromProfile(p)
	return &Analyzer{
		store: st,
		pipeline: embedding.NewPipeline(func() (ai.EmbeddingService, error) {
			return ai.NewEmbeddingService(cfg)
		}),
		engine:    cluster.NewEngine(cluster.Config{}),
		model:     cfg.Model,
		batchSize: embedding.DefaultBatchSize,
		dataDir:   p.Data,
	}
}

// EmbedReport tallies one embedding pass.
type EmbedReport struct {
	Generated int
	Failed    int
}

// GenerateEmbeddings embeds every post that does not have a vector under
// the configured model yet. Per-post failures are logged and counted;
// an unavailable embedding service aborts the pass with ErrUnavailable.
func (a *Analyzer) GenerateEmbeddings(ctx context.Context) (*EmbedReport, error) {
	report := &EmbedReport{}
	for {
		posts, err := a.store.FindPostsWithoutEmbedding(ctx, &store.FindPostsWithoutEmbedding{
			Model: a.model,
			// Fetch more data, but embed in small batches.
			Limit: a.batchSize * 20,
		})
		if err != nil {
			return report, errors.Wrap(err, "failed to find posts without embedding")
		}
		if len(posts) == 0 {
			return report, nil
		}

		slog.Info("generating embeddings", "count", len(posts), "model", a.model)

		texts := make([]string, len(posts))
		for i, post := range posts {
			texts[i] = post.Text
		}

		generated := 0
		it := a.pipeline.GenerateAll(ctx, texts, a.batchSize)
		for it.Next() {
			index, vector := it.Pair()
			if _, err := a.store.UpsertPostEmbedding(ctx, &store.PostEmbedding{
				PostID:    posts[index].ID,
				Model:     a.model,
				Embedding: vector,
			}); err != nil {
				slog.Error("failed to store embedding", "postID", posts[index].ID, "error", err)
				report.Failed++
				continue
			}
			generated++
		}
		if err := it.Err(); err != nil {
			return report, err
		}
		for index, itemErr := range it.Failed() {
			slog.Warn("failed to embed post", "postID", posts[index].ID, "error", itemErr)
		}
		report.Generated += generated
		report.Failed += len(it.Failed())

		// Failed posts stay unembedded and would be refetched forever; stop
		// once a pass makes no progress.
		if generated == 0 {
			return report, nil
		}
	}
}

// ClusterRun describes one completed clustering pass.
type ClusterRun struct {
	RunID       string
	Posts       int
	NumClusters int
	NumNoise    int
	Summaries   map[int]cluster.Summary
	ExportPath  string
}

// RunClustering fits the embedded corpus, persists the cluster assignments
// (noise becomes store.NoCluster) and exports a run artifact for the
// visualization surface. A positive minClusterSize overrides the engine
// default for this run. It returns (nil, nil) while the corpus is still
// too small to cluster; callers accumulate more posts and retry later.
func (a *Analyzer) RunClustering(ctx context.Context, minClusterSize int) (*ClusterRun, error) {
	engine := a.engine
	if minClusterSize > 0 {
		engine = cluster.NewEngine(cluster.Config{MinClusterSize: minClusterSize})
	}

	embeddings, err := a.store.ListPostEmbeddings(ctx, &store.FindPostEmbedding{Model: &a.model})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list embeddings")
	}
	if len(embeddings) < cluster.MinFitSize {
		slog.Info("not enough embedded posts to cluster", "count", len(embeddings), "need", cluster.MinFitSize)
		return nil, nil
	}

	posts, err := a.store.ListPosts(ctx, &store.FindPost{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list posts")
	}
	postByID := make(map[int32]*store.Post, len(posts))
	for _, post := range posts {
		postByID[post.ID] = post
	}

	vectors := make([][]float32, 0, len(embeddings))
	postIDs := make([]int32, 0, len(embeddings))
	texts := make([]string, 0, len(embeddings))
	for _, e := range embeddings {
		post, ok := postByID[e.PostID]
		if !ok {
			continue
		}
		vectors = append(vectors, e.Embedding)
		postIDs = append(postIDs, e.PostID)
		texts = append(texts, post.Text)
	}

	result, err := engine.Fit(vectors)
	if err != nil {
		if errors.Is(err, cluster.ErrInsufficientData) {
			slog.Info("not enough embedded posts to cluster", "count", len(vectors))
			return nil, nil
		}
		return nil, errors.Wrap(err, "clustering failed")
	}

	assignments := make([]store.ClusterAssignment, len(postIDs))
	for i, postID := range postIDs {
		assignments[i] = store.ClusterAssignment{
			PostID:    postID,
			ClusterID: int32(result.Labels[i]),
		}
	}
	if err := a.store.UpdateClusterIDs(ctx, assignments); err != nil {
		return nil, err
	}

	summaries, err := cluster.Summarize(result.Labels, texts, summarySamples)
	if err != nil {
		return nil, err
	}

	run := &ClusterRun{
		RunID:       uuid.NewString(),
		Posts:       len(postIDs),
		NumClusters: result.NumClusters,
		NumNoise:    result.NumNoise,
		Summaries:   summaries,
	}

	// The artifact is a convenience for the visualization surface; the
	// assignments above are already persisted, so export failures do not
	// fail the run.
	path, err := a.exportRun(run, postIDs, texts, result)
	if err != nil {
		slog.Error("failed to export run artifact", "runID", run.RunID, "error", err)
	} else {
		run.ExportPath = path
	}

	slog.Info("clustering run complete",
		"runID", run.RunID,
		"posts", run.Posts,
		"clusters", run.NumClusters,
		"noise", run.NumNoise)
	return run, nil
}

// Run performs one full analysis pass: embed what is new, then recluster.
func (a *Analyzer) Run(ctx context.Context) (*EmbedReport, *ClusterRun, error) {
	report, err := a.GenerateEmbeddings(ctx)
	if err != nil {
		return report, nil, err
	}
	run, err := a.RunClustering(ctx, 0)
	return report, run, err
}

type runArtifact struct {
	RunID       string       `json:"run_id"`
	CreatedTs   int64        `json:"created_ts"`
	Model       string       `json:"model"`
	NumClusters int          `json:"num_clusters"`
	NumNoise    int          `json:"num_noise"`
	Clusters    []runCluster `json:"clusters"`
	Points      []runPoint   `json:"points"`
}

type runCluster struct {
	Label   int      `json:"label"`
	Count   int      `json:"count"`
	Samples []string `json:"samples"`
}

type runPoint struct {
	PostID int32   `json:"post_id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Label  int     `json:"label"`
	Text   string  `json:"text"`
}

func (a *Analyzer) exportRun(run *ClusterRun, postIDs []int32, texts []string, result *cluster.Result) (string, error) {
	artifact := runArtifact{
		RunID:       run.RunID,
		CreatedTs:   time.Now().Unix(),
		Model:       a.model,
		NumClusters: run.NumClusters,
		NumNoise:    run.NumNoise,
		Clusters:    make([]runCluster, 0, len(run.Summaries)),
		Points:      make([]runPoint, len(postIDs)),
	}
	for label, summary := range run.Summaries {
		artifact.Clusters = append(artifact.Clusters, runCluster{
			Label:   label,
			Count:   summary.Count,
			Samples: summary.Samples,
		})
	}
	sort.Slice(artifact.Clusters, func(i, j int) bool {
		return artifact.Clusters[i].Label < artifact.Clusters[j].Label
	})
	for i, postID := range postIDs {
		artifact.Points[i] = runPoint{
			PostID: postID,
			X:      result.Coords[i][0],
			Y:      result.Coords[i][1],
			Label:  result.Labels[i],
			Text:   texts[i],
		}
	}

	dir := filepath.Join(a.dataDir, "runs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create runs directory")
	}
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to encode run artifact")
	}
	path := filepath.Join(dir, "run_"+run.RunID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write run artifact")
	}
	return path, nil
}
