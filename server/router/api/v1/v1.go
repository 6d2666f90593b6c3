// Package v1 implements the read-only JSON API over collected posts and
// their cluster assignments.
package v1

import (
	"context"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"github.com/needscoop/needscoop/analysis/cluster"
	"github.com/needscoop/needscoop/analysis/embedding"
	"github.com/needscoop/needscoop/internal/filter"
	"github.com/needscoop/needscoop/internal/profile"
	"github.com/needscoop/needscoop/plugin/ai"
	"github.com/needscoop/needscoop/store"
)

const clusterSamples = 5

type APIV1Service struct {
	Profile *profile.Profile
	Store   *store.Store

	filter   *filter.Engine
	pipeline *embedding.Pipeline
	model    string
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store) (*APIV1Service, error) {
	filterEngine, err := filter.NewEngine()
	if err != nil {
		return nil, err
	}
	cfg := ai.NewEmbeddingConfigFromProfile(profile)
	return &APIV1Service{
		Profile: profile,
		Store:   store,
		filter:  filterEngine,
		pipeline: embedding.NewPipeline(func() (ai.EmbeddingService, error) {
			return ai.NewEmbeddingService(cfg)
		}),
		model: cfg.Model,
	}, nil
}

// Register binds the API routes to the given Echo instance.
func (s *APIV1Service) Register(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/stats", s.GetStats)
	g.GET("/posts", s.ListPosts)
	g.GET("/clusters", s.ListClusters)
	g.GET("/search", s.SearchPosts)

	e.GET("/feeds/clusters.rss", s.GetClustersRSS)
}

// StatsResponse is the corpus overview the dashboard polls.
type StatsResponse struct {
	TotalPosts       int64            `json:"total_posts"`
	BySignalType     map[string]int64 `json:"by_signal_type"`
	Clusters         int              `json:"clusters"`
	ClusteredPosts   int              `json:"clustered_posts"`
	UnclusteredPosts int64            `json:"unclustered_posts"`
}

func (s *APIV1Service) GetStats(c echo.Context) error {
	ctx := c.Request().Context()

	total, err := s.Store.CountPosts(ctx, &store.FindPost{})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to count posts").SetInternal(err)
	}
	counts, err := s.Store.CountPostsBySignalType(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to count posts by signal type").SetInternal(err)
	}
	clusters, clustered, err := s.buildClusters(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to build clusters").SetInternal(err)
	}

	return c.JSON(http.StatusOK, &StatsResponse{
		TotalPosts:       total,
		BySignalType:     counts,
		Clusters:         len(clusters),
		ClusteredPosts:   clustered,
		UnclusteredPosts: total - int64(clustered),
	})
}

// Cluster is one need cluster with its cheapest exemplars.
type Cluster struct {
	ID      int32    `json:"id"`
	Count   int      `json:"count"`
	Samples []string `json:"samples"`
}

// buildClusters groups the stored cluster assignments, largest cluster
// first. The second return value counts posts assigned to any cluster.
func (s *APIV1Service) buildClusters(ctx context.Context) ([]*Cluster, int, error) {
	posts, err := s.Store.ListPosts(ctx, &store.FindPost{})
	if err != nil {
		return nil, 0, err
	}

	labels := make([]int, len(posts))
	texts := make([]string, len(posts))
	clustered := 0
	for i, post := range posts {
		labels[i] = int(post.ClusterID)
		texts[i] = post.Text
		if post.ClusterID != store.NoCluster {
			clustered++
		}
	}
	summaries, err := cluster.Summarize(labels, texts, clusterSamples)
	if err != nil {
		return nil, 0, err
	}

	clusters := make([]*Cluster, 0, len(summaries))
	for label, summary := range summaries {
		clusters = append(clusters, &Cluster{
			ID:      int32(label),
			Count:   summary.Count,
			Samples: summary.Samples,
		})
	}
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].Count != clusters[j].Count {
			return clusters[i].Count > clusters[j].Count
		}
		return clusters[i].ID < clusters[j].ID
	})
	return clusters, clustered, nil
}

func (s *APIV1Service) ListClusters(c echo.Context) error {
	clusters, _, err := s.buildClusters(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to build clusters").SetInternal(err)
	}
	return c.JSON(http.StatusOK, clusters)
}
