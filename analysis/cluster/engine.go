// Package cluster groups embedded posts by semantic similarity.
//
// A fit runs in two stages: a neighborhood-graph reduction of the input
// vectors to a lower-dimensional clustering space (cosine metric), then a
// density clustering over that space (Euclidean). A second, independent
// reduction of the original vectors to 2D produces coordinates for
// visualization. Both stages are deterministic for a fixed seed.
package cluster

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/needscoop/needscoop/internal/textutil"
)

var (
	// ErrInsufficientData is returned by Fit when the corpus is too small to
	// cluster. Recoverable: accumulate more posts and retry.
	ErrInsufficientData = errors.New("not enough vectors to cluster")
	// ErrDimensionMismatch is returned by Fit when input vectors disagree in
	// length. Indicates a caller bug, not a data condition.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// MinFitSize is the smallest corpus Fit accepts.
const MinFitSize = 4

// Config carries the clustering parameters. The zero value of any field is
// replaced by its default, so a partially filled Config is usable.
type Config struct {
	// Components is the target dimensionality of the clustering space.
	Components int
	// Neighbors is the neighborhood size of the reduction graph.
	Neighbors int
	// MinDist is the minimum spacing of points in the reduced layout.
	MinDist float64
	// MinClusterSize is the smallest group the density stage reports.
	MinClusterSize int
	// MinSamples is the core-point threshold of the density stage.
	MinSamples int
	// SelectionEpsilon merges clusters separated by less than this
	// distance in the clustering space.
	SelectionEpsilon float64
	// Seed fixes all randomized steps.
	Seed int64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Components:       50,
		Neighbors:        15,
		MinDist:          0.1,
		MinClusterSize:   10,
		MinSamples:       5,
		SelectionEpsilon: 0.5,
		Seed:             42,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Components <= 0 {
		c.Components = def.Components
	}
	if c.Neighbors <= 0 {
		c.Neighbors = def.Neighbors
	}
	if c.MinDist <= 0 {
		c.MinDist = def.MinDist
	}
	if c.MinClusterSize <= 0 {
		c.MinClusterSize = def.MinClusterSize
	}
	if c.MinSamples <= 0 {
		c.MinSamples = def.MinSamples
	}
	if c.SelectionEpsilon <= 0 {
		c.SelectionEpsilon = def.SelectionEpsilon
	}
	if c.Seed == 0 {
		c.Seed = def.Seed
	}
	return c
}

// params are the configured values clamped to stay valid for a corpus of n
// vectors, so one fixed configuration works from tens to tens of thousands
// of posts.
type params struct {
	neighbors      int
	minClusterSize int
	minSamples     int
	components     int
}

func (c Config) adapt(n int) params {
	p := params{
		neighbors:      c.Neighbors,
		minClusterSize: c.MinClusterSize,
		minSamples:     c.MinSamples,
		components:     c.Components,
	}
	// A neighborhood cannot exceed the available population.
	if p.neighbors > n-1 {
		p.neighbors = n - 1
	}
	// Scale the cluster size floor down for small corpora, never below 2.
	scaled := n / 10
	if scaled < 2 {
		scaled = 2
	}
	if p.minClusterSize > scaled {
		p.minClusterSize = scaled
	}
	// Core-point threshold stays below the cluster size floor.
	if p.minSamples > p.minClusterSize-1 {
		p.minSamples = p.minClusterSize - 1
	}
	if p.minSamples < 0 {
		p.minSamples = 0
	}
	// A reduction cannot target more dimensions than the degrees of
	// freedom available.
	if p.components > n-2 {
		p.components = n - 2
	}
	return p
}

// Result is the outcome of one Fit, parallel to the input vectors. It is
// produced fresh per call and never mutated afterwards.
type Result struct {
	// Labels assigns each input vector a cluster id, or -1 for noise.
	Labels []int
	// Coords is the 2D visualization projection of each input vector,
	// independent of the space the labels were derived in.
	Coords [][2]float64
	// NumClusters counts distinct non-noise labels.
	NumClusters int
	// NumNoise counts noise-labeled vectors.
	NumNoise int
	// Sizes maps each cluster label to its member count.
	Sizes map[int]int
}

// Summary describes one cluster for reporting.
type Summary struct {
	Count   int
	Samples []string
}

// Engine runs the two-stage clustering. Fit is stateless across calls
// except for caching the last fitted reducers for introspection; output
// never depends on prior calls.
type Engine struct {
	cfg Config

	lastReducer    *graphReducer
	lastVisReducer *graphReducer
}

// NewEngine creates an engine, filling unset config fields with defaults.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg.withDefaults()}
}

// Config returns the effective (default-filled) configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Fit clusters the given vectors.
//
// It returns ErrInsufficientData when fewer than MinFitSize vectors are
// supplied and ErrDimensionMismatch when the vectors disagree in length.
// Callers are expected to pre-check corpus size and treat the former as a
// signal to accumulate more posts.
func (e *Engine) Fit(vectors [][]float32) (*Result, error) {
	n := len(vectors)
	if n < MinFitSize {
		return nil, errors.Wrapf(ErrInsufficientData, "got %d vectors, need at least %d", n, MinFitSize)
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, errors.Wrap(ErrDimensionMismatch, "zero-length vector at index 0")
	}
	for i, vector := range vectors {
		if len(vector) != dim {
			return nil, errors.Wrapf(ErrDimensionMismatch, "vector %d has %d dimensions, expected %d", i, len(vector), dim)
		}
	}

	points := toFloat64(vectors)
	p := e.cfg.adapt(n)

	// Stage 1: reduce to the clustering space.
	reducer := newGraphReducer(p.components, p.neighbors, e.cfg.MinDist, e.cfg.Seed)
	reduced := reducer.fitTransform(points)

	// Stage 2: density clustering over the reduced space.
	labels := densityCluster(reduced, p.minClusterSize, p.minSamples, e.cfg.SelectionEpsilon)

	// Stage 3: independent 2D projection of the original vectors.
	visReducer := newGraphReducer(2, p.neighbors, e.cfg.MinDist, e.cfg.Seed)
	vis := visReducer.fitTransform(points)

	e.lastReducer = reducer
	e.lastVisReducer = visReducer

	result := &Result{
		Labels: labels,
		Coords: make([][2]float64, n),
		Sizes:  make(map[int]int),
	}
	seen := make(map[int]bool)
	for i, label := range labels {
		result.Coords[i] = [2]float64{vis[i][0], vis[i][1]}
		if label == -1 {
			result.NumNoise++
			continue
		}
		result.Sizes[label]++
		if !seen[label] {
			seen[label] = true
			result.NumClusters++
		}
	}
	return result, nil
}

// Summarize picks representative sample texts for each cluster: the topN
// shortest member texts, shortest first. Short texts tend to state one need
// plainly, which makes them cheap exemplars. Noise is never summarized.
func Summarize(labels []int, texts []string, topN int) (map[int]Summary, error) {
	if len(labels) != len(texts) {
		return nil, errors.Errorf("got %d labels for %d texts", len(labels), len(texts))
	}
	if topN <= 0 {
		topN = 5
	}

	members := make(map[int][]string)
	for i, label := range labels {
		if label == -1 {
			continue
		}
		members[label] = append(members[label], texts[i])
	}

	summaries := make(map[int]Summary, len(members))
	for label, texts := range members {
		sorted := make([]string, len(texts))
		copy(sorted, texts)
		sort.SliceStable(sorted, func(i, j int) bool {
			return textutil.RuneLen(sorted[i]) < textutil.RuneLen(sorted[j])
		})
		if len(sorted) > topN {
			sorted = sorted[:topN]
		}
		summaries[label] = Summary{Count: len(texts), Samples: sorted}
	}
	return summaries, nil
}

func toFloat64(vectors [][]float32) [][]float64 {
	points := make([][]float64, len(vectors))
	for i, vector := range vectors {
		row := make([]float64, len(vector))
		for j, v := range vector {
			row[j] = float64(v)
		}
		points[i] = row
	}
	return points
}
