package cluster

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nearDuplicateCorpus builds 12 nearly identical vectors plus 3 vectors
// leaning far away from them and from each other.
func nearDuplicateCorpus() [][]float32 {
	const dims = 10
	vectors := make([][]float32, 0, 15)
	for i := 0; i < 12; i++ {
		v := make([]float32, dims)
		v[0] = 1
		v[1+i%6] = 0.02 * float32(1+i/6)
		vectors = append(vectors, v)
	}
	for k := 0; k < 3; k++ {
		v := make([]float32, dims)
		v[0] = 0.2588
		v[7+k] = 0.9659
		vectors = append(vectors, v)
	}
	return vectors
}

func orthogonalCorpus(n, dims int) [][]float32 {
	vectors := make([][]float32, n)
	for i := range vectors {
		v := make([]float32, dims)
		v[i%dims] = 1
		vectors[i] = v
	}
	return vectors
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 50, cfg.Components)
	assert.Equal(t, 15, cfg.Neighbors)
	assert.Equal(t, 0.1, cfg.MinDist)
	assert.Equal(t, 10, cfg.MinClusterSize)
	assert.Equal(t, 5, cfg.MinSamples)
	assert.Equal(t, 0.5, cfg.SelectionEpsilon)
	assert.Equal(t, int64(42), cfg.Seed)
}

func TestConfigWithDefaults(t *testing.T) {
	assert.Equal(t, DefaultConfig(), Config{}.withDefaults())

	custom := Config{Neighbors: 5, Seed: 7}.withDefaults()
	assert.Equal(t, 5, custom.Neighbors)
	assert.Equal(t, int64(7), custom.Seed)
	assert.Equal(t, 50, custom.Components)
	assert.Equal(t, 10, custom.MinClusterSize)
}

func TestAdaptParams(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want params
	}{
		{
			name: "large corpus keeps configured values",
			n:    1000,
			want: params{neighbors: 15, minClusterSize: 10, minSamples: 5, components: 50},
		},
		{
			name: "fifteen vectors",
			n:    15,
			want: params{neighbors: 14, minClusterSize: 2, minSamples: 1, components: 13},
		},
		{
			name: "forty vectors",
			n:    40,
			want: params{neighbors: 15, minClusterSize: 4, minSamples: 3, components: 38},
		},
		{
			name: "minimal corpus",
			n:    4,
			want: params{neighbors: 3, minClusterSize: 2, minSamples: 1, components: 2},
		},
	}
	cfg := DefaultConfig()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.adapt(tt.n))
		})
	}
}

func TestFitInsufficientData(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	for n := 0; n < MinFitSize; n++ {
		vectors := make([][]float32, n)
		for i := range vectors {
			vectors[i] = []float32{1, 0, 0}
		}
		result, err := engine.Fit(vectors)
		require.Error(t, err, "n=%d", n)
		assert.True(t, errors.Is(err, ErrInsufficientData), "n=%d: %v", n, err)
		assert.Nil(t, result)
	}
}

func TestFitDimensionMismatch(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	_, err := engine.Fit([][]float32{{1, 0}, {0, 1}, {1, 1}, {0.5, 0.5, 0.1}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	_, err = engine.Fit([][]float32{{}, {}, {}, {}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestFitMinimalCorpus(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	result, err := engine.Fit(orthogonalCorpus(4, 4))
	require.NoError(t, err)

	assert.Len(t, result.Labels, 4)
	assert.Len(t, result.Coords, 4)
	total := result.NumNoise
	for _, size := range result.Sizes {
		total += size
	}
	assert.Equal(t, 4, total)
	assert.Equal(t, len(result.Sizes), result.NumClusters)
}

func TestFitSeparatesNearDuplicatesFromOutliers(t *testing.T) {
	engine := NewEngine(Config{MinClusterSize: 10})
	result, err := engine.Fit(nearDuplicateCorpus())
	require.NoError(t, err)

	assert.Equal(t, 1, result.NumClusters)
	assert.Equal(t, 3, result.NumNoise)

	label := result.Labels[0]
	require.NotEqual(t, -1, label)
	for i := 0; i < 12; i++ {
		assert.Equal(t, label, result.Labels[i], "duplicate %d", i)
	}
	for i := 12; i < 15; i++ {
		assert.Equal(t, -1, result.Labels[i], "outlier %d", i)
	}
	assert.Equal(t, 12, result.Sizes[label])
	assert.Equal(t, 0, label)
}

func TestFitReproducible(t *testing.T) {
	vectors := nearDuplicateCorpus()

	engine := NewEngine(DefaultConfig())
	first, err := engine.Fit(vectors)
	require.NoError(t, err)
	second, err := engine.Fit(vectors)
	require.NoError(t, err)

	assert.Equal(t, first.Labels, second.Labels)
	assert.Equal(t, first.Coords, second.Coords)

	fresh, err := NewEngine(DefaultConfig()).Fit(vectors)
	require.NoError(t, err)
	assert.Equal(t, first.Labels, fresh.Labels)
	assert.Equal(t, first.Coords, fresh.Coords)
}

func TestFitSeedChangesLayout(t *testing.T) {
	vectors := nearDuplicateCorpus()

	base, err := NewEngine(DefaultConfig()).Fit(vectors)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Seed = 7
	reseeded, err := NewEngine(cfg).Fit(vectors)
	require.NoError(t, err)

	assert.NotEqual(t, base.Coords, reseeded.Coords)
}

func TestFitCachesReducers(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	assert.Nil(t, engine.lastReducer)
	assert.Nil(t, engine.lastVisReducer)

	_, err := engine.Fit(orthogonalCorpus(6, 6))
	require.NoError(t, err)

	require.NotNil(t, engine.lastReducer)
	require.NotNil(t, engine.lastVisReducer)
	assert.Equal(t, 2, engine.lastVisReducer.components)
}

func TestSummarize(t *testing.T) {
	labels := []int{0, 0, 0, 1, 1, -1}
	texts := []string{
		"the dishwasher keeps leaking",
		"leak",
		"水漏れ修理",
		"need a sitter",
		"sitter",
		"noise text never sampled",
	}

	summaries, err := Summarize(labels, texts, 2)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, 3, summaries[0].Count)
	assert.Equal(t, []string{"leak", "水漏れ修理"}, summaries[0].Samples)

	assert.Equal(t, 2, summaries[1].Count)
	assert.Equal(t, []string{"sitter", "need a sitter"}, summaries[1].Samples)
}

func TestSummarizeCountsRunesNotBytes(t *testing.T) {
	labels := []int{0, 0}
	texts := []string{"plumber needed", "水漏れ修理お願い"}

	summaries, err := Summarize(labels, texts, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"水漏れ修理お願い"}, summaries[0].Samples)
}

func TestSummarizeDefaultTopN(t *testing.T) {
	labels := make([]int, 8)
	texts := []string{"aaaaaaaa", "aaaaaaa", "aaaaaa", "aaaaa", "aaaa", "aaa", "aa", "a"}

	summaries, err := Summarize(labels, texts, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, summaries[0].Count)
	assert.Equal(t, []string{"a", "aa", "aaa", "aaaa", "aaaaa"}, summaries[0].Samples)
}

func TestSummarizeKeepsInputOrderOnTies(t *testing.T) {
	labels := []int{0, 0, 0}
	texts := []string{"bb", "aa", "cc"}

	summaries, err := Summarize(labels, texts, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"bb", "aa", "cc"}, summaries[0].Samples)
}

func TestSummarizeLengthMismatch(t *testing.T) {
	_, err := Summarize([]int{0, 1}, []string{"only one"}, 5)
	assert.Error(t, err)
}

func TestSummarizeNoiseOnly(t *testing.T) {
	summaries, err := Summarize([]int{-1, -1}, []string{"a", "b"}, 5)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}
