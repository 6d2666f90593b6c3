package cluster

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticPoints(n, dims int) [][]float64 {
	points := make([][]float64, n)
	for i := range points {
		row := make([]float64, dims)
		for j := range row {
			row[j] = math.Sin(float64(i*5 + j))
		}
		points[i] = row
	}
	return points
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 0},
		{"scaled", []float64{1, 0}, []float64{5, 0}, 0},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 1},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, 2},
		{"zero vs nonzero", []float64{0, 0}, []float64{1, 0}, 1},
		{"both zero", []float64{0, 0}, []float64{0, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, cosineDistance(tt.a, tt.b), 1e-9)
		})
	}
}

func TestEuclideanDistance(t *testing.T) {
	assert.InDelta(t, 5, euclideanDistance([]float64{0, 0}, []float64{3, 4}), 1e-9)
	assert.Zero(t, euclideanDistance([]float64{1, 1}, []float64{1, 1}))
}

func TestKNearest(t *testing.T) {
	points := [][]float64{{0, 0}, {1, 0}, {3, 0}, {7, 0}}

	knn := kNearest(points, 2, euclideanDistance)
	assert.Equal(t, []int{1, 2}, knn.indices[0])
	assert.InDeltaSlice(t, []float64{1, 3}, knn.distances[0], 1e-9)
	assert.Equal(t, []int{0, 2}, knn.indices[1])
	assert.Equal(t, []int{1, 0}, knn.indices[2])
	assert.Equal(t, []int{2, 1}, knn.indices[3])
}

func TestKNearestClampsK(t *testing.T) {
	points := [][]float64{{0, 0}, {1, 0}, {3, 0}}
	knn := kNearest(points, 10, euclideanDistance)
	for i := range points {
		assert.Len(t, knn.indices[i], 2)
	}
}

func TestKNearestTiesPickLowerIndex(t *testing.T) {
	points := [][]float64{{0, 0}, {-1, 0}, {1, 0}}
	knn := kNearest(points, 2, euclideanDistance)
	assert.Equal(t, []int{1, 2}, knn.indices[0])
}

func TestFuzzyGraphEquidistantNeighborsShareFullWeight(t *testing.T) {
	points := [][]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}

	edges := fuzzyGraph(kNearest(points, 2, cosineDistance))
	require.Len(t, edges, 3)
	for _, e := range edges {
		assert.InDelta(t, 1, e.weight, 1e-9, "edge %d-%d", e.i, e.j)
	}
}

func TestFuzzyGraphNearestNeighborGetsFullWeight(t *testing.T) {
	points := [][]float64{
		{1, 0}, {0.95, 0.2}, {0.5, 0.9}, {0, 1},
	}

	edges := fuzzyGraph(kNearest(points, 3, cosineDistance))
	maxWeight := make(map[int]float64)
	for _, e := range edges {
		if e.weight > maxWeight[e.i] {
			maxWeight[e.i] = e.weight
		}
		if e.weight > maxWeight[e.j] {
			maxWeight[e.j] = e.weight
		}
	}
	for i := range points {
		assert.InDelta(t, 1, maxWeight[i], 1e-9, "point %d", i)
	}
}

func TestSmoothBandwidthMatchesTargetMass(t *testing.T) {
	dists := []float64{0.1, 0.5, 1.0}
	sigma := smoothBandwidth(dists, 0.1)
	require.Greater(t, sigma, 0.0)

	mass := 1 + math.Exp(-0.4/sigma) + math.Exp(-0.9/sigma)
	assert.InDelta(t, math.Log2(3), mass, 1e-6)
}

func TestSmoothBandwidthDegenerateDistances(t *testing.T) {
	sigma := smoothBandwidth([]float64{0.5, 0.5, 0.5}, 0.5)
	assert.Greater(t, sigma, 0.0)
}

func TestFitKernel(t *testing.T) {
	a, b := fitKernel(0.1, 1.0)
	assert.InDelta(t, 1.577, a, 0.05)
	assert.InDelta(t, 0.895, b, 0.05)

	// A larger plateau flattens the curve: smaller a, larger b.
	a5, b5 := fitKernel(0.5, 1.0)
	assert.Less(t, a5, a)
	assert.Greater(t, b5, b)
}

func TestGraphReducerOutputShape(t *testing.T) {
	points := syntheticPoints(6, 5)
	embedding := newGraphReducer(3, 4, 0.1, 42).fitTransform(points)

	require.Len(t, embedding, 6)
	for i, row := range embedding {
		require.Len(t, row, 3)
		for _, x := range row {
			assert.False(t, math.IsNaN(x), "NaN at row %d", i)
			assert.False(t, math.IsInf(x, 0), "Inf at row %d", i)
		}
	}
}

func TestGraphReducerDeterministic(t *testing.T) {
	points := syntheticPoints(10, 6)

	first := newGraphReducer(2, 4, 0.1, 42).fitTransform(points)
	second := newGraphReducer(2, 4, 0.1, 42).fitTransform(points)
	assert.Equal(t, first, second)

	reseeded := newGraphReducer(2, 4, 0.1, 7).fitTransform(points)
	assert.NotEqual(t, first, reseeded)
}

func TestGraphReducerSeparatesGroups(t *testing.T) {
	var points [][]float64
	for i := 0; i < 6; i++ {
		row := make([]float64, 6)
		row[0] = 1
		row[2+i%3] = 0.05
		points = append(points, row)
	}
	for i := 0; i < 6; i++ {
		row := make([]float64, 6)
		row[1] = 1
		row[2+i%3] = 0.05
		points = append(points, row)
	}

	embedding := newGraphReducer(2, 5, 0.1, 42).fitTransform(points)

	var intra, inter float64
	var intraN, interN int
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			d := euclideanDistance(embedding[i], embedding[j])
			if (i < 6) == (j < 6) {
				intra += d
				intraN++
			} else {
				inter += d
				interN++
			}
		}
	}
	assert.Greater(t, inter/float64(interN), intra/float64(intraN))
}
