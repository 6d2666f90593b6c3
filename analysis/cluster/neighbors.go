package cluster

import (
	"math"
	"sort"
)

type distanceFunc func(a, b []float64) float64

func cosineDistance(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		if normA == 0 && normB == 0 {
			return 0
		}
		return 1
	}
	sim := dot / math.Sqrt(normA*normB)
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return 1 - sim
}

func euclideanDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// neighborGraph holds, for each point, its k nearest neighbors sorted by
// ascending distance. Self is excluded. Ties break on the lower index so a
// graph over the same points is always identical.
type neighborGraph struct {
	indices   [][]int
	distances [][]float64
}

// kNearest computes exact nearest neighbors by brute force. Quadratic in the
// number of points, which is fine for the corpus sizes one analysis run sees.
func kNearest(points [][]float64, k int, dist distanceFunc) *neighborGraph {
	n := len(points)
	if k > n-1 {
		k = n - 1
	}
	graph := &neighborGraph{
		indices:   make([][]int, n),
		distances: make([][]float64, n),
	}
	order := make([]int, 0, n-1)
	row := make([]float64, n)
	for i := 0; i < n; i++ {
		order = order[:0]
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			row[j] = dist(points[i], points[j])
			order = append(order, j)
		}
		sort.Slice(order, func(a, b int) bool {
			if row[order[a]] != row[order[b]] {
				return row[order[a]] < row[order[b]]
			}
			return order[a] < order[b]
		})
		indices := make([]int, k)
		distances := make([]float64, k)
		for r := 0; r < k; r++ {
			indices[r] = order[r]
			distances[r] = row[order[r]]
		}
		graph.indices[i] = indices
		graph.distances[i] = distances
	}
	return graph
}
