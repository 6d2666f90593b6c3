package cluster

import (
	"math"
	"sort"
)

// densityCluster assigns each point a cluster label, or -1 for noise.
//
// Points are linked through mutual reachability distance: the pairwise
// distance floored by both endpoints' core distances, where a point's core
// distance is how far it must reach to see minSamples neighbors. Sparse
// points therefore carry large distances and detach from dense regions. A
// minimum spanning tree over that metric, cut greedily from the top, yields
// the cluster hierarchy:
//
//   - a subtree whose merge distance is at most epsilon is one cluster
//   - a split where both sides reach minClusterSize is a real split
//   - a side below minClusterSize falls out as noise
//   - a cluster that would shatter into fragments stays whole
//
// Labels are contiguous from 0, ordered by each cluster's lowest member
// index, so a fit over the same points always names clusters identically.
func densityCluster(points [][]float64, minClusterSize, minSamples int, epsilon float64) []int {
	n := len(points)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	if n < 2 {
		return labels
	}
	if minClusterSize < 2 {
		minClusterSize = 2
	}

	core := coreDistances(points, minSamples)
	edges := buildMST(points, core)
	nodes := singleLinkage(edges, n)
	clusters := extractClusters(nodes, n, minClusterSize, epsilon)

	for label, members := range clusters {
		for _, m := range members {
			labels[m] = label
		}
	}
	return labels
}

// coreDistances returns each point's distance to its k-th nearest neighbor,
// or zero when k < 1.
func coreDistances(points [][]float64, k int) []float64 {
	core := make([]float64, len(points))
	if k < 1 {
		return core
	}
	knn := kNearest(points, k, euclideanDistance)
	for i := range points {
		dists := knn.distances[i]
		core[i] = dists[len(dists)-1]
	}
	return core
}

type mstEdge struct {
	a, b   int
	weight float64
}

// buildMST grows a minimum spanning tree over the mutual reachability
// distances with Prim's algorithm on the implicit complete graph. Ties
// resolve to the lowest index.
func buildMST(points [][]float64, core []float64) []mstEdge {
	n := len(points)
	inTree := make([]bool, n)
	best := make([]float64, n)
	from := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
	}

	edges := make([]mstEdge, 0, n-1)
	current := 0
	inTree[0] = true
	for len(edges) < n-1 {
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			d := euclideanDistance(points[current], points[j])
			if core[current] > d {
				d = core[current]
			}
			if core[j] > d {
				d = core[j]
			}
			if d < best[j] {
				best[j] = d
				from[j] = current
			}
		}
		next := -1
		nearest := math.Inf(1)
		for j := 0; j < n; j++ {
			if !inTree[j] && best[j] < nearest {
				nearest = best[j]
				next = j
			}
		}
		edges = append(edges, mstEdge{a: from[next], b: next, weight: best[next]})
		inTree[next] = true
		current = next
	}
	return edges
}

// linkageNode is one merge in the single-linkage dendrogram. Child ids
// below n refer to points, ids at or above n to earlier merges.
type linkageNode struct {
	left, right int
	height      float64
	size        int
}

// singleLinkage folds the MST edges, in ascending weight order, into a
// dendrogram via union-find. Merge heights are non-decreasing from leaves
// to root.
func singleLinkage(edges []mstEdge, n int) []linkageNode {
	sorted := make([]mstEdge, len(edges))
	copy(sorted, edges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].weight != sorted[j].weight {
			return sorted[i].weight < sorted[j].weight
		}
		if sorted[i].a != sorted[j].a {
			return sorted[i].a < sorted[j].a
		}
		return sorted[i].b < sorted[j].b
	})

	parent := make([]int, n+len(sorted))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	nodes := make([]linkageNode, 0, len(sorted))
	sizeOf := func(id int) int {
		if id < n {
			return 1
		}
		return nodes[id-n].size
	}
	for _, e := range sorted {
		ra, rb := find(e.a), find(e.b)
		merged := n + len(nodes)
		nodes = append(nodes, linkageNode{
			left:   ra,
			right:  rb,
			height: e.weight,
			size:   sizeOf(ra) + sizeOf(rb),
		})
		parent[ra] = merged
		parent[rb] = merged
	}
	return nodes
}

// extractClusters walks the dendrogram from the root and returns cluster
// member lists ordered by lowest member index.
func extractClusters(nodes []linkageNode, n, minClusterSize int, epsilon float64) [][]int {
	if len(nodes) == 0 {
		return nil
	}

	sizeOf := func(id int) int {
		if id < n {
			return 1
		}
		return nodes[id-n].size
	}
	var members func(id int) []int
	members = func(id int) []int {
		if id < n {
			return []int{id}
		}
		node := nodes[id-n]
		return append(members(node.left), members(node.right)...)
	}

	var clusters [][]int
	var walk func(id int)
	walk = func(id int) {
		if id < n {
			return
		}
		node := nodes[id-n]
		if node.size < minClusterSize {
			return
		}
		if node.height <= epsilon {
			clusters = append(clusters, members(id))
			return
		}
		leftOK := sizeOf(node.left) >= minClusterSize
		rightOK := sizeOf(node.right) >= minClusterSize
		switch {
		case leftOK && rightOK:
			walk(node.left)
			walk(node.right)
		case leftOK:
			walk(node.left)
		case rightOK:
			walk(node.right)
		default:
			clusters = append(clusters, members(id))
		}
	}
	walk(n + len(nodes) - 1)

	for _, c := range clusters {
		sort.Ints(c)
	}
	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i][0] < clusters[j][0]
	})
	return clusters
}
