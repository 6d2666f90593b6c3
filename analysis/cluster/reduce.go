package cluster

import (
	"math"
	"math/rand"
	"sort"
)

// graphReducer projects high-dimensional vectors into a low-dimensional
// space while preserving neighborhood structure. It builds a fuzzy graph
// over the cosine k-nearest neighbors, initializes a layout from the
// graph's spectral structure, and refines it with a force-directed pass.
// Single-threaded and seeded, so identical input yields identical output.
type graphReducer struct {
	components int
	neighbors  int
	minDist    float64
	seed       int64

	epochs     int
	negSamples int

	// Kernel coefficients fitted from minDist.
	a, b float64
}

func newGraphReducer(components, neighbors int, minDist float64, seed int64) *graphReducer {
	a, b := fitKernel(minDist, 1.0)
	return &graphReducer{
		components: components,
		neighbors:  neighbors,
		minDist:    minDist,
		seed:       seed,
		epochs:     200,
		negSamples: 5,
		a:          a,
		b:          b,
	}
}

type weightedEdge struct {
	i, j   int
	weight float64
}

func (r *graphReducer) fitTransform(points [][]float64) [][]float64 {
	n := len(points)
	rng := rand.New(rand.NewSource(r.seed))

	knn := kNearest(points, r.neighbors, cosineDistance)
	edges := fuzzyGraph(knn)
	embedding := r.spectralInit(edges, n, rng)
	r.optimizeLayout(embedding, edges, rng)
	return embedding
}

// fuzzyGraph converts raw neighbor distances into symmetric membership
// weights. Each point's nearest neighbor gets weight 1, farther neighbors
// decay with a per-point bandwidth calibrated so every neighborhood carries
// the same total mass. Directed weights are combined with the probabilistic
// union a+b-ab.
func fuzzyGraph(knn *neighborGraph) []weightedEdge {
	n := len(knn.indices)
	directed := make(map[[2]int]float64, n*len(knn.indices[0]))
	for i := 0; i < n; i++ {
		dists := knn.distances[i]
		rho := dists[0]
		sigma := smoothBandwidth(dists, rho)
		for r, j := range knn.indices[i] {
			gap := dists[r] - rho
			w := 1.0
			if gap > 0 {
				w = math.Exp(-gap / sigma)
			}
			directed[[2]int{i, j}] = w
		}
	}

	union := make(map[[2]int]float64, len(directed))
	for key, w := range directed {
		canon := key
		if canon[0] > canon[1] {
			canon[0], canon[1] = canon[1], canon[0]
		}
		if prev, ok := union[canon]; ok {
			union[canon] = prev + w - prev*w
		} else {
			union[canon] = w
		}
	}

	edges := make([]weightedEdge, 0, len(union))
	for key, w := range union {
		edges = append(edges, weightedEdge{i: key[0], j: key[1], weight: w})
	}
	sort.Slice(edges, func(a, b int) bool {
		if edges[a].i != edges[b].i {
			return edges[a].i < edges[b].i
		}
		return edges[a].j < edges[b].j
	})
	return edges
}

// smoothBandwidth finds, by bisection, the decay scale at which the
// neighborhood's total membership equals log2(k).
func smoothBandwidth(dists []float64, rho float64) float64 {
	target := math.Log2(float64(len(dists)))
	if target <= 0 {
		return 1
	}
	mass := func(sigma float64) float64 {
		var sum float64
		for _, d := range dists {
			gap := d - rho
			if gap <= 0 {
				sum++
				continue
			}
			sum += math.Exp(-gap / sigma)
		}
		return sum
	}
	hi := 1.0
	for mass(hi) < target && hi < 1e12 {
		hi *= 2
	}
	lo := 0.0
	for iter := 0; iter < 64; iter++ {
		mid := (lo + hi) / 2
		if mass(mid) < target {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi
}

// spectralInit lays points out along the leading non-trivial eigenvectors
// of the graph's normalized adjacency, found by power iteration with
// deflation. The layout is rescaled so its largest coordinate is 10.
func (r *graphReducer) spectralInit(edges []weightedEdge, n int, rng *rand.Rand) [][]float64 {
	degree := make([]float64, n)
	for _, e := range edges {
		degree[e.i] += e.weight
		degree[e.j] += e.weight
	}
	// Normalized adjacency coefficients s_ij = w_ij / sqrt(d_i d_j).
	coeffs := make([]float64, len(edges))
	for idx, e := range edges {
		d := degree[e.i] * degree[e.j]
		if d > 0 {
			coeffs[idx] = e.weight / math.Sqrt(d)
		}
	}

	// apply computes (I + S)v, whose dominant eigenvectors are the
	// smallest-eigenvalue vectors of the normalized Laplacian.
	apply := func(v, out []float64) {
		copy(out, v)
		for idx, e := range edges {
			out[e.i] += coeffs[idx] * v[e.j]
			out[e.j] += coeffs[idx] * v[e.i]
		}
	}

	// The trivial eigenvector sqrt(d) is known in closed form; deflating it
	// leaves the informative directions.
	trivial := make([]float64, n)
	for i := 0; i < n; i++ {
		trivial[i] = math.Sqrt(degree[i])
	}
	normalize(trivial)
	found := [][]float64{trivial}

	embedding := make([][]float64, n)
	for i := range embedding {
		embedding[i] = make([]float64, r.components)
	}
	next := make([]float64, n)
	for c := 0; c < r.components; c++ {
		v := make([]float64, n)
		for i := range v {
			v[i] = rng.Float64()*2 - 1
		}
		orthogonalize(v, found)
		if normalize(v) == 0 {
			for i := range v {
				v[i] = rng.Float64()*2 - 1
			}
			normalize(v)
		}
		for iter := 0; iter < 150; iter++ {
			apply(v, next)
			orthogonalize(next, found)
			if normalize(next) == 0 {
				break
			}
			copy(v, next)
		}
		found = append(found, v)
		for i := 0; i < n; i++ {
			embedding[i][c] = v[i]
		}
	}

	var maxAbs float64
	for _, row := range embedding {
		for _, x := range row {
			if a := math.Abs(x); a > maxAbs {
				maxAbs = a
			}
		}
	}
	if maxAbs > 0 {
		scale := 10 / maxAbs
		for _, row := range embedding {
			for c := range row {
				row[c] *= scale
			}
		}
	}
	return embedding
}

// optimizeLayout refines the embedding by stochastic gradient descent over
// the fuzzy edges: weighted attraction pulling edge endpoints together,
// sampled repulsion pushing each endpoint away from random points. Updates
// are clamped per coordinate and the learning rate decays linearly to zero.
func (r *graphReducer) optimizeLayout(embedding [][]float64, edges []weightedEdge, rng *rand.Rand) {
	n := len(embedding)
	if n == 0 {
		return
	}
	dims := len(embedding[0])
	for epoch := 0; epoch < r.epochs; epoch++ {
		alpha := 1 - float64(epoch)/float64(r.epochs)
		for _, e := range edges {
			current, other := embedding[e.i], embedding[e.j]
			d2 := squaredDistance(current, other)
			if d2 > 0 {
				gc := -2 * r.a * r.b * math.Pow(d2, r.b-1) / (1 + r.a*math.Pow(d2, r.b))
				for d := 0; d < dims; d++ {
					g := clampGrad(gc * (current[d] - other[d]))
					current[d] += alpha * e.weight * g
					other[d] -= alpha * e.weight * g
				}
			}
			r.repel(embedding, e.i, e.j, alpha, rng)
			r.repel(embedding, e.j, e.i, alpha, rng)
		}
	}
}

// repel pushes point idx away from negSamples randomly drawn points,
// skipping itself and its attraction partner.
func (r *graphReducer) repel(embedding [][]float64, idx, partner int, alpha float64, rng *rand.Rand) {
	n := len(embedding)
	current := embedding[idx]
	for s := 0; s < r.negSamples; s++ {
		p := rng.Intn(n)
		if p == idx || p == partner {
			continue
		}
		negative := embedding[p]
		d2 := squaredDistance(current, negative)
		if d2 > 0 {
			rc := 2 * r.b / ((0.001 + d2) * (1 + r.a*math.Pow(d2, r.b)))
			for d := range current {
				current[d] += alpha * clampGrad(rc*(current[d]-negative[d]))
			}
		} else {
			for d := range current {
				current[d] += alpha * 4
			}
		}
	}
}

// fitKernel fits the smooth kernel 1/(1+a*d^2b) to an exponential falloff
// that is flat up to minDist, by damped Gauss-Newton least squares.
func fitKernel(minDist, spread float64) (float64, float64) {
	const samples = 300
	xs := make([]float64, samples)
	ys := make([]float64, samples)
	for i := 0; i < samples; i++ {
		x := 3 * spread * float64(i+1) / samples
		xs[i] = x
		if x <= minDist {
			ys[i] = 1
		} else {
			ys[i] = math.Exp(-(x - minDist) / spread)
		}
	}
	a, b := 1.0, 1.0
	for iter := 0; iter < 200; iter++ {
		var jaa, jab, jbb, ra, rb float64
		for i := 0; i < samples; i++ {
			x2b := math.Pow(xs[i], 2*b)
			denom := 1 + a*x2b
			resid := ys[i] - 1/denom
			da := -x2b / (denom * denom)
			db := -2 * a * x2b * math.Log(xs[i]) / (denom * denom)
			jaa += da * da
			jab += da * db
			jbb += db * db
			ra += da * resid
			rb += db * resid
		}
		jaa += 1e-9
		jbb += 1e-9
		det := jaa*jbb - jab*jab
		if det == 0 {
			break
		}
		a += (ra*jbb - rb*jab) / det
		b += (rb*jaa - ra*jab) / det
		if a < 1e-3 {
			a = 1e-3
		}
		if b < 1e-3 {
			b = 1e-3
		}
	}
	return a, b
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func clampGrad(g float64) float64 {
	if g > 4 {
		return 4
	}
	if g < -4 {
		return -4
	}
	return g
}

func normalize(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return 0
	}
	for i := range v {
		v[i] /= norm
	}
	return norm
}

func orthogonalize(v []float64, basis [][]float64) {
	for _, u := range basis {
		var dot float64
		for i := range v {
			dot += v[i] * u[i]
		}
		for i := range v {
			v[i] -= dot * u[i]
		}
	}
}
