package ai

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
)

// HashEmbeddingService is a deterministic embedding stand-in for demo mode
// and tests. It hashes character trigrams into a fixed number of buckets,
// so texts sharing substrings land near each other in the vector space
// while staying fully offline.
type HashEmbeddingService struct {
	dimensions int
}

// NewHashEmbeddingService creates a hash embedder with the given dimensions.
func NewHashEmbeddingService(dimensions int) *HashEmbeddingService {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbeddingService{dimensions: dimensions}
}

func (s *HashEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.vector(text), nil
}

func (s *HashEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts provided for embedding")
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = s.vector(text)
	}
	return vectors, nil
}

func (s *HashEmbeddingService) Dimensions() int {
	return s.dimensions
}

func (s *HashEmbeddingService) vector(text string) []float32 {
	vec := make([]float32, s.dimensions)
	runes := []rune(text)

	if len(runes) < 3 {
		h := fnv.New64a()
		h.Write([]byte(text))
		vec[int(h.Sum64()%uint64(s.dimensions))] = 1
		return vec
	}

	for i := 0; i+3 <= len(runes); i++ {
		h := fnv.New64a()
		h.Write([]byte(string(runes[i : i+3])))
		sum := h.Sum64()
		bucket := int(sum % uint64(s.dimensions))
		// Top bit picks the sign so buckets cancel rather than saturate.
		if sum&(1<<63) != 0 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
