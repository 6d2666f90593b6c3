// Package embedding turns post texts into vectors in batches, initializing
// the underlying embedding service lazily on first use.
package embedding

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/needscoop/needscoop/plugin/ai"
)

// ErrUnavailable is returned when the embedding service cannot be
// initialized or fails outright. It is fatal for the current run; the whole
// pipeline call can be retried later.
var ErrUnavailable = errors.New("embedding service unavailable")

// DefaultBatchSize is used when GenerateAll receives a non-positive batch size.
const DefaultBatchSize = 32

// Pipeline computes embedding vectors for batches of texts.
//
// The embedding service is constructed at most once, on first use, even
// under concurrent callers. A failed construction is remembered and
// reported by every subsequent call.
type Pipeline struct {
	provider func() (ai.EmbeddingService, error)

	once    sync.Once
	service ai.EmbeddingService
	initErr error
}

// NewPipeline creates a pipeline over a lazily-invoked service provider.
func NewPipeline(provider func() (ai.EmbeddingService, error)) *Pipeline {
	return &Pipeline{provider: provider}
}

// NewPipelineForService wraps an already-constructed service.
func NewPipelineForService(service ai.EmbeddingService) *Pipeline {
	return NewPipeline(func() (ai.EmbeddingService, error) {
		return service, nil
	})
}

func (p *Pipeline) resolve() (ai.EmbeddingService, error) {
	p.once.Do(func() {
		p.service, p.initErr = p.provider()
		if p.service == nil && p.initErr == nil {
			p.initErr = errors.New("provider returned no service")
		}
	})
	if p.initErr != nil {
		return nil, errors.Wrapf(ErrUnavailable, "initialize embedding service: %v", p.initErr)
	}
	return p.service, nil
}

// Dimensions reports the vector length of the underlying service,
// initializing it if needed.
func (p *Pipeline) Dimensions() (int, error) {
	service, err := p.resolve()
	if err != nil {
		return 0, err
	}
	return service.Dimensions(), nil
}

// Generate computes the vector for one text.
func (p *Pipeline) Generate(ctx context.Context, text string) ([]float32, error) {
	service, err := p.resolve()
	if err != nil {
		return nil, err
	}
	vector, err := service.Embed(ctx, text)
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "embed: %v", err)
	}
	return vector, nil
}

// GenerateBatch computes vectors for several texts in one service call.
func (p *Pipeline) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	service, err := p.resolve()
	if err != nil {
		return nil, err
	}
	vectors, err := service.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, errors.Wrapf(ErrUnavailable, "embed batch: %v", err)
	}
	return vectors, nil
}

// GenerateAll lazily computes vectors for all texts, batchSize texts per
// service invocation, yielding (original index, vector) pairs through the
// returned iterator.
//
// Each call recomputes from scratch; callers submit only texts still
// missing vectors. Batch size never affects the produced vectors, only how
// many service calls are made.
func (p *Pipeline) GenerateAll(ctx context.Context, texts []string, batchSize int) *Iterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Iterator{
		pipeline:  p,
		ctx:       ctx,
		texts:     texts,
		batchSize: batchSize,
		failed:    make(map[int]error),
	}
}
