package embedding

import (
	"context"

	"github.com/pkg/errors"

	"github.com/needscoop/needscoop/plugin/ai"
)

type pair struct {
	index  int
	vector []float32
}

// Iterator yields (original index, vector) pairs from GenerateAll, one
// batch of service work at a time:
//
//	it := pipeline.GenerateAll(ctx, texts, 32)
//	for it.Next() {
//		index, vector := it.Pair()
//		...
//	}
//	if err := it.Err(); err != nil { ... }
//
// Every input index ends up either yielded, recorded in Failed(), or
// covered by the fatal error from Err(). Not safe for concurrent use.
type Iterator struct {
	pipeline  *Pipeline
	ctx       context.Context
	texts     []string
	batchSize int

	cursor  int
	buf     []pair
	bufPos  int
	current pair
	failed  map[int]error
	err     error
	done    bool
}

// Next advances to the next pair. It returns false when all texts are
// consumed or a fatal error occurred; check Err afterwards.
func (it *Iterator) Next() bool {
	for {
		if it.err != nil || it.done {
			return false
		}
		if it.bufPos < len(it.buf) {
			it.current = it.buf[it.bufPos]
			it.bufPos++
			return true
		}
		if it.cursor >= len(it.texts) {
			it.done = true
			return false
		}
		it.fetchBatch()
	}
}

// Pair returns the pair produced by the last successful Next.
func (it *Iterator) Pair() (int, []float32) {
	return it.current.index, it.current.vector
}

// Err returns the fatal error that stopped iteration, or nil after a clean
// run. Per-item failures are reported through Failed instead.
func (it *Iterator) Err() error {
	return it.err
}

// Failed maps input indices to their per-item errors. Populated as
// iteration proceeds; complete once Next has returned false.
func (it *Iterator) Failed() map[int]error {
	return it.failed
}

func (it *Iterator) fetchBatch() {
	if err := it.ctx.Err(); err != nil {
		it.err = err
		return
	}

	service, err := it.pipeline.resolve()
	if err != nil {
		it.err = err
		return
	}

	start := it.cursor
	end := start + it.batchSize
	if end > len(it.texts) {
		end = len(it.texts)
	}
	it.cursor = end

	vectors, err := service.EmbedBatch(it.ctx, it.texts[start:end])
	if err != nil {
		var batchErr *ai.BatchError
		if !errors.As(err, &batchErr) {
			// Total capability failure aborts the remaining batches.
			it.err = errors.Wrapf(ErrUnavailable, "embed batch at %d: %v", start, err)
			return
		}
		for i, itemErr := range batchErr.Failed {
			it.failed[start+i] = itemErr
		}
	}

	it.buf = it.buf[:0]
	it.bufPos = 0
	for i, vector := range vectors {
		if vector == nil {
			if _, recorded := it.failed[start+i]; !recorded {
				it.failed[start+i] = errors.New("no vector returned")
			}
			continue
		}
		it.buf = append(it.buf, pair{index: start + i, vector: vector})
	}
}
