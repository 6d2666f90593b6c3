package ai

import (
	"context"
	"math"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortInit    sync.Once
	ortInitErr error
)

// initRuntime initializes the process-wide ONNX runtime environment once.
// NEEDSCOOP_ONNXRUNTIME_LIB overrides the shared library location when the
// runtime is not on the default search path.
func initRuntime() error {
	ortInit.Do(func() {
		if path := os.Getenv("NEEDSCOOP_ONNXRUNTIME_LIB"); path != "" {
			ort.SetSharedLibraryPath(path)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// localEmbeddingService runs a MiniLM-class sentence transformer exported
// to ONNX in-process: tokenize, run the encoder, mean-pool the token states
// under the attention mask, then L2-normalize.
type localEmbeddingService struct {
	session    *ort.DynamicAdvancedSession
	tk         *tokenizer.Tokenizer
	dimensions int
	maxSeqLen  int

	// Serializes session runs.
	mu sync.Mutex
}

// NewLocalEmbeddingService loads the ONNX model and tokenizer named by the
// config and returns an in-process embedding service.
func NewLocalEmbeddingService(cfg *EmbeddingConfig) (EmbeddingService, error) {
	if err := initRuntime(); err != nil {
		return nil, errors.Wrap(err, "initialize onnx runtime")
	}

	tk, err := pretrained.FromFile(cfg.TokenizerPath)
	if err != nil {
		return nil, errors.Wrapf(err, "load tokenizer %s", cfg.TokenizerPath)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil)
	if err != nil {
		return nil, errors.Wrapf(err, "load onnx model %s", cfg.ModelPath)
	}

	maxSeqLen := cfg.MaxSeqLen
	if maxSeqLen <= 0 {
		maxSeqLen = 256
	}

	return &localEmbeddingService{
		session:    session,
		tk:         tk,
		dimensions: cfg.Dimensions,
		maxSeqLen:  maxSeqLen,
	}, nil
}

func (s *localEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || vectors[0] == nil {
		return nil, errors.New("empty embedding result")
	}
	return vectors[0], nil
}

func (s *localEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts provided for embedding")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	failed := make(map[int]error)

	// Tokenize first so per-item failures never abort the whole batch.
	type encoded struct {
		index int
		ids   []int
		mask  []int
	}
	var batch []encoded
	seqLen := 1
	for i, text := range texts {
		enc, err := s.tk.EncodeSingle(text, true)
		if err != nil {
			failed[i] = errors.Wrap(err, "tokenize")
			continue
		}
		ids, mask := enc.Ids, enc.AttentionMask
		if len(ids) > s.maxSeqLen {
			ids = ids[:s.maxSeqLen]
			mask = mask[:s.maxSeqLen]
		}
		if len(ids) > seqLen {
			seqLen = len(ids)
		}
		batch = append(batch, encoded{index: i, ids: ids, mask: mask})
	}

	if len(batch) > 0 {
		n := len(batch)
		ids := make([]int64, n*seqLen)
		mask := make([]int64, n*seqLen)
		typeIds := make([]int64, n*seqLen)
		for row, enc := range batch {
			for col, id := range enc.ids {
				ids[row*seqLen+col] = int64(id)
				mask[row*seqLen+col] = int64(enc.mask[col])
			}
		}

		pooled, err := s.run(n, seqLen, ids, mask, typeIds)
		if err != nil {
			return nil, err
		}
		for row, enc := range batch {
			vectors[enc.index] = pooled[row]
		}
	}

	if len(failed) > 0 {
		return vectors, &BatchError{Failed: failed}
	}
	return vectors, nil
}

// run executes one encoder pass and mean-pools the hidden states.
func (s *localEmbeddingService) run(n, seqLen int, ids, mask, typeIds []int64) ([][]float32, error) {
	shape := ort.NewShape(int64(n), int64(seqLen))

	idsTensor, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, errors.Wrap(err, "create input_ids tensor")
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, errors.Wrap(err, "create attention_mask tensor")
	}
	defer maskTensor.Destroy()
	typeTensor, err := ort.NewTensor(shape, typeIds)
	if err != nil {
		return nil, errors.Wrap(err, "create token_type_ids tensor")
	}
	defer typeTensor.Destroy()

	outputs := []ort.Value{nil}
	s.mu.Lock()
	err = s.session.Run([]ort.Value{idsTensor, maskTensor, typeTensor}, outputs)
	s.mu.Unlock()
	if err != nil {
		return nil, errors.Wrap(err, "run onnx session")
	}

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.New("unexpected output tensor type")
	}
	defer out.Destroy()

	outShape := out.GetShape()
	if len(outShape) != 3 {
		return nil, errors.Errorf("unexpected output shape %v", outShape)
	}
	hidden := int(outShape[2])
	if hidden != s.dimensions {
		return nil, errors.Errorf("model hidden size %d does not match configured dimensions %d", hidden, s.dimensions)
	}

	data := out.GetData()
	pooled := make([][]float32, n)
	for row := 0; row < n; row++ {
		vec := make([]float32, hidden)
		var count float64
		for col := 0; col < seqLen; col++ {
			if mask[row*seqLen+col] == 0 {
				continue
			}
			count++
			base := (row*seqLen + col) * hidden
			for d := 0; d < hidden; d++ {
				vec[d] += data[base+d]
			}
		}
		if count > 0 {
			inv := float32(1 / count)
			for d := range vec {
				vec[d] *= inv
			}
		}
		normalizeInPlace(vec)
		pooled[row] = vec
	}
	return pooled, nil
}

func (s *localEmbeddingService) Dimensions() int {
	return s.dimensions
}

func normalizeInPlace(vec []float32) {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
}
