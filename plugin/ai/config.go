package ai

import (
	"errors"

	"github.com/needscoop/needscoop/internal/profile"
)

// EmbeddingConfig represents vector embedding configuration.
type EmbeddingConfig struct {
	Provider   string // openai, siliconflow, local, hash
	Model      string // text-embedding-3-small, BAAI/bge-m3, all-MiniLM-L6-v2
	Dimensions int
	APIKey     string
	BaseURL    string

	// Local provider settings
	ModelPath     string // ONNX model file
	TokenizerPath string // tokenizer.json next to the model
	MaxSeqLen     int
}

// NewEmbeddingConfigFromProfile creates embedding config from profile,
// filling in per-provider model and dimension defaults.
func NewEmbeddingConfigFromProfile(p *profile.Profile) *EmbeddingConfig {
	cfg := &EmbeddingConfig{
		Provider:      p.EmbeddingProvider,
		Model:         p.EmbeddingModel,
		Dimensions:    p.EmbeddingDimensions,
		ModelPath:     p.LocalModelPath,
		TokenizerPath: p.LocalTokenizerPath,
		MaxSeqLen:     256,
	}

	switch p.EmbeddingProvider {
	case "openai":
		cfg.APIKey = p.OpenAIAPIKey
		cfg.BaseURL = p.OpenAIBaseURL
		if cfg.Model == "" {
			cfg.Model = "text-embedding-3-small"
		}
		if cfg.Dimensions == 0 {
			cfg.Dimensions = 1536
		}
	case "siliconflow":
		cfg.APIKey = p.SiliconFlowAPIKey
		cfg.BaseURL = p.SiliconFlowBaseURL
		if cfg.Model == "" {
			cfg.Model = "BAAI/bge-m3"
		}
		if cfg.Dimensions == 0 {
			cfg.Dimensions = 1024
		}
	case "local":
		if cfg.Model == "" {
			cfg.Model = "all-MiniLM-L6-v2"
		}
		if cfg.Dimensions == 0 {
			cfg.Dimensions = 384
		}
	case "hash":
		if cfg.Model == "" {
			cfg.Model = "hash"
		}
		if cfg.Dimensions == 0 {
			cfg.Dimensions = 384
		}
	}

	return cfg
}

// Validate validates the configuration.
func (c *EmbeddingConfig) Validate() error {
	if c.Provider == "" {
		return errors.New("embedding provider is required")
	}

	switch c.Provider {
	case "openai", "siliconflow":
		if c.APIKey == "" {
			return errors.New("embedding API key is required")
		}
	case "local":
		if c.ModelPath == "" {
			return errors.New("local embedding model path is required")
		}
		if c.TokenizerPath == "" {
			return errors.New("local embedding tokenizer path is required")
		}
	case "hash":
		// Nothing to configure.
	default:
		return errors.New("unsupported embedding provider: " + c.Provider)
	}

	if c.Dimensions <= 0 {
		return errors.New("embedding dimensions must be positive")
	}
	return nil
}
