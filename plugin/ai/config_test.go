package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/needscoop/needscoop/internal/profile"
)

func TestNewEmbeddingConfigFromProfile(t *testing.T) {
	tests := []struct {
		name       string
		profile    *profile.Profile
		wantModel  string
		wantDims   int
		wantAPIKey string
	}{
		{
			name: "openai defaults",
			profile: &profile.Profile{
				EmbeddingProvider: "openai",
				OpenAIAPIKey:      "sk-test",
				OpenAIBaseURL:     "https://api.openai.com/v1",
			},
			wantModel:  "text-embedding-3-small",
			wantDims:   1536,
			wantAPIKey: "sk-test",
		},
		{
			name: "siliconflow defaults",
			profile: &profile.Profile{
				EmbeddingProvider: "siliconflow",
				SiliconFlowAPIKey: "sf-test",
			},
			wantModel:  "BAAI/bge-m3",
			wantDims:   1024,
			wantAPIKey: "sf-test",
		},
		{
			name: "local defaults",
			profile: &profile.Profile{
				EmbeddingProvider:  "local",
				LocalModelPath:     "/data/models/model.onnx",
				LocalTokenizerPath: "/data/models/tokenizer.json",
			},
			wantModel: "all-MiniLM-L6-v2",
			wantDims:  384,
		},
		{
			name: "hash defaults",
			profile: &profile.Profile{
				EmbeddingProvider: "hash",
			},
			wantModel: "hash",
			wantDims:  384,
		},
		{
			name: "explicit model and dimensions win",
			profile: &profile.Profile{
				EmbeddingProvider:   "openai",
				OpenAIAPIKey:        "sk-test",
				EmbeddingModel:      "text-embedding-3-large",
				EmbeddingDimensions: 3072,
			},
			wantModel:  "text-embedding-3-large",
			wantDims:   3072,
			wantAPIKey: "sk-test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewEmbeddingConfigFromProfile(tt.profile)
			assert.Equal(t, tt.profile.EmbeddingProvider, cfg.Provider)
			assert.Equal(t, tt.wantModel, cfg.Model)
			assert.Equal(t, tt.wantDims, cfg.Dimensions)
			assert.Equal(t, tt.wantAPIKey, cfg.APIKey)
		})
	}
}

func TestEmbeddingConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *EmbeddingConfig
		expectError bool
	}{
		{
			name:        "missing provider",
			cfg:         &EmbeddingConfig{},
			expectError: true,
		},
		{
			name: "openai without api key",
			cfg: &EmbeddingConfig{
				Provider:   "openai",
				Dimensions: 1536,
			},
			expectError: true,
		},
		{
			name: "openai complete",
			cfg: &EmbeddingConfig{
				Provider:   "openai",
				APIKey:     "sk-test",
				Dimensions: 1536,
			},
			expectError: false,
		},
		{
			name: "local without model path",
			cfg: &EmbeddingConfig{
				Provider:      "local",
				TokenizerPath: "/m/tokenizer.json",
				Dimensions:    384,
			},
			expectError: true,
		},
		{
			name: "local complete",
			cfg: &EmbeddingConfig{
				Provider:      "local",
				ModelPath:     "/m/model.onnx",
				TokenizerPath: "/m/tokenizer.json",
				Dimensions:    384,
			},
			expectError: false,
		},
		{
			name: "hash needs nothing but dimensions",
			cfg: &EmbeddingConfig{
				Provider:   "hash",
				Dimensions: 384,
			},
			expectError: false,
		},
		{
			name: "zero dimensions",
			cfg: &EmbeddingConfig{
				Provider: "hash",
			},
			expectError: true,
		},
		{
			name: "unknown provider",
			cfg: &EmbeddingConfig{
				Provider:   "bogus",
				Dimensions: 128,
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.expectError {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
