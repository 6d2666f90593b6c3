package profile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearNeedscoopEnv blanks every variable FromEnv reads so defaults apply.
// t.Setenv restores the original values when the test finishes.
func clearNeedscoopEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NEEDSCOOP_SIGNAL_CONFIG",
		"NEEDSCOOP_EMBEDDING_PROVIDER",
		"NEEDSCOOP_EMBEDDING_MODEL",
		"NEEDSCOOP_EMBEDDING_DIMENSIONS",
		"NEEDSCOOP_OPENAI_API_KEY",
		"NEEDSCOOP_OPENAI_BASE_URL",
		"NEEDSCOOP_SILICONFLOW_API_KEY",
		"NEEDSCOOP_SILICONFLOW_BASE_URL",
		"NEEDSCOOP_LOCAL_MODEL_PATH",
		"NEEDSCOOP_LOCAL_TOKENIZER_PATH",
		"NEEDSCOOP_JETSTREAM_URL",
		"NEEDSCOOP_REDDIT_CLIENT_ID",
		"NEEDSCOOP_REDDIT_CLIENT_SECRET",
		"NEEDSCOOP_REDDIT_USER_AGENT",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearNeedscoopEnv(t)

	p := &Profile{Version: "0.1.0"}
	p.FromEnv()

	assert.Equal(t, "config/signals.yaml", p.SignalConfig)
	assert.Equal(t, "local", p.EmbeddingProvider)
	assert.Empty(t, p.EmbeddingModel)
	assert.Equal(t, 0, p.EmbeddingDimensions)
	assert.Equal(t, "https://api.openai.com/v1", p.OpenAIBaseURL)
	assert.Equal(t, "https://api.siliconflow.cn/v1", p.SiliconFlowBaseURL)
	assert.Equal(t, "wss://jetstream2.us-east.bsky.network/subscribe", p.JetstreamURL)
	assert.Equal(t, "needscoop:v0.1.0", p.RedditUserAgent)
	assert.Empty(t, p.RedditClientID)
	assert.Empty(t, p.RedditClientSecret)
}

func TestFromEnvOverrides(t *testing.T) {
	clearNeedscoopEnv(t)
	t.Setenv("NEEDSCOOP_SIGNAL_CONFIG", "/etc/needscoop/signals.yaml")
	t.Setenv("NEEDSCOOP_EMBEDDING_PROVIDER", "siliconflow")
	t.Setenv("NEEDSCOOP_EMBEDDING_MODEL", "BAAI/bge-m3")
	t.Setenv("NEEDSCOOP_EMBEDDING_DIMENSIONS", "384")
	t.Setenv("NEEDSCOOP_SILICONFLOW_API_KEY", "sk-test")
	t.Setenv("NEEDSCOOP_JETSTREAM_URL", "wss://jetstream1.us-west.bsky.network/subscribe")
	t.Setenv("NEEDSCOOP_REDDIT_CLIENT_ID", "client")
	t.Setenv("NEEDSCOOP_REDDIT_CLIENT_SECRET", "secret")
	t.Setenv("NEEDSCOOP_REDDIT_USER_AGENT", "needscoop-test")

	p := &Profile{Version: "0.1.0"}
	p.FromEnv()

	assert.Equal(t, "/etc/needscoop/signals.yaml", p.SignalConfig)
	assert.Equal(t, "siliconflow", p.EmbeddingProvider)
	assert.Equal(t, "BAAI/bge-m3", p.EmbeddingModel)
	assert.Equal(t, 384, p.EmbeddingDimensions)
	assert.Equal(t, "sk-test", p.SiliconFlowAPIKey)
	assert.Equal(t, "wss://jetstream1.us-west.bsky.network/subscribe", p.JetstreamURL)
	assert.Equal(t, "client", p.RedditClientID)
	assert.Equal(t, "secret", p.RedditClientSecret)
	assert.Equal(t, "needscoop-test", p.RedditUserAgent)
}

func TestFromEnvInvalidDimensions(t *testing.T) {
	clearNeedscoopEnv(t)
	t.Setenv("NEEDSCOOP_EMBEDDING_DIMENSIONS", "lots")

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, 0, p.EmbeddingDimensions)
}

func TestValidateModeFallback(t *testing.T) {
	tests := []struct {
		mode string
		want string
	}{
		{mode: "demo", want: "demo"},
		{mode: "dev", want: "dev"},
		{mode: "prod", want: "prod"},
		// Anything unrecognized falls back to demo.
		{mode: "", want: "demo"},
		{mode: "staging", want: "demo"},
		{mode: "production", want: "demo"},
	}
	for _, tt := range tests {
		t.Run("mode "+tt.mode, func(t *testing.T) {
			p := &Profile{Mode: tt.mode, Data: t.TempDir(), Driver: "sqlite"}
			require.NoError(t, p.Validate())
			assert.Equal(t, tt.want, p.Mode)
		})
	}
}

func TestValidateDataDir(t *testing.T) {
	t.Run("trims trailing separator", func(t *testing.T) {
		dir := t.TempDir()
		p := &Profile{Mode: "demo", Data: dir + string(filepath.Separator), Driver: "sqlite"}
		require.NoError(t, p.Validate())
		assert.Equal(t, dir, p.Data)
	})

	t.Run("missing directory", func(t *testing.T) {
		p := &Profile{Mode: "demo", Data: filepath.Join(t.TempDir(), "missing"), Driver: "sqlite"}
		assert.Error(t, p.Validate())
	})
}

func TestValidateSQLiteDSN(t *testing.T) {
	dir := t.TempDir()

	p := &Profile{Mode: "dev", Data: dir, Driver: "sqlite"}
	require.NoError(t, p.Validate())
	assert.Equal(t, filepath.Join(dir, "needscoop_dev.db"), p.DSN)

	// An explicit DSN is left alone.
	p = &Profile{Mode: "dev", Data: dir, Driver: "sqlite", DSN: "file:custom.db"}
	require.NoError(t, p.Validate())
	assert.Equal(t, "file:custom.db", p.DSN)
}

func TestValidateDemoEmbeddingFallback(t *testing.T) {
	p := &Profile{Mode: "demo", Data: t.TempDir(), Driver: "sqlite"}
	require.NoError(t, p.Validate())
	assert.Equal(t, "hash", p.EmbeddingProvider)

	p = &Profile{Mode: "demo", Data: t.TempDir(), Driver: "sqlite", EmbeddingProvider: "openai"}
	require.NoError(t, p.Validate())
	assert.Equal(t, "openai", p.EmbeddingProvider)
}

func TestValidateLocalModelDefaults(t *testing.T) {
	dir := t.TempDir()

	p := &Profile{Mode: "demo", Data: dir, Driver: "sqlite"}
	require.NoError(t, p.Validate())
	assert.Equal(t, filepath.Join(dir, "models", "all-MiniLM-L6-v2.onnx"), p.LocalModelPath)
	assert.Equal(t, filepath.Join(dir, "models", "tokenizer.json"), p.LocalTokenizerPath)

	p = &Profile{
		Mode:               "demo",
		Data:               dir,
		Driver:             "sqlite",
		LocalModelPath:     "/opt/models/custom.onnx",
		LocalTokenizerPath: "/opt/models/custom-tokenizer.json",
	}
	require.NoError(t, p.Validate())
	assert.Equal(t, "/opt/models/custom.onnx", p.LocalModelPath)
	assert.Equal(t, "/opt/models/custom-tokenizer.json", p.LocalTokenizerPath)
}

func TestIsDev(t *testing.T) {
	assert.True(t, (&Profile{Mode: "dev"}).IsDev())
	assert.True(t, (&Profile{Mode: "demo"}).IsDev())
	assert.False(t, (&Profile{Mode: "prod"}).IsDev())
}

func TestHasRedditAuth(t *testing.T) {
	assert.False(t, (&Profile{}).HasRedditAuth())
	assert.False(t, (&Profile{RedditClientID: "client"}).HasRedditAuth())
	assert.False(t, (&Profile{RedditClientSecret: "secret"}).HasRedditAuth())
	assert.True(t, (&Profile{RedditClientID: "client", RedditClientSecret: "secret"}).HasRedditAuth())
}
