package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the needscoop process.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for the API server
	Addr string
	// Port is the binding port for the API server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where needscoop stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of the binary
	Version string

	// SignalConfig is the path to the signal pattern configuration file
	SignalConfig string // NEEDSCOOP_SIGNAL_CONFIG

	// Embedding configuration
	EmbeddingProvider   string // NEEDSCOOP_EMBEDDING_PROVIDER (openai, siliconflow, local, hash)
	EmbeddingModel      string // NEEDSCOOP_EMBEDDING_MODEL
	EmbeddingDimensions int    // NEEDSCOOP_EMBEDDING_DIMENSIONS (0 = provider default)
	OpenAIAPIKey        string // NEEDSCOOP_OPENAI_API_KEY
	OpenAIBaseURL       string // NEEDSCOOP_OPENAI_BASE_URL (default: https://api.openai.com/v1)
	SiliconFlowAPIKey   string // NEEDSCOOP_SILICONFLOW_API_KEY
	SiliconFlowBaseURL  string // NEEDSCOOP_SILICONFLOW_BASE_URL (default: https://api.siliconflow.cn/v1)
	LocalModelPath      string // NEEDSCOOP_LOCAL_MODEL_PATH (ONNX model file)
	LocalTokenizerPath  string // NEEDSCOOP_LOCAL_TOKENIZER_PATH (tokenizer.json)

	// Collector configuration
	JetstreamURL       string // NEEDSCOOP_JETSTREAM_URL
	RedditClientID     string // NEEDSCOOP_REDDIT_CLIENT_ID
	RedditClientSecret string // NEEDSCOOP_REDDIT_CLIENT_SECRET
	RedditUserAgent    string // NEEDSCOOP_REDDIT_USER_AGENT
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// HasRedditAuth returns true when OAuth credentials for the Reddit API are configured.
// Without them the collector falls back to the public JSON listings.
func (p *Profile) HasRedditAuth() bool {
	return p.RedditClientID != "" && p.RedditClientSecret != ""
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvOrDefault returns an integer environment variable value or the default value.
func getIntEnvOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// FromEnv loads the extended configuration from NEEDSCOOP_* environment variables.
// Core settings (mode, addr, port, data, driver, dsn) are bound through flags in cmd.
func (p *Profile) FromEnv() {
	p.SignalConfig = getEnvOrDefault("NEEDSCOOP_SIGNAL_CONFIG", "config/signals.yaml")

	p.EmbeddingProvider = getEnvOrDefault("NEEDSCOOP_EMBEDDING_PROVIDER", "local")
	p.EmbeddingModel = os.Getenv("NEEDSCOOP_EMBEDDING_MODEL")
	p.EmbeddingDimensions = getIntEnvOrDefault("NEEDSCOOP_EMBEDDING_DIMENSIONS", 0)
	p.OpenAIAPIKey = os.Getenv("NEEDSCOOP_OPENAI_API_KEY")
	p.OpenAIBaseURL = getEnvOrDefault("NEEDSCOOP_OPENAI_BASE_URL", "https://api.openai.com/v1")
	p.SiliconFlowAPIKey = os.Getenv("NEEDSCOOP_SILICONFLOW_API_KEY")
	p.SiliconFlowBaseURL = getEnvOrDefault("NEEDSCOOP_SILICONFLOW_BASE_URL", "https://api.siliconflow.cn/v1")
	p.LocalModelPath = os.Getenv("NEEDSCOOP_LOCAL_MODEL_PATH")
	p.LocalTokenizerPath = os.Getenv("NEEDSCOOP_LOCAL_TOKENIZER_PATH")

	p.JetstreamURL = getEnvOrDefault("NEEDSCOOP_JETSTREAM_URL", "wss://jetstream2.us-east.bsky.network/subscribe")
	p.RedditClientID = os.Getenv("NEEDSCOOP_REDDIT_CLIENT_ID")
	p.RedditClientSecret = os.Getenv("NEEDSCOOP_REDDIT_CLIENT_SECRET")
	p.RedditUserAgent = getEnvOrDefault("NEEDSCOOP_REDDIT_USER_AGENT", "needscoop:v"+p.Version)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "needscoop")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/needscoop"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("needscoop_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	// Demo mode runs without network or model files.
	if p.Mode == "demo" && p.EmbeddingProvider == "" {
		p.EmbeddingProvider = "hash"
	}
	if p.LocalModelPath == "" {
		p.LocalModelPath = filepath.Join(dataDir, "models", "all-MiniLM-L6-v2.onnx")
	}
	if p.LocalTokenizerPath == "" {
		p.LocalTokenizerPath = filepath.Join(dataDir, "models", "tokenizer.json")
	}

	return nil
}
