// Package config loads studymesh configuration from an optional YAML file,
// STUDYMESH_* environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. STUDYMESH_MODEL_PROVIDER.
const EnvPrefix = "STUDYMESH"

// Config holds all configuration for studymesh.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Model     ModelConfig     `mapstructure:"model"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Search    SearchConfig    `mapstructure:"search"`
	Session   SessionConfig   `mapstructure:"session"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds HTTP transport settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxConcurrent   int           `mapstructure:"max_concurrent"`
	Metrics         bool          `mapstructure:"metrics"`
}

// ModelConfig selects the completion provider.
type ModelConfig struct {
	// Provider is one of openai, anthropic, gemini or mock.
	Provider    string  `mapstructure:"provider"`
	Name        string  `mapstructure:"name"`
	RouterName  string  `mapstructure:"router_name"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	MaxRetries  int     `mapstructure:"max_retries"`
}

// RetrievalConfig selects and tunes the textbook retriever.
type RetrievalConfig struct {
	// Backend is one of memory, bleve or qdrant.
	Backend   string       `mapstructure:"backend"`
	CacheSize int          `mapstructure:"cache_size"`
	Corpus    string       `mapstructure:"corpus"`
	TopK      TopKConfig   `mapstructure:"top_k"`
	Bleve     BleveConfig  `mapstructure:"bleve"`
	Qdrant    QdrantConfig `mapstructure:"qdrant"`
}

// TopKConfig holds per-specialist fragment counts.
type TopKConfig struct {
	QA      int `mapstructure:"qa"`
	Tutor   int `mapstructure:"tutor"`
	Planner int `mapstructure:"planner"`
}

// BleveConfig locates the on-disk index. An empty path keeps it in memory.
type BleveConfig struct {
	Path string `mapstructure:"path"`
}

// QdrantConfig addresses the vector collection and its embedder.
type QdrantConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	UseTLS         bool   `mapstructure:"use_tls"`
	Collection     string `mapstructure:"collection"`
	APIKey         string `mapstructure:"api_key"`
	PayloadKey     string `mapstructure:"payload_key"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

// RoutingConfig controls the supervisor.
type RoutingConfig struct {
	EnableSearch bool   `mapstructure:"enable_search"`
	DefaultRoute string `mapstructure:"default_route"`
	MaxHistory   int    `mapstructure:"max_history"`
}

// SearchConfig configures the web search tool.
type SearchConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	MaxResults    int           `mapstructure:"max_results"`
	MaxIterations int           `mapstructure:"max_iterations"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// SessionConfig bounds stored conversation history.
type SessionConfig struct {
	MaxTurns int `mapstructure:"max_turns"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration. An empty path uses defaults and environment
// variables only. Precedence, highest first: environment, file, defaults.
// Provider API keys fall back to their conventional variables
// (OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY, TAVILY_API_KEY).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config from %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Model.APIKey = expandEnv(cfg.Model.APIKey)
	if cfg.Model.APIKey == "" {
		cfg.Model.APIKey = providerKey(cfg.Model.Provider)
	}
	cfg.Search.APIKey = expandEnv(cfg.Search.APIKey)
	if cfg.Search.APIKey == "" {
		cfg.Search.APIKey = os.Getenv("TAVILY_API_KEY")
	}
	cfg.Retrieval.Qdrant.APIKey = expandEnv(cfg.Retrieval.Qdrant.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated fields and numeric bounds.
func (c *Config) Validate() error {
	var errs []error
	switch c.Model.Provider {
	case "openai", "anthropic", "gemini", "mock":
	default:
		errs = append(errs, fmt.Errorf("model.provider: unknown provider %q", c.Model.Provider))
	}
	switch c.Retrieval.Backend {
	case "memory", "bleve", "qdrant":
	default:
		errs = append(errs, fmt.Errorf("retrieval.backend: unknown backend %q", c.Retrieval.Backend))
	}
	if c.Retrieval.TopK.QA < 1 || c.Retrieval.TopK.Tutor < 1 || c.Retrieval.TopK.Planner < 1 {
		errs = append(errs, errors.New("retrieval.top_k: values must be >= 1"))
	}
	if c.Search.MaxIterations < 1 {
		errs = append(errs, errors.New("search.max_iterations: must be >= 1"))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.request_timeout", "90s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_concurrent", 10)
	v.SetDefault("server.metrics", true)

	v.SetDefault("model.provider", "openai")
	v.SetDefault("model.name", "")
	v.SetDefault("model.router_name", "")
	v.SetDefault("model.temperature", 0.0)
	v.SetDefault("model.max_tokens", 2048)
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.base_url", "")
	v.SetDefault("model.max_retries", 2)

	v.SetDefault("retrieval.backend", "memory")
	v.SetDefault("retrieval.cache_size", 256)
	v.SetDefault("retrieval.corpus", "")
	v.SetDefault("retrieval.top_k.qa", 3)
	v.SetDefault("retrieval.top_k.tutor", 3)
	v.SetDefault("retrieval.top_k.planner", 15)
	v.SetDefault("retrieval.bleve.path", "")
	v.SetDefault("retrieval.qdrant.host", "localhost")
	v.SetDefault("retrieval.qdrant.port", 6334)
	v.SetDefault("retrieval.qdrant.use_tls", false)
	v.SetDefault("retrieval.qdrant.collection", "lms_collection")
	v.SetDefault("retrieval.qdrant.api_key", "")
	v.SetDefault("retrieval.qdrant.payload_key", "page_content")
	v.SetDefault("retrieval.qdrant.embedding_model", "text-embedding-3-small")

	v.SetDefault("routing.enable_search", false)
	v.SetDefault("routing.default_route", "qa")
	v.SetDefault("routing.max_history", 0)

	v.SetDefault("search.api_key", "")
	v.SetDefault("search.max_results", 5)
	v.SetDefault("search.max_iterations", 5)
	v.SetDefault("search.timeout", "30s")

	v.SetDefault("session.max_turns", 50)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

func providerKey(provider string) string {
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "gemini":
		if k := os.Getenv("GEMINI_API_KEY"); k != "" {
			return k
		}
		return os.Getenv("GOOGLE_API_KEY")
	default:
		return ""
	}
}

// expandEnv resolves ${VAR} references.
func expandEnv(s string) string {
	if strings.Contains(s, "${") {
		return os.ExpandEnv(s)
	}
	return s
}
