package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Corpus        CorpusConfig
	Query         QueryConfig
	Providers     ProvidersConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// CorpusConfig holds the paths of the precomputed corpus artifacts
// produced by the ingest pipeline.
type CorpusConfig struct {
	PassagesPath string
	VectorsPath  string
}

// QueryConfig holds per-query defaults and caps.
type QueryConfig struct {
	DefaultTopK             int
	MaxTopK                 int
	DefaultMaxContextTokens int
	MaxContextTokensCap     int
}

// ProvidersConfig holds embedding/generation provider configurations
type ProvidersConfig struct {
	OpenAI OpenAIConfig
}

// OpenAIConfig configures the OpenAI-compatible provider. BaseURL may
// point at any server speaking the OpenAI API (Ollama, vLLM, ...).
type OpenAIConfig struct {
	APIKey              string
	BaseURL             string
	EmbeddingModel      string
	ChatModel           string
	EmbeddingDimensions int
	Temperature         float64
	Timeout             time.Duration
	MaxRetries          int
	RetryDelay          time.Duration
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Corpus: CorpusConfig{
			PassagesPath: getEnv("CORPUS_PASSAGES_PATH", "data/processed/passages.json"),
			VectorsPath:  getEnv("CORPUS_VECTORS_PATH", "data/embeddings/vectors.json"),
		},
		Query: QueryConfig{
			DefaultTopK:             getEnvAsInt("QUERY_DEFAULT_TOP_K", 5),
			MaxTopK:                 getEnvAsInt("QUERY_MAX_TOP_K", 20),
			DefaultMaxContextTokens: getEnvAsInt("QUERY_DEFAULT_MAX_CONTEXT_TOKENS", 1500),
			MaxContextTokensCap:     getEnvAsInt("QUERY_MAX_CONTEXT_TOKENS_CAP", 4000),
		},
		Providers: ProvidersConfig{
			OpenAI: OpenAIConfig{
				APIKey:              getEnv("OPENAI_API_KEY", ""),
				BaseURL:             getEnv("OPENAI_BASE_URL", ""),
				EmbeddingModel:      getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
				ChatModel:           getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
				EmbeddingDimensions: getEnvAsInt("OPENAI_EMBEDDING_DIMENSIONS", 0),
				Temperature:         getEnvAsFloat("OPENAI_TEMPERATURE", 0.3),
				Timeout:             getEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second),
				MaxRetries:          getEnvAsInt("OPENAI_MAX_RETRIES", 3),
				RetryDelay:          getEnvAsDuration("OPENAI_RETRY_DELAY", time.Second),
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d", c.Server.Port)
	}
	if c.Corpus.PassagesPath == "" {
		return fmt.Errorf("CORPUS_PASSAGES_PATH must not be empty")
	}
	if c.Corpus.VectorsPath == "" {
		return fmt.Errorf("CORPUS_VECTORS_PATH must not be empty")
	}
	if c.Query.DefaultTopK <= 0 {
		return fmt.Errorf("QUERY_DEFAULT_TOP_K must be positive, got %d", c.Query.DefaultTopK)
	}
	if c.Query.MaxTopK < c.Query.DefaultTopK {
		return fmt.Errorf("QUERY_MAX_TOP_K (%d) must be >= QUERY_DEFAULT_TOP_K (%d)",
			c.Query.MaxTopK, c.Query.DefaultTopK)
	}
	if c.Query.DefaultMaxContextTokens <= 0 {
		return fmt.Errorf("QUERY_DEFAULT_MAX_CONTEXT_TOKENS must be positive, got %d", c.Query.DefaultMaxContextTokens)
	}
	if c.Query.MaxContextTokensCap < c.Query.DefaultMaxContextTokens {
		return fmt.Errorf("QUERY_MAX_CONTEXT_TOKENS_CAP (%d) must be >= QUERY_DEFAULT_MAX_CONTEXT_TOKENS (%d)",
			c.Query.MaxContextTokensCap, c.Query.DefaultMaxContextTokens)
	}
	return nil
}

// IsDevelopment returns true when running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
