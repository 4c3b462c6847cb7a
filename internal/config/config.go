// Package config provides configuration management for shoprec.
// Settings are loaded from environment variables with the SHOPREC_ prefix,
// with sensible defaults for every option. An optional YAML file can be
// overlaid on top of the environment via LoadConfigFile; explicit file values
// win over environment values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the shoprec service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Provider  ProviderConfig  `yaml:"provider"`
	Signals   SignalsConfig   `yaml:"signals"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Security  SecurityConfig  `yaml:"security"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"` // Server port (default: 7171)
	Host string `yaml:"host"` // Server host (default: 127.0.0.1)

	// RateLimitPerSec and RateLimitBurst configure the API rate limiter.
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"` // default: 20
	RateLimitBurst  int     `yaml:"rate_limit_burst"`   // default: 40
}

// StorageConfig contains database and signal-state storage configuration.
type StorageConfig struct {
	Engine      string `yaml:"engine"`       // sqlite or postgres (default: sqlite)
	DataPath    string `yaml:"data_path"`    // SQLite data directory (default: ./data)
	PostgresDSN string `yaml:"postgres_dsn"` // DSN when engine is postgres

	// RedisAddr, when non-empty, moves recently-viewed and trending snapshot
	// state to Redis instead of the durable store.
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// EmbeddingCacheSize is the capacity of the in-memory LRU in front of the
	// durable embedding store (default: 4096 vectors).
	EmbeddingCacheSize int `yaml:"embedding_cache_size"`
}

// ProviderConfig contains embedding provider configuration.
type ProviderConfig struct {
	Provider             string        `yaml:"provider"`       // openai or ollama (default: ollama)
	OllamaURL            string        `yaml:"ollama_url"`     // default: http://localhost:11434
	OllamaEmbeddingModel string        `yaml:"ollama_model"`   // default: nomic-embed-text
	OpenAIAPIKey         string        `yaml:"openai_api_key"` // required when provider is openai
	OpenAIBaseURL        string        `yaml:"openai_base_url"`
	OpenAIEmbeddingModel string        `yaml:"openai_model"` // default: text-embedding-3-small
	Timeout              time.Duration `yaml:"timeout"`      // per-request timeout (default: 30s)

	// RequestsPerSec caps outbound provider calls client-side so batch jobs
	// stay under the provider's rate limit (default: 5).
	RequestsPerSec float64 `yaml:"requests_per_sec"`

	// QuotaCooldown is how long provider calls are short-circuited after a
	// quota/rate-limit error (default: 5m).
	QuotaCooldown time.Duration `yaml:"quota_cooldown"`
}

// SignalsConfig contains aggregator tuning.
type SignalsConfig struct {
	TrendingWindow    time.Duration `yaml:"trending_window"`     // rolling window (default: 168h)
	TrendingInterval  time.Duration `yaml:"trending_interval"`   // recompute interval (default: 10m)
	PurchaseWeight    float64       `yaml:"purchase_weight"`     // default: 5
	ViewWeight        float64       `yaml:"view_weight"`         // default: 1
	RecentlyViewedCap int           `yaml:"recently_viewed_cap"` // per-subject log length (default: 20)
}

// EmbeddingConfig contains the async embedding pipeline settings.
type EmbeddingConfig struct {
	NumWorkers       int `yaml:"num_workers"`       // queue workers (default: 2)
	QueueSize        int `yaml:"queue_size"`        // job queue depth (default: 256)
	MaxRetries       int `yaml:"max_retries"`       // per-job retry cap (default: 3)
	BatchSize        int `yaml:"batch_size"`        // texts per provider batch call (default: 32)
	BatchConcurrency int `yaml:"batch_concurrency"` // concurrent batch calls in backfill (default: 2)
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string `yaml:"security_mode"` // development or production (default: development)
	APIToken     string `yaml:"api_token"`     // bearer token required in production
}

// LoadConfig loads configuration from environment variables with defaults.
func LoadConfig() (*Config, error) {
	return buildBaseConfig(), nil
}

// LoadConfigFile loads configuration from the environment and then overlays
// the YAML file at path. Values present in the file override the environment.
func LoadConfigFile(path string) (*Config, error) {
	cfg := buildBaseConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// buildBaseConfig constructs a Config with values from environment variables
// and defaults. This is the shared base for LoadConfig and LoadConfigFile.
func buildBaseConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnvInt("SHOPREC_PORT", 7171),
			Host:            getEnv("SHOPREC_HOST", "127.0.0.1"),
			RateLimitPerSec: getEnvFloat("SHOPREC_RATE_LIMIT_PER_SEC", 20),
			RateLimitBurst:  getEnvInt("SHOPREC_RATE_LIMIT_BURST", 40),
		},
		Storage: StorageConfig{
			Engine:             getEnv("SHOPREC_STORAGE_ENGINE", "sqlite"),
			DataPath:           getEnv("SHOPREC_DATA_PATH", "./data"),
			PostgresDSN:        getEnv("SHOPREC_POSTGRES_DSN", ""),
			RedisAddr:          getEnv("SHOPREC_REDIS_ADDR", ""),
			RedisPassword:      getEnv("SHOPREC_REDIS_PASSWORD", ""),
			RedisDB:            getEnvInt("SHOPREC_REDIS_DB", 0),
			EmbeddingCacheSize: getEnvInt("SHOPREC_EMBEDDING_CACHE_SIZE", 4096),
		},
		Provider: ProviderConfig{
			Provider:             getEnv("SHOPREC_PROVIDER", "ollama"),
			OllamaURL:            getEnv("SHOPREC_OLLAMA_URL", "http://localhost:11434"),
			OllamaEmbeddingModel: getEnv("SHOPREC_OLLAMA_MODEL", "nomic-embed-text"),
			OpenAIAPIKey:         getEnv("SHOPREC_OPENAI_API_KEY", ""),
			OpenAIBaseURL:        getEnv("SHOPREC_OPENAI_BASE_URL", ""),
			OpenAIEmbeddingModel: getEnv("SHOPREC_OPENAI_MODEL", "text-embedding-3-small"),
			Timeout:              getEnvDuration("SHOPREC_PROVIDER_TIMEOUT", 30*time.Second),
			RequestsPerSec:       getEnvFloat("SHOPREC_PROVIDER_REQUESTS_PER_SEC", 5),
			QuotaCooldown:        getEnvDuration("SHOPREC_PROVIDER_QUOTA_COOLDOWN", 5*time.Minute),
		},
		Signals: SignalsConfig{
			TrendingWindow:    getEnvDuration("SHOPREC_TRENDING_WINDOW", 168*time.Hour),
			TrendingInterval:  getEnvDuration("SHOPREC_TRENDING_INTERVAL", 10*time.Minute),
			PurchaseWeight:    getEnvFloat("SHOPREC_TRENDING_PURCHASE_WEIGHT", 5),
			ViewWeight:        getEnvFloat("SHOPREC_TRENDING_VIEW_WEIGHT", 1),
			RecentlyViewedCap: getEnvInt("SHOPREC_RECENTLY_VIEWED_CAP", 20),
		},
		Embedding: EmbeddingConfig{
			NumWorkers:       getEnvInt("SHOPREC_EMBEDDING_WORKERS", 2),
			QueueSize:        getEnvInt("SHOPREC_EMBEDDING_QUEUE_SIZE", 256),
			MaxRetries:       getEnvInt("SHOPREC_EMBEDDING_MAX_RETRIES", 3),
			BatchSize:        getEnvInt("SHOPREC_EMBEDDING_BATCH_SIZE", 32),
			BatchConcurrency: getEnvInt("SHOPREC_EMBEDDING_BATCH_CONCURRENCY", 2),
		},
		Security: SecurityConfig{
			SecurityMode: getEnv("SHOPREC_SECURITY_MODE", "development"),
			APIToken:     getEnv("SHOPREC_API_TOKEN", ""),
		},
	}
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. If the variable exists but cannot be parsed, the default is used.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value. If the variable exists but cannot be parsed, the default is used.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (Go duration
// syntax, e.g. "10m") or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
