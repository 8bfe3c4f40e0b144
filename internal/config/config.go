package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Retrieval RetrievalConfig
	Cache     CacheConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LLMConfig struct {
	OpenAIKey       string
	AnthropicKey    string
	DefaultProvider string
	DefaultModel    string
	EmbeddingModel  string
	MaxRetries      int
}

type RetrievalConfig struct {
	MaxChunkTokens     int
	ChunkOverlapTokens int
	VectorWeight       float64
	LexicalWeight      float64
	OverfetchFactor    int
	EmbedBatchSize     int
	EmbedWorkers       int
	QueryTimeout       time.Duration
}

type CacheConfig struct {
	SimilarityThreshold float64
	TTL                 time.Duration
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxRetries, err := getEnvInt("LLM_MAX_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_RETRIES: %w", err)
	}

	maxChunkTokens, err := getEnvInt("MAX_CHUNK_TOKENS", 512)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_CHUNK_TOKENS: %w", err)
	}

	overlapTokens, err := getEnvInt("CHUNK_OVERLAP_TOKENS", 50)
	if err != nil {
		return nil, fmt.Errorf("invalid CHUNK_OVERLAP_TOKENS: %w", err)
	}

	vectorWeight, err := getEnvFloat("SEARCH_VECTOR_WEIGHT", 0.7)
	if err != nil {
		return nil, fmt.Errorf("invalid SEARCH_VECTOR_WEIGHT: %w", err)
	}

	lexicalWeight, err := getEnvFloat("SEARCH_LEXICAL_WEIGHT", 0.3)
	if err != nil {
		return nil, fmt.Errorf("invalid SEARCH_LEXICAL_WEIGHT: %w", err)
	}

	overfetch, err := getEnvInt("SEARCH_OVERFETCH_FACTOR", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid SEARCH_OVERFETCH_FACTOR: %w", err)
	}

	embedBatch, err := getEnvInt("EMBED_BATCH_SIZE", 100)
	if err != nil {
		return nil, fmt.Errorf("invalid EMBED_BATCH_SIZE: %w", err)
	}

	embedWorkers, err := getEnvInt("EMBED_WORKERS", 4)
	if err != nil {
		return nil, fmt.Errorf("invalid EMBED_WORKERS: %w", err)
	}

	queryTimeout, err := getEnvDuration("SEARCH_QUERY_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SEARCH_QUERY_TIMEOUT: %w", err)
	}

	cacheThreshold, err := getEnvFloat("CACHE_SIMILARITY_THRESHOLD", 0.95)
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_SIMILARITY_THRESHOLD: %w", err)
	}

	cacheTTL, err := getEnvDuration("CACHE_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		LLM: LLMConfig{
			OpenAIKey:       getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:    getEnv("ANTHROPIC_API_KEY", ""),
			DefaultProvider: getEnv("LLM_DEFAULT_PROVIDER", "openai"),
			DefaultModel:    getEnv("LLM_DEFAULT_MODEL", "gpt-4o-mini"),
			EmbeddingModel:  getEnv("LLM_EMBEDDING_MODEL", "text-embedding-3-small"),
			MaxRetries:      maxRetries,
		},
		Retrieval: RetrievalConfig{
			MaxChunkTokens:     maxChunkTokens,
			ChunkOverlapTokens: overlapTokens,
			VectorWeight:       vectorWeight,
			LexicalWeight:      lexicalWeight,
			OverfetchFactor:    overfetch,
			EmbedBatchSize:     embedBatch,
			EmbedWorkers:       embedWorkers,
			QueryTimeout:       queryTimeout,
		},
		Cache: CacheConfig{
			SimilarityThreshold: cacheThreshold,
			TTL:                 cacheTTL,
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.LLM.OpenAIKey == "" && c.LLM.AnthropicKey == "" {
		missing = append(missing, "OPENAI_API_KEY or ANTHROPIC_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	if c.Retrieval.ChunkOverlapTokens >= c.Retrieval.MaxChunkTokens {
		return fmt.Errorf("CHUNK_OVERLAP_TOKENS must be smaller than MAX_CHUNK_TOKENS")
	}
	if c.Retrieval.VectorWeight < 0 || c.Retrieval.LexicalWeight < 0 {
		return fmt.Errorf("search weights must be non-negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
