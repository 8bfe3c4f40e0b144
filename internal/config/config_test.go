package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks vars that may leak in from the host environment.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SERVER_PORT", "DATABASE_URL", "REDIS_ADDR",
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY",
		"MAX_CHUNK_TOKENS", "CHUNK_OVERLAP_TOKENS",
		"SEARCH_VECTOR_WEIGHT", "SEARCH_LEXICAL_WEIGHT",
		"CACHE_SIMILARITY_THRESHOLD", "CACHE_TTL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 512, cfg.Retrieval.MaxChunkTokens)
	assert.Equal(t, 50, cfg.Retrieval.ChunkOverlapTokens)
	assert.Equal(t, 0.7, cfg.Retrieval.VectorWeight)
	assert.Equal(t, 0.3, cfg.Retrieval.LexicalWeight)
	assert.Equal(t, 3, cfg.Retrieval.OverfetchFactor)
	assert.Equal(t, 5*time.Second, cfg.Retrieval.QueryTimeout)
	assert.Equal(t, 0.95, cfg.Cache.SimilarityThreshold)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "text-embedding-3-small", cfg.LLM.EmbeddingModel)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("MAX_CHUNK_TOKENS", "256")
	t.Setenv("CACHE_TTL", "1h")
	t.Setenv("SEARCH_VECTOR_WEIGHT", "0.6")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 256, cfg.Retrieval.MaxChunkTokens)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 0.6, cfg.Retrieval.VectorWeight)
}

func TestLoad_RejectsMalformedValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "not-a-port")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/kb")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestValidate_MissingRequired(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestValidate_OverlapMustBeSmaller(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/kb")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("MAX_CHUNK_TOKENS", "100")
	t.Setenv("CHUNK_OVERLAP_TOKENS", "100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
}
