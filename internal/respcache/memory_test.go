package respcache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_HitAboveThreshold(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0.95, time.Hour)
	scope := uuid.New()

	require.NoError(t, c.Store(ctx, Entry{
		OwnerScope:     scope,
		Query:          "how do I tune postgres vacuum",
		QueryEmbedding: []float32{1, 0, 0},
		Answer:         "run autovacuum with a lower scale factor",
	}))

	// 0.995 similarity, a near-identical rephrasing
	entry, ok, err := c.Lookup(ctx, scope, []float32{0.995, 0.0998, 0})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "run autovacuum with a lower scale factor", entry.Answer)
}

func TestMemoryCache_MissBelowThreshold(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0.95, time.Hour)
	scope := uuid.New()

	require.NoError(t, c.Store(ctx, Entry{
		OwnerScope:     scope,
		QueryEmbedding: []float32{1, 0, 0},
		Answer:         "cached answer",
	}))

	// ~0.71 similarity, related but not the same question
	_, ok, err := c.Lookup(ctx, scope, []float32{0.71, 0.70, 0})
	require.NoError(t, err)
	assert.False(t, ok, "related-but-different queries must miss")
}

func TestMemoryCache_PicksBestAboveThreshold(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0.9, time.Hour)
	scope := uuid.New()

	require.NoError(t, c.Store(ctx, Entry{
		OwnerScope: scope, QueryEmbedding: []float32{0.95, 0.3122, 0}, Answer: "close",
	}))
	require.NoError(t, c.Store(ctx, Entry{
		OwnerScope: scope, QueryEmbedding: []float32{1, 0, 0}, Answer: "closest",
	}))

	entry, ok, err := c.Lookup(ctx, scope, []float32{1, 0, 0})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "closest", entry.Answer)
}

func TestMemoryCache_ScopeIsolation(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0.95, time.Hour)
	scopeA := uuid.New()
	scopeB := uuid.New()

	require.NoError(t, c.Store(ctx, Entry{
		OwnerScope: scopeA, QueryEmbedding: []float32{1, 0, 0}, Answer: "scope A answer",
	}))

	_, ok, err := c.Lookup(ctx, scopeB, []float32{1, 0, 0})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0.95, time.Hour)
	scope := uuid.New()

	base := time.Now()
	c.now = func() time.Time { return base }

	require.NoError(t, c.Store(ctx, Entry{
		OwnerScope: scope, QueryEmbedding: []float32{1, 0, 0}, Answer: "fresh answer",
	}))

	_, ok, err := c.Lookup(ctx, scope, []float32{1, 0, 0})
	require.NoError(t, err)
	assert.True(t, ok)

	c.now = func() time.Time { return base.Add(2 * time.Hour) }

	_, ok, err = c.Lookup(ctx, scope, []float32{1, 0, 0})
	require.NoError(t, err)
	assert.False(t, ok, "expired entries must not be served")
}

func TestMemoryCache_InvalidateScope(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0.95, time.Hour)
	scope := uuid.New()

	require.NoError(t, c.Store(ctx, Entry{
		OwnerScope: scope, QueryEmbedding: []float32{1, 0, 0}, Answer: "soon stale",
	}))
	require.NoError(t, c.InvalidateScope(ctx, scope))

	_, ok, err := c.Lookup(ctx, scope, []float32{1, 0, 0})
	require.NoError(t, err)
	assert.False(t, ok, "ingest invalidation must drop cached answers")
}

func TestDot(t *testing.T) {
	assert.InDelta(t, 1.0, dot([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, dot([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 0.0, dot([]float32{1, 0}, []float32{1}), 1e-9, "length mismatch scores zero")
}
