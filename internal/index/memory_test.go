package index

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(scope, doc uuid.UUID, seq int, text string, embedding []float32) Entry {
	return Entry{
		ID:            uuid.New(),
		DocumentID:    doc,
		OwnerScope:    scope,
		SequenceIndex: seq,
		Text:          text,
		TokenCount:    len(text) / 5,
		Embedding:     embedding,
		IngestedAt:    time.Now(),
	}
}

func TestMemoryStore_ScopeIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	scopeA := uuid.New()
	scopeB := uuid.New()
	doc := uuid.New()

	require.NoError(t, store.Upsert(ctx, []Entry{
		entry(scopeA, doc, 0, "postgres connection pooling guide", nil),
	}))

	hits, err := store.LexicalSearch(ctx, scopeB, []string{"postgres", "pooling"}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits, "scope B must not see scope A's chunks")

	hits, err = store.LexicalSearch(ctx, scopeA, []string{"postgres", "pooling"}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestMemoryStore_DeleteByDocument(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	scope := uuid.New()
	docA := uuid.New()
	docB := uuid.New()

	require.NoError(t, store.Upsert(ctx, []Entry{
		entry(scope, docA, 0, "redis caching strategies overview", nil),
		entry(scope, docA, 1, "redis eviction policy tuning", nil),
		entry(scope, docB, 0, "redis cluster topology notes", nil),
	}))

	require.NoError(t, store.DeleteByDocument(ctx, scope, docA))

	hits, err := store.LexicalSearch(ctx, scope, []string{"redis"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, docB, hits[0].DocumentID)
}

func TestMemoryStore_DeleteByDocumentBefore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	scope := uuid.New()
	doc := uuid.New()

	old := entry(scope, doc, 0, "stale generation content", nil)
	old.IngestedAt = time.Now().Add(-time.Hour)
	require.NoError(t, store.Upsert(ctx, []Entry{old}))

	cutoff := time.Now()
	fresh := entry(scope, doc, 0, "fresh generation content", nil)
	require.NoError(t, store.Upsert(ctx, []Entry{fresh}))

	require.NoError(t, store.DeleteByDocumentBefore(ctx, scope, doc, cutoff))

	hits, err := store.LexicalSearch(ctx, scope, []string{"generation", "content"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, fresh.ID, hits[0].ChunkID)
	assert.Contains(t, hits[0].Text, "fresh")
}

func TestMemoryStore_LexicalRanksByFrequency(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	scope := uuid.New()
	doc := uuid.New()

	twice := entry(scope, doc, 0, "sharding explained, sharding in depth with examples", nil)
	once := entry(scope, doc, 1, "sharding mentioned once among other topics here", nil)
	require.NoError(t, store.Upsert(ctx, []Entry{once, twice}))

	hits, err := store.LexicalSearch(ctx, scope, []string{"sharding"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, twice.ID, hits[0].ChunkID)
	assert.Equal(t, 1.0, hits[0].Score, "top lexical hit normalizes to 1")
	assert.Less(t, hits[1].Score, hits[0].Score)
}

func TestMemoryStore_VectorSearchSkipsUnembedded(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	scope := uuid.New()
	doc := uuid.New()

	near := entry(scope, doc, 0, "close match", []float32{1, 0, 0})
	far := entry(scope, doc, 1, "far match", []float32{0, 1, 0})
	lexOnly := entry(scope, doc, 2, "no embedding at all", nil)
	require.NoError(t, store.Upsert(ctx, []Entry{near, far, lexOnly}))

	hits, err := store.VectorSearch(ctx, scope, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2, "chunk without embedding must be invisible to vector search")

	assert.Equal(t, near.ID, hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.InDelta(t, 0.0, hits[1].Score, 1e-9)
}

func TestMemoryStore_VectorSearchClampsNegative(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	scope := uuid.New()
	doc := uuid.New()

	opposite := entry(scope, doc, 0, "opposite direction", []float32{-1, 0, 0})
	require.NoError(t, store.Upsert(ctx, []Entry{opposite}))

	hits, err := store.VectorSearch(ctx, scope, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 0.0, hits[0].Score)
}

func TestMemoryStore_TruncatesToK(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	scope := uuid.New()
	doc := uuid.New()

	var entries []Entry
	for i := 0; i < 8; i++ {
		entries = append(entries, entry(scope, doc, i, "kubernetes deployment rollout", nil))
	}
	require.NoError(t, store.Upsert(ctx, entries))

	hits, err := store.LexicalSearch(ctx, scope, []string{"kubernetes"}, 3)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestMemoryStore_DeterministicTieBreak(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	scope := uuid.New()
	doc := uuid.New()

	// identical text so every hit scores the same
	var entries []Entry
	for i := 0; i < 5; i++ {
		entries = append(entries, entry(scope, doc, i, "identical scoring text", nil))
	}
	require.NoError(t, store.Upsert(ctx, entries))

	hits, err := store.LexicalSearch(ctx, scope, []string{"identical", "scoring"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 5)
	for i, h := range hits {
		assert.Equal(t, i, h.SequenceIndex, "ties must order by sequence index")
	}
}

func TestMemoryStore_UpsertReplacesEntry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	scope := uuid.New()
	doc := uuid.New()

	e := entry(scope, doc, 0, "original wording about indexes", nil)
	require.NoError(t, store.Upsert(ctx, []Entry{e}))

	e.Text = "rewritten wording about vacuuming"
	require.NoError(t, store.Upsert(ctx, []Entry{e}))

	hits, err := store.LexicalSearch(ctx, scope, []string{"indexes"}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits, "old postings must be gone after replace")

	hits, err = store.LexicalSearch(ctx, scope, []string{"vacuuming"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, e.ID, hits[0].ChunkID)
}
