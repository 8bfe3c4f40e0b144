// Package respcache caches generated answers keyed by query embedding. A
// lookup matches when a stored query's cosine similarity clears the
// threshold; anything below it is a miss, never a worse answer.
package respcache

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultSimilarityThreshold = 0.95
	DefaultTTL                 = 24 * time.Hour
)

// Entry is one cached answer together with the embedding of the query that
// produced it.
type Entry struct {
	ID             uuid.UUID   `json:"id"`
	OwnerScope     uuid.UUID   `json:"owner_scope"`
	Query          string      `json:"query"`
	QueryEmbedding []float32   `json:"query_embedding"`
	Answer         string      `json:"answer"`
	SourceChunkIDs []uuid.UUID `json:"source_chunk_ids,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	ExpiresAt      time.Time   `json:"expires_at"`
}

type Cache interface {
	// Lookup returns the best entry whose query embedding clears the
	// similarity threshold, or ok=false on a miss.
	Lookup(ctx context.Context, ownerScope uuid.UUID, queryEmbedding []float32) (*Entry, bool, error)

	// Store saves an entry. Best effort; a failed store is not an error the
	// caller needs to act on.
	Store(ctx context.Context, entry Entry) error

	// InvalidateScope drops every cached answer in the scope. Called on any
	// ingestion or deletion, since changed content can change any answer.
	InvalidateScope(ctx context.Context, ownerScope uuid.UUID) error
}
