// Package index stores chunk records and serves the two retrieval signals:
// vector similarity and lexical ranking. Every operation is scoped; a store
// never returns a chunk from another owner scope.
package index

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is one chunk ready for indexing. A nil Embedding means the chunk is
// findable through lexical search only.
type Entry struct {
	ID            uuid.UUID
	DocumentID    uuid.UUID
	OwnerScope    uuid.UUID
	SequenceIndex int
	Text          string
	HeadingPath   string
	TokenCount    int
	OverlapTokens int
	Embedding     []float32
	IngestedAt    time.Time
}

// Hit is a scored match from one retrieval signal. Score is normalized to
// [0, 1] within the result set.
type Hit struct {
	ChunkID       uuid.UUID
	DocumentID    uuid.UUID
	SequenceIndex int
	Text          string
	HeadingPath   string
	TokenCount    int
	Score         float64
	IngestedAt    time.Time
}

type Store interface {
	// Upsert publishes entries; each entry becomes visible atomically, a
	// reader sees either the old version of a chunk or the new one.
	Upsert(ctx context.Context, entries []Entry) error

	// DeleteByDocument removes every chunk of the document in the scope.
	DeleteByDocument(ctx context.Context, ownerScope, documentID uuid.UUID) error

	// DeleteByDocumentBefore removes the document's chunks ingested before
	// the cutoff. Re-ingestion inserts the new generation first, then calls
	// this to retire the old one.
	DeleteByDocumentBefore(ctx context.Context, ownerScope, documentID uuid.UUID, cutoff time.Time) error

	// VectorSearch returns up to k chunks by cosine similarity against the
	// query vector. Chunks without an embedding are never returned.
	VectorSearch(ctx context.Context, ownerScope uuid.UUID, queryVec []float32, k int) ([]Hit, error)

	// LexicalSearch returns up to k chunks ranked against the query terms.
	LexicalSearch(ctx context.Context, ownerScope uuid.UUID, terms []string, k int) ([]Hit, error)
}
