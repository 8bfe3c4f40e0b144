package index

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgStore backs the index with Postgres: pgvector for the vector signal and
// a tsvector column for the lexical signal.
type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) Upsert(ctx context.Context, entries []Entry) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		id := e.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		ingestedAt := e.IngestedAt
		if ingestedAt.IsZero() {
			ingestedAt = time.Now()
		}

		var embedding any
		if e.Embedding != nil {
			embedding = pgvector.NewVector(e.Embedding)
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO document_chunks
			   (id, document_id, owner_scope, sequence_index, content, heading_path, embedding, token_count, overlap_tokens, ingested_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (id) DO UPDATE SET
			   content = $5, heading_path = $6, embedding = $7, token_count = $8, overlap_tokens = $9, ingested_at = $10`,
			id, e.DocumentID, e.OwnerScope, e.SequenceIndex, e.Text, e.HeadingPath, embedding, e.TokenCount, e.OverlapTokens, ingestedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert chunk %d: %w", e.SequenceIndex, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PgStore) DeleteByDocument(ctx context.Context, ownerScope, documentID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		"DELETE FROM document_chunks WHERE owner_scope = $1 AND document_id = $2",
		ownerScope, documentID,
	)
	if err != nil {
		return fmt.Errorf("delete document chunks: %w", err)
	}
	return nil
}

func (s *PgStore) DeleteByDocumentBefore(ctx context.Context, ownerScope, documentID uuid.UUID, cutoff time.Time) error {
	_, err := s.db.Exec(ctx,
		"DELETE FROM document_chunks WHERE owner_scope = $1 AND document_id = $2 AND ingested_at < $3",
		ownerScope, documentID, cutoff,
	)
	if err != nil {
		return fmt.Errorf("delete stale chunks: %w", err)
	}
	return nil
}

func (s *PgStore) VectorSearch(ctx context.Context, ownerScope uuid.UUID, queryVec []float32, k int) ([]Hit, error) {
	if k <= 0 || len(queryVec) == 0 {
		return nil, nil
	}

	embedding := pgvector.NewVector(queryVec)

	rows, err := s.db.Query(ctx,
		`SELECT id, document_id, sequence_index, content, heading_path, token_count, ingested_at,
		        GREATEST(1 - (embedding <=> $1), 0) AS score
		 FROM document_chunks
		 WHERE owner_scope = $2 AND embedding IS NOT NULL
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		embedding, ownerScope, k,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	return scanHits(rows, false)
}

func (s *PgStore) LexicalSearch(ctx context.Context, ownerScope uuid.UUID, terms []string, k int) ([]Hit, error) {
	if k <= 0 || len(terms) == 0 {
		return nil, nil
	}

	query := strings.Join(terms, " ")

	rows, err := s.db.Query(ctx,
		`SELECT id, document_id, sequence_index, content, heading_path, token_count, ingested_at,
		        ts_rank(tsv, plainto_tsquery('english', $1)) AS score
		 FROM document_chunks
		 WHERE owner_scope = $2 AND tsv @@ plainto_tsquery('english', $1)
		 ORDER BY score DESC
		 LIMIT $3`,
		query, ownerScope, k,
	)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	// ts_rank is unbounded, normalize by the top score
	return scanHits(rows, true)
}

func scanHits(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}, normalize bool) ([]Hit, error) {
	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ChunkID, &h.DocumentID, &h.SequenceIndex, &h.Text, &h.HeadingPath, &h.TokenCount, &h.IngestedAt, &h.Score); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hits: %w", err)
	}

	if normalize && len(hits) > 0 && hits[0].Score > 0 {
		top := hits[0].Score
		for i := range hits {
			hits[i].Score /= top
		}
	}
	return hits, nil
}
