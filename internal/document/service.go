// Package document persists document records and their raw content. Chunks
// live in the index; this is the source of truth they are rebuilt from.
package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/kbengine/internal/models"
	"github.com/nikhilbhutani/kbengine/pkg/textextract"
)

// ErrNotFound is returned when no document matches the id within the scope.
var ErrNotFound = errors.New("document not found")

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

type CreateRequest struct {
	Title      string
	SourceKind string
	Content    string
	Metadata   map[string]any
}

func (s *Service) Create(ctx context.Context, ownerScope uuid.UUID, req CreateRequest) (*models.Document, error) {
	if req.SourceKind == "" {
		req.SourceKind = string(models.SourcePlainText)
	}

	metadata, _ := json.Marshal(req.Metadata)

	var doc models.Document
	err := s.db.QueryRow(ctx,
		`INSERT INTO documents (id, owner_scope, title, source_kind, raw_content, status, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, owner_scope, title, source_kind, raw_content, status, metadata, created_at`,
		uuid.New(), ownerScope, req.Title, req.SourceKind, req.Content, models.DocStatusPending, metadata,
	).Scan(&doc.ID, &doc.OwnerScope, &doc.Title, &doc.SourceKind, &doc.RawContent, &doc.Status, &doc.Metadata, &doc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return &doc, nil
}

type UploadRequest struct {
	Title    string
	FileName string
	FileSize int64
	Data     io.ReaderAt
	Metadata map[string]any
}

// CreateFromFile extracts text from an uploaded file and stores it as a
// document. The chunking strategy follows from the file type.
func (s *Service) CreateFromFile(ctx context.Context, ownerScope uuid.UUID, req UploadRequest) (*models.Document, error) {
	extracted, err := textextract.Extract(req.Data, req.FileSize, req.FileName)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}

	title := req.Title
	if title == "" {
		title = req.FileName
	}

	return s.Create(ctx, ownerScope, CreateRequest{
		Title:      title,
		SourceKind: extracted.SourceKind,
		Content:    extracted.Content,
		Metadata:   req.Metadata,
	})
}

func (s *Service) GetByID(ctx context.Context, ownerScope, id uuid.UUID) (*models.Document, error) {
	var doc models.Document
	err := s.db.QueryRow(ctx,
		`SELECT id, owner_scope, title, source_kind, raw_content, status, metadata, created_at
		 FROM documents WHERE id = $1 AND owner_scope = $2`,
		id, ownerScope,
	).Scan(&doc.ID, &doc.OwnerScope, &doc.Title, &doc.SourceKind, &doc.RawContent, &doc.Status, &doc.Metadata, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

func (s *Service) List(ctx context.Context, ownerScope uuid.UUID, limit, offset int) ([]models.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, owner_scope, title, source_kind, status, metadata, created_at
		 FROM documents WHERE owner_scope = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		ownerScope, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.OwnerScope, &d.Title, &d.SourceKind, &d.Status, &d.Metadata, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *Service) SetStatus(ctx context.Context, ownerScope, id uuid.UUID, status string) error {
	tag, err := s.db.Exec(ctx,
		"UPDATE documents SET status = $1 WHERE id = $2 AND owner_scope = $3",
		status, id, ownerScope,
	)
	if err != nil {
		return fmt.Errorf("set document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, ownerScope, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		"DELETE FROM documents WHERE id = $1 AND owner_scope = $2",
		id, ownerScope,
	)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
