package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SourceKind selects the chunking strategy for a document.
type SourceKind string

const (
	SourcePlainText SourceKind = "text"
	SourceMarkup    SourceKind = "markup"
	SourceCode      SourceKind = "code"
	SourceMarkdown  SourceKind = "markdown"
)

// Document is an ingested knowledge unit. Content is immutable once chunked;
// re-ingestion supersedes the old chunks rather than editing them.
type Document struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	OwnerScope uuid.UUID       `json:"owner_scope" db:"owner_scope"`
	Title      string          `json:"title" db:"title"`
	SourceKind SourceKind      `json:"source_kind" db:"source_kind"`
	RawContent string          `json:"raw_content,omitempty" db:"raw_content"`
	Status     string          `json:"status" db:"status"`
	Metadata   json.RawMessage `json:"metadata" db:"metadata"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

const (
	DocStatusPending    = "pending"
	DocStatusProcessing = "processing"
	DocStatusReady      = "ready"
	DocStatusFailed     = "failed"
)

// IngestResult summarizes a single document ingestion. Warnings accumulate
// non-fatal degradations (oversized chunks, lexical-only chunks).
type IngestResult struct {
	DocumentID uuid.UUID `json:"document_id"`
	ChunkCount int       `json:"chunk_count"`
	Warnings   []string  `json:"warnings,omitempty"`
}
