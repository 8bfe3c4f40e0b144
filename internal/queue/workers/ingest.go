// Package workers holds the asynq task handlers for background ingestion.
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/kbengine/internal/document"
	"github.com/nikhilbhutani/kbengine/internal/engine"
	"github.com/nikhilbhutani/kbengine/internal/models"
	"github.com/nikhilbhutani/kbengine/internal/queue"
)

// IngestWorker processes document:ingest tasks: load the stored document,
// run the full chunk-embed-index pipeline, record the outcome on the
// document's status.
type IngestWorker struct {
	docSvc *document.Service
	eng    *engine.Engine
}

func NewIngestWorker(docSvc *document.Service, eng *engine.Engine) *IngestWorker {
	return &IngestWorker{docSvc: docSvc, eng: eng}
}

func (w *IngestWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.DocumentIngestPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	docID, err := uuid.Parse(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("parse document ID: %w", err)
	}
	ownerScope, err := uuid.Parse(payload.OwnerScope)
	if err != nil {
		return fmt.Errorf("parse owner scope: %w", err)
	}

	slog.Info("ingesting document", "document_id", docID, "owner_scope", ownerScope)

	if err := w.docSvc.SetStatus(ctx, ownerScope, docID, models.DocStatusProcessing); err != nil {
		return fmt.Errorf("set status processing: %w", err)
	}

	doc, err := w.docSvc.GetByID(ctx, ownerScope, docID)
	if err != nil {
		w.fail(ctx, ownerScope, docID)
		return fmt.Errorf("get document: %w", err)
	}

	result, err := w.eng.Ingest(ctx, engine.IngestRequest{
		DocumentID: docID,
		OwnerScope: ownerScope,
		SourceKind: string(doc.SourceKind),
		Content:    doc.RawContent,
	})
	if err != nil {
		w.fail(ctx, ownerScope, docID)
		return fmt.Errorf("ingest document: %w", err)
	}

	if err := w.docSvc.SetStatus(ctx, ownerScope, docID, models.DocStatusReady); err != nil {
		return fmt.Errorf("set status ready: %w", err)
	}

	slog.Info("document ingested",
		"document_id", docID,
		"chunks", result.ChunkCount,
		"warnings", len(result.Warnings),
	)
	return nil
}

func (w *IngestWorker) fail(ctx context.Context, ownerScope, docID uuid.UUID) {
	if err := w.docSvc.SetStatus(ctx, ownerScope, docID, models.DocStatusFailed); err != nil {
		slog.Error("failed to mark document failed", "document_id", docID, "error", err)
	}
}
