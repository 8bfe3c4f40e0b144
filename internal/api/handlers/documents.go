package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/kbengine/internal/document"
	"github.com/nikhilbhutani/kbengine/internal/engine"
	"github.com/nikhilbhutani/kbengine/internal/queue"
	"github.com/nikhilbhutani/kbengine/internal/scope"
)

type DocumentHandler struct {
	svc         *document.Service
	eng         *engine.Engine
	queueClient *queue.Client
}

func NewDocumentHandler(svc *document.Service, eng *engine.Engine, qc *queue.Client) *DocumentHandler {
	return &DocumentHandler{svc: svc, eng: eng, queueClient: qc}
}

type createDocumentRequest struct {
	Title      string         `json:"title"`
	SourceKind string         `json:"source_kind"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Create accepts either a JSON body with inline content or a multipart form
// with a file. Ingestion runs in the background; poll the status endpoint.
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerScope := scope.FromContext(r.Context())

	var created *documentResponse
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		created = h.createFromUpload(w, r, ownerScope)
	} else {
		created = h.createFromJSON(w, r, ownerScope)
	}
	if created == nil {
		return
	}

	if err := h.queueClient.EnqueueDocumentIngest(queue.DocumentIngestPayload{
		DocumentID: created.ID,
		OwnerScope: ownerScope.String(),
	}); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to queue ingestion"})
		return
	}

	writeJSON(w, http.StatusAccepted, created)
}

type documentResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	SourceKind string `json:"source_kind"`
	Status     string `json:"status"`
}

func (h *DocumentHandler) createFromJSON(w http.ResponseWriter, r *http.Request, ownerScope uuid.UUID) *documentResponse {
	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return nil
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "content required"})
		return nil
	}

	doc, err := h.svc.Create(r.Context(), ownerScope, document.CreateRequest{
		Title:      req.Title,
		SourceKind: req.SourceKind,
		Content:    req.Content,
		Metadata:   req.Metadata,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return nil
	}
	return &documentResponse{
		ID:         doc.ID.String(),
		Title:      doc.Title,
		SourceKind: string(doc.SourceKind),
		Status:     doc.Status,
	}
}

func (h *DocumentHandler) createFromUpload(w http.ResponseWriter, r *http.Request, ownerScope uuid.UUID) *documentResponse {
	if err := r.ParseMultipartForm(32 << 20); err != nil { // 32MB max
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return nil
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file required"})
		return nil
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read file"})
		return nil
	}

	doc, err := h.svc.CreateFromFile(r.Context(), ownerScope, document.UploadRequest{
		Title:    r.FormValue("title"),
		FileName: header.Filename,
		FileSize: int64(len(data)),
		Data:     bytes.NewReader(data),
	})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return nil
	}
	return &documentResponse{
		ID:         doc.ID.String(),
		Title:      doc.Title,
		SourceKind: string(doc.SourceKind),
		Status:     doc.Status,
	}
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerScope := scope.FromContext(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 20
	}

	docs, err := h.svc.List(r.Context(), ownerScope, limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "count": len(docs)})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerScope := scope.FromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid document ID"})
		return
	}

	doc, err := h.svc.GetByID(r.Context(), ownerScope, id)
	if errors.Is(err, document.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "document not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// Delete removes the document record and its indexed chunks, then drops the
// scope's cached answers.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerScope := scope.FromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid document ID"})
		return
	}

	if err := h.svc.Delete(r.Context(), ownerScope, id); err != nil {
		if errors.Is(err, document.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "document not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if err := h.eng.DeleteDocument(r.Context(), ownerScope, id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	ownerScope := scope.FromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid document ID"})
		return
	}

	doc, err := h.svc.GetByID(r.Context(), ownerScope, id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "document not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"id": doc.ID.String(), "status": doc.Status})
}
