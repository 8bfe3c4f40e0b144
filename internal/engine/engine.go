// Package engine orchestrates the retrieval pipeline: chunk, embed, index on
// the way in; hybrid search, generation, and the response cache on the way
// out.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/kbengine/internal/embedding"
	"github.com/nikhilbhutani/kbengine/internal/index"
	"github.com/nikhilbhutani/kbengine/internal/llm"
	"github.com/nikhilbhutani/kbengine/internal/models"
	"github.com/nikhilbhutani/kbengine/internal/respcache"
	"github.com/nikhilbhutani/kbengine/internal/search"
	"github.com/nikhilbhutani/kbengine/pkg/chunker"
)

type Engine struct {
	store    index.Store
	embedSvc *embedding.Service
	searcher *search.Engine
	cache    respcache.Cache
	gateway  llm.Gateway

	chunkOpts   chunker.Options
	answerModel string
}

func New(store index.Store, embedSvc *embedding.Service, searcher *search.Engine, cache respcache.Cache, gw llm.Gateway, chunkOpts chunker.Options, answerModel string) *Engine {
	if chunkOpts.MaxTokens <= 0 {
		chunkOpts = chunker.DefaultOptions()
	}
	return &Engine{
		store:       store,
		embedSvc:    embedSvc,
		searcher:    searcher,
		cache:       cache,
		gateway:     gw,
		chunkOpts:   chunkOpts,
		answerModel: answerModel,
	}
}

type IngestRequest struct {
	DocumentID uuid.UUID
	OwnerScope uuid.UUID
	SourceKind string
	Content    string
}

// Ingest chunks, embeds, and indexes a document. Re-ingestion inserts the
// new generation first and retires the old one after, so concurrent searches
// never see an empty document. A document with no extractable text simply
// ends up with zero chunks.
func (e *Engine) Ingest(ctx context.Context, req IngestRequest) (*models.IngestResult, error) {
	if req.OwnerScope == uuid.Nil {
		return nil, fmt.Errorf("ingest: %w", ErrScopeViolation)
	}
	if req.DocumentID == uuid.Nil {
		return nil, fmt.Errorf("ingest: missing document id")
	}

	start := time.Now()
	result := &models.IngestResult{DocumentID: req.DocumentID}

	split := chunker.Split(req.SourceKind, req.Content, e.chunkOpts)
	result.Warnings = append(result.Warnings, split.Warnings...)

	if len(split.Chunks) == 0 {
		if err := e.store.DeleteByDocument(ctx, req.OwnerScope, req.DocumentID); err != nil {
			return nil, fmt.Errorf("ingest: clear document: %w", err)
		}
		e.invalidate(ctx, req.OwnerScope)
		return result, nil
	}

	texts := make([]string, len(split.Chunks))
	for i, c := range split.Chunks {
		texts[i] = c.Text
	}

	embedded, err := e.embedSvc.EmbedAll(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ingest: embed chunks: %w", err)
	}
	result.Warnings = append(result.Warnings, embedded.Warnings...)

	entries := make([]index.Entry, len(split.Chunks))
	now := time.Now()
	for i, c := range split.Chunks {
		entries[i] = index.Entry{
			ID:            uuid.New(),
			DocumentID:    req.DocumentID,
			OwnerScope:    req.OwnerScope,
			SequenceIndex: c.Index,
			Text:          c.Text,
			HeadingPath:   c.HeadingPath,
			TokenCount:    c.TokenCount,
			OverlapTokens: c.OverlapTokens,
			Embedding:     embedded.Vectors[i],
			IngestedAt:    now,
		}
	}

	if err := e.store.Upsert(ctx, entries); err != nil {
		return nil, fmt.Errorf("ingest: index chunks: %w", err)
	}
	if err := e.store.DeleteByDocumentBefore(ctx, req.OwnerScope, req.DocumentID, start); err != nil {
		return nil, fmt.Errorf("ingest: retire stale chunks: %w", err)
	}

	e.invalidate(ctx, req.OwnerScope)

	result.ChunkCount = len(entries)
	return result, nil
}

// DeleteDocument removes every chunk of the document and invalidates the
// scope's cached answers.
func (e *Engine) DeleteDocument(ctx context.Context, ownerScope, documentID uuid.UUID) error {
	if ownerScope == uuid.Nil {
		return fmt.Errorf("delete document: %w", ErrScopeViolation)
	}
	if err := e.store.DeleteByDocument(ctx, ownerScope, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	e.invalidate(ctx, ownerScope)
	return nil
}

// Search runs hybrid retrieval within the scope.
func (e *Engine) Search(ctx context.Context, ownerScope uuid.UUID, query string, k int) (*search.Response, error) {
	if ownerScope == uuid.Nil {
		return nil, fmt.Errorf("search: %w", ErrScopeViolation)
	}
	return e.searcher.Search(ctx, ownerScope, query, k)
}

type Answer struct {
	Answer         string          `json:"answer"`
	Cached         bool            `json:"cached"`
	SourceChunkIDs []uuid.UUID     `json:"source_chunk_ids,omitempty"`
	Results        []search.Result `json:"results,omitempty"`
	Degraded       bool            `json:"degraded"`
	Warnings       []string        `json:"warnings,omitempty"`
}

// AnswerQuery answers a question over the scope's documents, consulting the
// response cache first. Fresh answers are stored back asynchronously; a
// failed store only costs a future cache hit.
func (e *Engine) AnswerQuery(ctx context.Context, ownerScope uuid.UUID, query string, k int) (*Answer, error) {
	if ownerScope == uuid.Nil {
		return nil, fmt.Errorf("answer: %w", ErrScopeViolation)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return &Answer{}, nil
	}
	if k <= 0 {
		k = 5
	}

	var queryVec []float32
	vec, err := e.embedSvc.EmbedQuery(ctx, query)
	if err != nil {
		slog.Warn("query embedding failed, skipping cache", "error", err)
	} else {
		queryVec = vec
	}

	if queryVec != nil {
		entry, ok, err := e.cache.Lookup(ctx, ownerScope, queryVec)
		if err != nil {
			slog.Warn("cache lookup failed", "error", err)
		} else if ok {
			return &Answer{Answer: entry.Answer, Cached: true, SourceChunkIDs: entry.SourceChunkIDs}, nil
		}
	}

	resp, err := e.searcher.SearchWithEmbedding(ctx, ownerScope, query, queryVec, k)
	if err != nil {
		return nil, fmt.Errorf("answer: %w", err)
	}

	sourceIDs := make([]uuid.UUID, len(resp.Results))
	for i, r := range resp.Results {
		sourceIDs[i] = r.ChunkID
	}

	answer := &Answer{
		SourceChunkIDs: sourceIDs,
		Results:        resp.Results,
		Degraded:       resp.Degraded || queryVec == nil,
		Warnings:       resp.Warnings,
	}
	if queryVec == nil {
		answer.Warnings = append(answer.Warnings, "query embedding unavailable, vector signal skipped")
	}

	chatResp, err := e.gateway.Chat(ctx, llm.ChatRequest{
		Model: e.answerModel,
		Messages: []llm.Message{
			{Role: "system", Content: answerSystemPrompt},
			{Role: "user", Content: buildPrompt(query, resp.Results)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("answer: generate: %w", err)
	}
	answer.Answer = chatResp.Content

	if queryVec != nil {
		e.storeAsync(ctx, respcache.Entry{
			OwnerScope:     ownerScope,
			Query:          query,
			QueryEmbedding: queryVec,
			Answer:         answer.Answer,
			SourceChunkIDs: sourceIDs,
		})
	}
	return answer, nil
}

const answerSystemPrompt = `You are a helpful assistant. Answer the user's question based on the provided context.
If the context doesn't contain enough information, say so. Cite sources as [Source N] where N is the context chunk number.`

func buildPrompt(query string, results []search.Result) string {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	for i, r := range results {
		fmt.Fprintf(&sb, "[Source %d] (score: %.3f)\n%s\n\n", i+1, r.FinalScore, r.Text)
	}
	fmt.Fprintf(&sb, "Question: %s", query)
	return sb.String()
}

// storeAsync writes the cache entry in the background, detached from the
// request's cancellation.
func (e *Engine) storeAsync(ctx context.Context, entry respcache.Entry) {
	bg := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(bg, 5*time.Second)
		defer cancel()
		if err := e.cache.Store(ctx, entry); err != nil {
			slog.Debug("cache store failed", "error", err)
		}
	}()
}

func (e *Engine) invalidate(ctx context.Context, ownerScope uuid.UUID) {
	if err := e.cache.InvalidateScope(ctx, ownerScope); err != nil {
		slog.Warn("cache invalidation failed", "scope", ownerScope, "error", err)
	}
}
