// Package search runs the two retrieval signals concurrently and fuses them
// into a single ranked result list.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/kbengine/internal/embedding"
	"github.com/nikhilbhutani/kbengine/internal/index"
	"github.com/nikhilbhutani/kbengine/pkg/tokenizer"
)

// ErrTimeout is returned when neither signal produced results in time.
var ErrTimeout = errors.New("search: query timed out")

type Options struct {
	VectorWeight    float64
	LexicalWeight   float64
	OverfetchFactor int
	Timeout         time.Duration
}

func DefaultOptions() Options {
	return Options{
		VectorWeight:    0.7,
		LexicalWeight:   0.3,
		OverfetchFactor: 3,
		Timeout:         5 * time.Second,
	}
}

// Result is one ranked chunk. VectorScore and LexicalScore are the raw
// per-signal scores, FusedScore is the weighted blend, FinalScore is the
// blend after re-ranking heuristics.
type Result struct {
	ChunkID       uuid.UUID `json:"chunk_id"`
	DocumentID    uuid.UUID `json:"document_id"`
	SequenceIndex int       `json:"sequence_index"`
	Text          string    `json:"text"`
	HeadingPath   string    `json:"heading_path,omitempty"`
	TokenCount    int       `json:"token_count"`
	VectorScore   float64   `json:"vector_score"`
	LexicalScore  float64   `json:"lexical_score"`
	FusedScore    float64   `json:"fused_score"`
	FinalScore    float64   `json:"final_score"`
	IngestedAt    time.Time `json:"-"`
}

// Response carries the ranked results. Degraded is set when one signal was
// unavailable and the ranking ran on the other alone.
type Response struct {
	Results  []Result `json:"results"`
	Degraded bool     `json:"degraded"`
	Warnings []string `json:"warnings,omitempty"`
}

type Engine struct {
	store index.Store
	embed *embedding.Service
	opts  Options
}

func NewEngine(store index.Store, embed *embedding.Service, opts Options) *Engine {
	def := DefaultOptions()
	if opts.VectorWeight <= 0 && opts.LexicalWeight <= 0 {
		opts.VectorWeight = def.VectorWeight
		opts.LexicalWeight = def.LexicalWeight
	}
	if opts.OverfetchFactor <= 0 {
		opts.OverfetchFactor = def.OverfetchFactor
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	// weights are relative, scale them to sum to 1
	total := opts.VectorWeight + opts.LexicalWeight
	opts.VectorWeight /= total
	opts.LexicalWeight /= total
	return &Engine{store: store, embed: embed, opts: opts}
}

type branchResult struct {
	hits []index.Hit
	err  error
}

// Search retrieves the top k chunks for the query within the owner scope.
// The vector and lexical branches run concurrently; if one fails or times
// out the other still produces a degraded result.
func (e *Engine) Search(ctx context.Context, ownerScope uuid.UUID, query string, k int) (*Response, error) {
	if strings.TrimSpace(query) == "" || k <= 0 {
		return &Response{}, nil
	}

	queryVec, err := e.embed.EmbedQuery(ctx, query)
	if err != nil {
		slog.Warn("query embedding failed, lexical only", "error", err)
		resp, serr := e.SearchWithEmbedding(ctx, ownerScope, query, nil, k)
		if serr != nil {
			return nil, serr
		}
		resp.Degraded = true
		resp.Warnings = append(resp.Warnings, "query embedding unavailable, vector signal skipped")
		return resp, nil
	}
	return e.SearchWithEmbedding(ctx, ownerScope, query, queryVec, k)
}

// SearchWithEmbedding is Search with a precomputed query embedding. A nil
// embedding skips the vector branch.
func (e *Engine) SearchWithEmbedding(ctx context.Context, ownerScope uuid.UUID, query string, queryVec []float32, k int) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" || k <= 0 {
		return &Response{}, nil
	}
	if ownerScope == uuid.Nil {
		return nil, fmt.Errorf("search: missing owner scope")
	}

	fetchK := k * e.opts.OverfetchFactor

	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	resp := &Response{}

	vectorCh := make(chan branchResult, 1)
	lexicalCh := make(chan branchResult, 1)

	go func() {
		if queryVec == nil {
			vectorCh <- branchResult{}
			return
		}
		hits, err := e.store.VectorSearch(ctx, ownerScope, queryVec, fetchK)
		vectorCh <- branchResult{hits: hits, err: err}
	}()

	terms := tokenizer.Terms(query)
	go func() {
		if len(terms) == 0 {
			lexicalCh <- branchResult{}
			return
		}
		hits, err := e.store.LexicalSearch(ctx, ownerScope, terms, fetchK)
		lexicalCh <- branchResult{hits: hits, err: err}
	}()

	vector := <-vectorCh
	lexical := <-lexicalCh

	if vector.err != nil {
		slog.Warn("vector search failed", "error", vector.err)
		resp.Degraded = true
		resp.Warnings = append(resp.Warnings, "vector signal failed")
	}
	if lexical.err != nil {
		slog.Warn("lexical search failed", "error", lexical.err)
		resp.Degraded = true
		resp.Warnings = append(resp.Warnings, "lexical signal failed")
	}

	vectorDown := queryVec == nil || vector.err != nil
	lexicalDown := len(terms) == 0 || lexical.err != nil
	if vectorDown && lexicalDown && (vector.err != nil || lexical.err != nil) {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
		}
		return nil, fmt.Errorf("search: all signals failed: %w", errors.Join(vector.err, lexical.err))
	}

	fused := fuse(vector.hits, lexical.hits, e.opts.VectorWeight, e.opts.LexicalWeight)
	ranked := Rerank(terms, fused)
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	resp.Results = ranked
	return resp, nil
}

// fuse merges the two hit lists by chunk. A chunk found by only one signal
// keeps a zero contribution from the other.
func fuse(vector, lexical []index.Hit, vw, lw float64) []Result {
	byChunk := make(map[uuid.UUID]*Result)

	add := func(h index.Hit) *Result {
		r, ok := byChunk[h.ChunkID]
		if !ok {
			r = &Result{
				ChunkID:       h.ChunkID,
				DocumentID:    h.DocumentID,
				SequenceIndex: h.SequenceIndex,
				Text:          h.Text,
				HeadingPath:   h.HeadingPath,
				TokenCount:    h.TokenCount,
				IngestedAt:    h.IngestedAt,
			}
			byChunk[h.ChunkID] = r
		}
		return r
	}

	for _, h := range vector {
		add(h).VectorScore = h.Score
	}
	for _, h := range lexical {
		add(h).LexicalScore = h.Score
	}

	results := make([]Result, 0, len(byChunk))
	for _, r := range byChunk {
		r.FusedScore = vw*r.VectorScore + lw*r.LexicalScore
		results = append(results, *r)
	}
	return results
}

// sortResults orders by final score descending with a deterministic
// tie-break.
func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].FinalScore != results[j].FinalScore {
			return results[i].FinalScore > results[j].FinalScore
		}
		if results[i].SequenceIndex != results[j].SequenceIndex {
			return results[i].SequenceIndex < results[j].SequenceIndex
		}
		return results[i].ChunkID.String() < results[j].ChunkID.String()
	})
}
