// Package embedding turns chunk and query text into unit-length vectors,
// batching provider calls and isolating failures to the chunks that caused
// them.
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/nikhilbhutani/kbengine/internal/llm"
)

type Options struct {
	BatchSize  int
	Workers    int
	MaxRetries int
}

type Service struct {
	gateway llm.Gateway
	model   string
	opts    Options
}

// Result is index-aligned with the input texts. A nil vector means that text
// could not be embedded and should be indexed for lexical search only.
type Result struct {
	Vectors  [][]float32
	Warnings []string
}

func NewService(gw llm.Gateway, model string, opts Options) *Service {
	if model == "" {
		model = "text-embedding-3-small"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	return &Service{gateway: gw, model: model, opts: opts}
}

// EmbedAll embeds every text, running batches concurrently. A batch that
// keeps failing is split until the failing text is isolated; that text gets a
// nil vector and a warning instead of sinking the whole document. The call
// errors only when nothing could be embedded at all.
func (s *Service) EmbedAll(ctx context.Context, texts []string) (*Result, error) {
	if len(texts) == 0 {
		return &Result{}, nil
	}

	res := &Result{Vectors: make([][]float32, len(texts))}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for start := 0; start < len(texts); start += s.opts.BatchSize {
		end := min(start+s.opts.BatchSize, len(texts))
		start := start
		batch := texts[start:end]

		g.Go(func() error {
			return s.embedRange(gctx, batch, start, res, &mu)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	embedded := 0
	for _, v := range res.Vectors {
		if v != nil {
			embedded++
		}
	}
	if embedded == 0 {
		return nil, fmt.Errorf("embed: no text could be embedded: %w", llm.ErrUnavailable)
	}
	return res, nil
}

// EmbedQuery embeds a single query string.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embed query: no embedding returned")
	}
	return vectors[0], nil
}

// embedRange embeds a batch, writing vectors into their absolute positions.
// On failure it bisects, so one poison text costs only itself.
func (s *Service) embedRange(ctx context.Context, batch []string, offset int, res *Result, mu *sync.Mutex) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	vectors, err := s.embedBatch(ctx, batch)
	if err == nil {
		mu.Lock()
		copy(res.Vectors[offset:], vectors)
		mu.Unlock()
		return nil
	}

	if len(batch) == 1 {
		slog.Warn("chunk could not be embedded, indexing lexical only",
			"position", offset, "error", err)
		mu.Lock()
		res.Warnings = append(res.Warnings, fmt.Sprintf("chunk %d not embedded: %v", offset, err))
		mu.Unlock()
		return nil
	}

	half := len(batch) / 2
	if err := s.embedRange(ctx, batch[:half], offset, res, mu); err != nil {
		return err
	}
	return s.embedRange(ctx, batch[half:], offset+half, res, mu)
}

// embedBatch makes one provider call with retry, returning unit-normalized
// vectors.
func (s *Service) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		resp, err := s.gateway.Embed(ctx, llm.EmbeddingRequest{
			Model: s.model,
			Input: texts,
		})
		if err != nil {
			if llm.Retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Embeddings) != len(texts) {
			return backoff.Permanent(fmt.Errorf("embed: got %d vectors for %d texts", len(resp.Embeddings), len(texts)))
		}
		vectors = resp.Embeddings
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	policy := backoff.WithMaxRetries(b, uint64(s.opts.MaxRetries))
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}

	for i := range vectors {
		vectors[i] = Normalize(vectors[i])
	}
	return vectors, nil
}

// Normalize scales a vector to unit length so cosine similarity reduces to a
// dot product. Zero vectors pass through unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}
