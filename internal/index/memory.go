package index

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/kbengine/pkg/tokenizer"
)

// BM25 parameters, standard values.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// MemoryStore keeps the full index in process memory. Used in tests and for
// single-node deployments without Postgres.
type MemoryStore struct {
	mu     sync.RWMutex
	scopes map[uuid.UUID]*scopeIndex
}

type scopeIndex struct {
	entries    map[uuid.UUID]Entry
	postings   map[string]map[uuid.UUID]int // term -> chunk -> frequency
	termCounts map[uuid.UUID]int            // chunk -> total indexed terms
	totalTerms int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scopes: make(map[uuid.UUID]*scopeIndex)}
}

func newScopeIndex() *scopeIndex {
	return &scopeIndex{
		entries:    make(map[uuid.UUID]Entry),
		postings:   make(map[string]map[uuid.UUID]int),
		termCounts: make(map[uuid.UUID]int),
	}
}

func (s *MemoryStore) Upsert(_ context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if e.IngestedAt.IsZero() {
			e.IngestedAt = time.Now()
		}

		idx, ok := s.scopes[e.OwnerScope]
		if !ok {
			idx = newScopeIndex()
			s.scopes[e.OwnerScope] = idx
		}

		idx.remove(e.ID)
		idx.insert(e)
	}
	return nil
}

func (s *MemoryStore) DeleteByDocument(_ context.Context, ownerScope, documentID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.scopes[ownerScope]
	if !ok {
		return nil
	}
	for id, e := range idx.entries {
		if e.DocumentID == documentID {
			idx.remove(id)
		}
	}
	return nil
}

func (s *MemoryStore) DeleteByDocumentBefore(_ context.Context, ownerScope, documentID uuid.UUID, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.scopes[ownerScope]
	if !ok {
		return nil
	}
	for id, e := range idx.entries {
		if e.DocumentID == documentID && e.IngestedAt.Before(cutoff) {
			idx.remove(id)
		}
	}
	return nil
}

func (s *MemoryStore) VectorSearch(_ context.Context, ownerScope uuid.UUID, queryVec []float32, k int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.scopes[ownerScope]
	if !ok || k <= 0 || len(queryVec) == 0 {
		return nil, nil
	}

	var hits []Hit
	for _, e := range idx.entries {
		if e.Embedding == nil || len(e.Embedding) != len(queryVec) {
			continue
		}
		hits = append(hits, toHit(e, cosine(queryVec, e.Embedding)))
	}
	sortHits(hits)
	return truncate(hits, k), nil
}

func (s *MemoryStore) LexicalSearch(_ context.Context, ownerScope uuid.UUID, terms []string, k int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.scopes[ownerScope]
	if !ok || k <= 0 || len(terms) == 0 {
		return nil, nil
	}

	n := len(idx.termCounts)
	if n == 0 {
		return nil, nil
	}
	avgLen := float64(idx.totalTerms) / float64(n)

	scores := make(map[uuid.UUID]float64)
	for _, term := range terms {
		posting, ok := idx.postings[term]
		if !ok {
			continue
		}
		df := float64(len(posting))
		idf := math.Log(1 + (float64(n)-df+0.5)/(df+0.5))
		for chunkID, tf := range posting {
			dl := float64(idx.termCounts[chunkID])
			num := float64(tf) * (bm25K1 + 1)
			den := float64(tf) + bm25K1*(1-bm25B+bm25B*dl/avgLen)
			scores[chunkID] += idf * num / den
		}
	}
	if len(scores) == 0 {
		return nil, nil
	}

	maxScore := 0.0
	for _, sc := range scores {
		if sc > maxScore {
			maxScore = sc
		}
	}

	hits := make([]Hit, 0, len(scores))
	for chunkID, sc := range scores {
		hits = append(hits, toHit(idx.entries[chunkID], sc/maxScore))
	}
	sortHits(hits)
	return truncate(hits, k), nil
}

func (idx *scopeIndex) insert(e Entry) {
	idx.entries[e.ID] = e
	count := 0
	for term, tf := range tokenizer.TermFrequencies(e.Text) {
		posting, ok := idx.postings[term]
		if !ok {
			posting = make(map[uuid.UUID]int)
			idx.postings[term] = posting
		}
		posting[e.ID] = tf
		count += tf
	}
	idx.termCounts[e.ID] = count
	idx.totalTerms += count
}

func (idx *scopeIndex) remove(id uuid.UUID) {
	if _, ok := idx.entries[id]; !ok {
		return
	}
	delete(idx.entries, id)
	idx.totalTerms -= idx.termCounts[id]
	delete(idx.termCounts, id)
	for term, posting := range idx.postings {
		if _, ok := posting[id]; ok {
			delete(posting, id)
			if len(posting) == 0 {
				delete(idx.postings, term)
			}
		}
	}
}

// cosine assumes unit-length vectors, so the dot product is the similarity.
// Clamped to [0, 1].
func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	if dot < 0 {
		return 0
	}
	if dot > 1 {
		return 1
	}
	return dot
}

func toHit(e Entry, score float64) Hit {
	return Hit{
		ChunkID:       e.ID,
		DocumentID:    e.DocumentID,
		SequenceIndex: e.SequenceIndex,
		Text:          e.Text,
		HeadingPath:   e.HeadingPath,
		TokenCount:    e.TokenCount,
		Score:         score,
		IngestedAt:    e.IngestedAt,
	}
}

// sortHits orders by score descending with a stable tie-break so equal scores
// come back in a deterministic order.
func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].SequenceIndex != hits[j].SequenceIndex {
			return hits[i].SequenceIndex < hits[j].SequenceIndex
		}
		return hits[i].ChunkID.String() < hits[j].ChunkID.String()
	})
}

func truncate(hits []Hit, k int) []Hit {
	if len(hits) > k {
		return hits[:k]
	}
	return hits
}
