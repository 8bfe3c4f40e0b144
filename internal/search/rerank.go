package search

import (
	"sort"
	"strings"
	"time"

	"github.com/nikhilbhutani/kbengine/pkg/tokenizer"
)

// Re-ranking heuristic weights. Small multipliers so the fused score stays
// dominant and the heuristics only break near-ties.
const (
	positionWeight  = 0.1
	coverageWeight  = 0.2
	freshnessWeight = 0.05
)

// Rerank applies cheap heuristics on top of the fused score: chunks whose
// first query-term match sits near the start of the text get a small boost,
// chunks covering more query terms get a larger one, recently ingested chunks
// edge out stale ones, and chunks far longer than their peers are damped.
// Returns the results sorted by final score.
func Rerank(queryTerms []string, results []Result) []Result {
	if len(results) == 0 {
		return results
	}

	median := medianTokens(results)
	oldest, newest := ingestRange(results)

	for i := range results {
		r := &results[i]

		position := 1 + positionWeight*termPosition(queryTerms, r.Text)
		coverage := 1 + coverageWeight*termCoverage(queryTerms, r.Text)

		freshness := 1.0
		if newest.After(oldest) {
			span := newest.Sub(oldest).Seconds()
			age := r.IngestedAt.Sub(oldest).Seconds()
			freshness = 1 + freshnessWeight*(age/span)
		}

		length := 1.0
		if median > 0 && r.TokenCount > 2*median {
			length = float64(2*median) / float64(r.TokenCount)
		}

		r.FinalScore = r.FusedScore * position * coverage * freshness * length
	}

	sortResults(results)
	return results
}

// termPosition scores how early the first query-term match appears in the
// text: 1 for a match at the very start, falling toward 0 as the earliest
// match moves to the end, 0 when no term matches at all.
func termPosition(queryTerms []string, text string) float64 {
	if len(queryTerms) == 0 || len(text) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	earliest := len(lower)
	for _, t := range queryTerms {
		if pos := strings.Index(lower, t); pos >= 0 && pos < earliest {
			earliest = pos
		}
	}
	if earliest == len(lower) {
		return 0
	}
	return 1 - float64(earliest)/float64(len(lower))
}

// termCoverage is the fraction of query terms that appear in the text.
func termCoverage(queryTerms []string, text string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	present := tokenizer.TermFrequencies(text)
	found := 0
	for _, t := range queryTerms {
		if present[t] > 0 {
			found++
		}
	}
	return float64(found) / float64(len(queryTerms))
}

func medianTokens(results []Result) int {
	counts := make([]int, len(results))
	for i, r := range results {
		counts[i] = r.TokenCount
	}
	sort.Ints(counts)
	return counts[len(counts)/2]
}

func ingestRange(results []Result) (oldest, newest time.Time) {
	oldest, newest = results[0].IngestedAt, results[0].IngestedAt
	for _, r := range results[1:] {
		if r.IngestedAt.Before(oldest) {
			oldest = r.IngestedAt
		}
		if r.IngestedAt.After(newest) {
			newest = r.IngestedAt
		}
	}
	return oldest, newest
}
