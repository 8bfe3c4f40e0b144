package tokenizer

import (
	"strings"
	"unicode"
)

// stopwords excluded from lexical terms. Deliberately small; aggressive stopword
// removal hurts recall on short business queries.
var stopwords = map[string]struct{}{
	"the": {}, "is": {}, "at": {}, "which": {}, "on": {}, "a": {}, "an": {},
	"and": {}, "or": {}, "but": {}, "in": {}, "with": {}, "to": {}, "for": {},
	"of": {}, "as": {}, "by": {}, "that": {}, "this": {}, "it": {}, "from": {},
	"be": {}, "are": {}, "been": {}, "was": {}, "were": {},
}

// Words splits text into whitespace-delimited tokens. Chunk budgets and overlap
// windows are counted in these units.
func Words(text string) []string {
	return strings.Fields(text)
}

// CountTokens returns the number of word tokens in text.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}

// Terms extracts lexical search terms: lowercased, punctuation stripped,
// stopwords and very short tokens removed. Used for keyword scoring, never for
// chunk sizing.
func Terms(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)

	var terms []string
	for _, tok := range strings.Fields(cleaned) {
		if len(tok) < 3 {
			continue
		}
		if _, skip := stopwords[tok]; skip {
			continue
		}
		terms = append(terms, tok)
	}
	return terms
}

// TermFrequencies counts occurrences of each lexical term in text.
func TermFrequencies(text string) map[string]int {
	freqs := make(map[string]int)
	for _, t := range Terms(text) {
		freqs[t]++
	}
	return freqs
}
