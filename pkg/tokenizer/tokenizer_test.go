package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountTokens(t *testing.T) {
	assert.Equal(t, 0, CountTokens(""))
	assert.Equal(t, 0, CountTokens("   \n\t "))
	assert.Equal(t, 3, CountTokens("one two three"))
	assert.Equal(t, 3, CountTokens("  one\ttwo \n three  "))
}

func TestTerms_LowercasesAndStripsPunctuation(t *testing.T) {
	terms := Terms("The Quick, brown FOX jumps!")
	assert.Equal(t, []string{"quick", "brown", "fox", "jumps"}, terms)
}

func TestTerms_DropsShortAndStopwords(t *testing.T) {
	terms := Terms("it is a reasonably long sentence about the indexing of text")
	for _, term := range terms {
		assert.GreaterOrEqual(t, len(term), 3)
		_, isStop := stopwords[term]
		assert.False(t, isStop, "stopword %q should have been dropped", term)
	}
	assert.Contains(t, terms, "indexing")
	assert.NotContains(t, terms, "the")
	assert.NotContains(t, terms, "of")
}

func TestTermFrequencies(t *testing.T) {
	freqs := TermFrequencies("cache cache invalidation")
	assert.Equal(t, 2, freqs["cache"])
	assert.Equal(t, 1, freqs["invalidation"])
}

func TestWords_PreservesCase(t *testing.T) {
	assert.Equal(t, []string{"Hello", "World"}, Words("Hello World"))
}
