// Package chunker splits source documents into retrieval-sized text units.
// The strategy is a pure function of the document's source kind; each strategy
// is independently testable.
package chunker

import (
	"regexp"
	"strings"

	"github.com/nikhilbhutani/kbengine/pkg/tokenizer"
)

const (
	KindText     = "text"
	KindMarkup   = "markup"
	KindCode     = "code"
	KindMarkdown = "markdown"
)

type Options struct {
	MaxTokens     int // max word tokens per chunk
	OverlapTokens int // tokens shared between consecutive chunks
}

func DefaultOptions() Options {
	return Options{
		MaxTokens:     512,
		OverlapTokens: 50,
	}
}

// Chunk is one retrieval unit. Index is the chunk's order within the document.
type Chunk struct {
	Text          string
	Index         int
	TokenCount    int
	OverlapTokens int // tokens at the start of Text shared with the previous chunk
	HeadingPath   string
}

// Result carries the ordered chunks plus non-fatal warnings (e.g. a unit that
// could not be split below the configured max).
type Result struct {
	Chunks   []Chunk
	Warnings []string
}

// Split chunks text using the strategy for the given source kind. A document
// with no extractable text yields zero chunks, not an error.
func Split(kind, text string, opts Options) Result {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultOptions().MaxTokens
	}
	if opts.OverlapTokens < 0 {
		opts.OverlapTokens = 0
	}
	if opts.OverlapTokens >= opts.MaxTokens {
		opts.OverlapTokens = opts.MaxTokens / 4
	}

	if strings.TrimSpace(text) == "" {
		return Result{}
	}

	var res Result
	switch kind {
	case KindMarkup:
		res = splitMarkup(text, opts)
	case KindCode:
		res = splitCode(text, opts)
	case KindMarkdown:
		res = splitMarkdown(text, opts)
	default:
		res = splitSemantic(text, opts, "")
	}

	for i := range res.Chunks {
		res.Chunks[i].Index = i
	}
	return res
}

var paragraphSep = regexp.MustCompile(`\n\s*\n`)

// splitSemantic accumulates sentences into chunks up to the token budget, then
// seeds the next chunk with the trailing overlap window of the previous one.
func splitSemantic(text string, opts Options, headingPath string) Result {
	b := newBuilder(opts, headingPath)
	for _, para := range paragraphSep.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for _, sent := range splitSentences(para) {
			b.addSentence(sent)
		}
	}
	b.flush()
	return Result{Chunks: b.chunks, Warnings: b.warnings}
}

// splitSentences splits on sentence-ending punctuation followed by whitespace.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && (runes[i+1] == ' ' || runes[i+1] == '\n') {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// builder accumulates text segments into chunks, carrying the configured
// overlap window across chunk boundaries.
type builder struct {
	opts     Options
	heading  string
	chunks   []Chunk
	warnings []string

	segments []string
	tokens   int
	carryLen int // leading tokens of segments shared with the previous chunk
}

func newBuilder(opts Options, heading string) *builder {
	return &builder{opts: opts, heading: heading}
}

// addSentence appends a sentence, flushing first when it would overflow the
// budget. A single sentence that cannot fit even in a fresh chunk is emitted
// oversized rather than silently truncated.
func (b *builder) addSentence(sent string) {
	n := tokenizer.CountTokens(sent)
	if n > b.opts.MaxTokens {
		b.addOversized(sent, n, "sentence exceeds max chunk size, emitted oversized")
		return
	}
	b.add(sent, n)
}

// add appends a segment that fits within a fresh chunk. When the pending
// overlap window alone would push the chunk over budget, the window is
// shortened for that boundary instead of overflowing.
func (b *builder) add(segment string, n int) {
	if b.tokens+n > b.opts.MaxTokens && b.tokens > b.carryLen {
		b.flush()
	}
	if b.tokens+n > b.opts.MaxTokens {
		b.shrinkCarry(b.opts.MaxTokens - n)
	}
	b.segments = append(b.segments, segment)
	b.tokens += n
}

// shrinkCarry trims the pending overlap window to at most maxCarry tokens.
func (b *builder) shrinkCarry(maxCarry int) {
	if b.carryLen == 0 || b.carryLen <= maxCarry {
		return
	}
	if maxCarry <= 0 {
		b.reset()
		return
	}
	words := tokenizer.Words(strings.Join(b.segments, " "))
	tail := words[len(words)-maxCarry:]
	b.segments = []string{strings.Join(tail, " ")}
	b.tokens = maxCarry
	b.carryLen = maxCarry
}

// addOversized emits a segment larger than the budget as its own chunk,
// still prefixed with the pending overlap window, and records a warning.
func (b *builder) addOversized(segment string, n int, warning string) {
	if b.tokens > b.carryLen {
		b.flush()
	}
	b.segments = append(b.segments, segment)
	b.tokens += n
	b.flush()
	b.warnings = append(b.warnings, warning)
}

// flush emits the accumulated segments as a chunk and seeds the next chunk
// with the trailing overlap window.
func (b *builder) flush() {
	if b.tokens <= b.carryLen {
		return
	}
	text := strings.Join(b.segments, " ")
	b.chunks = append(b.chunks, Chunk{
		Text:          text,
		TokenCount:    tokenizer.CountTokens(text),
		OverlapTokens: b.carryLen,
		HeadingPath:   b.heading,
	})

	b.segments = b.segments[:0]
	b.tokens = 0
	b.carryLen = 0
	if b.opts.OverlapTokens > 0 {
		words := tokenizer.Words(text)
		tail := words
		if len(words) > b.opts.OverlapTokens {
			tail = words[len(words)-b.opts.OverlapTokens:]
		}
		carry := strings.Join(tail, " ")
		b.segments = append(b.segments, carry)
		b.tokens = len(tail)
		b.carryLen = len(tail)
	}
}

// reset drops any pending overlap carry. Used at structural boundaries where
// overlap would stitch unrelated sections together.
func (b *builder) reset() {
	b.segments = b.segments[:0]
	b.tokens = 0
	b.carryLen = 0
}
