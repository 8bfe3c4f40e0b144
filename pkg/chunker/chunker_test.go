package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/kbengine/pkg/tokenizer"
)

// sentencesOf builds n sentences of wordsPer words each, as one paragraph.
func sentencesOf(n, wordsPer int) string {
	var sb strings.Builder
	word := 0
	for i := 0; i < n; i++ {
		for j := 0; j < wordsPer; j++ {
			word++
			if j > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "w%d", word)
		}
		sb.WriteString(". ")
	}
	return sb.String()
}

func TestSplit_EmptyDocument(t *testing.T) {
	for _, kind := range []string{KindText, KindMarkup, KindCode, KindMarkdown} {
		res := Split(kind, "   \n\n  ", DefaultOptions())
		assert.Empty(t, res.Chunks, "kind %s", kind)
		assert.Empty(t, res.Warnings, "kind %s", kind)
	}
}

func TestSplitSemantic_BudgetAndOverlap(t *testing.T) {
	// 150 sentences of 10 words: 1500 tokens at max 600 with overlap 50
	// packs into 600 + 600 + 400.
	text := sentencesOf(150, 10)
	res := Split(KindText, text, Options{MaxTokens: 600, OverlapTokens: 50})

	require.Len(t, res.Chunks, 3)
	assert.Empty(t, res.Warnings)

	assert.Equal(t, 600, res.Chunks[0].TokenCount)
	assert.Equal(t, 600, res.Chunks[1].TokenCount)
	assert.Equal(t, 400, res.Chunks[2].TokenCount)

	assert.Equal(t, 0, res.Chunks[0].OverlapTokens)
	assert.Equal(t, 50, res.Chunks[1].OverlapTokens)
	assert.Equal(t, 50, res.Chunks[2].OverlapTokens)

	for i := 1; i < len(res.Chunks); i++ {
		prev := tokenizer.Words(res.Chunks[i-1].Text)
		tail := strings.Join(prev[len(prev)-50:], " ")
		assert.True(t, strings.HasPrefix(res.Chunks[i].Text, tail),
			"chunk %d does not begin with the previous chunk's overlap window", i)
	}
}

func TestSplitSemantic_IndicesAreSequential(t *testing.T) {
	res := Split(KindText, sentencesOf(40, 10), Options{MaxTokens: 100, OverlapTokens: 20})
	require.NotEmpty(t, res.Chunks)
	for i, c := range res.Chunks {
		assert.Equal(t, i, c.Index)
	}
}

func TestSplitSemantic_EveryWordCovered(t *testing.T) {
	text := sentencesOf(40, 10)
	res := Split(KindText, text, Options{MaxTokens: 100, OverlapTokens: 20})

	seen := make(map[string]bool)
	for _, c := range res.Chunks {
		assert.LessOrEqual(t, c.TokenCount, 100)
		for _, w := range tokenizer.Words(c.Text) {
			seen[w] = true
		}
	}
	for _, w := range tokenizer.Words(text) {
		assert.True(t, seen[w], "word %q missing from all chunks", w)
	}
}

func TestSplitSemantic_OversizedSentence(t *testing.T) {
	words := make([]string, 700)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	text := strings.Join(words, " ") + "."

	res := Split(KindText, text, Options{MaxTokens: 600, OverlapTokens: 50})

	require.Len(t, res.Chunks, 1)
	assert.Equal(t, 700, res.Chunks[0].TokenCount)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "oversized")
}

func TestSplitMarkdown_FenceIsAtomic(t *testing.T) {
	var fence strings.Builder
	fence.WriteString("```go\n")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&fence, "line%d of code here\n", i)
	}
	fence.WriteString("```")

	text := sentencesOf(30, 10) + "\n\n" + fence.String() + "\n\n" + sentencesOf(30, 10)

	res := Split(KindMarkdown, text, Options{MaxTokens: 120, OverlapTokens: 20})
	require.NotEmpty(t, res.Chunks)

	found := 0
	for _, c := range res.Chunks {
		if strings.Contains(c.Text, fence.String()) {
			found++
		}
	}
	assert.Equal(t, 1, found, "fence must land whole in exactly one chunk")
}

func TestSplitMarkdown_OversizedFenceWarns(t *testing.T) {
	var fence strings.Builder
	fence.WriteString("```\n")
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&fence, "word%d word word word word\n", i)
	}
	fence.WriteString("```")

	res := Split(KindMarkdown, fence.String(), Options{MaxTokens: 100, OverlapTokens: 10})

	require.Len(t, res.Chunks, 1)
	assert.Contains(t, res.Chunks[0].Text, "```")
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "fenced code block")
}

func TestSplitMarkdown_ListStaysTogether(t *testing.T) {
	text := "Intro sentence here.\n\n- first item\n- second item\n- third item\n\nClosing sentence here."
	res := Split(KindMarkdown, text, DefaultOptions())

	require.NotEmpty(t, res.Chunks)
	joined := ""
	for _, c := range res.Chunks {
		if strings.Contains(c.Text, "first item") {
			joined = c.Text
		}
	}
	require.NotEmpty(t, joined)
	assert.Contains(t, joined, "second item")
	assert.Contains(t, joined, "third item")
}

func TestSplitMarkup_HeadingPaths(t *testing.T) {
	doc := `# Guide

Intro paragraph with some words here.

## Setup

Setup instructions with several more words in them.

## Usage

Usage notes with enough words to form a chunk.
`
	res := Split(KindMarkup, doc, DefaultOptions())
	require.NotEmpty(t, res.Chunks)

	paths := make(map[string]string)
	for _, c := range res.Chunks {
		paths[c.HeadingPath] = c.Text
	}

	require.Contains(t, paths, "Guide")
	assert.Contains(t, paths["Guide"], "Intro paragraph")

	require.Contains(t, paths, "Guide > Setup")
	assert.Contains(t, paths["Guide > Setup"], "Setup instructions")

	require.Contains(t, paths, "Guide > Usage")
	assert.Contains(t, paths["Guide > Usage"], "Usage notes")
}

func TestSplitMarkup_NoOverlapAcrossSections(t *testing.T) {
	doc := "# One\n\n" + sentencesOf(30, 10) + "\n\n# Two\n\n" + sentencesOf(30, 10)

	res := Split(KindMarkup, doc, Options{MaxTokens: 120, OverlapTokens: 30})
	require.NotEmpty(t, res.Chunks)

	for i, c := range res.Chunks {
		if i == 0 || res.Chunks[i-1].HeadingPath != c.HeadingPath {
			assert.Equal(t, 0, c.OverlapTokens,
				"chunk %d opens section %q and must not carry overlap", i, c.HeadingPath)
		}
	}
}

func TestSplitMarkup_NoHeadingsFallsBack(t *testing.T) {
	res := Split(KindMarkup, sentencesOf(5, 10), DefaultOptions())
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, "", res.Chunks[0].HeadingPath)
}

func TestSplitCode_UnitsStayBalanced(t *testing.T) {
	code := "func add(a, b int) int {\n\treturn a + b\n}\n\nfunc sub(a, b int) int {\n\treturn a - b\n}\n"

	res := Split(KindCode, code, Options{MaxTokens: 12, OverlapTokens: 0})

	require.Len(t, res.Chunks, 2)
	for i, c := range res.Chunks {
		assert.Equal(t, strings.Count(c.Text, "{"), strings.Count(c.Text, "}"),
			"chunk %d split inside a brace block", i)
	}
	assert.Contains(t, res.Chunks[0].Text, "func add")
	assert.Contains(t, res.Chunks[1].Text, "func sub")
}

func TestSplitCode_GroupsSmallUnits(t *testing.T) {
	code := "func a() {\n\treturn\n}\n\nfunc b() {\n\treturn\n}\n"
	res := Split(KindCode, code, DefaultOptions())

	require.Len(t, res.Chunks, 1)
	assert.Contains(t, res.Chunks[0].Text, "func a")
	assert.Contains(t, res.Chunks[0].Text, "func b")
}

func TestSplitCode_OversizedUnitFallsBackToLineWindows(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("func big() {\n")
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&sb, "\tdoWork(%d, %d, %d, %d)\n", i, i, i, i)
	}
	sb.WriteString("}\n")

	res := Split(KindCode, sb.String(), Options{MaxTokens: 50, OverlapTokens: 10})

	require.Greater(t, len(res.Chunks), 1)
	for i, c := range res.Chunks {
		assert.LessOrEqual(t, c.TokenCount, 50, "chunk %d over budget", i)
	}
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, strings.Join(res.Warnings, " "), "line windows")
}
