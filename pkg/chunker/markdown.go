package chunker

import (
	"strings"

	"github.com/nikhilbhutani/kbengine/pkg/tokenizer"
)

type blockKind int

const (
	blockProse blockKind = iota
	blockFence
	blockList
)

type block struct {
	kind blockKind
	text string
}

// splitMarkdown chunks generic markdown without relying on heading structure.
// Fenced code blocks are atomic, bullet lists stay together when they fit the
// budget, and prose flows through the sentence accumulator with overlap.
func splitMarkdown(text string, opts Options) Result {
	b := newBuilder(opts, "")

	for _, blk := range scanBlocks(text) {
		switch blk.kind {
		case blockFence:
			n := tokenizer.CountTokens(blk.text)
			if n > opts.MaxTokens {
				b.addOversized(blk.text, n, "fenced code block exceeds max chunk size, emitted oversized")
			} else {
				b.add(blk.text, n)
			}
		case blockList:
			n := tokenizer.CountTokens(blk.text)
			if n <= opts.MaxTokens {
				b.add(blk.text, n)
				break
			}
			// list too large to keep together, fall back to item granularity
			for _, item := range strings.Split(blk.text, "\n") {
				in := tokenizer.CountTokens(item)
				if in > opts.MaxTokens {
					b.addOversized(item, in, "list item exceeds max chunk size, emitted oversized")
				} else if in > 0 {
					b.add(item, in)
				}
			}
		default:
			for _, sent := range splitSentences(blk.text) {
				b.addSentence(sent)
			}
		}
	}
	b.flush()
	return Result{Chunks: b.chunks, Warnings: b.warnings}
}

// scanBlocks walks the document line by line grouping it into fenced code
// blocks, list runs, and prose paragraphs.
func scanBlocks(text string) []block {
	var blocks []block
	var current []string
	kind := blockProse
	inFence := false
	fenceMarker := ""

	emit := func() {
		joined := strings.TrimRight(strings.Join(current, "\n"), "\n \t")
		if strings.TrimSpace(joined) != "" {
			blocks = append(blocks, block{kind: kind, text: joined})
		}
		current = current[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if inFence {
			current = append(current, line)
			if strings.HasPrefix(trimmed, fenceMarker) {
				inFence = false
				emit()
				kind = blockProse
			}
			continue
		}

		if marker := fenceOpen(trimmed); marker != "" {
			emit()
			kind = blockFence
			inFence = true
			fenceMarker = marker
			current = append(current, line)
			continue
		}

		if trimmed == "" {
			emit()
			kind = blockProse
			continue
		}

		if isListLine(trimmed) {
			if kind != blockList {
				emit()
				kind = blockList
			}
			current = append(current, line)
			continue
		}

		if kind == blockList {
			// indented continuation lines stay with their list
			if strings.HasPrefix(line, "  ") || strings.HasPrefix(line, "\t") {
				current = append(current, line)
				continue
			}
			emit()
			kind = blockProse
		}
		current = append(current, line)
	}
	emit()
	return blocks
}

// fenceOpen reports the fence marker when the line opens a fenced code block.
func fenceOpen(trimmed string) string {
	if strings.HasPrefix(trimmed, "```") {
		return "```"
	}
	if strings.HasPrefix(trimmed, "~~~") {
		return "~~~"
	}
	return ""
}

func isListLine(trimmed string) bool {
	if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") || strings.HasPrefix(trimmed, "+ ") {
		return true
	}
	i := 0
	for i < len(trimmed) && trimmed[i] >= '0' && trimmed[i] <= '9' {
		i++
	}
	return i > 0 && i+1 < len(trimmed) && (trimmed[i] == '.' || trimmed[i] == ')') && trimmed[i+1] == ' '
}
