package chunker

import (
	"strings"

	"github.com/nikhilbhutani/kbengine/pkg/tokenizer"
)

// splitCode splits source files on top-level unit boundaries (a blank line at
// zero brace depth closes a unit) and packs whole units into chunks. A chunk
// never ends inside a balanced brace block. Units larger than the budget fall
// back to line windows with a trailing-line overlap.
func splitCode(text string, opts Options) Result {
	var res Result
	var group []string
	groupTokens := 0

	flush := func() {
		if groupTokens == 0 {
			return
		}
		joined := strings.Join(group, "\n\n")
		res.Chunks = append(res.Chunks, Chunk{
			Text:       joined,
			TokenCount: tokenizer.CountTokens(joined),
		})
		group = group[:0]
		groupTokens = 0
	}

	for _, unit := range splitCodeUnits(text) {
		n := tokenizer.CountTokens(unit)
		if n > opts.MaxTokens {
			flush()
			sub := splitLineWindows(unit, opts)
			res.Chunks = append(res.Chunks, sub.Chunks...)
			res.Warnings = append(res.Warnings, sub.Warnings...)
			res.Warnings = append(res.Warnings, "code unit exceeds max chunk size, split on line windows")
			continue
		}
		if groupTokens+n > opts.MaxTokens {
			flush()
		}
		group = append(group, unit)
		groupTokens += n
	}
	flush()
	return res
}

// splitCodeUnits scans line by line tracking brace depth. A blank line while
// the depth is zero ends the current unit. Unbalanced closers clamp at zero
// rather than going negative.
func splitCodeUnits(text string) []string {
	var units []string
	var current []string
	depth := 0

	closeUnit := func() {
		unit := strings.TrimRight(strings.Join(current, "\n"), "\n \t")
		if strings.TrimSpace(unit) != "" {
			units = append(units, unit)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" && depth == 0 {
			closeUnit()
			continue
		}
		current = append(current, line)
		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if depth < 0 {
			depth = 0
		}
	}
	closeUnit()
	return units
}

// splitLineWindows packs lines greedily up to the token budget, carrying the
// trailing lines that fit in the overlap window into the next chunk.
func splitLineWindows(unit string, opts Options) Result {
	var res Result
	lines := strings.Split(unit, "\n")

	var window []string
	windowTokens := 0
	carryTokens := 0

	flush := func() {
		if windowTokens <= carryTokens {
			return
		}
		joined := strings.Join(window, "\n")
		res.Chunks = append(res.Chunks, Chunk{
			Text:          joined,
			TokenCount:    tokenizer.CountTokens(joined),
			OverlapTokens: carryTokens,
		})

		var carry []string
		carried := 0
		for i := len(window) - 1; i >= 0; i-- {
			n := tokenizer.CountTokens(window[i])
			if carried+n > opts.OverlapTokens {
				break
			}
			carry = append([]string{window[i]}, carry...)
			carried += n
		}
		window = carry
		windowTokens = carried
		carryTokens = carried
	}

	for _, line := range lines {
		n := tokenizer.CountTokens(line)
		if n > opts.MaxTokens {
			flush()
			window = window[:0]
			windowTokens = 0
			carryTokens = 0
			res.Chunks = append(res.Chunks, Chunk{
				Text:       line,
				TokenCount: n,
			})
			res.Warnings = append(res.Warnings, "code line exceeds max chunk size, emitted oversized")
			continue
		}
		if windowTokens+n > opts.MaxTokens {
			flush()
		}
		if windowTokens+n > opts.MaxTokens {
			// overlap alone fills the budget, drop it for this boundary
			window = window[:0]
			windowTokens = 0
			carryTokens = 0
		}
		window = append(window, line)
		windowTokens += n
	}
	flush()
	return res
}
