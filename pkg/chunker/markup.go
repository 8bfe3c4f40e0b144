package chunker

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	gtext "github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// section is a contiguous body of text under one heading path.
type section struct {
	path string
	body string
}

// splitMarkup splits structured markup at heading boundaries, then chunks each
// section's body semantically. The heading hierarchy is carried on each chunk
// as "Section > Subsection"; overlap never crosses a section boundary.
func splitMarkup(text string, opts Options) Result {
	source := []byte(text)

	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
	doc := md.Parser().Parse(gtext.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(3),
		toc.Compact(true),
	)
	if err != nil || len(tree.Items) == 0 {
		return splitSemantic(text, opts, "")
	}

	sections := collectSections(doc, source, tree.Items)

	var res Result
	for _, sec := range sections {
		if strings.TrimSpace(sec.body) == "" {
			continue
		}
		sub := splitSemantic(sec.body, opts, sec.path)
		res.Chunks = append(res.Chunks, sub.Chunks...)
		res.Warnings = append(res.Warnings, sub.Warnings...)
	}
	return res
}

// collectSections flattens the TOC into document order and slices the source
// between consecutive headings. Text before the first heading becomes a
// section with an empty path.
func collectSections(doc ast.Node, source []byte, items toc.Items) []section {
	type boundary struct {
		path  string
		start int // body start offset, after the heading line
		hdr   int // heading line start offset
	}

	var bounds []boundary
	var walk func(items toc.Items, ancestors []string)
	walk = func(items toc.Items, ancestors []string) {
		for _, item := range items {
			path := append(ancestors, string(item.Title))
			node := findHeadingByID(doc, string(item.ID))
			if node != nil {
				seg := node.Lines().At(0)
				bounds = append(bounds, boundary{
					path:  strings.Join(path, " > "),
					start: seg.Stop,
					hdr:   lineStart(source, seg.Start),
				})
			}
			if len(item.Items) > 0 {
				walk(item.Items, path)
			}
		}
	}
	walk(items, nil)

	var sections []section
	if len(bounds) > 0 && bounds[0].hdr > 0 {
		sections = append(sections, section{
			path: "",
			body: strings.TrimSpace(string(source[:bounds[0].hdr])),
		})
	}
	for i, b := range bounds {
		end := len(source)
		if i+1 < len(bounds) {
			end = bounds[i+1].hdr
		}
		if b.start > end {
			continue
		}
		sections = append(sections, section{
			path: b.path,
			body: strings.TrimSpace(string(source[b.start:end])),
		})
	}
	return sections
}

// lineStart rewinds an offset to the beginning of its line, so the heading
// markers are not left dangling at the end of the previous section.
func lineStart(source []byte, off int) int {
	for off > 0 && source[off-1] != '\n' {
		off--
	}
	return off
}

// findHeadingByID locates a heading node by its auto-generated ID.
func findHeadingByID(node ast.Node, id string) ast.Node {
	var found ast.Node
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == ast.KindHeading {
			attr, ok := n.AttributeString("id")
			if ok && string(attr.([]byte)) == id {
				found = n
				return ast.WalkStop, nil
			}
		}
		return ast.WalkContinue, nil
	})
	return found
}
