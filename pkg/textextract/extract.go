// Package textextract pulls plain text out of uploaded files and decides
// which chunking strategy the content calls for.
package textextract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

type Extracted struct {
	Content    string
	SourceKind string
	Pages      int
}

// Extract converts a file into plain text. The file type may be an extension,
// a bare suffix, or a MIME type.
func Extract(data io.ReaderAt, size int64, fileType string) (*Extracted, error) {
	switch normalizeType(fileType) {
	case "pdf":
		return extractPDF(data, size)
	case "docx":
		return extractDOCX(data, size)
	case "md":
		return readPlain(data, size, "markdown")
	case "html", "htm", "xml":
		return readPlain(data, size, "markup")
	case "txt":
		return readPlain(data, size, "text")
	default:
		if kind := codeKind(fileType); kind != "" {
			return readPlain(data, size, kind)
		}
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}
}

func SupportedTypes() []string {
	return []string{".pdf", ".docx", ".txt", ".md", ".html", ".xml", ".go", ".py", ".js", ".ts", ".java", ".c", ".rs"}
}

// DetectKind maps a file name to the chunking strategy for its content.
func DetectKind(fileName string) string {
	switch normalizeType(filepath.Ext(fileName)) {
	case "md":
		return "markdown"
	case "html", "htm", "xml":
		return "markup"
	default:
		if kind := codeKind(fileName); kind != "" {
			return kind
		}
		return "text"
	}
}

func normalizeType(fileType string) string {
	t := strings.ToLower(strings.TrimPrefix(fileType, "."))
	switch t {
	case "application/pdf":
		return "pdf"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return "docx"
	case "text/plain":
		return "txt"
	case "text/markdown":
		return "md"
	case "text/html":
		return "html"
	}
	return t
}

var codeExts = map[string]bool{
	"go": true, "py": true, "js": true, "ts": true, "java": true,
	"c": true, "h": true, "cpp": true, "rs": true, "rb": true,
}

func codeKind(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		ext = strings.ToLower(strings.TrimPrefix(name, "."))
	}
	if codeExts[ext] {
		return "code"
	}
	return ""
}

func extractPDF(data io.ReaderAt, size int64) (*Extracted, error) {
	reader, err := pdf.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	var buf strings.Builder
	numPages := reader.NumPage()

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}

	return &Extracted{
		Content:    buf.String(),
		SourceKind: "text",
		Pages:      numPages,
	}, nil
}

func extractDOCX(data io.ReaderAt, size int64) (*Extracted, error) {
	reader, err := zip.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open DOCX: %w", err)
	}

	var buf strings.Builder
	for _, f := range reader.File {
		if filepath.Base(f.Name) == "document.xml" {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open document.xml: %w", err)
			}
			defer rc.Close()

			content, err := io.ReadAll(rc)
			if err != nil {
				return nil, fmt.Errorf("read document.xml: %w", err)
			}
			buf.WriteString(stripXMLTags(string(content)))
			break
		}
	}

	return &Extracted{
		Content:    buf.String(),
		SourceKind: "text",
		Pages:      1,
	}, nil
}

func readPlain(data io.ReaderAt, size int64, kind string) (*Extracted, error) {
	buf := make([]byte, size)
	_, err := data.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return &Extracted{
		Content:    string(bytes.TrimSpace(buf)),
		SourceKind: kind,
		Pages:      1,
	}, nil
}

func stripXMLTags(s string) string {
	var result strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			result.WriteRune(' ')
		case !inTag:
			result.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(result.String()), " ")
}
