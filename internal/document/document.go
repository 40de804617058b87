package document

import (
	"fmt"
	"strings"
)

// Document is the extracted text of one uploaded file.
type Document struct {
	Title     string // Document title (from metadata or filename)
	Filename  string
	Pages     []Page // Extracted pages in source order
	PageCount int    // Declared page count when the format has one (0 if N/A)
}

// Page is the text of a single source page.
type Page struct {
	Number int // 1-based page number
	Text   string
}

// Chunk is a word-windowed text segment, the unit of retrieval.
type Chunk struct {
	Text          string // Space-joined words of the window
	Index         int    // Zero-based position in the chunk sequence
	EstimatedPage int    // Approximate source page, display only
	WordCount     int
}

// PageMarker renders the separator line placed in front of each page's text.
func PageMarker(n int) string {
	return fmt.Sprintf("\n--- Page %d ---\n", n)
}

// Text renders the full extracted text with a marker before every non-empty page.
func (d *Document) Text() string {
	var sb strings.Builder
	for _, p := range d.Pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		sb.WriteString(PageMarker(p.Number))
		sb.WriteString(p.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

// NonEmptyPages returns the number of pages that carry any text.
func (d *Document) NonEmptyPages() int {
	n := 0
	for _, p := range d.Pages {
		if strings.TrimSpace(p.Text) != "" {
			n++
		}
	}
	return n
}
