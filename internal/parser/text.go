package parser

import (
	"io"
	"strings"

	"github.com/dgallion1/docqa/internal/document"
)

// TextParser handles plain text files. Form feeds separate pages.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	doc := &document.Document{
		Title:    titleFromFilename(filename),
		Filename: filename,
	}
	doc.Pages = splitPages(strings.ReplaceAll(string(raw), "\r\n", "\n"))
	if len(doc.Pages) > 1 {
		doc.PageCount = len(doc.Pages)
	}
	return doc, nil
}

// splitPages cuts text on form feeds, numbering pages from 1. Blank
// pages keep their number so later pages stay aligned with the source.
func splitPages(text string) []document.Page {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	parts := strings.Split(text, "\f")
	pages := make([]document.Page, 0, len(parts))
	for i, part := range parts {
		pages = append(pages, document.Page{Number: i + 1, Text: strings.TrimSpace(part)})
	}
	return pages
}
