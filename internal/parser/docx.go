package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/docqa/internal/document"
)

// DOCXParser handles .docx files. Paragraphs and table cells are flattened
// in body order onto a single page.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	// go-docx needs a ReaderAt and a size, so spool to a temp file.
	tmp, err := os.CreateTemp("", "docqa-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	size, err := io.Copy(tmp, r)
	if err != nil {
		return nil, fmt.Errorf("write temp file: %w", err)
	}

	parsed, err := docx.Parse(tmp, size)
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	title := titleFromFilename(filename)
	var blocks []string
	for _, item := range parsed.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			t := docxParagraphText(it)
			if t == "" {
				continue
			}
			if len(blocks) == 0 && isTitleStyle(it) {
				title = t
			}
			blocks = append(blocks, t)
		case *docx.Table:
			if t := docxTableText(it); t != "" {
				blocks = append(blocks, t)
			}
		}
	}
	return singlePage(title, filename, blocks), nil
}

func isTitleStyle(para *docx.Paragraph) bool {
	if para.Properties == nil || para.Properties.Style == nil {
		return false
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	return style == "title" || style == "heading1"
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

func docxTableText(tbl *docx.Table) string {
	var rows []string
	for _, row := range tbl.TableRows {
		var cells []string
		for _, cell := range row.TableCells {
			var parts []string
			for _, para := range cell.Paragraphs {
				if t := docxParagraphText(para); t != "" {
					parts = append(parts, t)
				}
			}
			if len(parts) > 0 {
				cells = append(cells, strings.Join(parts, " "))
			}
		}
		if len(cells) > 0 {
			rows = append(rows, strings.Join(cells, " | "))
		}
	}
	return strings.Join(rows, "\n")
}
