package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docqa/internal/document"
)

// rowsPerPage is how many data rows make up one synthetic CSV page.
const rowsPerPage = 20

// CSVParser handles CSV files. Every batch of rows becomes a page.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	doc := &document.Document{
		Title:    titleFromFilename(filename),
		Filename: filename,
	}
	if len(records) == 0 {
		return doc, nil
	}

	headers := records[0]
	rows := records[1:]
	if len(rows) == 0 {
		doc.Pages = []document.Page{{Number: 1, Text: "Headers: " + strings.Join(headers, ", ")}}
		return doc, nil
	}

	for i := 0; i < len(rows); i += rowsPerPage {
		batch := rows[i:min(i+rowsPerPage, len(rows))]

		var text strings.Builder
		text.WriteString("Headers: " + strings.Join(headers, ", ") + "\n\n")
		for _, row := range batch {
			cells := make([]string, 0, len(row))
			for j, cell := range row {
				if j < len(headers) {
					cells = append(cells, headers[j]+": "+cell)
				} else {
					cells = append(cells, cell)
				}
			}
			text.WriteString(strings.Join(cells, ", "))
			text.WriteString("\n")
		}
		doc.Pages = append(doc.Pages, document.Page{
			Number: len(doc.Pages) + 1,
			Text:   strings.TrimSpace(text.String()),
		})
	}
	doc.PageCount = len(doc.Pages)
	return doc, nil
}
