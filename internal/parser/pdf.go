package parser

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog"

	"github.com/dgallion1/docqa/internal/document"
)

// PDFParser handles PDF files. It tries the Go library first,
// then falls back to pdftotext if enabled and installed.
type PDFParser struct {
	FallbackPdftotext bool
	Log               zerolog.Logger
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	// ledongthuc/pdf opens by path, so spool to a temp file.
	tmp, err := os.CreateTemp("", "docqa-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	doc := &document.Document{
		Title:    titleFromFilename(filename),
		Filename: filename,
	}

	pages, declared, err := extractPDFPages(tmpPath)
	if (err != nil || blankPages(pages)) && p.FallbackPdftotext {
		text, ferr := extractPdftotext(tmpPath)
		if ferr == nil {
			p.Log.Info().Str("filename", filename).Msg("using pdftotext fallback")
			pages, err = splitPages(text), nil
		} else if err == nil {
			p.Log.Debug().Err(ferr).Msg("pdftotext fallback unavailable")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}
	doc.Pages = pages
	doc.PageCount = declared

	// Cross-check the page tree with pdfcpu. A disagreement is worth a
	// warning but never blocks ingest.
	if n, verr := api.PageCountFile(tmpPath); verr != nil {
		p.Log.Warn().Err(verr).Str("filename", filename).Msg("pdf validation failed")
	} else {
		if declared > 0 && n != declared {
			p.Log.Warn().Int("reader_pages", declared).Int("pdfcpu_pages", n).Str("filename", filename).Msg("pdf page count mismatch")
		}
		doc.PageCount = n
	}
	return doc, nil
}

// extractPDFPages reads each page's plain text. ledongthuc/pdf panics on a
// broken object graph, so a panic is reported as an error.
func extractPDFPages(path string) (pages []document.Page, numPages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, numPages, err = nil, 0, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	numPages = reader.NumPage()
	pages = make([]document.Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, document.Page{Number: i, Text: strings.TrimSpace(text)})
	}
	return pages, numPages, nil
}

func extractPdftotext(path string) (string, error) {
	out, err := exec.Command("pdftotext", "-layout", path, "-").Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}

func blankPages(pages []document.Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			return false
		}
	}
	return true
}
