package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dgallion1/docqa/internal/document"
)

// ErrUnsupportedFormat is returned by ForFile for unknown extensions.
var ErrUnsupportedFormat = errors.New("unsupported file extension")

// Parser converts raw file bytes into a paged document.
type Parser interface {
	Parse(r io.Reader, filename string) (*document.Document, error)
}

// Options tune parser behavior.
type Options struct {
	PdftotextFallback bool
	Log               zerolog.Logger
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PdftotextFallback, Log: opts.Log}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// singlePage wraps flattened text of a non-paginated format as page 1.
func singlePage(title, filename string, blocks []string) *document.Document {
	doc := &document.Document{Title: title, Filename: filename}
	text := strings.TrimSpace(strings.Join(blocks, "\n\n"))
	if text != "" {
		doc.Pages = []document.Page{{Number: 1, Text: text}}
	}
	return doc
}
