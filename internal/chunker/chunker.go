package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/docqa/internal/document"
)

var (
	// ErrEmptyInput is returned when there is no text to chunk.
	ErrEmptyInput = errors.New("no text to chunk")
	// ErrInvalidConfig is returned for window settings that cannot advance.
	ErrInvalidConfig = errors.New("invalid chunk configuration")
)

// PageMode selects how a chunk's source page is estimated.
type PageMode string

const (
	// PageLinear spreads chunks evenly over AssumedPages pages.
	PageLinear PageMode = "linear"
	// PageTracked uses the page of the first word in the chunk.
	PageTracked PageMode = "tracked"
)

// AssumedPages is the page count the linear estimate interpolates over.
const AssumedPages = 10

// Config controls chunking behavior.
type Config struct {
	ChunkSize int      // Window size in words.
	Overlap   int      // Words shared by consecutive windows.
	PageMode  PageMode // Page estimate strategy.
}

// DefaultConfig returns the defaults used by the service.
func DefaultConfig() Config {
	return Config{
		ChunkSize: 1000,
		Overlap:   200,
		PageMode:  PageLinear,
	}
}

// Validate checks that the window can slide forward.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, c.ChunkSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidConfig, c.Overlap)
	}
	if c.Overlap >= c.ChunkSize {
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidConfig, c.Overlap, c.ChunkSize)
	}
	switch c.PageMode {
	case "", PageLinear, PageTracked:
	default:
		return fmt.Errorf("%w: unknown page mode %q", ErrInvalidConfig, c.PageMode)
	}
	return nil
}

// Stride is the number of words the window advances per chunk.
func (c Config) Stride() int {
	return c.ChunkSize - c.Overlap
}

// Split breaks text into overlapping windows of whitespace-delimited words.
func Split(text string, cfg Config) ([]string, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	words := strings.Fields(text)
	var chunks []string
	for _, w := range windows(len(words), cfg) {
		chunk := strings.Join(words[w.start:w.end], " ")
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
	}
	if len(chunks) == 0 {
		return nil, ErrEmptyInput
	}
	return chunks, nil
}

// Build chunks a parsed document and attaches page estimates.
func Build(doc *document.Document, cfg Config) ([]document.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Tag each word with the page it came from. Marker words belong to their page.
	var words []string
	var pages []int
	for _, p := range doc.Pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		for _, w := range strings.Fields(document.PageMarker(p.Number) + p.Text) {
			words = append(words, w)
			pages = append(pages, p.Number)
		}
	}
	return build(words, pages, cfg)
}

// BuildText chunks raw text. Tracked page mode has no page information here
// and falls back to the linear estimate.
func BuildText(text string, cfg Config) ([]document.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return build(strings.Fields(text), nil, cfg)
}

func build(words []string, pages []int, cfg Config) ([]document.Chunk, error) {
	ws := windows(len(words), cfg)
	chunks := make([]document.Chunk, 0, len(ws))
	for _, w := range ws {
		chunks = append(chunks, document.Chunk{
			Text:      strings.Join(words[w.start:w.end], " "),
			Index:     len(chunks),
			WordCount: w.end - w.start,
		})
	}
	if len(chunks) == 0 {
		return nil, ErrEmptyInput
	}

	for i, w := range ws {
		if cfg.PageMode == PageTracked && pages != nil {
			chunks[i].EstimatedPage = pages[w.start]
		} else {
			chunks[i].EstimatedPage = EstimatePage(i, len(chunks))
		}
	}
	return chunks, nil
}

// EstimatePage linearly maps chunk i of total onto AssumedPages pages, 1-based.
func EstimatePage(i, total int) int {
	if total <= 0 {
		return 1
	}
	return int(float64(i)/float64(total)*AssumedPages) + 1
}

type window struct {
	start, end int
}

// windows returns the word ranges for n words. It stops after the first
// window that reaches the end, so no trailing window is fully contained in
// the one before it.
func windows(n int, cfg Config) []window {
	var out []window
	stride := cfg.Stride()
	for start := 0; start < n; start += stride {
		end := min(start+cfg.ChunkSize, n)
		out = append(out, window{start: start, end: end})
		if end == n {
			break
		}
	}
	return out
}
