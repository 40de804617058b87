package retrieval

import (
	"errors"
	"sort"

	"github.com/rs/zerolog"

	"github.com/dgallion1/docqa/internal/document"
)

// ErrNoDocument is returned when a query arrives before any document was ingested.
var ErrNoDocument = errors.New("no document has been processed yet, upload a document first")

const (
	// DefaultTopK is used when a caller passes a non-positive top-k.
	DefaultTopK = 5

	// LeadingPlaceholder is assigned to an unmatched chunk among the first
	// leadingWindow chunks while nothing has matched yet.
	LeadingPlaceholder = 0.1
	// FirstChunksPlaceholder is assigned to the first chunks when no chunk
	// is a candidate after a full scan.
	FirstChunksPlaceholder = 0.05

	leadingWindow = 3
)

// Fallback names the placeholder policy that produced candidates, if any.
type Fallback string

const (
	FallbackNone        Fallback = ""
	FallbackLeading     Fallback = "leading"
	FallbackFirstChunks Fallback = "first_chunks"
)

// Result is one ranked chunk for a query.
type Result struct {
	ChunkIndex    int     `json:"chunk_index"`
	Text          string  `json:"text"`
	EstimatedPage int     `json:"estimated_page"`
	Score         float64 `json:"similarity_score"`
	Rank          int     `json:"rank"`
}

type candidate struct {
	index int
	score float64
}

// Retriever ranks chunks and logs when placeholder scores are used.
type Retriever struct {
	log zerolog.Logger
}

// New creates a Retriever.
func New(log zerolog.Logger) *Retriever {
	return &Retriever{log: log.With().Str("component", "retriever").Logger()}
}

// Retrieve returns at most topK chunks ordered by descending relevance.
func (r *Retriever) Retrieve(query string, chunks []document.Chunk, topK int) ([]Result, error) {
	results, fb, err := rank(query, chunks, topK)
	if err != nil {
		return nil, err
	}
	switch fb {
	case FallbackFirstChunks:
		r.log.Warn().Int("total_chunks", len(chunks)).Msg("no keyword matches, returning first chunks as fallback")
	case FallbackLeading:
		r.log.Debug().Msg("leading chunk included with placeholder score")
	}
	r.log.Info().Int("results", len(results)).Int("total_chunks", len(chunks)).Msg("retrieved chunks")
	return results, nil
}

// Retrieve ranks chunks without logging.
func Retrieve(query string, chunks []document.Chunk, topK int) ([]Result, error) {
	results, _, err := rank(query, chunks, topK)
	return results, err
}

func rank(query string, chunks []document.Chunk, topK int) ([]Result, Fallback, error) {
	if len(chunks) == 0 {
		return nil, FallbackNone, ErrNoDocument
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	q := NewQuery(query)
	fb := FallbackNone
	var cands []candidate
	for i, c := range chunks {
		score := q.Breakdown(c.Text).Combined
		switch {
		case score > 0:
			cands = append(cands, candidate{index: i, score: score})
		case len(cands) == 0 && i < leadingWindow:
			cands = append(cands, candidate{index: i, score: LeadingPlaceholder})
			fb = FallbackLeading
		}
	}

	if len(cands) == 0 {
		fb = FallbackFirstChunks
		for i := range min(leadingWindow, len(chunks)) {
			cands = append(cands, candidate{index: i, score: FirstChunksPlaceholder})
		}
	}

	sort.SliceStable(cands, func(a, b int) bool {
		return cands[a].score > cands[b].score
	})
	if len(cands) > topK {
		cands = cands[:topK]
	}

	results := make([]Result, len(cands))
	for i, c := range cands {
		chunk := chunks[c.index]
		results[i] = Result{
			ChunkIndex:    c.index,
			Text:          chunk.Text,
			EstimatedPage: chunk.EstimatedPage,
			Score:         c.score,
			Rank:          i + 1,
		}
	}
	return results, fb, nil
}
