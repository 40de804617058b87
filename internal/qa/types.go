package qa

import (
	"time"

	"github.com/dgallion1/docqa/internal/completion"
	"github.com/dgallion1/docqa/internal/retrieval"
)

// SearchStrategy names the retrieval method in answers and status.
const SearchStrategy = "Enhanced keyword matching"

// IngestOptions override the default chunk window. Nil fields keep the defaults.
type IngestOptions struct {
	ChunkSize *int
	Overlap   *int
}

// IngestResult reports a successful ingest.
type IngestResult struct {
	Success     bool   `json:"success"`
	DocumentID  string `json:"document_id"`
	Title       string `json:"title,omitempty"`
	Filename    string `json:"filename,omitempty"`
	ContentHash string `json:"content_hash"`
	ChunksCount int    `json:"chunks_count"`
	TextLength  int    `json:"text_length"`
	PageCount   int    `json:"page_count"`
}

// QueryRequest is a question about the stored document.
type QueryRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

// Answer is a grounded answer together with the chunks it was built from.
type Answer struct {
	Success          bool               `json:"success"`
	Answer           string             `json:"answer"`
	AnswerHTML       string             `json:"answer_html"`
	Question         string             `json:"question"`
	Model            string             `json:"model"`
	Usage            completion.Usage   `json:"usage"`
	SupportingChunks []retrieval.Result `json:"supporting_chunks"`
	Sources          Sources            `json:"sources"`
	Metadata         Metadata           `json:"metadata"`
}

// Sources summarizes the chunks an answer used.
type Sources struct {
	ChunksUsed   int           `json:"chunks_used"`
	TotalChunks  int           `json:"total_chunks"`
	ChunkDetails []ChunkDetail `json:"chunk_details"`
}

// ChunkDetail is the display form of one supporting chunk.
type ChunkDetail struct {
	Rank           int    `json:"rank"`
	Page           int    `json:"page"`
	RelevanceScore string `json:"relevance_score"`
	Preview        string `json:"preview"`
}

// Metadata describes how an answer was produced.
type Metadata struct {
	ContextLength  int    `json:"context_length"`
	PromptTokens   int    `json:"prompt_tokens"`
	ProcessingTime string `json:"processing_time"`
	SearchStrategy string `json:"search_strategy"`
	DocumentID     string `json:"document_id"`
	Attempts       int    `json:"attempts"`
}

// Status reports what is currently loaded.
type Status struct {
	HasDocument    bool       `json:"has_document"`
	ChunkCount     int        `json:"chunk_count"`
	DocumentID     string     `json:"document_id,omitempty"`
	Title          string     `json:"title,omitempty"`
	Filename       string     `json:"filename,omitempty"`
	TextLength     int        `json:"text_length"`
	PageCount      int        `json:"page_count"`
	IngestedAt     *time.Time `json:"ingested_at,omitempty"`
	SearchStrategy string     `json:"search_strategy"`
}

// ChunkMetadata is the stored metadata of a single chunk.
type ChunkMetadata struct {
	Text          string `json:"text"`
	ChunkIndex    int    `json:"chunk_index"`
	EstimatedPage int    `json:"estimated_page"`
	WordCount     int    `json:"word_count"`
}

// Debug is a diagnostic view of the store.
type Debug struct {
	ChunksCount        int            `json:"chunks_count"`
	ChunkMetadataCount int            `json:"chunk_metadata_count"`
	HasChunks          bool           `json:"has_chunks"`
	SampleChunk        *string        `json:"sample_chunk"`
	SampleMetadata     *ChunkMetadata `json:"sample_metadata"`
}
