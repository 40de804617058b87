// Package qa ties ingest and question answering together over a single
// in-memory document.
package qa

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/dgallion1/docqa/internal/chunker"
	"github.com/dgallion1/docqa/internal/completion"
	"github.com/dgallion1/docqa/internal/document"
	"github.com/dgallion1/docqa/internal/parser"
	"github.com/dgallion1/docqa/internal/prompt"
	"github.com/dgallion1/docqa/internal/render"
	"github.com/dgallion1/docqa/internal/retrieval"
	"github.com/dgallion1/docqa/internal/store"
)

// ErrEmptyQuestion is returned for blank questions.
var ErrEmptyQuestion = errors.New("question cannot be empty")

const (
	previewChars     = 200
	debugSampleChars = 200
)

// Completer sends a prompt to the completion provider.
type Completer interface {
	Complete(ctx context.Context, prompt, apiKey string) (*completion.Result, error)
}

// Config holds engine defaults.
type Config struct {
	Chunking    chunker.Config
	DefaultTopK int
	APIKey      string
	Parser      parser.Options
}

// Engine answers questions about the stored document.
type Engine struct {
	cfg       Config
	store     *store.Store
	retriever *retrieval.Retriever
	completer Completer
	tokens    prompt.TokenCounter
	renderer  *render.Renderer
	log       zerolog.Logger
}

// NewEngine creates an engine. tokens may be nil to use the word heuristic.
func NewEngine(cfg Config, st *store.Store, completer Completer, tokens prompt.TokenCounter, log zerolog.Logger) *Engine {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = retrieval.DefaultTopK
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking = chunker.DefaultConfig()
	}
	if tokens == nil {
		tokens = prompt.HeuristicCounter{}
	}
	return &Engine{
		cfg:       cfg,
		store:     st,
		retriever: retrieval.New(log),
		completer: completer,
		tokens:    tokens,
		renderer:  render.New(),
		log:       log.With().Str("component", "engine").Logger(),
	}
}

// ChunkConfig applies overrides to the default chunk window and validates it.
func (e *Engine) ChunkConfig(opts IngestOptions) (chunker.Config, error) {
	cfg := e.cfg.Chunking
	if opts.ChunkSize != nil {
		cfg.ChunkSize = *opts.ChunkSize
	}
	if opts.Overlap != nil {
		cfg.Overlap = *opts.Overlap
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// IngestFile parses raw file bytes by extension and ingests the result.
func (e *Engine) IngestFile(filename string, data []byte, opts IngestOptions) (*IngestResult, error) {
	p, err := parser.ForFile(filename, e.cfg.Parser)
	if err != nil {
		return nil, err
	}
	doc, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		return nil, err
	}
	return e.Ingest(doc, opts)
}

// Ingest chunks a parsed document and replaces the stored one.
func (e *Engine) Ingest(doc *document.Document, opts IngestOptions) (*IngestResult, error) {
	cfg, err := e.ChunkConfig(opts)
	if err != nil {
		return nil, err
	}
	text := doc.Text()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no text extracted from %s", chunker.ErrEmptyInput, displayName(doc.Filename))
	}
	chunks, err := chunker.Build(doc, cfg)
	if err != nil {
		return nil, err
	}
	pageCount := doc.PageCount
	if pageCount == 0 {
		pageCount = doc.NonEmptyPages()
	}
	return e.commit(chunks, store.Info{
		Title:       doc.Title,
		Filename:    doc.Filename,
		ContentHash: store.ContentHashHex([]byte(text)),
		TextLength:  utf8.RuneCountInString(text),
		PageCount:   pageCount,
	})
}

// IngestText chunks raw extracted text and replaces the stored document.
func (e *Engine) IngestText(text string, opts IngestOptions) (*IngestResult, error) {
	cfg, err := e.ChunkConfig(opts)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, chunker.ErrEmptyInput
	}
	chunks, err := chunker.BuildText(text, cfg)
	if err != nil {
		return nil, err
	}
	return e.commit(chunks, store.Info{
		ContentHash: store.ContentHashHex([]byte(text)),
		TextLength:  utf8.RuneCountInString(text),
	})
}

func (e *Engine) commit(chunks []document.Chunk, info store.Info) (*IngestResult, error) {
	snap, err := e.store.Ingest(chunks, info)
	if err != nil {
		return nil, err
	}
	e.log.Info().
		Str("doc_id", snap.DocumentID.String()).
		Str("filename", info.Filename).
		Int("chunks", len(chunks)).
		Int("text_length", info.TextLength).
		Msg("document ingested")
	return &IngestResult{
		Success:     true,
		DocumentID:  snap.DocumentID.String(),
		Title:       snap.Title,
		Filename:    snap.Filename,
		ContentHash: snap.ContentHash,
		ChunksCount: len(snap.Chunks),
		TextLength:  snap.TextLength,
		PageCount:   snap.PageCount,
	}, nil
}

// Query answers a question from the stored document. Either a complete
// answer with its supporting chunks is returned, or an error.
func (e *Engine) Query(ctx context.Context, req QueryRequest) (*Answer, error) {
	start := time.Now()
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if strings.TrimSpace(e.cfg.APIKey) == "" {
		return nil, completion.ErrMissingCredentials
	}

	snap := e.store.Snapshot()
	if snap == nil {
		return nil, retrieval.ErrNoDocument
	}
	log := e.log.With().Str("doc_id", snap.DocumentID.String()).Logger()

	topK := req.TopK
	if topK <= 0 {
		topK = e.cfg.DefaultTopK
	}
	results, err := e.retriever.Retrieve(question, snap.Chunks, topK)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, errors.New("no relevant chunks found, try a different question")
	}

	contextText := prompt.BuildContext(results)
	full := prompt.Build(question, contextText)
	promptTokens := e.tokens.Count(full)
	log.Info().
		Int("chunks_used", len(results)).
		Int("context_length", utf8.RuneCountInString(contextText)).
		Int("prompt_tokens", promptTokens).
		Msg("sending query to provider")

	res, err := e.completer.Complete(ctx, full, e.cfg.APIKey)
	if err != nil {
		return nil, err
	}

	html, err := e.renderer.HTML(res.Answer)
	if err != nil {
		log.Warn().Err(err).Msg("answer rendering failed")
	}

	details := make([]ChunkDetail, len(results))
	for i, r := range results {
		details[i] = ChunkDetail{
			Rank:           r.Rank,
			Page:           r.EstimatedPage,
			RelevanceScore: fmt.Sprintf("%.2f", r.Score),
			Preview:        prompt.Preview(r.Text, previewChars),
		}
	}

	elapsed := time.Since(start)
	log.Info().Str("model", res.Model).Dur("elapsed", elapsed).Msg("query answered")
	return &Answer{
		Success:          true,
		Answer:           res.Answer,
		AnswerHTML:       html,
		Question:         question,
		Model:            res.Model,
		Usage:            res.Usage,
		SupportingChunks: results,
		Sources: Sources{
			ChunksUsed:   len(results),
			TotalChunks:  len(snap.Chunks),
			ChunkDetails: details,
		},
		Metadata: Metadata{
			ContextLength:  utf8.RuneCountInString(contextText),
			PromptTokens:   promptTokens,
			ProcessingTime: elapsed.Round(time.Millisecond).String(),
			SearchStrategy: SearchStrategy,
			DocumentID:     snap.DocumentID.String(),
			Attempts:       res.Attempts,
		},
	}, nil
}

// Status reports the stored document.
func (e *Engine) Status() Status {
	st := Status{SearchStrategy: SearchStrategy}
	snap := e.store.Snapshot()
	if snap == nil {
		return st
	}
	at := snap.IngestedAt
	st.HasDocument = true
	st.ChunkCount = len(snap.Chunks)
	st.DocumentID = snap.DocumentID.String()
	st.Title = snap.Title
	st.Filename = snap.Filename
	st.TextLength = snap.TextLength
	st.PageCount = snap.PageCount
	st.IngestedAt = &at
	return st
}

// Clear drops the stored document. It is safe to call when empty.
func (e *Engine) Clear() {
	had := e.store.Snapshot() != nil
	e.store.Clear()
	e.log.Info().Bool("had_document", had).Msg("document cleared")
}

// Debug returns counts and the first chunk.
func (e *Engine) Debug() Debug {
	var d Debug
	snap := e.store.Snapshot()
	if snap == nil {
		return d
	}
	d.ChunksCount = len(snap.Chunks)
	d.ChunkMetadataCount = len(snap.Chunks)
	d.HasChunks = d.ChunksCount > 0
	if d.HasChunks {
		first := snap.Chunks[0]
		sample := prompt.Truncate(first.Text, debugSampleChars) + "..."
		d.SampleChunk = &sample
		d.SampleMetadata = &ChunkMetadata{
			Text:          first.Text,
			ChunkIndex:    first.Index,
			EstimatedPage: first.EstimatedPage,
			WordCount:     first.WordCount,
		}
	}
	return d
}

func displayName(filename string) string {
	if filename == "" {
		return "document"
	}
	return filename
}
