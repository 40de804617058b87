package pipeline

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dgallion1/docqa/internal/parser"
)

// Worker processes a single document job.
type Worker struct {
	ingester Ingester
	parser   parser.Options
	log      zerolog.Logger
}

func NewWorker(ingester Ingester, parserOpts parser.Options, log zerolog.Logger) *Worker {
	return &Worker{
		ingester: ingester,
		parser:   parserOpts,
		log:      log,
	}
}

// Process parses the job's file and replaces the stored document with it.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With().Str("job_id", job.ID).Str("filename", job.Filename).Logger()

	// A panic fails this job instead of the worker goroutine.
	defer func() {
		if r := recover(); r != nil {
			w.fail(log, job, job.Snapshot().Phase, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		w.fail(log, job, "queued", err)
		return
	}

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename, w.parser)
	if err != nil {
		w.fail(log, job, "parsing", err)
		return
	}
	doc, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		w.fail(log, job, "parsing", fmt.Errorf("parse: %w", err))
		return
	}
	job.SetTitle(doc.Title)

	// Phase 2: Chunk and store
	job.SetStatus(StatusChunking, "chunking")
	res, err := w.ingester.Ingest(doc, job.Options())
	if err != nil {
		w.fail(log, job, "chunking", err)
		return
	}

	job.Complete(res)
	log.Info().
		Str("doc_id", res.DocumentID).
		Int("chunks", res.ChunksCount).
		Int("text_length", res.TextLength).
		Msg("job completed")
}

func (w *Worker) fail(log zerolog.Logger, job *Job, phase string, err error) {
	log.Error().Err(err).Str("phase", phase).Msg("job failed")
	job.AddError(err.Error())
	job.SetStatus(StatusFailed, phase)
}
