package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docqa/internal/chunker"
	"github.com/dgallion1/docqa/internal/document"
	"github.com/dgallion1/docqa/internal/parser"
	"github.com/dgallion1/docqa/internal/qa"
	"github.com/dgallion1/docqa/internal/store"
)

func newEngine(t *testing.T) (*qa.Engine, *store.Store) {
	t.Helper()
	st := store.New()
	cfg := qa.Config{Chunking: chunker.Config{ChunkSize: 5, Overlap: 1, PageMode: chunker.PageLinear}}
	return qa.NewEngine(cfg, st, nil, nil, zerolog.Nop()), st
}

func waitFor(t *testing.T, job *Job, status JobStatus) JobSnapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		return job.Snapshot().Status == status
	}, 2*time.Second, 5*time.Millisecond, "job never reached %s", status)
	return job.Snapshot()
}

func TestOrchestrator_IngestsTextFile(t *testing.T) {
	engine, st := newEngine(t)
	o := NewOrchestrator(Options{WorkerCount: 2, MaxQueueSize: 4}, engine, zerolog.Nop())
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("notes.txt", []byte("Page 1 content about cats. Page 2 content about dogs."), qa.IngestOptions{})
	require.NoError(t, o.Submit(job))
	assert.Same(t, job, o.GetJob(job.ID))

	snap := waitFor(t, job, StatusCompleted)
	assert.Equal(t, "done", snap.Phase)
	// Ten words plus the four-word page marker, windows of 5 advancing by 4.
	assert.Equal(t, 4, snap.Progress.TotalChunks)
	assert.NotEmpty(t, snap.DocumentID)
	assert.Len(t, snap.ContentHash, 64)
	assert.Equal(t, "notes", snap.Title)
	assert.Empty(t, snap.Progress.Errors)

	stored := st.Snapshot()
	require.NotNil(t, stored)
	assert.Equal(t, snap.DocumentID, stored.DocumentID.String())
}

func TestOrchestrator_AppliesChunkOverrides(t *testing.T) {
	engine, _ := newEngine(t)
	o := NewOrchestrator(Options{WorkerCount: 1, MaxQueueSize: 1}, engine, zerolog.Nop())
	o.Start(context.Background())
	defer o.Stop()

	size, overlap := 100, 10
	text := strings.Repeat("word ", 250)
	job := NewJob("big.txt", []byte(text), qa.IngestOptions{ChunkSize: &size, Overlap: &overlap})
	require.NoError(t, o.Submit(job))

	snap := waitFor(t, job, StatusCompleted)
	// 250 words plus the page marker, windows of 100 advancing by 90.
	assert.Equal(t, 3, snap.Progress.TotalChunks)
}

func TestOrchestrator_FailedJobs(t *testing.T) {
	bad := 5
	tests := []struct {
		name     string
		filename string
		data     string
		opts     qa.IngestOptions
		phase    string
	}{
		{"unsupported format", "image.png", "png", qa.IngestOptions{}, "parsing"},
		{"empty text", "blank.txt", "   \n  ", qa.IngestOptions{}, "chunking"},
		{"invalid overlap", "notes.txt", "a b c d e f", qa.IngestOptions{Overlap: &bad}, "chunking"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine, st := newEngine(t)
			o := NewOrchestrator(Options{WorkerCount: 1, MaxQueueSize: 1}, engine, zerolog.Nop())
			o.Start(context.Background())
			defer o.Stop()

			job := NewJob(tc.filename, []byte(tc.data), tc.opts)
			require.NoError(t, o.Submit(job))

			snap := waitFor(t, job, StatusFailed)
			assert.Equal(t, tc.phase, snap.Phase)
			assert.Len(t, snap.Progress.Errors, 1)
			assert.Nil(t, st.Snapshot())
		})
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	engine, _ := newEngine(t)
	// Not started: nothing drains the queue.
	o := NewOrchestrator(Options{WorkerCount: 1, MaxQueueSize: 1}, engine, zerolog.Nop())

	first := NewJob("a.txt", []byte("alpha"), qa.IngestOptions{})
	second := NewJob("b.txt", []byte("beta"), qa.IngestOptions{})
	require.NoError(t, o.Submit(first))
	assert.Equal(t, 1, o.QueueDepth())

	err := o.Submit(second)
	require.ErrorIs(t, err, ErrQueueFull)
	snap := second.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "queue_full", snap.Phase)
	assert.NotNil(t, o.GetJob(second.ID), "rejected jobs stay pollable")
}

// pageAtCatalogPDF returns a PDF whose page object reference resolves to
// the catalog.
func pageAtCatalogPDF() []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	catalog := b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	pages := b.Len()
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	b.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\nendobj\n")
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 4\n0000000000 65535 f \n%010d 00000 n \n%010d 00000 n \n%010d 00000 n \n", catalog, pages, catalog)
	fmt.Fprintf(&b, "trailer\n<< /Size 4 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xref)
	return b.Bytes()
}

func TestOrchestrator_MalformedPDFFailsJobOnly(t *testing.T) {
	engine, st := newEngine(t)
	o := NewOrchestrator(Options{WorkerCount: 1, MaxQueueSize: 2}, engine, zerolog.Nop())
	o.Start(context.Background())
	defer o.Stop()

	broken := NewJob("broken.pdf", pageAtCatalogPDF(), qa.IngestOptions{})
	require.NoError(t, o.Submit(broken))
	snap := waitFor(t, broken, StatusFailed)
	assert.Equal(t, "parsing", snap.Phase)
	require.Len(t, snap.Progress.Errors, 1)
	assert.Contains(t, snap.Progress.Errors[0], "malformed pdf")
	assert.Nil(t, st.Snapshot())

	// The worker survives and keeps draining the queue.
	next := NewJob("notes.txt", []byte("cats sleep all day"), qa.IngestOptions{})
	require.NoError(t, o.Submit(next))
	waitFor(t, next, StatusCompleted)
}

type panickingIngester struct{}

func (panickingIngester) Ingest(*document.Document, qa.IngestOptions) (*qa.IngestResult, error) {
	panic("index out of range")
}

func TestWorker_RecoversFromPanic(t *testing.T) {
	w := NewWorker(panickingIngester{}, parser.Options{}, zerolog.Nop())
	job := NewJob("notes.txt", []byte("cats sleep all day"), qa.IngestOptions{})

	require.NotPanics(t, func() { w.Process(context.Background(), job) })

	snap := job.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "chunking", snap.Phase)
	assert.Equal(t, []string{"panic: index out of range"}, snap.Progress.Errors)
}

type recordingIngester struct {
	mu    sync.Mutex
	order []string
}

func (r *recordingIngester) Ingest(doc *document.Document, _ qa.IngestOptions) (*qa.IngestResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc.Title == "boom" {
		return nil, errors.New("ingest exploded")
	}
	r.order = append(r.order, doc.Title)
	return &qa.IngestResult{Success: true, DocumentID: doc.Title, ChunksCount: 1}, nil
}

func TestOrchestrator_ConcurrentJobsAllFinish(t *testing.T) {
	ing := &recordingIngester{}
	o := NewOrchestrator(Options{WorkerCount: 3, MaxQueueSize: 8}, ing, zerolog.Nop())
	o.Start(context.Background())
	defer o.Stop()

	var jobs []*Job
	for _, name := range []string{"one", "two", "boom", "three"} {
		job := NewJob(name+".txt", []byte("text for "+name), qa.IngestOptions{})
		require.NoError(t, o.Submit(job))
		jobs = append(jobs, job)
	}

	waitFor(t, jobs[0], StatusCompleted)
	waitFor(t, jobs[1], StatusCompleted)
	failed := waitFor(t, jobs[2], StatusFailed)
	assert.Equal(t, []string{"ingest exploded"}, failed.Progress.Errors)
	waitFor(t, jobs[3], StatusCompleted)

	ing.mu.Lock()
	defer ing.mu.Unlock()
	assert.ElementsMatch(t, []string{"one", "two", "three"}, ing.order)
}
