package pipeline

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docqa/internal/qa"
)

func TestNewJob(t *testing.T) {
	size := 50
	job := NewJob("notes.txt", []byte("hello"), qa.IngestOptions{ChunkSize: &size})

	if _, err := uuid.Parse(job.ID); err != nil {
		t.Errorf("expected uuid job id, got %q: %v", job.ID, err)
	}
	if job.Status != StatusQueued {
		t.Errorf("expected status %q, got %q", StatusQueued, job.Status)
	}
	if string(job.FileData()) != "hello" {
		t.Errorf("expected file data %q, got %q", "hello", job.FileData())
	}
	if got := job.Options().ChunkSize; got == nil || *got != 50 {
		t.Errorf("expected chunk size override 50, got %v", got)
	}
	if NewJob("a.txt", nil, qa.IngestOptions{}).ID == job.ID {
		t.Error("expected distinct job ids")
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := &Job{
		ID:        "test-1",
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusParsing, "parsing"},
		{StatusChunking, "chunking"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("parse: bad header")
	job.AddError("no text to chunk")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "parse: bad header" {
		t.Errorf("expected first error %q, got %q", "parse: bad header", snap.Progress.Errors[0])
	}
}

func TestJob_Complete(t *testing.T) {
	job := NewJob("doc.txt", []byte("some text"), qa.IngestOptions{})
	job.Complete(&qa.IngestResult{
		DocumentID:  "doc-1",
		ContentHash: "abc",
		ChunksCount: 4,
		TextLength:  120,
	})

	snap := job.Snapshot()
	if snap.Status != StatusCompleted || snap.Phase != "done" {
		t.Errorf("expected completed/done, got %s/%s", snap.Status, snap.Phase)
	}
	if snap.DocumentID != "doc-1" || snap.ContentHash != "abc" {
		t.Errorf("unexpected ids: %+v", snap)
	}
	if snap.Progress.TotalChunks != 4 || snap.Progress.TextLength != 120 {
		t.Errorf("unexpected progress: %+v", snap.Progress)
	}
	if job.FileData() != nil {
		t.Error("expected file data to be released")
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	// Snapshot should always return non-nil errors slice.
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
	if len(snap.Progress.Errors) != 0 {
		t.Errorf("expected empty errors, got %d", len(snap.Progress.Errors))
	}
}

func TestJob_SnapshotIsCopy(t *testing.T) {
	job := &Job{ID: "copy-test", UpdatedAt: time.Now()}
	job.AddError("first")
	snap := job.Snapshot()
	job.AddError("second")
	if len(snap.Progress.Errors) != 1 {
		t.Errorf("expected snapshot to keep 1 error, got %d", len(snap.Progress.Errors))
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 job, got %d", store.Len())
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", UpdatedAt: time.Now()}
	store.Put(expired)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	// Add a fresh job.
	fresh := &Job{ID: "new", UpdatedAt: time.Now()}
	store.Put(fresh)

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}

func TestJobStore_CleanupEmpty(t *testing.T) {
	store := NewJobStore(time.Hour)
	// Should not panic on empty store.
	store.Cleanup()
}
