// Package store holds the single active document's chunks in memory.
package store

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docqa/internal/document"
)

// ErrNoChunks is returned when an ingest carries no chunks.
var ErrNoChunks = errors.New("no chunks to store")

// Info describes the document a chunk sequence came from.
type Info struct {
	Title       string
	Filename    string
	ContentHash string // SHA-256 hex of the extracted text
	TextLength  int
	PageCount   int
}

// Snapshot is an immutable view of the stored document. Callers must not
// modify Chunks.
type Snapshot struct {
	DocumentID  uuid.UUID
	Title       string
	Filename    string
	ContentHash string
	TextLength  int
	PageCount   int
	IngestedAt  time.Time
	Chunks      []document.Chunk
}

// Store keeps zero or one document. Ingest and Clear swap the whole
// snapshot, so readers always see a complete chunk sequence.
type Store struct {
	mu   sync.RWMutex
	snap *Snapshot
}

func New() *Store {
	return &Store{}
}

// Ingest replaces the stored document with chunks and returns the new snapshot.
func (s *Store) Ingest(chunks []document.Chunk, info Info) (*Snapshot, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	for i, c := range chunks {
		if c.Index != i {
			return nil, fmt.Errorf("chunk %d has index %d, indices must be dense from 0", i, c.Index)
		}
	}

	snap := &Snapshot{
		DocumentID:  uuid.New(),
		Title:       info.Title,
		Filename:    info.Filename,
		ContentHash: info.ContentHash,
		TextLength:  info.TextLength,
		PageCount:   info.PageCount,
		IngestedAt:  time.Now().UTC(),
		Chunks:      append([]document.Chunk(nil), chunks...),
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	return snap, nil
}

// Clear empties the store. Clearing an empty store is a no-op.
func (s *Store) Clear() {
	s.mu.Lock()
	s.snap = nil
	s.mu.Unlock()
}

// Snapshot returns the current document, or nil when empty.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
