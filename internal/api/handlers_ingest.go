package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docqa/internal/parser"
	"github.com/dgallion1/docqa/internal/pipeline"
	"github.com/dgallion1/docqa/internal/qa"
)

// formOverhead is the slack allowed on top of MaxUploadBytes for multipart framing.
const formOverhead = 1 << 20

type upload struct {
	filename string
	data     []byte
	opts     qa.IngestOptions
}

// readUpload reads the named multipart file field and optional chunk
// overrides. On failure it writes the response and returns false.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, field string) (*upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+formOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return nil, false
		}
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		jsonError(w, fmt.Sprintf("no file provided in field %q", field), http.StatusBadRequest)
		return nil, false
	}
	defer file.Close()

	if strings.TrimSpace(header.Filename) == "" {
		jsonError(w, "no file selected", http.StatusBadRequest)
		return nil, false
	}
	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return nil, false
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return nil, false
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return nil, false
	}

	var opts qa.IngestOptions
	for _, f := range []struct {
		name string
		dst  **int
	}{
		{"chunk_size", &opts.ChunkSize},
		{"overlap", &opts.Overlap},
	} {
		v := strings.TrimSpace(r.FormValue(f.name))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			jsonError(w, fmt.Sprintf("%s must be an integer", f.name), http.StatusBadRequest)
			return nil, false
		}
		*f.dst = &n
	}

	return &upload{filename: filename, data: data, opts: opts}, true
}

// handleUpload ingests a document synchronously and replaces the stored one.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	up, ok := s.readUpload(w, r, "pdf")
	if !ok {
		return
	}
	defer r.MultipartForm.RemoveAll()

	res, err := s.engine.IngestFile(up.filename, up.data, up.opts)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "Document processed successfully",
		"filename":    up.filename,
		"title":       res.Title,
		"chunks":      res.ChunksCount,
		"text_length": res.TextLength,
		"page_count":  res.PageCount,
		"document_id": res.DocumentID,
	})
}

// handleIngest queues a document for background ingestion.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	up, ok := s.readUpload(w, r, "file")
	if !ok {
		return
	}
	defer r.MultipartForm.RemoveAll()

	// Reject bad windows now rather than in a failed job.
	if _, err := s.engine.ChunkConfig(up.opts); err != nil {
		writeError(w, r, err)
		return
	}

	job := pipeline.NewJob(up.filename, up.data, up.opts)
	if err := s.orchestrator.Submit(job); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/ingest/%s/status", job.ID),
	})
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}
