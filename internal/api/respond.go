package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/hlog"

	"github.com/dgallion1/docqa/internal/chunker"
	"github.com/dgallion1/docqa/internal/completion"
	"github.com/dgallion1/docqa/internal/parser"
	"github.com/dgallion1/docqa/internal/pipeline"
	"github.com/dgallion1/docqa/internal/qa"
	"github.com/dgallion1/docqa/internal/retrieval"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]any{"success": false, "error": msg})
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, chunker.ErrEmptyInput),
		errors.Is(err, chunker.ErrInvalidConfig),
		errors.Is(err, qa.ErrEmptyQuestion),
		errors.Is(err, parser.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, retrieval.ErrNoDocument):
		return http.StatusConflict
	case errors.Is(err, completion.ErrProviderExhausted):
		return http.StatusBadGateway
	case errors.Is(err, pipeline.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err against the request and sends the mapped status.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errorStatus(err)
	ev := hlog.FromRequest(r).Warn()
	if code >= http.StatusInternalServerError {
		ev = hlog.FromRequest(r).Error()
	}
	ev.Err(err).Int("status", code).Msg("request failed")
	jsonError(w, err.Error(), code)
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
