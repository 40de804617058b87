package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dgallion1/docqa/internal/qa"
)

// modelName is what /pdf/status reports as the retrieval model.
const modelName = "Simple Keyword Search"

var validate = validator.New()

// queryRequest accepts the question under either key.
type queryRequest struct {
	Query    string `json:"query" validate:"required_without=Question"`
	Question string `json:"question"`
	TopK     int    `json:"top_k" validate:"gte=0,lte=100"`
}

func (q queryRequest) text() string {
	if strings.TrimSpace(q.Query) != "" {
		return q.Query
	}
	return q.Question
}

// validationErrors maps each failing field to the rule it broke.
func validationErrors(err error) map[string]string {
	out := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs {
			out[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
	}
	return out
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"success": false,
			"error":   "validation failed",
			"errors":  validationErrors(err),
		})
		return
	}

	ans, err := s.engine.Query(r.Context(), qa.QueryRequest{Question: req.text(), TopK: req.TopK})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

type statusResponse struct {
	qa.Status
	HasPDF      bool   `json:"has_pdf"`
	ChunksCount int    `json:"chunks_count"`
	ModelName   string `json:"model_name"`
	Dimension   string `json:"dimension"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.engine.Status()
	writeJSON(w, http.StatusOK, statusResponse{
		Status:      st,
		HasPDF:      st.HasDocument,
		ChunksCount: st.ChunkCount,
		ModelName:   modelName,
		Dimension:   "N/A",
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.engine.Clear()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Document data cleared successfully",
	})
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Debug())
}
