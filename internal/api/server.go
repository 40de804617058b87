package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/dgallion1/docqa/internal/completion"
	"github.com/dgallion1/docqa/internal/config"
	"github.com/dgallion1/docqa/internal/pipeline"
	"github.com/dgallion1/docqa/internal/qa"
)

// Server is the HTTP API server for docqa.
type Server struct {
	router       chi.Router
	engine       *qa.Engine
	orchestrator *pipeline.Orchestrator
	stats        *completion.Stats
	log          zerolog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. stats may be nil.
func NewServer(engine *qa.Engine, orch *pipeline.Orchestrator, stats *completion.Stats, log zerolog.Logger, cfg config.Config) *Server {
	s := &Server{
		engine:       engine,
		orchestrator: orch,
		stats:        stats,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(RequestLogger(s.log)...)
	r.Use(middleware.Recoverer)
	r.Use(CORS(s.cfg.CORSOrigins))

	r.Get("/health", s.handleHealth)

	// Single-document question answering.
	r.Route("/pdf", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Post("/query", s.handleQuery)
		r.Get("/status", s.handleStatus)
		r.Post("/clear", s.handleClear)
		r.Get("/debug", s.handleDebug)
	})

	r.Post("/api/ingest", s.handleIngest)
	r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)
	r.Get("/api/stats/llm", s.handleLLMStats)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
