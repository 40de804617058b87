package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/dgallion1/docqa/internal/api"
	"github.com/dgallion1/docqa/internal/completion"
	"github.com/dgallion1/docqa/internal/config"
	"github.com/dgallion1/docqa/internal/parser"
	"github.com/dgallion1/docqa/internal/pipeline"
	"github.com/dgallion1/docqa/internal/prompt"
	"github.com/dgallion1/docqa/internal/qa"
	"github.com/dgallion1/docqa/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// A missing .env is fine.
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("docqa-server", pflag.ExitOnError)
	cfg, err := config.Load(fs, os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	log = log.Level(cfg.Level())
	if cfg.Source != "" {
		log.Info().Str("path", cfg.Source).Msg("loaded config file")
	}
	if cfg.ProviderAPIKey == "" {
		log.Warn().Msg("PPLX_API_KEY not set, queries will fail until it is configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load the tokenizer before serving so no query waits on its download.
	loadCtx, loadCancel := context.WithTimeout(ctx, 10*time.Second)
	tokens := prompt.NewTokenCounter(loadCtx, cfg.TokenizerEncoding, log)
	loadCancel()

	// Initialize the engine.
	stats := completion.NewStats(time.Hour)
	client := completion.NewClient(cfg.Completion(), log, stats)
	parserOpts := parser.Options{PdftotextFallback: cfg.PDFFallbackPdftotext, Log: log}
	engine := qa.NewEngine(qa.Config{
		Chunking:    cfg.Chunking(),
		DefaultTopK: cfg.DefaultTopK,
		APIKey:      cfg.ProviderAPIKey,
		Parser:      parserOpts,
	}, store.New(), client, tokens, log)

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(pipeline.Options{
		WorkerCount:  cfg.WorkerCount,
		MaxQueueSize: cfg.MaxQueueSize,
		JobTTL:       cfg.JobTTL,
		Parser:       parserOpts,
	}, engine, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(engine, orch, stats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(len(cfg.ProviderModels)+1) * cfg.AttemptTimeout,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().
		Str("port", cfg.Port).
		Strs("models", cfg.ProviderModels).
		Int("workers", cfg.WorkerCount).
		Msg("starting docqa")

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := serve(sigCtx, httpServer, orch, log); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
	log.Info().Msg("shutdown complete")
}

// stopper is the part of the orchestrator serve drains on shutdown.
type stopper interface {
	Stop()
}

// serve runs httpServer until ctx is done, then drains in-flight requests
// and stops the workers. It returns only after both have finished.
func serve(ctx context.Context, httpServer *http.Server, workers stopper, log zerolog.Logger) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		log.Info().Msg("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
		workers.Stop()
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}
