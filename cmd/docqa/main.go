// Package main provides the docqa CLI for inspecting chunks and asking
// one-off questions about a local file.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dgallion1/docqa/internal/completion"
	"github.com/dgallion1/docqa/internal/config"
	"github.com/dgallion1/docqa/internal/parser"
	"github.com/dgallion1/docqa/internal/prompt"
	"github.com/dgallion1/docqa/internal/qa"
	"github.com/dgallion1/docqa/internal/store"
)

const (
	previewChars         = 80
	tokenizerLoadTimeout = 10 * time.Second
)

// cli carries state shared by the subcommands.
type cli struct {
	configPath string
	verbose    bool

	cfg config.Config
	log zerolog.Logger
}

func main() {
	// Load .env file if present (local development), ignore if missing
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "docqa",
		Short: "Ask questions about a document",
		Long: `Local tools for the document question answering engine.

Configuration is read the same way as the server: docqa.yaml,
then environment variables (PPLX_API_KEY, DEFAULT_CHUNK_SIZE, ...),
then command-line flags.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.loadConfig,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Path to config file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log at debug level to stderr")

	root.AddCommand(c.chunksCmd(), c.askCmd())
	return root
}

func (c *cli) loadConfig(cmd *cobra.Command, _ []string) error {
	var args []string
	if c.configPath != "" {
		args = []string{"--config", c.configPath}
	}
	cfg, err := config.Load(pflag.NewFlagSet("docqa", pflag.ContinueOnError), args)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg

	level := zerolog.WarnLevel
	if c.verbose {
		level = zerolog.DebugLevel
	}
	c.log = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()
	return nil
}

func (c *cli) newEngine(st *store.Store, completer qa.Completer, tokens prompt.TokenCounter) *qa.Engine {
	return qa.NewEngine(qa.Config{
		Chunking:    c.cfg.Chunking(),
		DefaultTopK: c.cfg.DefaultTopK,
		APIKey:      c.cfg.ProviderAPIKey,
		Parser:      parser.Options{PdftotextFallback: c.cfg.PDFFallbackPdftotext, Log: c.log},
	}, st, completer, tokens, c.log)
}

func (c *cli) chunksCmd() *cobra.Command {
	var opts qa.IngestOptions
	var chunkSize, overlap int
	var pageEstimate string

	cmd := &cobra.Command{
		Use:   "chunks <file>",
		Short: "Print the chunks a file is split into",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("chunk-size") {
				opts.ChunkSize = &chunkSize
			}
			if cmd.Flags().Changed("overlap") {
				opts.Overlap = &overlap
			}
			if cmd.Flags().Changed("page-estimate") {
				c.cfg.PageEstimate = pageEstimate
			}

			st := store.New()
			engine := c.newEngine(st, nil, prompt.HeuristicCounter{})

			res, err := ingestFile(engine, args[0], opts)
			if err != nil {
				return err
			}
			return printChunks(cmd.OutOrStdout(), res, st.Snapshot())
		},
	}
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Chunk size in words (default from config)")
	cmd.Flags().IntVar(&overlap, "overlap", 0, "Overlap in words (default from config)")
	cmd.Flags().StringVar(&pageEstimate, "page-estimate", "", "Page estimate mode (linear|tracked)")
	return cmd
}

func (c *cli) askCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "ask <file> <question>",
		Short: "Ingest a file and answer one question about it",
		Long: `Ingests the file in memory, retrieves the most relevant chunks and asks
the configured completion provider. Requires PPLX_API_KEY.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.ProviderAPIKey == "" {
				return completion.ErrMissingCredentials
			}
			loadCtx, loadCancel := context.WithTimeout(cmd.Context(), tokenizerLoadTimeout)
			tokens := prompt.NewTokenCounter(loadCtx, c.cfg.TokenizerEncoding, c.log)
			loadCancel()

			client := completion.NewClient(c.cfg.Completion(), c.log, nil)
			engine := c.newEngine(store.New(), client, tokens)

			if _, err := ingestFile(engine, args[0], qa.IngestOptions{}); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(len(c.cfg.ProviderModels)+1)*c.cfg.AttemptTimeout)
			defer cancel()
			ans, err := engine.Query(ctx, qa.QueryRequest{Question: args[1], TopK: topK})
			if err != nil {
				return err
			}
			return printAnswer(cmd.OutOrStdout(), ans)
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 0, "Number of chunks to use (default from config)")
	return cmd
}

func ingestFile(engine *qa.Engine, path string, opts qa.IngestOptions) (*qa.IngestResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	res, err := engine.IngestFile(path, data, opts)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", path, err)
	}
	return res, nil
}

func printChunks(w io.Writer, res *qa.IngestResult, snap *store.Snapshot) error {
	fmt.Fprintf(w, "%s: %d chunks, %d characters, %d pages\n\n", res.Filename, res.ChunksCount, res.TextLength, res.PageCount)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tPAGE\tWORDS\tPREVIEW")
	for _, ch := range snap.Chunks {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\n", ch.Index, ch.EstimatedPage, ch.WordCount, prompt.Preview(ch.Text, previewChars))
	}
	return tw.Flush()
}

func printAnswer(w io.Writer, ans *qa.Answer) error {
	fmt.Fprintln(w, ans.Answer)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Model: %s (attempts: %d, %s)\n", ans.Model, ans.Metadata.Attempts, ans.Metadata.ProcessingTime)
	fmt.Fprintf(w, "Sources: %d of %d chunks\n", ans.Sources.ChunksUsed, ans.Sources.TotalChunks)
	for _, d := range ans.Sources.ChunkDetails {
		fmt.Fprintf(w, "  #%d page %d score %s: %s\n", d.Rank, d.Page, d.RelevanceScore, d.Preview)
	}
	return nil
}
