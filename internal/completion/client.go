// Package completion calls an OpenAI-compatible chat completion endpoint,
// walking an ordered list of models until one answers.
package completion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"github.com/dgallion1/docqa/internal/prompt"
)

// DefaultBaseURL is the Perplexity API root.
const DefaultBaseURL = "https://api.perplexity.ai"

// bodyExcerpt is how much of a failed response body is kept for logs.
const bodyExcerpt = 100

// DefaultModels returns the model list in priority order.
func DefaultModels() []string {
	return []string{
		"sonar-pro",
		"sonar-reasoning",
		"llama-3.1-sonar-small-128k-online",
		"llama-3.1-sonar-large-128k-online",
		"llama-3.1-sonar-huge-128k-online",
		"llama-3.1-sonar-small-128k-chat",
		"llama-3.1-sonar-large-128k-chat",
		"llama-3.1-sonar-huge-128k-chat",
	}
}

// Config controls the completion client.
type Config struct {
	BaseURL        string
	Models         []string
	AttemptTimeout time.Duration
	MaxTokens      int64
	Temperature    float64
}

// DefaultConfig returns the provider defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		Models:         DefaultModels(),
		AttemptTimeout: 30 * time.Second,
		MaxTokens:      1000,
		Temperature:    0.1,
	}
}

// Usage is the token accounting reported by the provider.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Result is a successful completion.
type Result struct {
	Answer   string
	Model    string // Model the provider reports it used
	Usage    Usage
	Attempts int // Models tried, including the successful one
}

// Client sends prompts to the provider.
type Client struct {
	api   openai.Client
	cfg   Config
	log   zerolog.Logger
	stats *Stats
}

// NewClient creates a client. SDK-level retries are disabled: each model is
// tried exactly once per call. stats may be nil.
func NewClient(cfg Config, log zerolog.Logger, stats *Stats, opts ...option.RequestOption) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if len(cfg.Models) == 0 {
		cfg.Models = DefaultModels()
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 30 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	base := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
	}
	return &Client{
		api:   openai.NewClient(append(base, opts...)...),
		cfg:   cfg,
		log:   log.With().Str("component", "completion").Logger(),
		stats: stats,
	}
}

// Models returns the configured model order.
func (c *Client) Models() []string {
	return append([]string(nil), c.cfg.Models...)
}

// Complete tries each model in order and returns the first success.
// Attempts are strictly sequential.
func (c *Client) Complete(ctx context.Context, userPrompt, apiKey string) (*Result, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingCredentials
	}

	var failures []*AttemptError
	for i, model := range c.cfg.Models {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("completion canceled after %d attempts: %w", i, err)
		}

		log := c.log.With().Str("model", model).Logger()
		log.Info().Msg("trying model")

		start := time.Now()
		res, aerr := c.attempt(ctx, model, userPrompt, apiKey)
		if aerr != nil {
			failures = append(failures, aerr)
			c.stats.RecordFailure(model)
			ev := log.Warn().Int("status", aerr.StatusCode).Str("body", aerr.Body)
			if aerr.Err != nil {
				ev = ev.Err(aerr.Err)
			}
			ev.Msg("model failed")
			continue
		}

		elapsed := time.Since(start)
		c.stats.Record(model, elapsed.Milliseconds())
		res.Attempts = i + 1
		log.Info().Str("reported_model", res.Model).Dur("elapsed", elapsed).Msg("model succeeded")
		return res, nil
	}

	c.log.Error().Int("attempts", len(failures)).Msg("all models failed")
	return nil, &ExhaustedError{Attempts: failures}
}

func (c *Client) attempt(ctx context.Context, model, userPrompt, apiKey string) (*Result, *AttemptError) {
	actx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.SystemInstruction),
			openai.UserMessage(userPrompt),
		},
		MaxTokens:   openai.Int(c.cfg.MaxTokens),
		Temperature: openai.Float(c.cfg.Temperature),
	}

	var httpResp *http.Response
	resp, err := c.api.Chat.Completions.New(actx, params,
		option.WithAPIKey(apiKey),
		option.WithResponseInto(&httpResp),
	)
	if err != nil {
		return nil, attemptFailure(model, httpResp, err)
	}
	if httpResp != nil && httpResp.StatusCode != http.StatusOK {
		return nil, &AttemptError{Model: model, StatusCode: httpResp.StatusCode, Err: fmt.Errorf("unexpected status %d", httpResp.StatusCode)}
	}
	if len(resp.Choices) == 0 {
		return nil, &AttemptError{Model: model, StatusCode: http.StatusOK, Body: "no choices in response", Err: errors.New("empty completion")}
	}

	reported := resp.Model
	if reported == "" {
		reported = model
	}
	return &Result{
		Answer: resp.Choices[0].Message.Content,
		Model:  reported,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// attemptFailure classifies an SDK error as an HTTP or transport failure.
func attemptFailure(model string, httpResp *http.Response, err error) *AttemptError {
	ae := &AttemptError{Model: model, Err: err}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		ae.StatusCode = apiErr.StatusCode
		ae.Body = excerpt(apiErr.RawJSON())
	}
	if httpResp != nil {
		ae.StatusCode = httpResp.StatusCode
		if httpResp.StatusCode >= 400 && httpResp.Body != nil {
			raw, rerr := io.ReadAll(io.LimitReader(httpResp.Body, 4*bodyExcerpt))
			if rerr == nil && len(raw) > 0 {
				ae.Body = excerpt(string(raw))
			}
		}
	}
	return ae
}

func excerpt(s string) string {
	return prompt.Truncate(strings.TrimSpace(s), bodyExcerpt)
}
