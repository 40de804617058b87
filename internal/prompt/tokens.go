package prompt

import (
	"context"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"github.com/dgallion1/docqa/internal/chunker"
)

// TokenCounter counts model tokens in a string.
type TokenCounter interface {
	Count(text string) int
}

// HeuristicCounter estimates tokens from the word count.
type HeuristicCounter struct{}

func (HeuristicCounter) Count(text string) int { return chunker.EstimateTokens(text) }

// TiktokenCounter counts with a loaded BPE encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// NewTokenCounter loads encoding up front so that counting never touches
// the network. The first load of a tiktoken encoding downloads its BPE
// file without a timeout, so the wait is bounded by ctx. An empty
// encoding, a load failure or an expired ctx all yield the word
// heuristic.
func NewTokenCounter(ctx context.Context, encoding string, log zerolog.Logger) TokenCounter {
	if encoding == "" {
		return HeuristicCounter{}
	}

	type loaded struct {
		enc *tiktoken.Tiktoken
		err error
	}
	// Buffered so an abandoned load can still finish.
	ch := make(chan loaded, 1)
	go func() {
		enc, err := tiktoken.GetEncoding(encoding)
		ch <- loaded{enc, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			log.Warn().Err(res.err).Str("encoding", encoding).Msg("tokenizer unavailable, using word estimate")
			return HeuristicCounter{}
		}
		return &TiktokenCounter{enc: res.enc}
	case <-ctx.Done():
		log.Warn().Err(ctx.Err()).Str("encoding", encoding).Msg("tokenizer load timed out, using word estimate")
		return HeuristicCounter{}
	}
}
