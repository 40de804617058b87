package completion

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingCredentials is returned before any attempt when no API key is set.
	ErrMissingCredentials = errors.New("completion provider API key not configured")
	// ErrProviderExhausted is matched by every ExhaustedError.
	ErrProviderExhausted = errors.New("all models failed, please check your API key and account status")
)

// AttemptError describes one failed model attempt: a non-200 response or a
// transport failure. It is recorded and the next model is tried.
type AttemptError struct {
	Model      string
	StatusCode int    // 0 for transport failures
	Body       string // Leading excerpt of the response body
	Err        error
}

func (e *AttemptError) Error() string {
	if e.StatusCode != 0 && e.Body != "" {
		return fmt.Sprintf("model %s: status %d: %s", e.Model, e.StatusCode, e.Body)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("model %s: status %d: %v", e.Model, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("model %s: %v", e.Model, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

// ExhaustedError is returned when every configured model failed.
type ExhaustedError struct {
	Attempts []*AttemptError
}

func (e *ExhaustedError) Error() string {
	models := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		models[i] = a.Model
	}
	return fmt.Sprintf("%s (tried %s)", ErrProviderExhausted, strings.Join(models, ", "))
}

func (e *ExhaustedError) Unwrap() error { return ErrProviderExhausted }
