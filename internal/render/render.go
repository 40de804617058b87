// Package render turns markdown answers into HTML fragments.
package render

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer converts markdown to HTML. Raw HTML in the source is dropped,
// since answers come from an external model.
type Renderer struct {
	md goldmark.Markdown
}

func New() *Renderer {
	return &Renderer{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// HTML renders markdown source.
func (r *Renderer) HTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}
