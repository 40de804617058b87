package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownParser_FlattensInOrder(t *testing.T) {
	input := `# Field Guide

Intro text.

## Cats

Cats are **independent** animals.

- purr
- climb

## Dogs

Dogs bark.
`
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "guide.md")
	require.NoError(t, err)

	assert.Equal(t, "Field Guide", doc.Title)
	require.Len(t, doc.Pages, 1)

	text := doc.Pages[0].Text
	for _, want := range []string{"Field Guide", "Intro text.", "Cats", "Cats are independent animals.", "purr", "climb", "Dogs bark."} {
		assert.Contains(t, text, want)
	}
	assert.Less(t, strings.Index(text, "Cats are"), strings.Index(text, "Dogs bark."))
	assert.Equal(t, 1, strings.Count(text, "Intro text."), "block text must not repeat")
}

func TestMarkdownParser_NoHeadingUsesFilename(t *testing.T) {
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader("Just a paragraph.\n\nAnother one."), "notes.markdown")
	require.NoError(t, err)

	assert.Equal(t, "notes", doc.Title)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, "Just a paragraph.\n\nAnother one.", doc.Pages[0].Text)
}

func TestMarkdownParser_CodeBlock(t *testing.T) {
	input := "Example:\n\n```go\nfmt.Println(\"hi\")\n```\n"
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "code.md")
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
	assert.Contains(t, doc.Pages[0].Text, `fmt.Println("hi")`)
}

func TestMarkdownParser_Empty(t *testing.T) {
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(""), "empty.md")
	require.NoError(t, err)
	assert.Empty(t, doc.Pages)
}
