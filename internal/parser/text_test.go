package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextParser_SinglePage(t *testing.T) {
	input := "First paragraph line one.\nFirst paragraph line two.\n\nSecond paragraph."
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(input), "notes.txt")
	require.NoError(t, err)

	assert.Equal(t, "notes", doc.Title)
	assert.Equal(t, "notes.txt", doc.Filename)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, 1, doc.Pages[0].Number)
	assert.Equal(t, input, doc.Pages[0].Text)
	assert.Zero(t, doc.PageCount)
}

func TestTextParser_FormFeedPages(t *testing.T) {
	input := "page one text\fpage two text\f\fpage four text"
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(input), "report.txt")
	require.NoError(t, err)

	require.Len(t, doc.Pages, 4)
	assert.Equal(t, 4, doc.PageCount)
	assert.Equal(t, "page two text", doc.Pages[1].Text)
	assert.Empty(t, doc.Pages[2].Text)
	assert.Equal(t, 4, doc.Pages[3].Number)

	rendered := doc.Text()
	assert.Contains(t, rendered, "--- Page 4 ---\npage four text")
	assert.NotContains(t, rendered, "--- Page 3 ---")
}

func TestTextParser_EmptyInput(t *testing.T) {
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(" \n\n "), "empty.txt")
	require.NoError(t, err)
	assert.Equal(t, "empty", doc.Title)
	assert.Empty(t, doc.Pages)
	assert.Empty(t, doc.Text())
}

func TestTextParser_NormalizesCRLF(t *testing.T) {
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader("one\r\ntwo"), "dos.txt")
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, "one\ntwo", doc.Pages[0].Text)
}
