package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/docqa/internal/document"
)

// MarkdownParser handles Markdown files using goldmark. Headings and body
// blocks are flattened in document order onto a single page.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	root := goldmark.New().Parser().Parse(text.NewReader(src))

	title := titleFromFilename(filename)
	var blocks []string
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		t := blockText(n, src)
		if t == "" {
			continue
		}
		// A leading h1 names the document.
		if h, ok := n.(*ast.Heading); ok && h.Level == 1 && len(blocks) == 0 {
			title = t
		}
		blocks = append(blocks, t)
	}
	return singlePage(title, filename, blocks), nil
}

// blockText returns the plain text of a block node and its descendants.
func blockText(n ast.Node, src []byte) string {
	if fc := n.FirstChild(); fc != nil && fc.Type() == ast.TypeInline {
		var buf bytes.Buffer
		inlineText(&buf, n, src)
		return strings.TrimSpace(buf.String())
	}

	if n.FirstChild() == nil {
		// Code and raw HTML blocks keep their source lines.
		var buf bytes.Buffer
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		return strings.TrimSpace(buf.String())
	}

	var parts []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t := blockText(c, src); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

func inlineText(buf *bytes.Buffer, n ast.Node, src []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.AutoLink:
			buf.Write(node.Label(src))
		default:
			inlineText(buf, c, src)
		}
	}
}
