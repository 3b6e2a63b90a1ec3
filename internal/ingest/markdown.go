package ingest

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownReader extracts the prose of a Markdown file using goldmark.
// Code blocks are dropped; the first level-one heading becomes the title.
type MarkdownReader struct{}

func (MarkdownReader) Read(r io.Reader, filename string) (Source, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return Source{}, err
	}

	doc := goldmark.New().Parser().Parse(text.NewReader(src))
	out := Source{Title: stem(filename)}
	titled := false

	var blocks []string
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.ThematicBreak:
			continue
		case *ast.Heading:
			heading := inlineText(node, src)
			if node.Level == 1 && !titled {
				out.Title = heading
				titled = true
			}
			blocks = append(blocks, heading)
		case *ast.List:
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				blocks = append(blocks, blockText(item, src))
			}
		default:
			blocks = append(blocks, blockText(node, src))
		}
	}

	out.Text = joinBlocks(blocks)
	return out, nil
}

// blockText concatenates the inline text under a block node, keeping soft
// line breaks as spaces.
func blockText(n ast.Node, src []byte) string {
	var parts []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if c.Type() == ast.TypeBlock {
			parts = append(parts, " "+blockText(c, src))
			continue
		}
		parts = append(parts, rawInline(c, src))
	}
	if len(parts) == 0 {
		return inlineText(n, src)
	}
	return strings.TrimSpace(strings.Join(parts, ""))
}

func inlineText(n ast.Node, src []byte) string {
	return strings.TrimSpace(rawInline(n, src))
}

func rawInline(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		switch t := n.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
			return
		case *ast.String:
			buf.Write(t.Value)
			return
		case *ast.CodeSpan:
			for c := t.FirstChild(); c != nil; c = c.NextSibling() {
				if seg, ok := c.(*ast.Text); ok {
					buf.Write(seg.Segment.Value(src))
				}
			}
			return
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walk(c)
		}
	}
	walk(n)
	return buf.String()
}
