package ingest

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/fumiama/go-docx"
)

// DOCXReader extracts paragraph text from a Word document. A Title or
// Heading1 paragraph becomes the title.
type DOCXReader struct{}

func (DOCXReader) Read(r io.Reader, filename string) (Source, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Source{}, err
	}

	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Source{}, fmt.Errorf("parse docx: %w", err)
	}

	out := Source{Title: stem(filename)}
	titled := false

	var blocks []string
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := paragraphText(para)
		if text == "" {
			continue
		}
		if !titled && isTitleStyle(para) {
			out.Title = text
			titled = true
		}
		blocks = append(blocks, text)
	}

	out.Text = joinBlocks(blocks)
	return out, nil
}

func isTitleStyle(para *docx.Paragraph) bool {
	if para.Properties == nil || para.Properties.Style == nil {
		return false
	}
	style := strings.ReplaceAll(strings.ToLower(para.Properties.Style.Val), " ", "")
	return style == "title" || style == "heading1"
}

func paragraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
