// Package ingest extracts plain source text from the file formats a run can
// start from.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for file extensions no reader handles.
var ErrUnsupportedFormat = errors.New("unsupported source format")

// Source is the text extracted from one file.
type Source struct {
	Title string
	Text  string
}

// Reader extracts a Source from file content.
type Reader interface {
	Read(r io.Reader, filename string) (Source, error)
}

// SupportedExtensions lists the extensions ForFile accepts.
var SupportedExtensions = []string{".txt", ".md", ".markdown", ".html", ".htm", ".pdf", ".docx"}

// ForFile returns the reader for filename's extension.
func ForFile(filename string) (Reader, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt", "":
		return &TextReader{}, nil
	case ".md", ".markdown":
		return &MarkdownReader{}, nil
	case ".html", ".htm":
		return &HTMLReader{}, nil
	case ".pdf":
		return &PDFReader{}, nil
	case ".docx":
		return &DOCXReader{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// ReadText opens path and extracts its text with the matching reader.
func ReadText(path string) (Source, error) {
	reader, err := ForFile(path)
	if err != nil {
		return Source{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return Source{}, fmt.Errorf("failed to open source: %w", err)
	}
	defer f.Close()

	src, err := reader.Read(f, filepath.Base(path))
	if err != nil {
		return Source{}, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if strings.TrimSpace(src.Text) == "" {
		return Source{}, fmt.Errorf("no text found in %s", filepath.Base(path))
	}
	return src, nil
}

// TextReader handles plain UTF-8 text.
type TextReader struct{}

func (TextReader) Read(r io.Reader, filename string) (Source, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Source{}, err
	}
	text := strings.TrimPrefix(string(data), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return Source{Title: stem(filename), Text: strings.TrimSpace(text)}, nil
}

// joinBlocks joins non-empty blocks with blank lines, which segmentation
// treats as paragraph breaks.
func joinBlocks(blocks []string) string {
	var kept []string
	for _, b := range blocks {
		if b = strings.TrimSpace(b); b != "" {
			kept = append(kept, b)
		}
	}
	return strings.Join(kept, "\n\n")
}

func stem(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}
