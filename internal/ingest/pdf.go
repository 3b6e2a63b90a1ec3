package ingest

import (
	"fmt"
	"io"
	"os"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// PDFReader extracts the plain text of every page of a PDF. Pages are
// separated by blank lines.
type PDFReader struct{}

func (PDFReader) Read(r io.Reader, filename string) (Source, error) {
	// ledongthuc/pdf needs a file on disk.
	tmp, err := os.CreateTemp("", "clara-pdf-*.pdf")
	if err != nil {
		return Source{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return Source{}, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	f, reader, err := pdflib.Open(tmpPath)
	if err != nil {
		return Source{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, strings.TrimSpace(text))
	}

	return Source{Title: stem(filename), Text: joinBlocks(pages)}, nil
}
