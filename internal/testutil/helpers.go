package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mannyrayner/C-LARA-2/internal/document"
)

// CreateTestFile creates a test file with content
func CreateTestFile(t *testing.T, path string, content []byte) {
	t.Helper()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create directory for test file: %v", err)
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("Failed to create test file %s: %v", path, err)
	}
}

// CreateRunDirectory creates an empty run directory with the stages and
// html subdirectories a pipeline run produces.
func CreateRunDirectory(t *testing.T) string {
	t.Helper()

	runDir := t.TempDir()
	for _, dir := range []string{"stages", "html"} {
		path := filepath.Join(runDir, dir)
		if err := os.MkdirAll(path, 0755); err != nil {
			t.Fatalf("Failed to create test directory %s: %v", path, err)
		}
	}
	return runDir
}

// SampleDocument returns a one-segment English document with lemma, gloss
// and translation annotations.
func SampleDocument() *document.Text {
	return &document.Text{
		L2:      "en",
		L1:      "fr",
		Title:   "Cats",
		Surface: "A cat sleeps.",
		Pages: []document.Page{{
			Surface: "A cat sleeps.",
			Segments: []document.Segment{{
				Surface:     "A cat sleeps.",
				Annotations: document.Annotations{"translation": "Un chat dort."},
				Tokens: []document.Token{
					{Surface: "A", Annotations: document.Annotations{"lemma": "a", "pos": "DET", "gloss": "un"}},
					{Surface: " "},
					{Surface: "cat", Annotations: document.Annotations{"lemma": "cat", "pos": "NOUN", "gloss": "chat"}},
					{Surface: " "},
					{Surface: "sleeps", Annotations: document.Annotations{"lemma": "sleep", "pos": "VERB", "gloss": "dort"}},
					{Surface: "."},
				},
			}},
		}},
		Annotations: document.Annotations{},
	}
}

// WriteDocument saves text as JSON under dir and returns its path.
func WriteDocument(t *testing.T, dir, name string, text *document.Text) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := document.Save(path, text); err != nil {
		t.Fatalf("Failed to write document %s: %v", path, err)
	}
	return path
}

// AssertFileExists checks if a file exists
func AssertFileExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("Expected file to exist: %s", path)
	}
}

// AssertFileNotExists checks if a file does not exist
func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); err == nil {
		t.Errorf("Expected file to not exist: %s", path)
	}
}

// AssertFileContains checks if a file contains a substring
func AssertFileContains(t *testing.T, path string, substring string) {
	t.Helper()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}

	if !strings.Contains(string(content), substring) {
		t.Errorf("File %s does not contain expected substring: %q", path, substring)
	}
}
