// Package prompts loads per-operation, per-language prompt templates and
// few-shot examples, and assembles the final prompt text.
package prompts

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

//go:embed templates
var embedded embed.FS

// FallbackLanguage is tried when no template exists for the requested
// language.
const FallbackLanguage = "en"

// Example is one few-shot example. Input may be a string or any JSON value;
// Description is used by text generation examples.
type Example struct {
	Input       any `json:"input,omitempty"`
	Description any `json:"description,omitempty"`
	Output      any `json:"output"`
}

// Library resolves templates from an optional directory on disk, then from
// the templates compiled into the binary.
type Library struct {
	sources []fs.FS
}

// NewLibrary creates a library. An empty dir uses only the built-in
// templates.
func NewLibrary(dir string) *Library {
	var sources []fs.FS
	if dir != "" {
		sources = append(sources, os.DirFS(dir))
	}
	sub, err := fs.Sub(embedded, "templates")
	if err == nil {
		sources = append(sources, sub)
	}
	return &Library{sources: sources}
}

// Bundle is a resolved template with its few-shot examples.
type Bundle struct {
	Template string
	Examples []Example
}

// Load resolves the template and few-shots for operation and language.
func (l *Library) Load(operation, language string) (Bundle, error) {
	languages := []string{language}
	if language != FallbackLanguage {
		languages = append(languages, FallbackLanguage)
	}

	for _, src := range l.sources {
		for _, lang := range languages {
			dir := path.Join(operation, lang)
			data, err := fs.ReadFile(src, path.Join(dir, "template.txt"))
			if err != nil {
				continue
			}
			examples, err := loadExamples(src, path.Join(dir, "fewshots"))
			if err != nil {
				return Bundle{}, err
			}
			return Bundle{Template: string(data), Examples: examples}, nil
		}
	}
	return Bundle{}, fmt.Errorf("no prompt template for %s/%s", operation, language)
}

func loadExamples(src fs.FS, dir string) ([]Example, error) {
	entries, err := fs.ReadDir(src, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read few-shots: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	examples := make([]Example, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(src, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read few-shot %s: %w", name, err)
		}
		var ex Example
		if err := json.Unmarshal(data, &ex); err != nil {
			return nil, fmt.Errorf("failed to parse few-shot %s: %w", name, err)
		}
		examples = append(examples, ex)
	}
	return examples, nil
}

// Build assembles a prompt: the template, the labelled content, the
// few-shot examples and finally the output instructions.
func Build(template, contentLabel, content string, examples []Example, instructions []string) string {
	lines := []string{strings.TrimSpace(template), "", contentLabel, strings.TrimSpace(content), ""}
	if len(examples) > 0 {
		lines = append(lines, "Few-shot examples:")
		for i, ex := range examples {
			if ex.Description != nil {
				lines = append(lines, fmt.Sprintf("Example %d description:", i+1), indentJSON(ex.Description))
			} else {
				lines = append(lines, fmt.Sprintf("Example %d input:", i+1), inputText(ex.Input))
			}
			lines = append(lines, "Example output:", indentJSON(ex.Output), "")
		}
	}
	lines = append(lines, instructions...)
	return strings.Join(lines, "\n")
}

// JSON renders v as indented JSON for embedding in a prompt.
func JSON(v any) string {
	return indentJSON(v)
}

func inputText(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return indentJSON(v)
}

func indentJSON(v any) string {
	if v == nil {
		return "{}"
	}
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "{}"
	}
	return strings.TrimRight(b.String(), "\n")
}
