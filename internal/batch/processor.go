package batch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/mannyrayner/C-LARA-2/internal"
)

// descriptionPrefix marks a batch line that asks for a generated text.
const descriptionPrefix = "description:"

// Entry is one line of a batch file: either a source file to annotate or a
// description to generate a text from.
type Entry struct {
	Path        string
	Description string
	// Name is the run directory name under the batch output directory.
	Name string
}

// IsDescription reports whether the entry starts from text generation.
func (e Entry) IsDescription() bool {
	return e.Description != ""
}

// ReadBatchFile reads entries from a file.
// Supports formats:
// - Source file: "stories/cat.txt" (relative to the batch file)
// - Generated text: "description: a short story about a cat"
// - Either with a run name: "stories/cat.txt = cat-story"
// Blank lines and lines starting with '#' are ignored.
func ReadBatchFile(filename string) ([]Entry, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	baseDir := filepath.Dir(filename)
	var entries []Entry

	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		value, name := line, ""
		if idx := strings.LastIndex(line, "="); idx >= 0 {
			value = strings.TrimSpace(line[:idx])
			name = strings.TrimSpace(line[idx+1:])
		}

		var entry Entry
		if strings.HasPrefix(strings.ToLower(value), descriptionPrefix) {
			entry.Description = strings.TrimSpace(value[len(descriptionPrefix):])
			if entry.Description == "" {
				continue
			}
		} else {
			if value == "" {
				continue
			}
			entry.Path = value
			if !filepath.IsAbs(entry.Path) {
				entry.Path = filepath.Join(baseDir, entry.Path)
			}
		}
		entry.Name = internal.SanitizeFilename(name)
		entries = append(entries, entry)
	}

	assignNames(entries)
	return entries, nil
}

// assignNames fills missing run names and makes every name unique.
func assignNames(entries []Entry) {
	seen := make(map[string]int)
	for i := range entries {
		name := entries[i].Name
		if name == "" {
			if entries[i].IsDescription() {
				name = "description-" + internal.ContentHash(entries[i].Description)[:8]
			} else {
				base := filepath.Base(entries[i].Path)
				name = internal.SanitizeFilename(strings.TrimSuffix(base, filepath.Ext(base)))
			}
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s-%d", name, n)
		}
		entries[i].Name = name
	}
}

// RunFunc processes one entry into runDir.
type RunFunc func(ctx context.Context, entry Entry, runDir string) error

// Result records the outcome of one entry.
type Result struct {
	Entry  Entry
	RunDir string
	Err    error
}

// Options configures Process.
type Options struct {
	OutputDir string
	// Progress receives a progress bar; nil disables it.
	Progress io.Writer
}

// Process runs every entry in order, each in its own run directory under
// OutputDir. A failing entry does not stop the batch; only cancellation
// does.
func Process(ctx context.Context, entries []Entry, opts Options, run RunFunc) ([]Result, error) {
	var bar *progressbar.ProgressBar
	if opts.Progress != nil {
		bar = progressbar.NewOptions(len(entries),
			progressbar.OptionSetWriter(opts.Progress),
			progressbar.OptionSetDescription("batch"),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(false),
		)
	}

	results := make([]Result, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if bar != nil {
			bar.Describe(entry.Name)
		}

		runDir := filepath.Join(opts.OutputDir, entry.Name)
		err := run(ctx, entry, runDir)
		results = append(results, Result{Entry: entry, RunDir: runDir, Err: err})

		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return results, nil
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}
