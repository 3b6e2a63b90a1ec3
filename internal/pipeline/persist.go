package pipeline

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mannyrayner/C-LARA-2/internal/document"
)

// Progress statuses.
const (
	StatusStart   = "start"
	StatusDone    = "done"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// ProgressEntry is one line of stages/progress.jsonl.
type ProgressEntry struct {
	Stage     Stage     `json:"stage"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// StagesDir returns the directory holding persisted stage output.
func StagesDir(runDir string) string {
	return filepath.Join(runDir, "stages")
}

// StagePath returns the JSON file a stage persists to.
func StagePath(runDir string, stage Stage) string {
	return filepath.Join(StagesDir(runDir), string(stage)+".json")
}

// ProgressPath returns the progress log of a run.
func ProgressPath(runDir string) string {
	return filepath.Join(StagesDir(runDir), "progress.jsonl")
}

func appendProgress(runDir string, entry ProgressEntry) error {
	if err := os.MkdirAll(StagesDir(runDir), 0755); err != nil {
		return err
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(ProgressPath(runDir), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadProgress returns the progress log of runDir sorted by timestamp.
// Unparseable lines are skipped; a missing log yields no entries.
func ReadProgress(runDir string) ([]ProgressEntry, error) {
	f, err := os.Open(ProgressPath(runDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open progress log: %w", err)
	}
	defer f.Close()

	var entries []ProgressEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry ProgressEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read progress log: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

// PersistedStages lists the stages of runDir that have JSON output, in
// stage order.
func PersistedStages(runDir string) []Stage {
	var out []Stage
	for _, stage := range StageOrder {
		if _, err := os.Stat(StagePath(runDir, stage)); err == nil {
			out = append(out, stage)
		}
	}
	return out
}

// Resume loads the document persisted by the stage before stage, to be
// passed as Spec.Document with StartStage set to stage.
func Resume(runDir string, stage Stage) (*document.Text, error) {
	if stage.Index() < 0 {
		return nil, fmt.Errorf("%w: unknown stage %q", ErrInvalidStageRange, stage)
	}
	prev := stage.Previous()
	if prev == "" {
		return nil, fmt.Errorf("%w: nothing precedes %s", ErrStageInput, stage)
	}

	path := StagePath(runDir, prev)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s output not found at %s", ErrStageInput, prev, path)
	}
	text, err := document.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStageInput, err)
	}
	return text, nil
}
