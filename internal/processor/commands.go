package processor

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/mannyrayner/C-LARA-2/internal/archive"
	"github.com/mannyrayner/C-LARA-2/internal/audio"
	"github.com/mannyrayner/C-LARA-2/internal/cli"
	"github.com/mannyrayner/C-LARA-2/internal/compiler"
	"github.com/mannyrayner/C-LARA-2/internal/document"
	"github.com/mannyrayner/C-LARA-2/internal/models"
	"github.com/mannyrayner/C-LARA-2/internal/pipeline"
	"github.com/mannyrayner/C-LARA-2/internal/server"
)

// PrintStages prints the stage order.
func (p *Processor) PrintStages() {
	rows := make([][]string, 0, len(pipeline.StageOrder))
	for i, stage := range pipeline.StageOrder {
		model := ""
		if needsModel(stage, stage) {
			model = "yes"
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), string(stage), model, stage.Description()})
	}
	fmt.Fprintln(p.out, cli.RenderTable(
		[]string{"#", "Stage", "Model", "Description"},
		rows,
		[]cli.ColumnAlignment{cli.AlignRight},
	))
}

// Status prints the progress log and the persisted stages of runDir.
func (p *Processor) Status(runDir string) error {
	entries, err := pipeline.ReadProgress(runDir)
	if err != nil {
		return err
	}
	persisted := pipeline.PersistedStages(runDir)
	if len(entries) == 0 && len(persisted) == 0 {
		fmt.Fprintf(p.out, "No pipeline runs recorded in %s\n", runDir)
		return nil
	}

	latest := make(map[pipeline.Stage]pipeline.ProgressEntry)
	for _, e := range entries {
		latest[e.Stage] = e
	}
	saved := make(map[pipeline.Stage]bool)
	for _, s := range persisted {
		saved[s] = true
	}

	var rows [][]string
	for _, stage := range pipeline.StageOrder {
		e, ok := latest[stage]
		if !ok && !saved[stage] {
			continue
		}
		status, when := "", ""
		if ok {
			status = e.Status
			when = e.Timestamp.Local().Format("2006-01-02 15:04:05")
		}
		output := ""
		if saved[stage] {
			output = "stages/" + string(stage) + ".json"
		}
		rows = append(rows, []string{string(stage), status, when, output})
	}

	fmt.Fprintln(p.out, cli.RenderTable([]string{"Stage", "Status", "Updated", "Output"}, rows, nil))
	return nil
}

// CacheStats prints the size of an audio cache directory.
func (p *Processor) CacheStats(dir string) error {
	files, size, err := audio.Stats(dir)
	if err != nil {
		return fmt.Errorf("failed to read audio cache: %w", err)
	}
	fmt.Fprintln(p.out, cli.RenderTable(
		[]string{"Cache", "Files", "Size"},
		[][]string{{dir, strconv.Itoa(files), humanize.Bytes(uint64(size))}},
		[]cli.ColumnAlignment{cli.AlignLeft, cli.AlignRight, cli.AlignRight},
	))
	return nil
}

// CacheClear removes an audio cache directory.
func (p *Processor) CacheClear(dir string) error {
	files, size, _ := audio.Stats(dir)
	if err := audio.Clear(dir); err != nil {
		return fmt.Errorf("failed to clear audio cache: %w", err)
	}
	fmt.Fprintf(p.out, "Removed %d files (%s) from %s\n", files, humanize.Bytes(uint64(size)), dir)
	return nil
}

// Concordance prints the lemma concordance of a document JSON file.
func (p *Processor) Concordance(documentPath string) error {
	doc, err := document.Load(documentPath)
	if err != nil {
		return err
	}

	entries := compiler.BuildConcordance(doc)
	if len(entries) == 0 {
		fmt.Fprintln(p.out, "No lemmas available.")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		first := e.Occurrences[0]
		rows = append(rows, []string{
			e.Lemma,
			e.POS,
			e.Gloss,
			strconv.Itoa(len(e.Occurrences)),
			fmt.Sprintf("p%d s%d: %s", first.Page+1, first.Segment+1, first.Surface),
		})
	}
	fmt.Fprintln(p.out, cli.RenderTable(
		[]string{"Lemma", "POS", "Gloss", "Count", "First"},
		rows,
		[]cli.ColumnAlignment{cli.AlignLeft, cli.AlignLeft, cli.AlignLeft, cli.AlignRight},
	))
	return nil
}

// ArchiveOptions selects what Archive does with a run directory.
type ArchiveOptions struct {
	// Snapshot writes a .tar.xz of the run to this path and leaves it in place.
	Snapshot string
	// Restore unpacks this .tar.xz snapshot into the run directory.
	Restore string
}

// Archive moves runDir aside, snapshots it, or restores a snapshot into it.
func (p *Processor) Archive(runDir string, opts ArchiveOptions) error {
	switch {
	case opts.Snapshot != "" && opts.Restore != "":
		return fmt.Errorf("--snapshot and --restore cannot be combined")
	case opts.Restore != "":
		if err := archive.Restore(opts.Restore, runDir); err != nil {
			return err
		}
		fmt.Fprintf(p.out, "Restored %s into %s\n", opts.Restore, runDir)
		return nil
	case opts.Snapshot != "":
		if err := archive.Snapshot(runDir, opts.Snapshot); err != nil {
			return err
		}
		fmt.Fprintf(p.out, "Snapshot written to %s\n", opts.Snapshot)
		return nil
	}

	archived, err := archive.ArchiveRun(runDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(p.out, "Archived run directory to %s\n", archived)
	return nil
}

// ListModels prints the models available to the configured OpenAI key.
func (p *Processor) ListModels(ctx context.Context) error {
	return models.NewLister(p.llmConfig.OpenAIKey).ListAvailableModels(ctx, p.out)
}

// Serve serves runDir over HTTP until ctx is cancelled.
func (p *Processor) Serve(ctx context.Context, runDir, addr string) error {
	fmt.Fprintf(p.out, "Serving %s on http://%s/\n", runDir, addr)
	return server.New(runDir, p.logger).ListenAndServe(ctx, addr)
}
