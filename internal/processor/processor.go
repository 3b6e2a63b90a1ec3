package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mannyrayner/C-LARA-2/internal/anki"
	"github.com/mannyrayner/C-LARA-2/internal/annotate"
	"github.com/mannyrayner/C-LARA-2/internal/audio"
	"github.com/mannyrayner/C-LARA-2/internal/batch"
	"github.com/mannyrayner/C-LARA-2/internal/cli"
	"github.com/mannyrayner/C-LARA-2/internal/document"
	"github.com/mannyrayner/C-LARA-2/internal/ingest"
	"github.com/mannyrayner/C-LARA-2/internal/llm"
	"github.com/mannyrayner/C-LARA-2/internal/pipeline"
	"github.com/mannyrayner/C-LARA-2/internal/prompts"
)

// Processor handles the main run processing logic
type Processor struct {
	flags       *cli.Flags
	llmConfig   *llm.Config
	audioConfig *audio.Config
	logger      zerolog.Logger
	out         io.Writer

	provider llm.ChatProvider
	engine   audio.Engine
	llmOpts  []llm.Option
	clock    func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger handed to every component.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithOutput redirects user-facing progress output.
func WithOutput(w io.Writer) Option {
	return func(p *Processor) {
		if w != nil {
			p.out = w
		}
	}
}

// WithProvider replaces the chat provider built from configuration.
func WithProvider(provider llm.ChatProvider) Option {
	return func(p *Processor) {
		p.provider = provider
	}
}

// WithEngine replaces the TTS engine built from configuration.
func WithEngine(engine audio.Engine) Option {
	return func(p *Processor) {
		p.engine = engine
	}
}

// WithClientOptions adds options to the resilient model client.
func WithClientOptions(opts ...llm.Option) Option {
	return func(p *Processor) {
		p.llmOpts = append(p.llmOpts, opts...)
	}
}

// WithLLMConfig replaces the model client configuration read from viper.
func WithLLMConfig(config *llm.Config) Option {
	return func(p *Processor) {
		if config != nil {
			p.llmConfig = config
		}
	}
}

// WithAudioConfig replaces the TTS configuration read from viper.
func WithAudioConfig(config *audio.Config) Option {
	return func(p *Processor) {
		if config != nil {
			p.audioConfig = config
		}
	}
}

// NewProcessor creates a new run processor
func NewProcessor(flags *cli.Flags, opts ...Option) *Processor {
	p := &Processor{
		flags:       flags,
		llmConfig:   cli.LLMConfig(),
		audioConfig: cli.AudioConfig(),
		logger:      zerolog.Nop(),
		out:         os.Stdout,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes one input into the run directory given by --output. The
// input is a source file (inputPath), --text, --description, --document, or
// with --resume the stage output already in the run directory.
func (p *Processor) Run(ctx context.Context, inputPath string) (pipeline.Result, error) {
	spec, err := p.buildSpec(p.flags, inputPath, p.flags.OutputDir)
	if err != nil {
		return pipeline.Result{}, err
	}
	return p.execute(ctx, spec)
}

func (p *Processor) execute(ctx context.Context, spec pipeline.Spec) (pipeline.Result, error) {
	orch, err := p.orchestrator(ctx, spec.StartStage, spec.EndStage)
	if err != nil {
		return pipeline.Result{}, err
	}

	fmt.Fprintf(p.out, "\nProcessing: %s → %s (%s)\n", spec.StartStage, spec.EndStage, spec.OutputDir)
	result, err := orch.Run(ctx, spec)
	if err != nil {
		return pipeline.Result{}, err
	}

	if result.HTML != nil {
		fmt.Fprintf(p.out, "  HTML: %s\n", result.HTML.HTMLPath)
	}
	if p.flags.GenerateAnki && result.Document != nil && spec.OutputDir != "" {
		path, err := p.ExportAnki(result.Document, spec.OutputDir)
		if err != nil {
			return result, fmt.Errorf("anki export failed: %w", err)
		}
		fmt.Fprintf(p.out, "  Anki: %s\n", path)
	}
	return result, nil
}

// buildSpec turns flags and an optional source file into a pipeline spec
// for runDir.
func (p *Processor) buildSpec(flags *cli.Flags, inputPath, runDir string) (pipeline.Spec, error) {
	spec := pipeline.Spec{
		Language:         flags.Language,
		TargetLanguage:   flags.TargetLanguage,
		Voice:            flags.Voice,
		OutputDir:        runDir,
		AudioCacheDir:    flags.AudioCacheDir,
		Persist:          !flags.NoPersist && cli.Persist(),
		ProgressCallback: p.printProgress,
	}

	end, err := parseStageOr(flags.EndStage, pipeline.StageCompileHTML)
	if err != nil {
		return spec, err
	}
	spec.EndStage = end

	switch {
	case flags.Resume:
		if flags.StartStage == "" {
			return spec, fmt.Errorf("%w: --resume requires --start", pipeline.ErrStageInput)
		}
		start, err := pipeline.ParseStage(flags.StartStage)
		if err != nil {
			return spec, err
		}
		doc, err := pipeline.Resume(runDir, start)
		if err != nil {
			return spec, err
		}
		spec.Document = doc
		spec.StartStage = start
		p.useDocumentLanguages(&spec, doc)

	case flags.DocumentPath != "":
		doc, err := document.Load(flags.DocumentPath)
		if err != nil {
			return spec, err
		}
		spec.Document = doc
		spec.StartStage, err = parseStageOr(flags.StartStage, pipeline.StageSegmentation2)
		if err != nil {
			return spec, err
		}
		p.useDocumentLanguages(&spec, doc)

	case inputPath != "":
		src, err := ingest.ReadText(inputPath)
		if err != nil {
			return spec, err
		}
		// Carrying the source as a document keeps its title.
		spec.Document = &document.Text{
			L2:      spec.Language,
			L1:      spec.TargetLanguage,
			Title:   src.Title,
			Surface: src.Text,
		}
		spec.StartStage, err = parseStageOr(flags.StartStage, pipeline.StageSegmentation1)
		if err != nil {
			return spec, err
		}

	case flags.Text != "":
		spec.Text = flags.Text
		spec.StartStage, err = parseStageOr(flags.StartStage, pipeline.StageSegmentation1)
		if err != nil {
			return spec, err
		}

	case flags.Description != "":
		spec.Description = ParseDescription(flags.Description)
		spec.StartStage, err = parseStageOr(flags.StartStage, pipeline.StageTextGen)
		if err != nil {
			return spec, err
		}

	default:
		return spec, fmt.Errorf("%w: no input given (file, --text, --description, --document or --resume)", pipeline.ErrStageInput)
	}

	return spec, nil
}

// useDocumentLanguages prefers the languages recorded in doc over the
// flag defaults.
func (p *Processor) useDocumentLanguages(spec *pipeline.Spec, doc *document.Text) {
	if doc.L2 != "" {
		spec.Language = doc.L2
	}
	if doc.L1 != "" {
		spec.TargetLanguage = doc.L1
	}
}

// ParseDescription accepts either a JSON object or free text, which becomes
// {"description": text}.
func ParseDescription(s string) map[string]any {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{") {
		var m map[string]any
		if err := json.Unmarshal([]byte(trimmed), &m); err == nil && len(m) > 0 {
			return m
		}
	}
	return map[string]any{"description": trimmed}
}

func parseStageOr(name string, fallback pipeline.Stage) (pipeline.Stage, error) {
	if name == "" {
		return fallback, nil
	}
	return pipeline.ParseStage(name)
}

func (p *Processor) printProgress(stage pipeline.Stage, status string, timestamp time.Time) {
	switch status {
	case pipeline.StatusStart:
		fmt.Fprintf(p.out, "  %s...\n", stage.Description())
	case pipeline.StatusDone:
		fmt.Fprintf(p.out, "  ✓ %s\n", stage)
	case pipeline.StatusSkipped:
		fmt.Fprintf(p.out, "  - %s skipped\n", stage)
	case pipeline.StatusError:
		fmt.Fprintf(p.out, "  ✗ %s failed at %s\n", stage, timestamp.Format("15:04:05"))
	}
}

// needsModel reports whether any stage in [start, end] calls the model.
func needsModel(start, end pipeline.Stage) bool {
	return start.Index() <= pipeline.StageGloss.Index() && end.Index() >= pipeline.StageTextGen.Index()
}

// orchestrator builds the pipeline for one run. No provider is created when
// the range has no model stage, so compile-only runs need no API key.
func (p *Processor) orchestrator(ctx context.Context, start, end pipeline.Stage) (*pipeline.Orchestrator, error) {
	var client annotate.Client
	var coordinator *annotate.Coordinator

	if needsModel(start, end) {
		provider := p.provider
		if provider == nil {
			var err error
			provider, err = llm.NewProvider(ctx, p.llmConfig)
			if err != nil {
				return nil, err
			}
		}
		opts := append([]llm.Option{llm.WithTelemetry(llm.LogTelemetry{Logger: p.logger})}, p.llmOpts...)
		resilient := llm.NewResilientClient(provider, p.llmConfig, opts...)
		client = resilient
		coordinator = annotate.NewCoordinator(resilient, p.llmConfig.Concurrency, p.logger)
	}

	engine := p.engine
	if engine == nil {
		var err error
		engine, err = audio.NewEngine(p.audioConfig)
		if err != nil {
			return nil, err
		}
	}

	promptsDir := p.flags.PromptsDir
	if promptsDir == "" {
		promptsDir = cli.PromptsDir()
	}

	return pipeline.New(client, coordinator,
		pipeline.WithLogger(p.logger),
		pipeline.WithPrompts(prompts.NewLibrary(promptsDir)),
		pipeline.WithAudio(engine, p.audioConfig),
		pipeline.WithLocalTokenizer(p.flags.LocalTokenizer),
		pipeline.WithClock(p.clock),
	), nil
}

// ProcessBatch processes every entry of a batch file, each into its own
// run directory under --output.
func (p *Processor) ProcessBatch(ctx context.Context, batchFile string) error {
	entries, err := batch.ReadBatchFile(batchFile)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no entries in batch file %s", batchFile)
	}

	if err := os.MkdirAll(p.flags.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var progress io.Writer
	if p.out == os.Stdout {
		progress = os.Stderr
	}

	results, err := batch.Process(ctx, entries, batch.Options{OutputDir: p.flags.OutputDir, Progress: progress},
		func(ctx context.Context, entry batch.Entry, runDir string) error {
			return p.runEntry(ctx, entry, runDir)
		})
	if err != nil {
		return err
	}

	failed := batch.Failed(results)
	for _, r := range failed {
		p.logger.Error().Err(r.Err).Str("entry", r.Entry.Name).Msg("batch entry failed")
	}

	fmt.Fprintf(p.out, "\n=== Batch Processing Summary ===\n")
	fmt.Fprintf(p.out, "Total entries: %d\n", len(results))
	fmt.Fprintf(p.out, "Processed: %d\n", len(results)-len(failed))
	if len(failed) > 0 {
		fmt.Fprintf(p.out, "Errors: %d\n", len(failed))
		for _, r := range failed {
			fmt.Fprintf(p.out, "  %s: %v\n", r.Entry.Name, r.Err)
		}
	}
	fmt.Fprintf(p.out, "================================\n")
	return nil
}

func (p *Processor) runEntry(ctx context.Context, entry batch.Entry, runDir string) error {
	flags := *p.flags
	flags.Resume = false
	flags.DocumentPath = ""
	flags.Text = ""
	flags.Description = ""

	inputPath := entry.Path
	if entry.IsDescription() {
		flags.Description = entry.Description
		inputPath = ""
	}

	spec, err := p.buildSpec(&flags, inputPath, runDir)
	if err != nil {
		return err
	}
	_, err = p.execute(ctx, spec)
	return err
}

// ExportAnki writes the vocabulary of doc into runDir as an APKG deck, or
// as CSV with --anki-csv, and returns the file path.
func (p *Processor) ExportAnki(doc *document.Text, runDir string) (string, error) {
	outputPath := filepath.Join(runDir, "vocabulary.csv")
	if !p.flags.AnkiCSV {
		outputPath = filepath.Join(runDir, "vocabulary.apkg")
	}

	gen := anki.NewGenerator(&anki.GeneratorOptions{
		OutputPath:     outputPath,
		IncludeHeaders: true,
	})
	if gen.AddDocument(doc) == 0 {
		return "", fmt.Errorf("document has no lemmas to export")
	}

	if p.flags.AnkiCSV {
		if err := gen.GenerateCSV(); err != nil {
			return "", err
		}
	} else {
		if err := gen.GenerateAPKG(outputPath, p.flags.DeckName); err != nil {
			return "", err
		}
	}

	total, withAudio, withGloss := gen.Stats()
	p.logger.Info().Int("cards", total).Int("with_audio", withAudio).Int("with_gloss", withGloss).Str("path", outputPath).Msg("anki export written")
	return outputPath, nil
}
