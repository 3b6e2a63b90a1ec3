package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mannyrayner/C-LARA-2/internal/annotate"
	"github.com/mannyrayner/C-LARA-2/internal/audio"
	"github.com/mannyrayner/C-LARA-2/internal/compiler"
	"github.com/mannyrayner/C-LARA-2/internal/document"
	"github.com/mannyrayner/C-LARA-2/internal/llm"
	"github.com/mannyrayner/C-LARA-2/internal/observability"
	"github.com/mannyrayner/C-LARA-2/internal/prompts"
	"github.com/mannyrayner/C-LARA-2/internal/stages"
)

// ProgressFunc is called synchronously at every stage transition.
type ProgressFunc func(stage Stage, status string, timestamp time.Time)

// Spec describes one run. Exactly one of Text, Description or Document is
// normally set; which one is required depends on StartStage.
type Spec struct {
	Text        string
	Description map[string]any
	Document    *document.Text

	Language       string
	TargetLanguage string
	Voice          string
	// Model overrides the configured chat model for this run.
	Model string

	OutputDir     string
	AudioCacheDir string

	StartStage Stage
	EndStage   Stage
	Persist    bool

	ProgressCallback ProgressFunc
}

// Result is the outcome of a run. HTML is nil unless compile_html ran.
type Result struct {
	Document *document.Text
	HTML     *compiler.Result
}

// Orchestrator runs the stages of one document at a time.
type Orchestrator struct {
	client         annotate.Client
	coordinator    *annotate.Coordinator
	prompts        *prompts.Library
	engine         audio.Engine
	audioConfig    audio.Config
	compiler       *compiler.Compiler
	localTokenizer bool
	logger         zerolog.Logger
	now            func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the orchestrator's logger. It is handed down to every
// stage component.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithPrompts overrides the prompt library.
func WithPrompts(lib *prompts.Library) Option {
	return func(o *Orchestrator) {
		o.prompts = lib
	}
}

// WithAudio sets the primary TTS engine and the audio defaults. Spec values
// for voice and cache directory take precedence over config.
func WithAudio(engine audio.Engine, config *audio.Config) Option {
	return func(o *Orchestrator) {
		if engine != nil {
			o.engine = engine
		}
		if config != nil {
			o.audioConfig = *config
		}
	}
}

// WithLocalTokenizer makes segmentation phase 2 tokenize locally for every
// language.
func WithLocalTokenizer(enabled bool) Option {
	return func(o *Orchestrator) {
		o.localTokenizer = enabled
	}
}

// WithClock replaces time.Now for progress timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates an orchestrator around one model client.
func New(client annotate.Client, coordinator *annotate.Coordinator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:      client,
		coordinator: coordinator,
		prompts:     prompts.NewLibrary(""),
		engine:      audio.NewOfflineEngine(),
		audioConfig: *audio.DefaultConfig(),
		logger:      zerolog.Nop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.compiler = compiler.New(compiler.WithLogger(o.logger))
	return o
}

// run carries the state of one Run call.
type run struct {
	spec   Spec
	runner *stages.Runner
	text   *document.Text
	html   *compiler.Result
}

// Run executes the stages from spec.StartStage to spec.EndStage. Input
// problems are reported before any model call; a failing stage stops the
// run and its error is returned as is, wrapped with the stage name.
func (o *Orchestrator) Run(ctx context.Context, spec Spec) (Result, error) {
	spec = withDefaults(spec)
	if err := ValidateRange(spec.StartStage, spec.EndStage); err != nil {
		return Result{}, err
	}
	if err := validateInput(spec); err != nil {
		return Result{}, err
	}

	r := &run{spec: spec, runner: o.newRunner(spec)}
	if spec.Document != nil {
		r.text = spec.Document.Clone()
	}

	o.logger.Info().
		Str("start", string(spec.StartStage)).
		Str("end", string(spec.EndStage)).
		Str("language", spec.Language).
		Str("output", spec.OutputDir).
		Msg("pipeline started")

	for _, stage := range StageOrder[spec.StartStage.Index() : spec.EndStage.Index()+1] {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err := o.runStage(ctx, r, stage); err != nil {
			return Result{}, err
		}
	}

	o.logger.Info().Int("segments", r.text.SegmentCount()).Msg("pipeline finished")
	return Result{Document: r.text, HTML: r.html}, nil
}

func (o *Orchestrator) runStage(ctx context.Context, r *run, stage Stage) error {
	logger := o.logger.With().Str("stage", string(stage)).Logger()
	o.progress(r.spec, stage, StatusStart)
	started := time.Now()

	status, err := o.execute(ctx, r, stage)
	if err == nil && r.spec.Persist {
		err = o.persist(r, stage)
	}
	elapsed := time.Since(started)

	if err != nil {
		observability.RecordStage(string(stage), StatusError, elapsed)
		o.progress(r.spec, stage, StatusError)
		logger.Error().Err(err).Dur("elapsed", elapsed).Msg("stage failed")
		return fmt.Errorf("%s: %w", stage, err)
	}

	observability.RecordStage(string(stage), status, elapsed)
	o.progress(r.spec, stage, status)
	logger.Info().Str("status", status).Dur("elapsed", elapsed).Msg("stage finished")
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, r *run, stage Stage) (string, error) {
	var (
		next *document.Text
		err  error
	)

	switch stage {
	case StageTextGen:
		next, err = r.runner.TextGen(ctx, r.spec.Description)
	case StageSegmentation1:
		raw := r.spec.Text
		if r.text != nil {
			raw = r.text.Surface
		}
		next, err = r.runner.SegmentPhase1(ctx, raw)
		if err == nil && r.text != nil {
			document.MergeDocumentFields(next, r.text)
		}
	case StageSegmentation2:
		next, err = r.runner.SegmentPhase2(ctx, r.text)
	case StageTranslation:
		next, err = r.runner.Translate(ctx, r.text)
	case StageMWE:
		next, err = r.runner.MWE(ctx, r.text)
	case StageLemma:
		next, err = r.runner.Lemma(ctx, r.text)
	case StageGloss:
		next, err = r.runner.Gloss(ctx, r.text)
	case StagePinyin:
		if !isChinese(r.spec.Language) {
			return StatusSkipped, nil
		}
		next = r.runner.Pinyin(r.text)
	case StageAudio:
		next, err = o.newSynthesizer(r.spec).AnnotateAudio(ctx, r.text)
	case StageCompileHTML:
		result, cerr := o.compiler.Compile(r.text, r.spec.OutputDir)
		if cerr != nil {
			return "", cerr
		}
		r.html = &result
		return StatusDone, nil
	default:
		return "", fmt.Errorf("%w: unknown stage %q", ErrInvalidStageRange, stage)
	}

	if err != nil {
		return "", err
	}
	r.text = next
	return StatusDone, nil
}

func (o *Orchestrator) persist(r *run, stage Stage) error {
	var v any = r.text
	if stage == StageCompileHTML {
		v = r.html
	}
	if err := document.Save(StagePath(r.spec.OutputDir, stage), v); err != nil {
		return fmt.Errorf("failed to persist stage output: %w", err)
	}
	return nil
}

// progress reports a transition to the callback and the progress log. Log
// failures are only logged.
func (o *Orchestrator) progress(spec Spec, stage Stage, status string) {
	now := o.now().UTC()
	if spec.ProgressCallback != nil {
		spec.ProgressCallback(stage, status, now)
	}
	if !spec.Persist {
		return
	}
	if err := appendProgress(spec.OutputDir, ProgressEntry{Stage: stage, Status: status, Timestamp: now}); err != nil {
		o.logger.Warn().Err(err).Str("stage", string(stage)).Msg("progress log append failed")
	}
}

func (o *Orchestrator) newRunner(spec Spec) *stages.Runner {
	config := stages.Config{
		Language:       spec.Language,
		TargetLanguage: spec.TargetLanguage,
		LocalTokenizer: o.localTokenizer,
	}
	if spec.Model != "" {
		config.CallOptions = append(config.CallOptions, llm.WithModel(spec.Model))
	}
	return stages.NewRunner(o.client, o.coordinator, config,
		stages.WithLogger(o.logger),
		stages.WithPrompts(o.prompts),
	)
}

func (o *Orchestrator) newSynthesizer(spec Spec) *audio.Synthesizer {
	config := o.audioConfig
	if spec.AudioCacheDir != "" {
		config.CacheDir = spec.AudioCacheDir
	}
	if spec.Voice != "" {
		config.Voice = spec.Voice
	}
	return audio.NewSynthesizer(o.engine, &config, spec.Language, audio.WithLogger(o.logger))
}

func withDefaults(spec Spec) Spec {
	if spec.Document != nil {
		if spec.Language == "" {
			spec.Language = spec.Document.L2
		}
		if spec.TargetLanguage == "" {
			spec.TargetLanguage = spec.Document.L1
		}
	}
	if spec.Language == "" {
		spec.Language = "en"
	}
	if spec.TargetLanguage == "" {
		spec.TargetLanguage = "fr"
	}
	if spec.StartStage == "" {
		switch {
		case spec.Document != nil:
			spec.StartStage = StageSegmentation2
		case spec.Text == "" && len(spec.Description) > 0:
			spec.StartStage = StageTextGen
		default:
			spec.StartStage = StageSegmentation1
		}
	}
	if spec.EndStage == "" {
		spec.EndStage = StageCompileHTML
	}
	if spec.AudioCacheDir == "" && spec.OutputDir != "" {
		spec.AudioCacheDir = filepath.Join(spec.OutputDir, "audio_cache")
	}
	return spec
}

// validateInput checks that spec carries what StartStage consumes and that
// an output directory exists when something will be written.
func validateInput(spec Spec) error {
	start := spec.StartStage
	switch {
	case start == StageTextGen:
		if len(spec.Description) == 0 {
			return fmt.Errorf("%w: %s requires a description", ErrStageInput, start)
		}
	case start == StageSegmentation1:
		if strings.TrimSpace(spec.Text) == "" && (spec.Document == nil || strings.TrimSpace(spec.Document.Surface) == "") {
			return fmt.Errorf("%w: %s requires raw text", ErrStageInput, start)
		}
	case start.Index() <= StageTranslation.Index():
		if spec.Document == nil || spec.Document.SegmentCount() == 0 {
			return fmt.Errorf("%w: %s requires a segmented document", ErrStageInput, start)
		}
	case start.Index() <= StagePinyin.Index():
		if spec.Document == nil || !spec.Document.HasTokens() {
			return fmt.Errorf("%w: %s requires a tokenized document", ErrStageInput, start)
		}
	default:
		if spec.Document == nil {
			return fmt.Errorf("%w: %s requires an annotated document", ErrStageInput, start)
		}
	}

	writes := spec.Persist || spec.EndStage == StageCompileHTML
	if writes && spec.OutputDir == "" {
		return fmt.Errorf("%w: an output directory is required", ErrStageInput)
	}
	return nil
}

func isChinese(language string) bool {
	return strings.HasPrefix(strings.ToLower(language), "zh")
}
