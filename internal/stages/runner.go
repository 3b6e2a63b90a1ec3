package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mannyrayner/C-LARA-2/internal/annotate"
	"github.com/mannyrayner/C-LARA-2/internal/document"
	"github.com/mannyrayner/C-LARA-2/internal/llm"
	"github.com/mannyrayner/C-LARA-2/internal/phonetic"
	"github.com/mannyrayner/C-LARA-2/internal/prompts"
)

// Operation names, also used as prompt template directories.
const (
	OpTextGen       = "text_gen"
	OpSegmentation1 = "segmentation_phase_1"
	OpSegmentation2 = "segmentation_phase_2"
	OpTranslation   = "translation"
	OpMWE           = "mwe"
	OpLemma         = "lemma"
	OpGloss         = "gloss"
	OpPinyin        = "pinyin"
)

// Config holds the stage settings shared by every step of one run.
type Config struct {
	Language       string
	TargetLanguage string
	// LocalTokenizer forces the rule-based tokenizer for segmentation
	// phase 2. Chinese and Japanese always use it.
	LocalTokenizer bool
	CallOptions    []llm.CallOption
}

// Runner executes stages against one model client.
type Runner struct {
	config      Config
	client      annotate.Client
	coordinator *annotate.Coordinator
	prompts     *prompts.Library
	pinyin      *phonetic.Pinyin
	logger      zerolog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithPrompts overrides the prompt library.
func WithPrompts(lib *prompts.Library) Option {
	return func(r *Runner) {
		r.prompts = lib
	}
}

// NewRunner creates a runner. The coordinator carries the per-segment
// concurrency limit.
func NewRunner(client annotate.Client, coordinator *annotate.Coordinator, config Config, opts ...Option) *Runner {
	if config.Language == "" {
		config.Language = "en"
	}
	r := &Runner{
		config:      config,
		client:      client,
		coordinator: coordinator,
		prompts:     prompts.NewLibrary(""),
		pinyin:      phonetic.NewPinyin(),
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the runner's settings.
func (r *Runner) Config() Config {
	return r.config
}

// Normalize guarantees l2, pages and annotations exist on text.
func Normalize(text *document.Text, language string) *document.Text {
	out := text.Clone()
	out.Normalize(language)
	return out
}

// segmentStage describes one per-segment stage: where its prompt comes from
// and how each segment is rendered into it.
type segmentStage struct {
	operation    string
	contentLabel string
	content      func(seg *document.Segment) (string, error)
	instructions []string
}

func (r *Runner) runSegmentStage(ctx context.Context, text *document.Text, stage segmentStage) (*document.Text, error) {
	bundle, err := r.prompts.Load(stage.operation, r.config.Language)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", stage.operation, err)
	}

	build := func(seg *document.Segment) (string, error) {
		content, err := stage.content(seg)
		if err != nil {
			return "", err
		}
		return prompts.Build(bundle.Template, stage.contentLabel, content, bundle.Examples, stage.instructions), nil
	}

	r.logger.Info().
		Str("stage", stage.operation).
		Int("segments", text.SegmentCount()).
		Msg("running segment stage")

	return r.coordinator.Annotate(ctx, text, annotate.Request{
		Operation: stage.operation,
		Language:  r.config.Language,
		Build:     build,
		CallOpts:  r.config.CallOptions,
	})
}

func segmentJSON(seg *document.Segment) (string, error) {
	return prompts.JSON(seg), nil
}

func segmentSurface(seg *document.Segment) (string, error) {
	return seg.Surface, nil
}

func usesLocalTokenizer(language string) bool {
	lang := strings.ToLower(language)
	return strings.HasPrefix(lang, "zh") || strings.HasPrefix(lang, "ja")
}
