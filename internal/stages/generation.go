package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/mannyrayner/C-LARA-2/internal/document"
	"github.com/mannyrayner/C-LARA-2/internal/llm"
	"github.com/mannyrayner/C-LARA-2/internal/observability"
	"github.com/mannyrayner/C-LARA-2/internal/prompts"
)

var textGenInstructions = []string{
	"Return a JSON object with keys: title, surface, annotations (object), pages (array), l2 (source language code), and optional l1 (target language code).",
}

var segmentation1Instructions = []string{
	"Return a JSON object with keys: l2, optional l1, surface (original text), pages (array of pages with surface and segments arrays), and annotations (object).",
	"Each segment should only include a surface field; do not add tokens or other annotations in this phase.",
}

// TextGen asks the model to write a text matching description. Fields
// missing from the response are taken from the description, then from the
// runner's language.
func (r *Runner) TextGen(ctx context.Context, description map[string]any) (*document.Text, error) {
	bundle, err := r.prompts.Load(OpTextGen, r.config.Language)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", OpTextGen, err)
	}

	prompt := prompts.Build(bundle.Template, "Description:", prompts.JSON(description), bundle.Examples, textGenInstructions)
	resp, err := r.client.ChatJSON(ctx, prompt, r.callOptions(OpTextGen)...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", OpTextGen, err)
	}

	text, err := document.TextFromMap(resp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", OpTextGen, llm.ErrMalformedResponse, err)
	}

	if text.L2 == "" {
		text.L2 = stringField(description, "l2")
	}
	if text.L1 == "" {
		text.L1 = stringField(description, "l1")
	}
	if text.Title == "" {
		text.Title = stringField(description, "title")
	}
	text.Normalize(r.config.Language)

	r.logger.Info().
		Str("stage", OpTextGen).
		Str("title", text.Title).
		Int("chars", len(text.Surface)).
		Msg("generated text")
	return text, nil
}

// SegmentPhase1 splits raw text into pages and segments with one model call.
func (r *Runner) SegmentPhase1(ctx context.Context, raw string) (*document.Text, error) {
	bundle, err := r.prompts.Load(OpSegmentation1, r.config.Language)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", OpSegmentation1, err)
	}

	prompt := prompts.Build(bundle.Template, "Input text:", raw, bundle.Examples, segmentation1Instructions)
	resp, err := r.client.ChatJSON(ctx, prompt, r.callOptions(OpSegmentation1)...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", OpSegmentation1, err)
	}

	text, err := document.TextFromMap(resp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", OpSegmentation1, llm.ErrMalformedResponse, err)
	}
	if text.Surface == "" {
		text.Surface = raw
	}
	text.Normalize(r.config.Language)

	if joined := joinSegmentSurfaces(text); strings.TrimSpace(joined) != strings.TrimSpace(text.Surface) {
		r.logger.Warn().
			Str("stage", OpSegmentation1).
			Int("text_chars", len(text.Surface)).
			Int("segment_chars", len(joined)).
			Msg("segment surfaces do not reproduce the text surface")
	}

	r.logger.Info().
		Str("stage", OpSegmentation1).
		Int("pages", len(text.Pages)).
		Int("segments", text.SegmentCount()).
		Msg("segmented text")
	return text, nil
}

func (r *Runner) callOptions(operation string) []llm.CallOption {
	opts := append([]llm.CallOption(nil), r.config.CallOptions...)
	return append(opts, llm.WithOpID(observability.NewOpID(operation)))
}

func joinSegmentSurfaces(text *document.Text) string {
	var b strings.Builder
	for _, p := range text.Pages {
		for _, s := range p.Segments {
			b.WriteString(s.Surface)
		}
	}
	return b.String()
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
