package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/mannyrayner/C-LARA-2/internal/document"
)

var translationInstructions = []string{
	"Return a JSON object representing the segment.",
	"Keep the original surface unchanged.",
	"Add annotations.translation set to the translation string in the target language.",
}

var mweInstructions = []string{
	"Return a JSON object representing the segment.",
	"Preserve the original surface and tokens.",
	"If MWEs are found, attach segment.annotations.mwes as a list of objects with keys id, tokens (array of token surfaces), and label.",
	"For each token that belongs to an MWE, set token.annotations.mwe_id to the corresponding MWE id.",
}

var lemmaInstructions = []string{
	"Return a JSON object representing the segment.",
	"Preserve the original surface and tokens.",
	"For each token, add annotations.lemma (canonical lemma) and annotations.pos (coarse POS tag).",
	"Tokens that share the same annotations.mwe_id should share the same lemma (e.g., phrasal verb parts).",
}

func glossInstructions(target string) []string {
	return []string{
		"Return a JSON object representing the segment.",
		"Preserve the original surface and tokens.",
		fmt.Sprintf("For each token, add annotations.gloss: a short %s gloss.", strings.ToUpper(target)),
		"Tokens that share the same annotations.mwe_id must share the same gloss value (gloss the whole MWE).",
		"Use annotations.translation as a hint when present, but prefer concise dictionary-style glosses even when the translation is non-literal.",
	}
}

// Translate adds a translation annotation to every segment.
func (r *Runner) Translate(ctx context.Context, text *document.Text) (*document.Text, error) {
	target := r.targetLanguage()
	out, err := r.runSegmentStage(ctx, text, segmentStage{
		operation:    OpTranslation,
		contentLabel: fmt.Sprintf("Segment to translate into %s:", target),
		content:      segmentSurface,
		instructions: translationInstructions,
	})
	if err != nil {
		return nil, err
	}
	if out.L1 == "" {
		out.L1 = target
	}
	return out, nil
}

// MWE marks multi-word expressions on segments and their member tokens.
func (r *Runner) MWE(ctx context.Context, text *document.Text) (*document.Text, error) {
	return r.runSegmentStage(ctx, text, segmentStage{
		operation:    OpMWE,
		contentLabel: "Segment JSON to annotate for MWEs:",
		content:      segmentJSON,
		instructions: mweInstructions,
	})
}

// Lemma adds lemma and part-of-speech annotations to tokens. Members of one
// MWE are then given a single shared lemma.
func (r *Runner) Lemma(ctx context.Context, text *document.Text) (*document.Text, error) {
	out, err := r.runSegmentStage(ctx, text, segmentStage{
		operation:    OpLemma,
		contentLabel: "Segment JSON to annotate with lemmas and POS:",
		content:      segmentJSON,
		instructions: lemmaInstructions,
	})
	if err != nil {
		return nil, err
	}
	UnifyMWEs(out, document.KeyLemma)
	return out, nil
}

// Gloss adds target-language glosses to tokens. Members of one MWE are then
// given a single shared gloss.
func (r *Runner) Gloss(ctx context.Context, text *document.Text) (*document.Text, error) {
	target := r.targetLanguage()
	out, err := r.runSegmentStage(ctx, text, segmentStage{
		operation:    OpGloss,
		contentLabel: fmt.Sprintf("Segment JSON to gloss into %s:", target),
		content:      segmentJSON,
		instructions: glossInstructions(target),
	})
	if err != nil {
		return nil, err
	}
	UnifyMWEs(out, document.KeyGloss)
	if out.L1 == "" {
		out.L1 = target
	}
	return out, nil
}

// UnifyMWEs gives every token of an MWE within a segment the key value of
// the first member that has one. Tokens outside MWEs are untouched.
func UnifyMWEs(text *document.Text, key string) {
	for _, ref := range text.Refs() {
		seg := text.Segment(ref)
		first := map[string]any{}
		for _, tok := range seg.Tokens {
			id := tok.Annotations.String(document.KeyMWEID)
			if id == "" {
				continue
			}
			if _, seen := first[id]; seen {
				continue
			}
			if v, ok := tok.Annotations[key]; ok && v != nil {
				first[id] = v
			}
		}
		for i := range seg.Tokens {
			tok := &seg.Tokens[i]
			id := tok.Annotations.String(document.KeyMWEID)
			if v, ok := first[id]; ok && id != "" {
				tok.Annotations.Set(key, v)
			}
		}
	}
}

func (r *Runner) targetLanguage() string {
	if r.config.TargetLanguage == "" {
		return "fr"
	}
	return r.config.TargetLanguage
}
