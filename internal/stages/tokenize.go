package stages

import (
	"context"
	"strings"
	"unicode"

	"github.com/mannyrayner/C-LARA-2/internal/document"
)

var segmentation2Instructions = []string{
	"Return a JSON object representing the segment.",
	"Keep the original surface unchanged.",
	"Add a tokens array of objects with a surface field: words, punctuation marks and whitespace runs, in order.",
	"Concatenating the token surfaces must reproduce the segment surface exactly.",
}

// SegmentPhase2 tokenizes every segment. Chinese and Japanese, or any
// language when LocalTokenizer is set, use the rule-based tokenizer and make
// no model call. Model output whose tokens do not reproduce the segment
// surface is replaced by the rule-based tokenization.
func (r *Runner) SegmentPhase2(ctx context.Context, text *document.Text) (*document.Text, error) {
	if r.config.LocalTokenizer || usesLocalTokenizer(r.config.Language) {
		out := text.Clone()
		for _, ref := range out.Refs() {
			seg := out.Segment(ref)
			seg.Tokens = Tokenize(seg.Surface)
		}
		out.Normalize(r.config.Language)
		r.logger.Info().
			Str("stage", OpSegmentation2).
			Int("segments", out.SegmentCount()).
			Msg("tokenized locally")
		return out, nil
	}

	out, err := r.runSegmentStage(ctx, text, segmentStage{
		operation:    OpSegmentation2,
		contentLabel: "Segment to tokenize:",
		content:      segmentSurface,
		instructions: segmentation2Instructions,
	})
	if err != nil {
		return nil, err
	}

	for _, ref := range out.Refs() {
		seg := out.Segment(ref)
		if tokensReproduce(seg) {
			continue
		}
		r.logger.Warn().
			Str("stage", OpSegmentation2).
			Int("page", ref.Page).
			Int("segment", ref.Segment).
			Msg("model tokens do not reproduce surface, using local tokenizer")
		seg.Tokens = Tokenize(seg.Surface)
	}
	return out, nil
}

func tokensReproduce(seg *document.Segment) bool {
	if len(seg.Tokens) == 0 {
		return seg.Surface == ""
	}
	var b strings.Builder
	for _, tok := range seg.Tokens {
		b.WriteString(tok.Surface)
	}
	return b.String() == seg.Surface
}

type runeClass int

const (
	classWord runeClass = iota
	classHan
	classSpace
	classPunct
)

func classify(r rune) runeClass {
	switch {
	case document.IsHan(r):
		return classHan
	case unicode.IsSpace(r):
		return classSpace
	case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsMark(r):
		return classWord
	default:
		return classPunct
	}
}

// Tokenize splits surface into tokens: each Han character alone, runs of
// letters and digits, runs of whitespace, and single punctuation marks. An
// apostrophe or hyphen between two letters stays inside the word.
func Tokenize(surface string) []document.Token {
	runes := []rune(surface)
	var tokens []document.Token
	start := 0

	emit := func(end int) {
		if end > start {
			tokens = append(tokens, document.Token{Surface: string(runes[start:end])})
		}
		start = end
	}

	for i := 0; i < len(runes); i++ {
		c := classify(runes[i])
		if i == start {
			if c == classHan || c == classPunct {
				emit(i + 1)
			}
			continue
		}

		prev := classify(runes[start])
		switch {
		case c == prev && (c == classWord || c == classSpace):
			continue
		case prev == classWord && isJoiner(runes[i]) && i+1 < len(runes) && classify(runes[i+1]) == classWord:
			continue
		}

		emit(i)
		if c == classHan || c == classPunct {
			emit(i + 1)
		}
	}
	emit(len(runes))
	return tokens
}

func isJoiner(r rune) bool {
	return r == '\'' || r == '’' || r == '-'
}
