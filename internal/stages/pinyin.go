package stages

import (
	"github.com/mannyrayner/C-LARA-2/internal/document"
)

// Pinyin adds tone-numbered pinyin to every lexical token. Runs of digits
// or Latin letters are carried through as written. No model call is made.
func (r *Runner) Pinyin(text *document.Text) *document.Text {
	out := text.Clone()
	annotated := 0
	for _, ref := range out.Refs() {
		seg := out.Segment(ref)
		for i := range seg.Tokens {
			tok := &seg.Tokens[i]
			if !document.IsLexical(tok.Surface) {
				continue
			}
			if value := r.pinyin.Transcribe(tok.Surface); value != "" {
				tok.Annotations.Set(document.KeyPinyin, value)
				annotated++
			}
		}
	}
	out.Normalize(r.config.Language)

	r.logger.Info().
		Str("stage", OpPinyin).
		Int("tokens", annotated).
		Msg("added pinyin")
	return out
}
