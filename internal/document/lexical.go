package document

import "unicode"

// IsLexical reports whether a token surface counts as a word: it must contain
// at least one letter, digit or CJK unified ideograph.
func IsLexical(surface string) bool {
	for _, r := range surface {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || IsHan(r) {
			return true
		}
	}
	return false
}

// IsHan reports whether r is in the CJK Unified Ideographs block.
func IsHan(r rune) bool {
	return r >= 0x4E00 && r <= 0x9FFF
}

// Surfaces collects every surface string in document order, starting with
// the text surface. Tests use it to check that annotation leaves surfaces
// untouched.
func Surfaces(t *Text) []string {
	out := []string{t.Surface}
	for _, p := range t.Pages {
		out = append(out, p.Surface)
		for _, s := range p.Segments {
			out = append(out, s.Surface)
			for _, tok := range s.Tokens {
				out = append(out, tok.Surface)
			}
		}
	}
	return out
}
