package phonetic

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-pinyin"
)

// Pinyin transcribes text into tone-numbered pinyin syllables.
type Pinyin struct {
	args pinyin.Args
}

// NewPinyin creates a transcriber using the Tone3 style ("zhong1 wen2").
func NewPinyin() *Pinyin {
	args := pinyin.NewArgs()
	args.Style = pinyin.Tone3
	return &Pinyin{args: args}
}

// Syllables returns one entry per Han character, with each run of other
// non-space characters kept as a single entry.
func (p *Pinyin) Syllables(text string) []string {
	var out []string
	var run []rune
	var runHan bool

	flush := func() {
		if len(run) == 0 {
			return
		}
		if runHan {
			out = append(out, pinyin.LazyPinyin(string(run), p.args)...)
		} else {
			out = append(out, string(run))
		}
		run = run[:0]
	}

	for _, r := range text {
		if unicode.IsSpace(r) {
			flush()
			continue
		}
		isHan := unicode.Is(unicode.Han, r)
		if len(run) > 0 && isHan != runHan {
			flush()
		}
		runHan = isHan
		run = append(run, r)
	}
	flush()
	return out
}

// Transcribe returns the syllables joined by single spaces.
func (p *Pinyin) Transcribe(text string) string {
	return strings.Join(p.Syllables(text), " ")
}
