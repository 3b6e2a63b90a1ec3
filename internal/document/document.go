package document

import (
	"encoding/json"
	"fmt"
)

// Annotation keys used across stages.
const (
	KeyTranslation = "translation"
	KeyMWEs        = "mwes"
	KeyAudio       = "audio"
	KeyLemma       = "lemma"
	KeyPOS         = "pos"
	KeyGloss       = "gloss"
	KeyMWEID       = "mwe_id"
	KeyPinyin      = "pinyin"
)

// Annotations holds the open set of per-node annotations. Values are whatever
// JSON decodes to: strings, numbers, bools, []any and map[string]any.
type Annotations map[string]any

// Text is the document root.
type Text struct {
	L2          string      `json:"l2"`
	L1          string      `json:"l1,omitempty"`
	Title       string      `json:"title,omitempty"`
	Surface     string      `json:"surface"`
	Pages       []Page      `json:"pages"`
	Annotations Annotations `json:"annotations"`
}

// Page is one page of the source text.
type Page struct {
	Surface     string      `json:"surface"`
	Segments    []Segment   `json:"segments"`
	Annotations Annotations `json:"annotations,omitempty"`
}

// Segment is a sentence-like unit within a page.
type Segment struct {
	Surface     string      `json:"surface"`
	Tokens      []Token     `json:"tokens,omitempty"`
	Annotations Annotations `json:"annotations,omitempty"`
}

// Token is the smallest annotated unit: a word, punctuation mark or
// whitespace run.
type Token struct {
	Surface     string      `json:"surface"`
	Annotations Annotations `json:"annotations,omitempty"`
}

// MWE describes one multi-word expression recorded on a segment.
type MWE struct {
	ID     string   `json:"id"`
	Tokens []string `json:"tokens"`
	Label  string   `json:"label,omitempty"`
}

// SegmentRef addresses a segment by page and segment index.
type SegmentRef struct {
	Page    int
	Segment int
}

// String returns the annotation value for key when it is a non-empty string.
func (a Annotations) String(key string) string {
	if a == nil {
		return ""
	}
	switch v := a[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case float64, int, bool:
		return fmt.Sprint(v)
	}
	return ""
}

// Has reports whether key is present with a non-null value.
func (a Annotations) Has(key string) bool {
	if a == nil {
		return false
	}
	v, ok := a[key]
	return ok && v != nil
}

// Set stores value under key, allocating the map when needed.
func (a *Annotations) Set(key string, value any) {
	if *a == nil {
		*a = Annotations{}
	}
	(*a)[key] = value
}

func (a Annotations) clone() Annotations {
	if a == nil {
		return nil
	}
	out := make(Annotations, len(a))
	for k, v := range a {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case Annotations:
		return t.clone()
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	case []string:
		return append([]string(nil), t...)
	}
	return v
}

// Clone returns a deep copy so that stages can return a new tree without
// aliasing the input.
func (t *Text) Clone() *Text {
	if t == nil {
		return nil
	}
	out := *t
	out.Annotations = t.Annotations.clone()
	out.Pages = make([]Page, len(t.Pages))
	for i := range t.Pages {
		out.Pages[i] = t.Pages[i].clone()
	}
	return &out
}

func (p Page) clone() Page {
	out := p
	out.Annotations = p.Annotations.clone()
	out.Segments = make([]Segment, len(p.Segments))
	for i := range p.Segments {
		out.Segments[i] = p.Segments[i].Clone()
	}
	return out
}

// Clone returns a deep copy of the segment.
func (s Segment) Clone() Segment {
	out := s
	out.Annotations = s.Annotations.clone()
	if s.Tokens != nil {
		out.Tokens = make([]Token, len(s.Tokens))
		for i, tok := range s.Tokens {
			out.Tokens[i] = Token{Surface: tok.Surface, Annotations: tok.Annotations.clone()}
		}
	}
	return out
}

// Refs lists every segment address in document order.
func (t *Text) Refs() []SegmentRef {
	var refs []SegmentRef
	for p := range t.Pages {
		for s := range t.Pages[p].Segments {
			refs = append(refs, SegmentRef{Page: p, Segment: s})
		}
	}
	return refs
}

// Segment returns a pointer to the addressed segment.
func (t *Text) Segment(ref SegmentRef) *Segment {
	return &t.Pages[ref.Page].Segments[ref.Segment]
}

// SegmentCount returns the number of segments across all pages.
func (t *Text) SegmentCount() int {
	n := 0
	for _, p := range t.Pages {
		n += len(p.Segments)
	}
	return n
}

// HasTokens reports whether at least one segment carries tokens.
func (t *Text) HasTokens() bool {
	for _, p := range t.Pages {
		for _, s := range p.Segments {
			if len(s.Tokens) > 0 {
				return true
			}
		}
	}
	return false
}

// MWEs decodes the segment's mwes annotation. Malformed entries are skipped.
func (s *Segment) MWEs() []MWE {
	raw, ok := s.Annotations[KeyMWEs]
	if !ok || raw == nil {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var out []MWE
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// Normalize guarantees the top-level keys every stage relies on.
func (t *Text) Normalize(language string) {
	if t.L2 == "" {
		t.L2 = language
	}
	if t.Pages == nil {
		t.Pages = []Page{}
	}
	if t.Annotations == nil {
		t.Annotations = Annotations{}
	}
	for i := range t.Pages {
		if t.Pages[i].Segments == nil {
			t.Pages[i].Segments = []Segment{}
		}
	}
}
