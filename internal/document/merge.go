package document

import (
	"encoding/json"
	"fmt"
)

// MergeAnnotations returns the union of base and updates. Non-null update
// values win; keys absent from updates, or null in updates, keep the base
// value. The inputs are not modified.
func MergeAnnotations(base, updates Annotations) Annotations {
	if len(base) == 0 && len(updates) == 0 {
		return nil
	}
	out := base.clone()
	if out == nil {
		out = Annotations{}
	}
	for k, v := range updates {
		if v == nil {
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

// MergeTokens merges two token lists positionally. The result is as long as
// the longer list; a missing token on either side counts as an empty token.
// The surface is taken from the existing token when it has one.
func MergeTokens(base, updates []Token) []Token {
	if len(base) == 0 && len(updates) == 0 {
		return nil
	}
	n := max(len(base), len(updates))
	out := make([]Token, n)
	for i := range n {
		var b, u Token
		if i < len(base) {
			b = base[i]
		}
		if i < len(updates) {
			u = updates[i]
		}
		surface := b.Surface
		if surface == "" {
			surface = u.Surface
		}
		out[i] = Token{Surface: surface, Annotations: MergeAnnotations(b.Annotations, u.Annotations)}
	}
	return out
}

// MergeSegment folds a model response into an existing segment. The segment
// surface never changes once set.
func MergeSegment(existing, response Segment) Segment {
	merged := existing.Clone()
	if merged.Surface == "" {
		merged.Surface = response.Surface
	}
	merged.Annotations = MergeAnnotations(existing.Annotations, response.Annotations)
	merged.Tokens = MergeTokens(existing.Tokens, response.Tokens)
	return merged
}

// MergeDocumentFields fills l2, l1, title and surface from src only where
// dst lacks them.
func MergeDocumentFields(dst *Text, src *Text) {
	if src == nil {
		return
	}
	if dst.L2 == "" {
		dst.L2 = src.L2
	}
	if dst.L1 == "" {
		dst.L1 = src.L1
	}
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if dst.Surface == "" {
		dst.Surface = src.Surface
	}
}

// SegmentFromMap decodes a provider response into a Segment. A response that
// wraps the segment under a "segment" key, or that is a whole document with
// exactly one segment, is unwrapped first.
func SegmentFromMap(m map[string]any) (Segment, error) {
	if inner, ok := m["segment"].(map[string]any); ok {
		m = inner
	} else if _, hasTokens := m["tokens"]; !hasTokens {
		if doc, err := TextFromMap(m); err == nil && doc.SegmentCount() == 1 && len(doc.Pages) == 1 {
			return doc.Pages[0].Segments[0], nil
		}
	}
	var seg Segment
	if err := remarshal(m, &seg); err != nil {
		return Segment{}, fmt.Errorf("decode segment response: %w", err)
	}
	return seg, nil
}

// TextFromMap decodes a provider response into a Text.
func TextFromMap(m map[string]any) (*Text, error) {
	var t Text
	if err := remarshal(m, &t); err != nil {
		return nil, fmt.Errorf("decode document response: %w", err)
	}
	return &t, nil
}

// ToMap encodes any tree node into its generic JSON map form.
func ToMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func remarshal(in any, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
