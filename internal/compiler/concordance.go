package compiler

import (
	"sort"

	"golang.org/x/text/cases"

	"github.com/mannyrayner/C-LARA-2/internal/document"
)

// Occurrence is one place a lemma appears.
type Occurrence struct {
	Page       int    `json:"page"`
	Segment    int    `json:"segment"`
	Token      int    `json:"token"`
	Surface    string `json:"surface"`
	MWEID      string `json:"mwe_id,omitempty"`
	SegmentRaw string `json:"segment_surface"`
}

// Entry groups every occurrence of one lemma.
type Entry struct {
	Lemma       string       `json:"lemma"`
	Slug        string       `json:"slug"`
	POS         string       `json:"pos,omitempty"`
	Gloss       string       `json:"gloss,omitempty"`
	Occurrences []Occurrence `json:"occurrences"`
}

type mweKey struct {
	lemma, id     string
	page, segment int
}

// BuildConcordance groups lemma-bearing tokens by lemma, sorted
// case-insensitively. An MWE counts once per segment however many of its
// tokens carry the lemma; its occurrence surface is the member surfaces
// joined by spaces.
func BuildConcordance(text *document.Text) []Entry {
	byLemma := map[string]*Entry{}
	seenMWE := map[mweKey]int{}

	for p, page := range text.Pages {
		for s, seg := range page.Segments {
			for t, tok := range seg.Tokens {
				lemma := tok.Annotations.String(document.KeyLemma)
				if lemma == "" {
					continue
				}

				entry, ok := byLemma[lemma]
				if !ok {
					entry = &Entry{Lemma: lemma, Slug: Slug(lemma)}
					byLemma[lemma] = entry
				}
				if entry.POS == "" {
					entry.POS = tok.Annotations.String(document.KeyPOS)
				}
				if entry.Gloss == "" {
					entry.Gloss = tok.Annotations.String(document.KeyGloss)
				}

				mweID := tok.Annotations.String(document.KeyMWEID)
				if mweID != "" {
					key := mweKey{lemma: lemma, id: mweID, page: p, segment: s}
					if idx, dup := seenMWE[key]; dup {
						occ := &entry.Occurrences[idx]
						occ.Surface += " " + tok.Surface
						continue
					}
					seenMWE[key] = len(entry.Occurrences)
				}

				entry.Occurrences = append(entry.Occurrences, Occurrence{
					Page:       p,
					Segment:    s,
					Token:      t,
					Surface:    tok.Surface,
					MWEID:      mweID,
					SegmentRaw: seg.Surface,
				})
			}
		}
	}

	entries := make([]Entry, 0, len(byLemma))
	for _, e := range byLemma {
		entries = append(entries, *e)
	}

	fold := cases.Fold()
	sort.Slice(entries, func(i, j int) bool {
		a, b := fold.String(entries[i].Lemma), fold.String(entries[j].Lemma)
		if a != b {
			return a < b
		}
		return entries[i].Lemma < entries[j].Lemma
	})
	return entries
}
