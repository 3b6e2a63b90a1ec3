// Package anki exports the vocabulary of an annotated document as Anki
// import files: a CSV for the import dialog and a self-contained .apkg deck.
package anki

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mannyrayner/C-LARA-2/internal/document"
)

// Card is one vocabulary note: a lemma with its gloss and the first
// sentence it appears in.
type Card struct {
	Lemma       string
	Gloss       string
	POS         string
	Example     string // segment surface of the first occurrence
	Translation string // translation of that segment
	AudioFile   string // token clip of the first occurrence
}

// GeneratorOptions configures the CSV export
type GeneratorOptions struct {
	OutputPath     string
	IncludeHeaders bool
}

// DefaultGeneratorOptions returns sensible defaults
func DefaultGeneratorOptions() *GeneratorOptions {
	return &GeneratorOptions{
		OutputPath:     "vocabulary.csv",
		IncludeHeaders: true,
	}
}

// Generator collects cards and writes them out.
type Generator struct {
	options *GeneratorOptions
	cards   []Card
}

// NewGenerator creates a new Anki generator
func NewGenerator(options *GeneratorOptions) *Generator {
	if options == nil {
		options = DefaultGeneratorOptions()
	}
	return &Generator{options: options}
}

// AddCard adds a card to the collection
func (g *Generator) AddCard(card Card) {
	g.cards = append(g.cards, card)
}

// Cards returns the collected cards.
func (g *Generator) Cards() []Card {
	return g.cards
}

// AddDocument adds one card per distinct lemma of text, in order of first
// occurrence. Tokens of one MWE contribute a single card. Returns the number
// of cards added.
func (g *Generator) AddDocument(text *document.Text) int {
	seen := make(map[string]bool)
	for _, c := range g.cards {
		seen[c.Lemma] = true
	}

	added := 0
	for _, page := range text.Pages {
		for _, seg := range page.Segments {
			for _, tok := range seg.Tokens {
				lemma := tok.Annotations.String(document.KeyLemma)
				if lemma == "" || seen[lemma] {
					continue
				}
				seen[lemma] = true
				g.AddCard(Card{
					Lemma:       lemma,
					Gloss:       tok.Annotations.String(document.KeyGloss),
					POS:         tok.Annotations.String(document.KeyPOS),
					Example:     seg.Surface,
					Translation: seg.Annotations.String(document.KeyTranslation),
					AudioFile:   tok.Annotations.String(document.KeyAudio),
				})
				added++
			}
		}
	}
	return added
}

// GenerateCSV creates a CSV file for Anki import
func (g *Generator) GenerateCSV() error {
	if err := os.MkdirAll(filepath.Dir(g.options.OutputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(g.options.OutputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if g.options.IncludeHeaders {
		headers := []string{"Lemma", "Gloss", "POS", "Example", "Translation", "Audio"}
		if err := writer.Write(headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}

	for _, card := range g.cards {
		record := []string{
			card.Lemma,
			card.Gloss,
			card.POS,
			card.Example,
			card.Translation,
			formatAudioField(card.AudioFile),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write card: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// formatAudioField formats the audio file reference for Anki
func formatAudioField(audioFile string) string {
	if audioFile == "" {
		return ""
	}
	return fmt.Sprintf("[sound:%s]", filepath.Base(audioFile))
}

// GenerateAPKG writes the collected cards as an .apkg deck.
func (g *Generator) GenerateAPKG(outputPath, deckName string) error {
	apkgGen := NewAPKGGenerator(deckName)
	for _, card := range g.cards {
		apkgGen.AddCard(card)
	}
	return apkgGen.GenerateAPKG(outputPath)
}

// Stats returns statistics about the card collection
func (g *Generator) Stats() (totalCards, withAudio, withGloss int) {
	totalCards = len(g.cards)
	for _, card := range g.cards {
		if card.AudioFile != "" {
			withAudio++
		}
		if card.Gloss != "" {
			withGloss++
		}
	}
	return
}
