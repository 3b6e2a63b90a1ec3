package anki

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/mannyrayner/C-LARA-2/internal/document"
)

func mweDocument() *document.Text {
	return &document.Text{Pages: []document.Page{{Segments: []document.Segment{
		{
			Surface:     "She gave up.",
			Annotations: document.Annotations{"translation": "Elle a abandonné."},
			Tokens: []document.Token{
				{Surface: "She", Annotations: document.Annotations{"lemma": "she", "gloss": "elle"}},
				{Surface: " "},
				{Surface: "gave", Annotations: document.Annotations{"lemma": "give up", "gloss": "abandonner", "mwe_id": "m1", "audio": "/cache/a.wav"}},
				{Surface: " "},
				{Surface: "up", Annotations: document.Annotations{"lemma": "give up", "gloss": "abandonner", "mwe_id": "m1", "audio": "/cache/a.wav"}},
				{Surface: "."},
			},
		},
		{
			Surface: "She sleeps.",
			Tokens: []document.Token{
				{Surface: "She", Annotations: document.Annotations{"lemma": "she"}},
				{Surface: " "},
				{Surface: "sleeps", Annotations: document.Annotations{"lemma": "sleep", "pos": "VERB"}},
			},
		},
	}}}}
}

func TestDefaultGeneratorOptions(t *testing.T) {
	opts := DefaultGeneratorOptions()
	if opts.OutputPath != "vocabulary.csv" || !opts.IncludeHeaders {
		t.Errorf("DefaultGeneratorOptions() = %+v", opts)
	}
	if NewGenerator(nil).options == nil {
		t.Error("NewGenerator(nil) should use default options")
	}
}

func TestAddDocument(t *testing.T) {
	gen := NewGenerator(nil)
	added := gen.AddDocument(mweDocument())

	if added != 3 {
		t.Fatalf("AddDocument() added %d cards, want 3", added)
	}
	cards := gen.Cards()
	if cards[0].Lemma != "she" || cards[1].Lemma != "give up" || cards[2].Lemma != "sleep" {
		t.Errorf("card order = %q, %q, %q", cards[0].Lemma, cards[1].Lemma, cards[2].Lemma)
	}

	giveUp := cards[1]
	if giveUp.Gloss != "abandonner" || giveUp.AudioFile != "/cache/a.wav" {
		t.Errorf("give up card = %+v", giveUp)
	}
	if giveUp.Example != "She gave up." || giveUp.Translation != "Elle a abandonné." {
		t.Errorf("give up example = %q / %q", giveUp.Example, giveUp.Translation)
	}

	if again := gen.AddDocument(mweDocument()); again != 0 {
		t.Errorf("second AddDocument() added %d cards, want 0", again)
	}
}

func TestFormatAudioField(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"/cache/abc.wav", "[sound:abc.wav]"},
		{"abc.wav", "[sound:abc.wav]"},
	}
	for _, tt := range tests {
		if got := formatAudioField(tt.input); got != tt.want {
			t.Errorf("formatAudioField(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestGenerateCSV(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "export", "vocab.csv")
	gen := NewGenerator(&GeneratorOptions{OutputPath: outputPath, IncludeHeaders: true})
	gen.AddDocument(mweDocument())

	if err := gen.GenerateCSV(); err != nil {
		t.Fatalf("GenerateCSV() error = %v", err)
	}

	f, err := os.Open(outputPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("failed to read CSV: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("records = %d, want header + 3", len(records))
	}
	if records[0][0] != "Lemma" || records[0][5] != "Audio" {
		t.Errorf("header = %v", records[0])
	}
	if records[2][0] != "give up" || records[2][5] != "[sound:a.wav]" {
		t.Errorf("give up row = %v", records[2])
	}
}

func TestGenerateCSVWithoutHeaders(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "vocab.csv")
	gen := NewGenerator(&GeneratorOptions{OutputPath: outputPath})
	gen.AddCard(Card{Lemma: "cat", Gloss: "chat"})

	if err := gen.GenerateCSV(); err != nil {
		t.Fatalf("GenerateCSV() error = %v", err)
	}
	data, _ := os.ReadFile(outputPath)
	if string(data) != "cat,chat,,,,\n" {
		t.Errorf("CSV = %q", data)
	}
}

func TestStats(t *testing.T) {
	gen := NewGenerator(nil)
	gen.AddDocument(mweDocument())

	total, withAudio, withGloss := gen.Stats()
	if total != 3 || withAudio != 1 || withGloss != 2 {
		t.Errorf("Stats() = %d, %d, %d; want 3, 1, 2", total, withAudio, withGloss)
	}
}
