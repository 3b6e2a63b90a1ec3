package audio

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mannyrayner/C-LARA-2/internal/document"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	config := DefaultConfig()
	config.CacheDir = filepath.Join(t.TempDir(), "cache")
	config.MinDuration = 10 * time.Millisecond
	return config
}

func singleSegment(surface string, tokens ...document.Token) *document.Text {
	return &document.Text{
		L2:      "en",
		Surface: surface,
		Pages: []document.Page{{
			Surface:  surface,
			Segments: []document.Segment{{Surface: surface, Tokens: tokens}},
		}},
	}
}

func TestAnnotateAudioRepeatedToken(t *testing.T) {
	engine := &countingEngine{}
	synth := NewSynthesizer(engine, testConfig(t), "en")

	text := singleSegment("echo echo",
		document.Token{Surface: "echo"},
		document.Token{Surface: " "},
		document.Token{Surface: "echo"},
	)
	out, err := synth.AnnotateAudio(context.Background(), text)
	if err != nil {
		t.Fatalf("AnnotateAudio() error = %v", err)
	}

	if engine.calls() != 2 {
		t.Errorf("engine calls = %d (%v), want 2", engine.calls(), engine.texts)
	}
	if synth.Calls() != 2 {
		t.Errorf("Calls() = %d, want 2", synth.Calls())
	}

	seg := out.Pages[0].Segments[0]
	first := seg.Tokens[0].Annotations.String(document.KeyAudio)
	if first == "" || first != seg.Tokens[2].Annotations.String(document.KeyAudio) {
		t.Errorf("repeated tokens should share one clip: %q vs %q", first, seg.Tokens[2].Annotations.String(document.KeyAudio))
	}
	if seg.Tokens[1].Annotations.Has(document.KeyAudio) {
		t.Error("whitespace token should not get audio")
	}
	if !seg.Annotations.Has(document.KeyAudio) {
		t.Error("segment should have audio")
	}
	if !out.Pages[0].Annotations.Has(document.KeyAudio) {
		t.Error("page should have audio")
	}
	if text.Pages[0].Segments[0].Tokens[0].Annotations.Has(document.KeyAudio) {
		t.Error("input document was modified")
	}
}

func TestAnnotateAudioIdempotentAcrossRuns(t *testing.T) {
	config := testConfig(t)
	text := singleSegment("A cat.",
		document.Token{Surface: "A"},
		document.Token{Surface: " "},
		document.Token{Surface: "cat", Annotations: document.Annotations{"lemma": "cat"}},
		document.Token{Surface: "."},
	)

	first := &countingEngine{}
	if _, err := NewSynthesizer(first, config, "en").AnnotateAudio(context.Background(), text); err != nil {
		t.Fatal(err)
	}
	if first.calls() != 3 {
		t.Errorf("first run calls = %d (%v), want 3", first.calls(), first.texts)
	}

	second := &countingEngine{}
	out, err := NewSynthesizer(second, config, "en").AnnotateAudio(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	if second.calls() != 0 {
		t.Errorf("second run calls = %d, want 0", second.calls())
	}
	if !out.Pages[0].Segments[0].Tokens[2].Annotations.Has(document.KeyAudio) {
		t.Error("cached audio should still be annotated")
	}
}

func TestAnnotateAudioMWEMembersShareClip(t *testing.T) {
	engine := &countingEngine{}
	synth := NewSynthesizer(engine, testConfig(t), "en")

	text := singleSegment("She gave up.",
		document.Token{Surface: "She", Annotations: document.Annotations{"lemma": "she"}},
		document.Token{Surface: " "},
		document.Token{Surface: "gave", Annotations: document.Annotations{"mwe_id": "m1"}},
		document.Token{Surface: " "},
		document.Token{Surface: "up", Annotations: document.Annotations{"mwe_id": "m1"}},
		document.Token{Surface: "."},
	)
	out, err := synth.AnnotateAudio(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}

	tokens := out.Pages[0].Segments[0].Tokens
	gave := tokens[2].Annotations.String(document.KeyAudio)
	up := tokens[4].Annotations.String(document.KeyAudio)
	if gave == "" || gave != up {
		t.Errorf("MWE members should share one clip: %q vs %q", gave, up)
	}

	spoke := false
	for _, s := range engine.texts {
		if s == "gave up" {
			spoke = true
		}
	}
	if !spoke {
		t.Errorf("MWE should be spoken as a whole, engine saw %v", engine.texts)
	}
}

func TestAnnotateAudioFallsBackToOffline(t *testing.T) {
	engine := &countingEngine{fail: errors.New("service unavailable")}
	synth := NewSynthesizer(engine, testConfig(t), "en")

	out, err := synth.AnnotateAudio(context.Background(), singleSegment("Hi", document.Token{Surface: "Hi"}))
	if err != nil {
		t.Fatalf("AnnotateAudio() error = %v", err)
	}
	seg := out.Pages[0].Segments[0]
	if !seg.Tokens[0].Annotations.Has(document.KeyAudio) || !seg.Annotations.Has(document.KeyAudio) {
		t.Error("offline fallback should still produce audio")
	}
}

func TestAnnotateAudioPageConcat(t *testing.T) {
	synth := NewSynthesizer(NewOfflineEngine(), testConfig(t), "en")
	text := &document.Text{L2: "en", Pages: []document.Page{{
		Segments: []document.Segment{{Surface: "One."}, {Surface: "Two."}},
	}, {
		Segments: []document.Segment{{Surface: "   "}},
	}}}

	out, err := synth.AnnotateAudio(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}

	pageAudio := out.Pages[0].Annotations.String(document.KeyAudio)
	info, err := Validate(pageAudio, 0)
	if err != nil {
		t.Fatalf("page audio invalid: %v", err)
	}
	one, _ := Validate(out.Pages[0].Segments[0].Annotations.String(document.KeyAudio), 0)
	two, _ := Validate(out.Pages[0].Segments[1].Annotations.String(document.KeyAudio), 0)
	if info.Frames != one.Frames+two.Frames {
		t.Errorf("page frames = %d, want %d", info.Frames, one.Frames+two.Frames)
	}
	if out.Pages[1].Annotations.Has(document.KeyAudio) {
		t.Error("page with only blank segments should have no audio")
	}
}

func TestAnnotateAudioCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	synth := NewSynthesizer(NewOfflineEngine(), testConfig(t), "en")

	_, err := synth.AnnotateAudio(ctx, singleSegment("Hi", document.Token{Surface: "Hi"}))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
