package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mannyrayner/C-LARA-2/internal/annotate"
	"github.com/mannyrayner/C-LARA-2/internal/audio"
	"github.com/mannyrayner/C-LARA-2/internal/document"
	"github.com/mannyrayner/C-LARA-2/internal/llm"
	"github.com/mannyrayner/C-LARA-2/internal/testutil"
)

const (
	segmentedCat = `{"l2":"en","surface":"A cat sleeps.","pages":[{"surface":"A cat sleeps.","segments":[{"surface":"A cat sleeps."}]}]}`
	tokenizedCat = `{"surface":"A cat sleeps.","tokens":[{"surface":"A"},{"surface":" "},{"surface":"cat"},{"surface":" "},{"surface":"sleeps"},{"surface":"."}]}`
	translated   = `{"annotations":{"translation":"Un chat dort."}}`
	noMWEs       = `{"annotations":{"mwes":[]}}`
	lemmatized   = `{"tokens":[{"surface":"A","annotations":{"lemma":"a","pos":"DET"}},{"surface":" "},{"surface":"cat","annotations":{"lemma":"cat","pos":"NOUN"}},{"surface":" "},{"surface":"sleeps","annotations":{"lemma":"sleep","pos":"VERB"}},{"surface":"."}]}`
	glossed      = `{"tokens":[{"surface":"A","annotations":{"gloss":"un"}},{"surface":" "},{"surface":"cat","annotations":{"gloss":"chat"}},{"surface":" "},{"surface":"sleeps","annotations":{"gloss":"dort"}},{"surface":"."}]}`
	generated    = `{"title":"Cats","surface":"A cat sleeps."}`
)

func catProvider() *testutil.FakeChatProvider {
	return &testutil.FakeChatProvider{
		Rules: []testutil.FakeRule{
			{Contains: "Description:", Body: generated},
			{Contains: "Input text:", Body: segmentedCat},
			{Contains: "Segment to tokenize:", Body: tokenizedCat},
			{Contains: "Segment to translate into", Body: translated},
			{Contains: "Segment JSON to annotate for MWEs:", Body: noMWEs},
			{Contains: "Segment JSON to annotate with lemmas and POS:", Body: lemmatized},
			{Contains: "Segment JSON to gloss into", Body: glossed},
		},
		Default: `{}`,
	}
}

func newOrchestrator(provider llm.ChatProvider) *Orchestrator {
	config := llm.DefaultConfig()
	config.Heartbeat = time.Minute
	client := llm.NewResilientClient(provider, config, llm.WithSleeper(func(context.Context, time.Duration) error {
		return nil
	}))
	coordinator := annotate.NewCoordinator(client, 4, zerolog.Nop())
	return New(client, coordinator, WithAudio(audio.NewOfflineEngine(), nil))
}

func TestRunFullPipeline(t *testing.T) {
	provider := catProvider()
	outDir := t.TempDir()

	var transitions []string
	result, err := newOrchestrator(provider).Run(context.Background(), Spec{
		Text:          "A cat sleeps.",
		OutputDir:     outDir,
		AudioCacheDir: filepath.Join(outDir, "cache"),
		Persist:       true,
		ProgressCallback: func(stage Stage, status string, _ time.Time) {
			transitions = append(transitions, string(stage)+":"+status)
		},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.HTML == nil {
		t.Fatal("Run() should compile html by default")
	}
	testutil.AssertFileContains(t, result.HTML.HTMLPath, `data-lemma="cat"`)

	doc := result.Document
	if doc.L1 != "fr" {
		t.Errorf("l1 = %q, want fr", doc.L1)
	}
	cat := doc.Pages[0].Segments[0].Tokens[2]
	if cat.Annotations.String("gloss") != "chat" || cat.Annotations.String("audio") == "" {
		t.Errorf("cat token annotations = %v", cat.Annotations)
	}
	if doc.Pages[0].Segments[0].Surface != "A cat sleeps." {
		t.Errorf("segment surface changed: %q", doc.Pages[0].Segments[0].Surface)
	}

	// seg1, seg2, translation, mwe, lemma, gloss
	if provider.Calls() != 6 {
		t.Errorf("model calls = %d, want 6", provider.Calls())
	}

	for _, stage := range StageOrder[1:] {
		testutil.AssertFileExists(t, StagePath(outDir, stage))
	}
	testutil.AssertFileNotExists(t, StagePath(outDir, StageTextGen))

	if transitions[0] != "segmentation_phase_1:start" {
		t.Errorf("first transition = %q", transitions[0])
	}
	var pinyinStatus string
	for _, tr := range transitions {
		if tr == "pinyin:skipped" || tr == "pinyin:done" {
			pinyinStatus = tr
		}
	}
	if pinyinStatus != "pinyin:skipped" {
		t.Errorf("pinyin status = %q, want skipped for English", pinyinStatus)
	}

	entries, err := ReadProgress(outDir)
	if err != nil {
		t.Fatalf("ReadProgress() error = %v", err)
	}
	if len(entries) != len(transitions) {
		t.Errorf("progress entries = %d, want %d", len(entries), len(transitions))
	}
}

func TestRunFromDescription(t *testing.T) {
	provider := catProvider()
	outDir := t.TempDir()

	result, err := newOrchestrator(provider).Run(context.Background(), Spec{
		Description: map[string]any{"topic": "cats", "l2": "en"},
		OutputDir:   outDir,
		EndStage:    StageSegmentation1,
		Persist:     true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Document.Title != "Cats" {
		t.Errorf("title = %q, want the generated title", result.Document.Title)
	}
	if result.Document.SegmentCount() != 1 {
		t.Errorf("segments = %d, want 1", result.Document.SegmentCount())
	}
	if result.HTML != nil {
		t.Error("html should not be compiled before compile_html")
	}
	testutil.AssertFileExists(t, StagePath(outDir, StageTextGen))
}

func TestRunStageInputErrorBeforeAnyCall(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
	}{
		{"gloss from raw text", Spec{Text: "A cat sleeps.", StartStage: StageGloss, EndStage: StageGloss}},
		{"text_gen without description", Spec{Text: "A cat sleeps.", StartStage: StageTextGen, EndStage: StageTextGen}},
		{"segmentation without text", Spec{StartStage: StageSegmentation1, EndStage: StageSegmentation1}},
		{"lemma from untokenized document", Spec{
			Document:   &document.Text{Pages: []document.Page{{Segments: []document.Segment{{Surface: "x"}}}}},
			StartStage: StageLemma,
			EndStage:   StageLemma,
		}},
		{"compile without output", Spec{Document: testutil.SampleDocument(), StartStage: StageCompileHTML}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := catProvider()
			_, err := newOrchestrator(provider).Run(context.Background(), tt.spec)
			if !errors.Is(err, ErrStageInput) {
				t.Fatalf("Run() error = %v, want ErrStageInput", err)
			}
			if provider.Calls() != 0 {
				t.Errorf("model calls = %d, want 0", provider.Calls())
			}
		})
	}
}

func TestRunInvalidRange(t *testing.T) {
	_, err := newOrchestrator(catProvider()).Run(context.Background(), Spec{
		Text:       "A cat sleeps.",
		StartStage: StageGloss,
		EndStage:   StageLemma,
	})
	if !errors.Is(err, ErrInvalidStageRange) {
		t.Fatalf("Run() error = %v, want ErrInvalidStageRange", err)
	}
}

func TestRunPropagatesStageFailure(t *testing.T) {
	provider := catProvider()
	provider.Rules = append([]testutil.FakeRule{{Contains: "Segment to translate into", Body: "not json at all"}}, provider.Rules...)
	outDir := t.TempDir()

	_, err := newOrchestrator(provider).Run(context.Background(), Spec{
		Text:      "A cat sleeps.",
		OutputDir: outDir,
		Persist:   true,
	})
	if !errors.Is(err, llm.ErrMalformedResponse) {
		t.Fatalf("Run() error = %v, want ErrMalformedResponse", err)
	}

	entries, err := ReadProgress(outDir)
	if err != nil {
		t.Fatal(err)
	}
	last := entries[len(entries)-1]
	if last.Stage != StageTranslation || last.Status != StatusError {
		t.Errorf("last progress entry = %+v", last)
	}
	testutil.AssertFileNotExists(t, StagePath(outDir, StageTranslation))
}

func TestResumeMatchesContinuousRun(t *testing.T) {
	cache := t.TempDir()

	continuous, err := newOrchestrator(catProvider()).Run(context.Background(), Spec{
		Text:          "A cat sleeps.",
		OutputDir:     t.TempDir(),
		AudioCacheDir: cache,
		EndStage:      StageAudio,
	})
	if err != nil {
		t.Fatalf("continuous Run() error = %v", err)
	}

	runDir := t.TempDir()
	if _, err := newOrchestrator(catProvider()).Run(context.Background(), Spec{
		Text:      "A cat sleeps.",
		OutputDir: runDir,
		EndStage:  StageLemma,
		Persist:   true,
	}); err != nil {
		t.Fatalf("first half Run() error = %v", err)
	}

	doc, err := Resume(runDir, StageGloss)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	provider := catProvider()
	resumed, err := newOrchestrator(provider).Run(context.Background(), Spec{
		Document:      doc,
		OutputDir:     runDir,
		AudioCacheDir: cache,
		StartStage:    StageGloss,
		EndStage:      StageAudio,
		Persist:       true,
	})
	if err != nil {
		t.Fatalf("resumed Run() error = %v", err)
	}
	if provider.Calls() != 1 {
		t.Errorf("resumed model calls = %d, want 1 (gloss only)", provider.Calls())
	}

	want, _ := document.Marshal(continuous.Document)
	got, _ := document.Marshal(resumed.Document)
	if !bytes.Equal(want, got) {
		t.Errorf("resumed document differs from continuous run\nwant: %s\ngot:  %s", want, got)
	}
}

func TestResumeMissingStage(t *testing.T) {
	runDir := testutil.CreateRunDirectory(t)

	if _, err := Resume(runDir, StageGloss); !errors.Is(err, ErrStageInput) {
		t.Errorf("Resume() error = %v, want ErrStageInput", err)
	}
	if _, err := Resume(runDir, StageTextGen); !errors.Is(err, ErrStageInput) {
		t.Errorf("Resume(text_gen) error = %v, want ErrStageInput", err)
	}
	if _, err := Resume(runDir, "bogus"); !errors.Is(err, ErrInvalidStageRange) {
		t.Errorf("Resume(bogus) error = %v, want ErrInvalidStageRange", err)
	}
}

func TestRunChinesePinyin(t *testing.T) {
	doc := &document.Text{L2: "zh", Pages: []document.Page{{Segments: []document.Segment{{
		Surface: "我喜欢",
		Tokens:  []document.Token{{Surface: "我"}, {Surface: "喜欢"}},
	}}}}}

	var statuses []string
	result, err := newOrchestrator(catProvider()).Run(context.Background(), Spec{
		Document:   doc,
		StartStage: StagePinyin,
		EndStage:   StagePinyin,
		ProgressCallback: func(_ Stage, status string, _ time.Time) {
			statuses = append(statuses, status)
		},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := result.Document.Pages[0].Segments[0].Tokens[1].Annotations.String("pinyin"); got != "xi3 huan1" {
		t.Errorf("pinyin = %q, want xi3 huan1", got)
	}
	if len(statuses) != 2 || statuses[1] != StatusDone {
		t.Errorf("statuses = %v", statuses)
	}
}

func TestProgressAppendFailureIsSwallowed(t *testing.T) {
	outDir := t.TempDir()
	// A directory in place of the log makes every append fail.
	if err := os.MkdirAll(ProgressPath(outDir), 0755); err != nil {
		t.Fatal(err)
	}

	_, err := newOrchestrator(catProvider()).Run(context.Background(), Spec{
		Document:   testutil.SampleDocument(),
		OutputDir:  outDir,
		StartStage: StagePinyin,
		EndStage:   StagePinyin,
		Persist:    true,
	})
	if err != nil {
		t.Fatalf("Run() error = %v, progress failures should not fail the run", err)
	}
	testutil.AssertFileExists(t, StagePath(outDir, StagePinyin))
}

func TestAudioCacheReusedAcrossRuns(t *testing.T) {
	cacheDir := t.TempDir()
	engine := &testutil.FakeEngine{}

	run := func() *document.Text {
		t.Helper()
		base := newOrchestrator(&testutil.FakeChatProvider{Default: `{}`})
		orch := New(base.client, base.coordinator, WithAudio(engine, nil))
		result, err := orch.Run(context.Background(), Spec{
			Document:      testutil.SampleDocument(),
			Language:      "en",
			OutputDir:     t.TempDir(),
			AudioCacheDir: cacheDir,
			StartStage:    StageAudio,
			EndStage:      StageAudio,
		})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		return result.Document
	}

	first := run()
	calls := engine.Calls()
	if calls == 0 {
		t.Fatal("first run synthesized nothing")
	}
	if !slices.Contains(engine.Texts(), "A cat sleeps.") {
		t.Errorf("segment text was not synthesized, got %v", engine.Texts())
	}

	second := run()
	if engine.Calls() != calls {
		t.Errorf("second run made %d new synthesis calls, want 0", engine.Calls()-calls)
	}
	a := first.Pages[0].Segments[0].Tokens[2].Annotations.String(document.KeyAudio)
	b := second.Pages[0].Segments[0].Tokens[2].Annotations.String(document.KeyAudio)
	if a == "" || a != b {
		t.Errorf("token audio paths differ between runs: %q vs %q", a, b)
	}
}
