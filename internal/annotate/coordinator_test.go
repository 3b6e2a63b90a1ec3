package annotate

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mannyrayner/C-LARA-2/internal/document"
	"github.com/mannyrayner/C-LARA-2/internal/llm"
)

// funcClient answers every prompt through fn.
type funcClient struct {
	fn       func(ctx context.Context, prompt string) (map[string]any, error)
	inflight atomic.Int32
	peak     atomic.Int32
}

func (c *funcClient) ChatJSON(ctx context.Context, prompt string, _ ...llm.CallOption) (map[string]any, error) {
	n := c.inflight.Add(1)
	defer c.inflight.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return c.fn(ctx, prompt)
}

func sampleText(segments ...string) *document.Text {
	segs := make([]document.Segment, len(segments))
	for i, s := range segments {
		segs[i] = document.Segment{Surface: s}
	}
	return &document.Text{
		L2:      "en",
		Surface: strings.Join(segments, " "),
		Pages: []document.Page{
			{Surface: strings.Join(segments[:1], " "), Segments: segs[:1]},
			{Surface: strings.Join(segments[1:], " "), Segments: segs[1:]},
		},
	}
}

func surfacePrompt(seg *document.Segment) (string, error) {
	return seg.Surface, nil
}

func TestAnnotatePreservesOrder(t *testing.T) {
	text := sampleText("one", "two", "three", "four")
	delays := map[string]time.Duration{"one": 40 * time.Millisecond, "two": 0, "three": 20 * time.Millisecond, "four": 5 * time.Millisecond}

	client := &funcClient{fn: func(ctx context.Context, prompt string) (map[string]any, error) {
		time.Sleep(delays[prompt])
		return map[string]any{
			"surface":     prompt,
			"annotations": map[string]any{"translation": strings.ToUpper(prompt)},
		}, nil
	}}

	coord := NewCoordinator(client, 8, zerolog.Nop())
	got, err := coord.Annotate(context.Background(), text, Request{Operation: "translation", Language: "en", Build: surfacePrompt})
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}

	var translations []string
	for _, ref := range got.Refs() {
		translations = append(translations, got.Segment(ref).Annotations.String(document.KeyTranslation))
	}
	want := []string{"ONE", "TWO", "THREE", "FOUR"}
	if !reflect.DeepEqual(translations, want) {
		t.Errorf("translations = %v, want %v", translations, want)
	}
	if !reflect.DeepEqual(document.Surfaces(got), document.Surfaces(text)) {
		t.Error("surfaces changed during annotation")
	}
	if text.Pages[0].Segments[0].Annotations != nil {
		t.Error("input document was modified")
	}
}

func TestAnnotateRespectsLimit(t *testing.T) {
	text := sampleText("a", "b", "c", "d", "e", "f")
	client := &funcClient{fn: func(ctx context.Context, prompt string) (map[string]any, error) {
		time.Sleep(20 * time.Millisecond)
		return map[string]any{"surface": prompt}, nil
	}}

	coord := NewCoordinator(client, 2, zerolog.Nop())
	if _, err := coord.Annotate(context.Background(), text, Request{Operation: "mwe", Build: surfacePrompt}); err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	if peak := client.peak.Load(); peak > 2 {
		t.Errorf("peak concurrency %d exceeds limit 2", peak)
	}
}

func TestAnnotateFirstErrorCancels(t *testing.T) {
	text := sampleText("ok", "fail", "slow")
	var cancelled atomic.Bool
	boom := errors.New("boom")

	client := &funcClient{fn: func(ctx context.Context, prompt string) (map[string]any, error) {
		switch prompt {
		case "fail":
			return nil, boom
		case "slow":
			select {
			case <-ctx.Done():
				cancelled.Store(true)
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}
		return map[string]any{"surface": prompt}, nil
	}}

	coord := NewCoordinator(client, 0, zerolog.Nop())
	_, err := coord.Annotate(context.Background(), text, Request{Operation: "lemma", Build: surfacePrompt})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if !cancelled.Load() {
		t.Error("outstanding segment call was not cancelled")
	}
}

func TestAnnotateMergesTokens(t *testing.T) {
	text := sampleText("A cat", "sleeps")
	text.Pages[0].Segments[0].Tokens = []document.Token{{Surface: "A"}, {Surface: " "}, {Surface: "cat"}}

	var mu sync.Mutex
	prompts := map[string]bool{}
	client := &funcClient{fn: func(ctx context.Context, prompt string) (map[string]any, error) {
		mu.Lock()
		prompts[prompt] = true
		mu.Unlock()
		if prompt != "A cat" {
			return map[string]any{}, nil
		}
		return map[string]any{
			"surface": "A cat",
			"tokens": []any{
				map[string]any{"surface": "A", "annotations": map[string]any{"lemma": "a"}},
				map[string]any{"surface": " "},
				map[string]any{"surface": "cat", "annotations": map[string]any{"lemma": "cat", "pos": nil}},
			},
			"l1": "fr",
		}, nil
	}}

	coord := NewCoordinator(client, 8, zerolog.Nop())
	got, err := coord.Annotate(context.Background(), text, Request{Operation: "lemma", Language: "en", Build: surfacePrompt})
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}

	tok := got.Pages[0].Segments[0].Tokens[2]
	if tok.Annotations.String(document.KeyLemma) != "cat" {
		t.Errorf("lemma not merged: %+v", tok)
	}
	if tok.Annotations.Has(document.KeyPOS) {
		t.Errorf("null value must not be stored: %+v", tok)
	}
	if got.L1 != "fr" {
		t.Errorf("missing l1 should be filled from the response, got %q", got.L1)
	}
	if len(prompts) != 2 {
		t.Errorf("expected one call per segment, got %d", len(prompts))
	}
}

func TestAnnotateMergesDocumentSurface(t *testing.T) {
	tests := []struct {
		name        string
		resp        map[string]any
		wantSurface string
	}{
		{
			name: "wrapped segment with document surface",
			resp: map[string]any{
				"surface": "The whole story.",
				"segment": map[string]any{"surface": "one", "annotations": map[string]any{"translation": "un"}},
			},
			wantSurface: "The whole story.",
		},
		{
			name: "document wrapper with surface only",
			resp: map[string]any{
				"surface": "The whole story.",
				"pages": []any{map[string]any{"segments": []any{
					map[string]any{"surface": "one", "annotations": map[string]any{"translation": "un"}},
				}}},
			},
			wantSurface: "The whole story.",
		},
		{
			name:        "bare segment",
			resp:        map[string]any{"surface": "one", "annotations": map[string]any{"translation": "un"}},
			wantSurface: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := &document.Text{L2: "en", Pages: []document.Page{{Segments: []document.Segment{{Surface: "one"}}}}}
			client := &funcClient{fn: func(context.Context, string) (map[string]any, error) {
				return tt.resp, nil
			}}

			got, err := NewCoordinator(client, 1, zerolog.Nop()).Annotate(context.Background(), text,
				Request{Operation: "translation", Language: "en", Build: surfacePrompt})
			if err != nil {
				t.Fatalf("Annotate() error = %v", err)
			}
			if got.Surface != tt.wantSurface {
				t.Errorf("document surface = %q, want %q", got.Surface, tt.wantSurface)
			}
			if tr := got.Pages[0].Segments[0].Annotations.String(document.KeyTranslation); tr != "un" {
				t.Errorf("translation = %q, want un", tr)
			}
		})
	}
}

func TestAnnotateEmptyDocument(t *testing.T) {
	client := &funcClient{fn: func(ctx context.Context, prompt string) (map[string]any, error) {
		t.Fatal("no call expected")
		return nil, nil
	}}
	coord := NewCoordinator(client, 8, zerolog.Nop())

	got, err := coord.Annotate(context.Background(), &document.Text{}, Request{Operation: "gloss", Language: "de", Build: surfacePrompt})
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	if got.L2 != "de" || got.Pages == nil {
		t.Errorf("expected normalized empty document, got %+v", got)
	}
}
