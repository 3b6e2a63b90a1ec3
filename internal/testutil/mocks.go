package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/mannyrayner/C-LARA-2/internal/audio"
	"github.com/mannyrayner/C-LARA-2/internal/llm"
)

// FakeRule answers every prompt containing Contains with Body, or fails
// with Err when it is set.
type FakeRule struct {
	Contains string
	Body     string
	Err      error
}

// FakeChatProvider is a scripted llm.ChatProvider. Rules are tried in
// order; a prompt no rule matches gets Default.
type FakeChatProvider struct {
	Rules   []FakeRule
	Default string

	mu      sync.Mutex
	prompts []string
}

// Chat records the prompt and returns the first matching scripted answer.
func (f *FakeChatProvider) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	f.prompts = append(f.prompts, req.Prompt)
	f.mu.Unlock()

	for _, rule := range f.Rules {
		if strings.Contains(req.Prompt, rule.Contains) {
			if rule.Err != nil {
				return "", rule.Err
			}
			return rule.Body, nil
		}
	}
	return f.Default, nil
}

// Name implements llm.ChatProvider.
func (f *FakeChatProvider) Name() string {
	return "fake"
}

// Calls returns the number of prompts received.
func (f *FakeChatProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

// Prompts returns a copy of every prompt received, in arrival order.
func (f *FakeChatProvider) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// FakeEngine counts synthesis calls and writes offline tones, so its output
// passes validation.
type FakeEngine struct {
	// Err, when set, fails every call without writing a file.
	Err error

	mu    sync.Mutex
	texts []string
}

// SynthesizeToPath implements audio.Engine.
func (f *FakeEngine) SynthesizeToPath(ctx context.Context, text, outputPath, voice, language string) error {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()

	if f.Err != nil {
		return f.Err
	}
	return audio.NewOfflineEngine().SynthesizeToPath(ctx, text, outputPath, voice, language)
}

// Name implements audio.Engine.
func (f *FakeEngine) Name() string {
	return "fake"
}

// Calls returns the number of synthesis requests.
func (f *FakeEngine) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

// Texts returns the text of every synthesis request.
func (f *FakeEngine) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}
