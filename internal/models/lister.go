package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrNoAPIKey is returned when no OpenAI key is configured.
var ErrNoAPIKey = errors.New("OpenAI API key not found. Set OPENAI_API_KEY environment variable or configure llm.openai_key in .clara.yaml")

// Catalog groups model ids by what the pipeline can use them for.
type Catalog struct {
	Chat   []string
	Speech []string
	Other  int
}

// Lister handles listing available OpenAI models
type Lister struct {
	apiKey string
	client *openai.Client
}

// NewLister creates a new model lister
func NewLister(apiKey string) *Lister {
	return NewListerWithConfig(apiKey, openai.DefaultConfig(apiKey))
}

// NewListerWithConfig creates a lister for a custom client configuration,
// such as a different base URL.
func NewListerWithConfig(apiKey string, config openai.ClientConfig) *Lister {
	return &Lister{
		apiKey: apiKey,
		client: openai.NewClientWithConfig(config),
	}
}

// Catalog fetches the models visible to the key and categorizes them.
func (l *Lister) Catalog(ctx context.Context) (Catalog, error) {
	if l.apiKey == "" {
		return Catalog{}, ErrNoAPIKey
	}

	models, err := l.client.ListModels(ctx)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to list models: %w", err)
	}

	var catalog Catalog
	for _, model := range models.Models {
		id := model.ID
		switch {
		case strings.Contains(id, "tts"):
			catalog.Speech = append(catalog.Speech, id)
		case strings.Contains(id, "audio") || strings.Contains(id, "realtime") || strings.Contains(id, "transcribe"):
			catalog.Other++
		case strings.HasPrefix(id, "gpt") || strings.HasPrefix(id, "o1") || strings.HasPrefix(id, "o3") || strings.HasPrefix(id, "o4"):
			catalog.Chat = append(catalog.Chat, id)
		default:
			catalog.Other++
		}
	}

	sort.Strings(catalog.Chat)
	sort.Strings(catalog.Speech)
	return catalog, nil
}

// ListAvailableModels prints the chat and speech models to w.
func (l *Lister) ListAvailableModels(ctx context.Context, w io.Writer) error {
	catalog, err := l.Catalog(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "Available OpenAI Models:")
	fmt.Fprintln(w, "\nChat Models (annotation stages, --model):")
	printList(w, catalog.Chat, "No chat models found")

	fmt.Fprintln(w, "\nText-to-Speech Models (audio.openai_model):")
	printList(w, catalog.Speech, "No TTS models found")

	if catalog.Other > 0 {
		fmt.Fprintf(w, "\n... and %d other models\n", catalog.Other)
	}
	return nil
}

func printList(w io.Writer, ids []string, empty string) {
	if len(ids) == 0 {
		fmt.Fprintf(w, "  %s\n", empty)
		return
	}
	for _, id := range ids {
		fmt.Fprintf(w, "  %s\n", id)
	}
}
