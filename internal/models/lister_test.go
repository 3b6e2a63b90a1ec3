package models

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func newTestLister(t *testing.T, body string) *Lister {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	config := openai.DefaultConfig("test-api-key")
	config.BaseURL = srv.URL + "/v1"
	return NewListerWithConfig("test-api-key", config)
}

const modelList = `{"object":"list","data":[
	{"id":"tts-1","object":"model"},
	{"id":"gpt-4o-mini","object":"model"},
	{"id":"whisper-1","object":"model"},
	{"id":"gpt-4o-mini-tts","object":"model"},
	{"id":"gpt-4o","object":"model"},
	{"id":"gpt-4o-audio-preview","object":"model"}
]}`

func TestNewLister(t *testing.T) {
	lister := NewLister("test-api-key")

	if lister == nil {
		t.Fatal("NewLister returned nil")
	}
	if lister.apiKey != "test-api-key" {
		t.Errorf("Expected API key 'test-api-key', got '%s'", lister.apiKey)
	}
	if lister.client == nil {
		t.Error("OpenAI client not initialized")
	}
}

func TestCatalog(t *testing.T) {
	lister := newTestLister(t, modelList)

	catalog, err := lister.Catalog(context.Background())
	if err != nil {
		t.Fatalf("Catalog failed: %v", err)
	}

	if want := []string{"gpt-4o", "gpt-4o-mini"}; !reflect.DeepEqual(catalog.Chat, want) {
		t.Errorf("Chat = %v, want %v", catalog.Chat, want)
	}
	if want := []string{"gpt-4o-mini-tts", "tts-1"}; !reflect.DeepEqual(catalog.Speech, want) {
		t.Errorf("Speech = %v, want %v", catalog.Speech, want)
	}
	if catalog.Other != 2 {
		t.Errorf("Other = %d, want 2", catalog.Other)
	}
}

func TestListAvailableModels(t *testing.T) {
	lister := newTestLister(t, modelList)

	var out bytes.Buffer
	if err := lister.ListAvailableModels(context.Background(), &out); err != nil {
		t.Fatalf("ListAvailableModels failed: %v", err)
	}

	for _, want := range []string{"  gpt-4o-mini\n", "  tts-1\n", "... and 2 other models"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Output missing %q:\n%s", want, out.String())
		}
	}
}

func TestListAvailableModels_NoAPIKey(t *testing.T) {
	lister := NewLister("")

	err := lister.ListAvailableModels(context.Background(), &bytes.Buffer{})
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("Expected ErrNoAPIKey, got: %v", err)
	}
}
