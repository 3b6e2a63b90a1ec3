package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Response formats understood by providers.
const (
	FormatJSONObject = "json_object"
	FormatText       = "text"
)

// Defaults used when a Config leaves a field empty.
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.2
	DefaultTimeout     = 60 * time.Second
	DefaultHeartbeat   = 5 * time.Second
	DefaultMaxRetries  = 3
	DefaultConcurrency = 8
)

var (
	// ErrConfiguration is returned at construction time when credentials or
	// provider settings are missing.
	ErrConfiguration = errors.New("llm configuration error")

	// ErrMalformedResponse is returned when the provider answers with a body
	// that is not a JSON object. It is never retried.
	ErrMalformedResponse = errors.New("model returned non-JSON content")
)

// ChatRequest is one prompt sent to a provider.
type ChatRequest struct {
	Prompt         string
	Model          string
	Temperature    float32
	ResponseFormat string
}

// ChatProvider sends a single prompt and returns the raw response content.
type ChatProvider interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
	Name() string
}

// Config holds provider and client settings.
type Config struct {
	Provider    string // "openai" or "gemini"
	OpenAIKey   string
	OpenAIURL   string // optional base URL override
	GeminiKey   string
	Model       string
	Temperature float32
	Timeout     time.Duration
	Heartbeat   time.Duration
	MaxRetries  int
	Concurrency int

	BreakerMaxFailures uint32
	BreakerCooldown    time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider:           "openai",
		Model:              DefaultModel,
		Temperature:        DefaultTemperature,
		Timeout:            DefaultTimeout,
		Heartbeat:          DefaultHeartbeat,
		MaxRetries:         DefaultMaxRetries,
		Concurrency:        DefaultConcurrency,
		BreakerMaxFailures: 5,
		BreakerCooldown:    30 * time.Second,
	}
}

// NewProvider creates the provider named in the configuration.
func NewProvider(ctx context.Context, config *Config) (ChatProvider, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case "", "openai":
		return NewOpenAIProvider(config)
	case "gemini":
		return NewGeminiProvider(ctx, config)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrConfiguration, config.Provider)
	}
}
