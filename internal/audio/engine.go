package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ErrSynthesis reports audio that could not be produced or did not validate.
var ErrSynthesis = errors.New("audio synthesis failed")

// Engine writes speech for text to outputPath as a WAV file.
type Engine interface {
	SynthesizeToPath(ctx context.Context, text, outputPath, voice, language string) error
	Name() string
}

// Engine names accepted by NewEngine.
const (
	EngineOffline = "offline"
	EngineOpenAI  = "openai"
	EngineEspeak  = "espeak"
)

// Config selects and configures the synthesis engine.
type Config struct {
	Engine   string // "offline", "openai" or "espeak"
	Voice    string
	CacheDir string
	// MinDuration is the shortest clip that passes validation.
	MinDuration time.Duration

	OpenAIKey         string
	OpenAIModel       string  // "tts-1", "tts-1-hd" or "gpt-4o-mini-tts"
	OpenAISpeed       float64 // 0.25 to 4.0
	OpenAIInstruction string  // only honoured by gpt-4o-mini-tts

	Espeak *EspeakConfig
}

// DefaultConfig returns the offline configuration used when nothing else is
// set.
func DefaultConfig() *Config {
	return &Config{
		Engine:      EngineOffline,
		CacheDir:    "audio_cache",
		MinDuration: 50 * time.Millisecond,
		OpenAIModel: "gpt-4o-mini-tts",
		OpenAISpeed: 1.0,
		Espeak:      DefaultEspeakConfig(),
	}
}

// NewEngine creates the engine named by config.Engine.
func NewEngine(config *Config) (Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Engine {
	case "", EngineOffline:
		return NewOfflineEngine(), nil
	case EngineOpenAI:
		engine, err := NewOpenAIEngine(config)
		if err != nil {
			return nil, err
		}
		return engine, nil
	case EngineEspeak:
		engine, err := NewEspeakEngine(config.Espeak)
		if err != nil {
			return nil, err
		}
		return engine, nil
	default:
		return nil, fmt.Errorf("unknown audio engine: %s", config.Engine)
	}
}

// FallbackEngine tries Primary, validates its output, and on any failure
// removes the partial file and tries Secondary once.
type FallbackEngine struct {
	primary     Engine
	secondary   Engine
	minDuration time.Duration
	logger      zerolog.Logger
}

// NewFallbackEngine wraps primary with secondary.
func NewFallbackEngine(primary, secondary Engine, minDuration time.Duration, logger zerolog.Logger) *FallbackEngine {
	return &FallbackEngine{
		primary:     primary,
		secondary:   secondary,
		minDuration: minDuration,
		logger:      logger,
	}
}

// SynthesizeToPath implements Engine.
func (f *FallbackEngine) SynthesizeToPath(ctx context.Context, text, outputPath, voice, language string) error {
	err := f.attempt(ctx, f.primary, text, outputPath, voice, language)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	f.logger.Warn().
		Err(err).
		Str("engine", f.primary.Name()).
		Str("fallback", f.secondary.Name()).
		Msg("synthesis failed, retrying with fallback engine")
	_ = os.Remove(outputPath)

	if err := f.attempt(ctx, f.secondary, text, outputPath, voice, language); err != nil {
		_ = os.Remove(outputPath)
		return fmt.Errorf("%w: %s and %s both failed: %v", ErrSynthesis, f.primary.Name(), f.secondary.Name(), err)
	}
	return nil
}

func (f *FallbackEngine) attempt(ctx context.Context, engine Engine, text, outputPath, voice, language string) error {
	err := engine.SynthesizeToPath(ctx, text, outputPath, voice, language)
	if err == nil {
		_, err = Validate(outputPath, f.minDuration)
	}
	recordSynth(engine.Name(), err)
	return err
}

// Name implements Engine.
func (f *FallbackEngine) Name() string {
	return fmt.Sprintf("%s (fallback: %s)", f.primary.Name(), f.secondary.Name())
}
