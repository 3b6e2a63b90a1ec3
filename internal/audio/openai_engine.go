package audio

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIEngine synthesizes speech with the OpenAI TTS API.
type OpenAIEngine struct {
	client *openai.Client
	config *Config
}

// NewOpenAIEngine creates an OpenAI engine. The key is required.
func NewOpenAIEngine(config *Config) (*OpenAIEngine, error) {
	if config.OpenAIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	return NewOpenAIEngineWithClient(openai.NewClient(config.OpenAIKey), config), nil
}

// NewOpenAIEngineWithClient creates an engine around an existing client.
func NewOpenAIEngineWithClient(client *openai.Client, config *Config) *OpenAIEngine {
	return &OpenAIEngine{client: client, config: config}
}

// Name implements Engine.
func (e *OpenAIEngine) Name() string {
	return EngineOpenAI
}

// SynthesizeToPath implements Engine. The language is passed to the model
// through the voice instruction when the model supports instructions.
func (e *OpenAIEngine) SynthesizeToPath(ctx context.Context, text, outputPath, voice, language string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text cannot be empty")
	}
	if voice == "" {
		voice = "alloy"
	}

	req := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(e.config.OpenAIModel),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatWav,
		Speed:          e.config.OpenAISpeed,
	}
	if e.supportsInstructions() {
		req.Instructions = e.instruction(language)
	}

	response, err := e.client.CreateSpeech(ctx, req)
	if err != nil {
		if strings.Contains(err.Error(), "does not have access to model") && e.supportsInstructions() {
			return fmt.Errorf("OpenAI TTS API error: %w\nNote: The %s model requires access. Try audio.openai_model tts-1-hd instead", err, e.config.OpenAIModel)
		}
		return fmt.Errorf("OpenAI TTS API error: %w", err)
	}
	defer response.Close()

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	written, err := io.Copy(out, response)
	if err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}
	if written == 0 {
		return fmt.Errorf("no audio data received from OpenAI")
	}
	return nil
}

func (e *OpenAIEngine) supportsInstructions() bool {
	return e.config.OpenAIModel == "gpt-4o-mini-tts" || e.config.OpenAIModel == "gpt-4o-mini-audio-preview"
}

func (e *OpenAIEngine) instruction(language string) string {
	if e.config.OpenAIInstruction != "" {
		return e.config.OpenAIInstruction
	}
	if language == "" {
		return ""
	}
	return fmt.Sprintf("Speak in the language with code %q. Pronounce clearly and at a moderate pace for language learners.", language)
}
