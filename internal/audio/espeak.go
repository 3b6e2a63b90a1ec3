package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// EspeakConfig holds settings for the espeak-ng engine.
type EspeakConfig struct {
	Binary    string // defaults to "espeak-ng"
	Voice     string // used when the caller passes no voice or language
	Speed     int    // words per minute, 80 to 450
	Pitch     int    // 0 to 99
	Amplitude int    // 0 to 200
	WordGap   int    // gap between words in 10ms units
}

// DefaultEspeakConfig returns espeak-ng's own defaults.
func DefaultEspeakConfig() *EspeakConfig {
	return &EspeakConfig{
		Binary:    "espeak-ng",
		Voice:     "en",
		Speed:     150,
		Pitch:     50,
		Amplitude: 100,
	}
}

// EspeakEngine synthesizes speech by running espeak-ng.
type EspeakEngine struct {
	config *EspeakConfig
}

// NewEspeakEngine creates an engine after checking that the binary runs.
func NewEspeakEngine(config *EspeakConfig) (*EspeakEngine, error) {
	if config == nil {
		config = DefaultEspeakConfig()
	}
	if config.Binary == "" {
		config.Binary = "espeak-ng"
	}
	if err := exec.Command(config.Binary, "--version").Run(); err != nil {
		return nil, fmt.Errorf("%s is not installed or not in PATH: %w", config.Binary, err)
	}
	return &EspeakEngine{config: config}, nil
}

// Name implements Engine.
func (e *EspeakEngine) Name() string {
	return EngineEspeak
}

// SynthesizeToPath implements Engine. An explicit voice wins over the
// language code, which wins over the configured voice.
func (e *EspeakEngine) SynthesizeToPath(ctx context.Context, text, outputPath, voice, language string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.config.Binary, e.args(text, outputPath, voice, language)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("espeak-ng failed: %w\nOutput: %s", err, string(output))
	}
	return nil
}

func (e *EspeakEngine) args(text, outputPath, voice, language string) []string {
	switch {
	case voice != "":
	case language != "":
		voice = language
	default:
		voice = e.config.Voice
	}

	args := []string{
		"-v", voice,
		"-s", strconv.Itoa(clamp(e.config.Speed, 80, 450)),
		"-p", strconv.Itoa(clamp(e.config.Pitch, 0, 99)),
		"-a", strconv.Itoa(clamp(e.config.Amplitude, 0, 200)),
	}
	if e.config.WordGap > 0 {
		args = append(args, "-g", strconv.Itoa(e.config.WordGap))
	}
	return append(args, "-w", outputPath, text)
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
