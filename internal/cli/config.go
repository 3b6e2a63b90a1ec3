package cli

import (
	"time"

	"github.com/spf13/viper"

	"github.com/mannyrayner/C-LARA-2/internal/audio"
	"github.com/mannyrayner/C-LARA-2/internal/llm"
)

func setDefaults() {
	llmDefaults := llm.DefaultConfig()
	viper.SetDefault("llm.provider", llmDefaults.Provider)
	viper.SetDefault("llm.model", llmDefaults.Model)
	viper.SetDefault("llm.temperature", llmDefaults.Temperature)
	viper.SetDefault("llm.timeout", llmDefaults.Timeout)
	viper.SetDefault("llm.heartbeat", llmDefaults.Heartbeat)
	viper.SetDefault("llm.max_retries", llmDefaults.MaxRetries)
	viper.SetDefault("llm.concurrency", llmDefaults.Concurrency)
	viper.SetDefault("llm.breaker.max_failures", llmDefaults.BreakerMaxFailures)
	viper.SetDefault("llm.breaker.cooldown", llmDefaults.BreakerCooldown)

	audioDefaults := audio.DefaultConfig()
	viper.SetDefault("audio.engine", audioDefaults.Engine)
	viper.SetDefault("audio.min_duration", audioDefaults.MinDuration)
	viper.SetDefault("audio.openai_model", audioDefaults.OpenAIModel)
	viper.SetDefault("audio.openai_speed", audioDefaults.OpenAISpeed)
	viper.SetDefault("audio.espeak_binary", audioDefaults.Espeak.Binary)
	viper.SetDefault("audio.espeak_voice", audioDefaults.Espeak.Voice)
	viper.SetDefault("audio.espeak_speed", audioDefaults.Espeak.Speed)
	viper.SetDefault("audio.espeak_pitch", audioDefaults.Espeak.Pitch)
	viper.SetDefault("audio.espeak_amplitude", audioDefaults.Espeak.Amplitude)

	viper.SetDefault("pipeline.persist", true)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "auto")
	viper.SetDefault("serve.addr", "127.0.0.1:8080")
}

// LLMConfig builds the model client configuration from viper.
func LLMConfig() *llm.Config {
	config := llm.DefaultConfig()
	if v := viper.GetString("llm.provider"); v != "" {
		config.Provider = v
	}
	if v := viper.GetString("llm.model"); v != "" {
		config.Model = v
	}
	if viper.IsSet("llm.temperature") {
		config.Temperature = float32(viper.GetFloat64("llm.temperature"))
	}
	config.Timeout = durationOr("llm.timeout", config.Timeout)
	config.Heartbeat = durationOr("llm.heartbeat", config.Heartbeat)
	if v := viper.GetInt("llm.max_retries"); v > 0 {
		config.MaxRetries = v
	}
	if viper.IsSet("llm.concurrency") {
		config.Concurrency = viper.GetInt("llm.concurrency")
	}
	if viper.IsSet("llm.breaker.max_failures") {
		config.BreakerMaxFailures = viper.GetUint32("llm.breaker.max_failures")
	}
	config.BreakerCooldown = durationOr("llm.breaker.cooldown", config.BreakerCooldown)

	config.OpenAIKey = GetOpenAIKey()
	config.OpenAIURL = viper.GetString("llm.openai_url")
	config.GeminiKey = GetGeminiKey()
	return config
}

// AudioConfig builds the TTS configuration from viper.
func AudioConfig() *audio.Config {
	config := audio.DefaultConfig()
	if v := viper.GetString("audio.engine"); v != "" {
		config.Engine = v
	}
	config.Voice = viper.GetString("audio.voice")
	if v := viper.GetString("audio.cache_dir"); v != "" {
		config.CacheDir = v
	}
	config.MinDuration = durationOr("audio.min_duration", config.MinDuration)

	config.OpenAIKey = GetOpenAIKey()
	if v := viper.GetString("audio.openai_model"); v != "" {
		config.OpenAIModel = v
	}
	if v := viper.GetFloat64("audio.openai_speed"); v > 0 {
		config.OpenAISpeed = v
	}
	config.OpenAIInstruction = viper.GetString("audio.openai_instruction")

	if v := viper.GetString("audio.espeak_binary"); v != "" {
		config.Espeak.Binary = v
	}
	if v := viper.GetString("audio.espeak_voice"); v != "" {
		config.Espeak.Voice = v
	}
	if v := viper.GetInt("audio.espeak_speed"); v > 0 {
		config.Espeak.Speed = v
	}
	if viper.IsSet("audio.espeak_pitch") {
		config.Espeak.Pitch = viper.GetInt("audio.espeak_pitch")
	}
	if viper.IsSet("audio.espeak_amplitude") {
		config.Espeak.Amplitude = viper.GetInt("audio.espeak_amplitude")
	}
	config.Espeak.WordGap = viper.GetInt("audio.espeak_word_gap")
	return config
}

// PromptsDir returns the prompt override directory, or "" for the built-in
// templates only.
func PromptsDir() string {
	return viper.GetString("prompts.dir")
}

// Persist reports whether runs write stage JSON and the progress log.
func Persist() bool {
	if !viper.IsSet("pipeline.persist") {
		return true
	}
	return viper.GetBool("pipeline.persist")
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if !viper.IsSet(key) {
		return fallback
	}
	if d := viper.GetDuration(key); d > 0 {
		return d
	}
	return fallback
}

// LogSettings returns the configured log level and format.
func LogSettings() (level, format string) {
	return viper.GetString("log.level"), viper.GetString("log.format")
}

// ApplyConfig copies config file and environment values into the flag
// fields that have a viper key. Bound flags given on the command line still
// win because viper resolves them first.
func ApplyConfig(flags *Flags) {
	setString := func(dst *string, key string) {
		if v := viper.GetString(key); v != "" {
			*dst = v
		}
	}
	setString(&flags.OutputDir, "output.directory")
	setString(&flags.Language, "pipeline.language")
	setString(&flags.TargetLanguage, "pipeline.target_language")
	setString(&flags.Provider, "llm.provider")
	setString(&flags.Model, "llm.model")
	setString(&flags.PromptsDir, "prompts.dir")
	setString(&flags.AudioEngine, "audio.engine")
	setString(&flags.Voice, "audio.voice")
	setString(&flags.AudioCacheDir, "audio.cache_dir")
	if viper.IsSet("llm.concurrency") {
		flags.Concurrency = viper.GetInt("llm.concurrency")
	}
}

// ServeAddr returns the listen address of the serve command.
func ServeAddr() string {
	return viper.GetString("serve.addr")
}
