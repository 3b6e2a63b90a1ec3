package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mannyrayner/C-LARA-2/internal"
)

// CreateRootCommand creates and configures the root cobra command
func CreateRootCommand(flags *Flags) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "clara",
		Short: "C-LARA annotation pipeline",
		Long: `clara turns a plain text into an annotated multimedia reading text.

It segments and tokenizes the text, adds translations, multi-word
expressions, lemmas, glosses, pinyin and audio with a language model
and a TTS engine, and compiles the result into static HTML pages with
a lemma concordance.

Examples:
  clara run story.txt --language en --target-language fr
  clara run --description "a short story about a cat" -o runs/cat
  clara run -o runs/cat --resume --start gloss
  clara serve runs/cat`,
		Version:       internal.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	setupFlags(rootCmd, flags)

	return rootCmd
}

// DefaultOutputDir is the run directory used when --output is not given.
func DefaultOutputDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "clara-run"
	}
	return filepath.Join(home, ".local", "state", "clara", "runs", "latest")
}

func setupFlags(cmd *cobra.Command, flags *Flags) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.CfgFile, "config", "", "config file (default is $HOME/.clara.yaml)")
	pf.StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "Log level: debug, info, warn, error")
	pf.StringVar(&flags.LogFormat, "log-format", flags.LogFormat, "Log format: auto, json or console")
	pf.StringVarP(&flags.OutputDir, "output", "o", DefaultOutputDir(), "Run directory")

	pf.StringVarP(&flags.Language, "language", "l", flags.Language, "Language of the text (l2)")
	pf.StringVarP(&flags.TargetLanguage, "target-language", "t", flags.TargetLanguage, "Language of translations and glosses (l1)")
	pf.StringVar(&flags.Provider, "provider", flags.Provider, "Model provider: openai or gemini")
	pf.StringVar(&flags.Model, "model", flags.Model, "Chat model used by the annotation stages")
	pf.IntVar(&flags.Concurrency, "concurrency", flags.Concurrency, "Concurrent segment calls per stage (0 = unbounded)")
	pf.StringVar(&flags.PromptsDir, "prompts-dir", "", "Directory overriding the built-in prompt templates")

	pf.StringVar(&flags.AudioEngine, "audio-engine", flags.AudioEngine, "TTS engine: offline, openai or espeak")
	pf.StringVar(&flags.Voice, "voice", "", "TTS voice (engine specific)")
	pf.StringVar(&flags.AudioCacheDir, "audio-cache", "", "Audio cache directory (default <output>/audio_cache)")

	bindFlagsToViper(cmd.PersistentFlags())
}

// AddRunFlags registers the flags shared by the run and batch commands.
func AddRunFlags(cmd *cobra.Command, flags *Flags) {
	cmd.Flags().StringVar(&flags.StartStage, "start", "", "First stage to run (default depends on the input)")
	cmd.Flags().StringVar(&flags.EndStage, "end", flags.EndStage, "Last stage to run")
	cmd.Flags().BoolVar(&flags.NoPersist, "no-persist", false, "Do not write stage JSON and progress log")
	cmd.Flags().BoolVar(&flags.LocalTokenizer, "local-tokenizer", false, "Tokenize locally instead of asking the model")
	cmd.Flags().BoolVar(&flags.GenerateAnki, "anki", false, "Export an Anki vocabulary deck (APKG format by default, use --anki-csv for CSV)")
	cmd.Flags().BoolVar(&flags.AnkiCSV, "anki-csv", false, "Export CSV instead of APKG when using --anki")
	cmd.Flags().StringVar(&flags.DeckName, "deck-name", flags.DeckName, "Deck name for APKG export")
}

// viperKeys maps config keys to the persistent flags that override them.
var viperKeys = map[string]string{
	"log.level":                "log-level",
	"log.format":               "log-format",
	"output.directory":         "output",
	"pipeline.language":        "language",
	"pipeline.target_language": "target-language",
	"llm.provider":             "provider",
	"llm.model":                "model",
	"llm.concurrency":          "concurrency",
	"prompts.dir":              "prompts-dir",
	"audio.engine":             "audio-engine",
	"audio.voice":              "voice",
	"audio.cache_dir":          "audio-cache",
}

func bindFlagsToViper(fs *pflag.FlagSet) {
	for key, name := range viperKeys {
		if flag := fs.Lookup(name); flag != nil {
			viper.BindPFlag(key, flag)
		}
	}
}

// InitConfig initializes viper configuration
func InitConfig(cfgFile string) {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting home directory: %v\n", err)
			return
		}

		// Search config in home directory with name ".clara" (without extension)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".clara")
	}

	setDefaults()

	// Environment variables: CLARA_LLM_MODEL for llm.model and so on.
	viper.SetEnvPrefix("CLARA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// GetOpenAIKey retrieves the OpenAI API key from environment or config
func GetOpenAIKey() string {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key
	}
	return viper.GetString("llm.openai_key")
}

// GetGeminiKey retrieves the Gemini API key from environment or config
func GetGeminiKey() string {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key
	}
	return viper.GetString("llm.gemini_key")
}
