package cli

// Flags holds all command-line flag values
type Flags struct {
	// Global flags
	CfgFile   string
	LogLevel  string
	LogFormat string
	OutputDir string

	// Language and model flags
	Language       string
	TargetLanguage string
	Provider       string
	Model          string
	Concurrency    int
	PromptsDir     string

	// Audio flags
	AudioEngine   string
	Voice         string
	AudioCacheDir string

	// Run flags
	Text           string
	Description    string
	DocumentPath   string
	StartStage     string
	EndStage       string
	Resume         bool
	NoPersist      bool
	LocalTokenizer bool

	// Anki export flags
	GenerateAnki bool
	AnkiCSV      bool
	DeckName     string

	// Command-specific flags
	Addr     string
	Snapshot string
	Restore  string
}

// NewFlags creates a new Flags instance with default values
func NewFlags() *Flags {
	return &Flags{
		LogLevel:       "info",
		LogFormat:      "auto",
		Language:       "en",
		TargetLanguage: "fr",
		Provider:       "openai",
		Model:          "gpt-4o-mini",
		Concurrency:    8,
		AudioEngine:    "offline",
		EndStage:       "compile_html",
		DeckName:       "C-LARA Vocabulary",
		Addr:           "127.0.0.1:8080",
	}
}
