package config

import (
	"errors"
	"os"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Config holds the read-only settings established once at process start.
// Everything downstream receives it explicitly; there are no ambient
// singletons for credentials or thresholds.
type Config struct {
	OpenAIAPIKey    string  `env:"OPENAI_API_KEY"`
	WhisperModel    string  `env:"NAOS_WHISPER_MODEL,default=whisper-1"`
	WhisperBaseURL  string  `env:"NAOS_WHISPER_BASE_URL,default=https://api.openai.com/v1"`
	SeparationModel string  `env:"NAOS_SEPARATION_MODEL,default=htdemucs"`
	PythonBin       string  `env:"NAOS_PYTHON,default=python3"`
	EnergyThreshold float64 `env:"NAOS_ENERGY_THRESHOLD,default=0.01"`
	LanguageHint    string  `env:"NAOS_LANGUAGE_HINT,default=ko"`
	HeuristicsFile  string  `env:"NAOS_HEURISTICS_FILE"`
	TmpDir          string  `env:"NAOS_TMPDIR"`

	Extras env.EnvSet
}

// Load reads .env when present, then the process environment, and validates
// the result.
func Load() (*Config, error) {
	// Missing .env is fine; explicit settings win over the file.
	_ = godotenv.Load()

	var cfg Config
	extras, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, err
	}
	cfg.Extras = extras

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate applies defaults that go-env cannot express and rejects unusable
// configurations.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return errors.New("config: OPENAI_API_KEY is required")
	}
	if c.EnergyThreshold < 0 || c.EnergyThreshold >= 1 {
		return errors.New("config: energy threshold must be in [0, 1)")
	}
	if c.TmpDir == "" {
		c.TmpDir = os.TempDir()
	}
	return nil
}
