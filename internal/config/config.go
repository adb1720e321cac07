package config

import (
	"fmt"
	"os"
)

type Config struct {
	Server     ServerConfig
	Model      ModelConfig
	Adaptation AdaptationConfig
	Storage    StorageConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port int
}

type ModelConfig struct {
	// BaseModel is the identifier handed to the model provider. The
	// provider derives its simulated weights from it, so changing the
	// identifier changes the model's behavior.
	BaseModel   string
	Device      string // "" means auto-detect
	MaxTokens   int
	Temperature float64
}

type AdaptationConfig struct {
	FeedbackThreshold int
	Rank              int
	Alpha             float64
	LearningRate      float64
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4400,
		},
		Model: ModelConfig{
			BaseModel:   "phi-2-sim",
			Device:      "",
			MaxTokens:   100,
			Temperature: 0.7,
		},
		Adaptation: AdaptationConfig{
			FeedbackThreshold: 3,
			Rank:              16,
			Alpha:             32,
			LearningRate:      2e-4,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/seald/config.json and applies SEALD_* environment
// variable overrides on top.
func Load() (Config, error) {
	return loadWith(NewBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Out-of-range values fall back to defaults rather than failing startup.
	def := defaults()
	if cfg.Adaptation.FeedbackThreshold <= 0 {
		fmt.Fprintf(os.Stderr, "[WARN] adaptation.feedback_threshold must be positive, got %d. Using default %d.\n",
			cfg.Adaptation.FeedbackThreshold, def.Adaptation.FeedbackThreshold)
		cfg.Adaptation.FeedbackThreshold = def.Adaptation.FeedbackThreshold
	}
	if cfg.Adaptation.Rank <= 0 {
		fmt.Fprintf(os.Stderr, "[WARN] adaptation.rank must be positive, got %d. Using default %d.\n",
			cfg.Adaptation.Rank, def.Adaptation.Rank)
		cfg.Adaptation.Rank = def.Adaptation.Rank
	}
	if cfg.Model.Temperature <= 0 {
		fmt.Fprintf(os.Stderr, "[WARN] model.temperature must be positive, got %v. Using default %v.\n",
			cfg.Model.Temperature, def.Model.Temperature)
		cfg.Model.Temperature = def.Model.Temperature
	}
	if cfg.Model.MaxTokens <= 0 {
		cfg.Model.MaxTokens = def.Model.MaxTokens
	}
	if cfg.Model.BaseModel == "" {
		return Config{}, fmt.Errorf("missing required config: model.base_model")
	}

	return cfg, nil
}
