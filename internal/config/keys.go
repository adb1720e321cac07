package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "SEALD_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "model.base_model", typ: kString, env: "SEALD_MODEL_BASE_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Model.BaseModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Model.BaseModel },
	},
	{
		key: "model.device", typ: kString, env: "SEALD_MODEL_DEVICE",
		apply:   func(cfg *Config, v any) { cfg.Model.Device = v.(string) },
		extract: func(cfg Config) any { return cfg.Model.Device },
	},
	{
		key: "model.max_tokens", typ: kInt, env: "SEALD_MODEL_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Model.MaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Model.MaxTokens },
	},
	{
		key: "model.temperature", typ: kFloat, env: "SEALD_MODEL_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.Model.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.Model.Temperature },
	},
	{
		key: "adaptation.feedback_threshold", typ: kInt, env: "SEALD_ADAPTATION_FEEDBACK_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Adaptation.FeedbackThreshold = v.(int) },
		extract: func(cfg Config) any { return cfg.Adaptation.FeedbackThreshold },
	},
	{
		key: "adaptation.rank", typ: kInt, env: "SEALD_ADAPTATION_RANK",
		apply:   func(cfg *Config, v any) { cfg.Adaptation.Rank = v.(int) },
		extract: func(cfg Config) any { return cfg.Adaptation.Rank },
	},
	{
		key: "adaptation.alpha", typ: kFloat, env: "SEALD_ADAPTATION_ALPHA",
		apply:   func(cfg *Config, v any) { cfg.Adaptation.Alpha = v.(float64) },
		extract: func(cfg Config) any { return cfg.Adaptation.Alpha },
	},
	{
		key: "adaptation.learning_rate", typ: kFloat, env: "SEALD_ADAPTATION_LEARNING_RATE",
		apply:   func(cfg *Config, v any) { cfg.Adaptation.LearningRate = v.(float64) },
		extract: func(cfg Config) any { return cfg.Adaptation.LearningRate },
	},
	{
		key: "storage.data_dir", typ: kString, env: "SEALD_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "SEALD_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}

// KV is a config key/value pair for display.
type KV struct {
	Key   string
	Value string
}

// ShowAll returns all non-secret config keys with their effective values,
// sorted by key.
func ShowAll(cfg Config) []KV {
	out := make([]KV, 0, len(specs))
	for _, s := range specs {
		if s.secret {
			continue
		}
		out = append(out, KV{Key: s.key, Value: fmt.Sprintf("%v", s.extract(cfg))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// SetKey parses value according to the key's declared type and persists it
// through the config backend.
func SetKey(key, value string) error {
	return setKeyWith(NewBackend(), key, value)
}

func setKeyWith(b ConfigBackend, key, value string) error {
	for _, s := range specs {
		if s.key != key {
			continue
		}
		switch s.typ {
		case kInt:
			i, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("key %s requires an integer: %w", key, err)
			}
			return b.SetInt(key, i)
		case kFloat:
			if _, err := strconv.ParseFloat(value, 64); err != nil {
				return fmt.Errorf("key %s requires a number: %w", key, err)
			}
			return b.SetString(key, value)
		default:
			return b.SetString(key, value)
		}
	}
	return fmt.Errorf("unknown config key %q", key)
}
