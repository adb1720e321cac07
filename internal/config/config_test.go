package config

import (
	"strconv"
	"testing"
)

// mapBackend is an in-memory ConfigBackend for tests.
type mapBackend struct {
	data map[string]any
}

func newMapBackend() *mapBackend {
	return &mapBackend{data: make(map[string]any)}
}

func (b *mapBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	switch val := v.(type) {
	case string:
		return val, true, nil
	default:
		return "", true, nil
	}
}

func (b *mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	switch val := v.(type) {
	case int:
		return val, true, nil
	case string:
		i, err := strconv.Atoi(val)
		return i, true, err
	default:
		return 0, true, nil
	}
}

func (b *mapBackend) SetString(key, val string) error { b.data[key] = val; return nil }
func (b *mapBackend) SetInt(key string, val int) error { b.data[key] = val; return nil }
func (b *mapBackend) Delete(key string) error          { delete(b.data, key); return nil }

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadWith(newMapBackend())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 4400 {
		t.Errorf("Port = %d, want 4400", cfg.Server.Port)
	}
	if cfg.Adaptation.FeedbackThreshold != 3 {
		t.Errorf("FeedbackThreshold = %d, want 3", cfg.Adaptation.FeedbackThreshold)
	}
	if cfg.Model.BaseModel == "" {
		t.Error("BaseModel is empty")
	}
	if cfg.Model.Temperature != 0.7 {
		t.Errorf("Temperature = %v, want 0.7", cfg.Model.Temperature)
	}
}

func TestLoadBackendValues(t *testing.T) {
	b := newMapBackend()
	b.data["server.port"] = 9000
	b.data["model.base_model"] = "tiny-sim"
	b.data["adaptation.feedback_threshold"] = 5
	b.data["model.temperature"] = "0.9"

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Model.BaseModel != "tiny-sim" {
		t.Errorf("BaseModel = %q, want tiny-sim", cfg.Model.BaseModel)
	}
	if cfg.Adaptation.FeedbackThreshold != 5 {
		t.Errorf("FeedbackThreshold = %d, want 5", cfg.Adaptation.FeedbackThreshold)
	}
	if cfg.Model.Temperature != 0.9 {
		t.Errorf("Temperature = %v, want 0.9", cfg.Model.Temperature)
	}
}

func TestLoadEnvOverridesBackend(t *testing.T) {
	b := newMapBackend()
	b.data["server.port"] = 9000

	t.Setenv("SEALD_SERVER_PORT", "9001")
	t.Setenv("SEALD_ADAPTATION_FEEDBACK_THRESHOLD", "7")

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 9001 {
		t.Errorf("Port = %d, want env override 9001", cfg.Server.Port)
	}
	if cfg.Adaptation.FeedbackThreshold != 7 {
		t.Errorf("FeedbackThreshold = %d, want 7", cfg.Adaptation.FeedbackThreshold)
	}
}

func TestLoadRejectsNonPositiveThreshold(t *testing.T) {
	b := newMapBackend()
	b.data["adaptation.feedback_threshold"] = 0

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	// Falls back to the default rather than running with a broken policy.
	if cfg.Adaptation.FeedbackThreshold != 3 {
		t.Errorf("FeedbackThreshold = %d, want default 3", cfg.Adaptation.FeedbackThreshold)
	}
}

func TestSetKeyTypeValidation(t *testing.T) {
	b := newMapBackend()

	if err := setKeyWith(b, "server.port", "not-a-number"); err == nil {
		t.Error("expected error for non-integer port")
	}
	if err := setKeyWith(b, "server.port", "4500"); err != nil {
		t.Errorf("SetKey port: %v", err)
	}
	if err := setKeyWith(b, "model.temperature", "0.5"); err != nil {
		t.Errorf("SetKey temperature: %v", err)
	}
	if err := setKeyWith(b, "no.such.key", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestEnsureAPITokenStable(t *testing.T) {
	b := newMapBackend()

	tok1, err := EnsureAPIToken(b)
	if err != nil {
		t.Fatalf("EnsureAPIToken: %v", err)
	}
	if tok1 == "" {
		t.Fatal("empty token generated")
	}

	tok2, err := EnsureAPIToken(b)
	if err != nil {
		t.Fatalf("EnsureAPIToken 2nd call: %v", err)
	}
	if tok1 != tok2 {
		t.Errorf("token changed between calls: %q vs %q", tok1, tok2)
	}
}
