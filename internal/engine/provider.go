package engine

import (
	"context"
	"fmt"
	"path/filepath"
)

const (
	weightsFile   = "weights.json"
	tokenizerFile = "tokenizer.json"
)

// Provider loads simulated models. A load with an empty adapter path yields
// the bare base model with the built-in vocabulary; a non-empty path reads
// weights.json and tokenizer.json from that directory.
type Provider struct {
	Device      string
	Temperature float64
}

// Load materializes the base model plus the adapter under adapterPath.
func (p *Provider) Load(ctx context.Context, baseModel, adapterPath string) (*LocalModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if baseModel == "" {
		return nil, fmt.Errorf("no base model configured")
	}

	m := &LocalModel{
		baseModel:   baseModel,
		temperature: p.Temperature,
		tokenizer:   NewTokenizer(),
	}
	if adapterPath == "" {
		return m, nil
	}

	adapter, err := LoadAdapter(filepath.Join(adapterPath, weightsFile))
	if err != nil {
		return nil, err
	}
	if adapter.BaseModel != baseModel {
		return nil, fmt.Errorf("adapter %s was trained for base model %q, not %q",
			adapterPath, adapter.BaseModel, baseModel)
	}
	tok, err := LoadTokenizer(filepath.Join(adapterPath, tokenizerFile))
	if err != nil {
		return nil, err
	}

	m.adapter = adapter
	m.tokenizer = tok
	return m, nil
}
