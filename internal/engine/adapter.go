package engine

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
)

// Adapter is a trainable low-rank correction on top of a base model.
// Preceding tokens are folded into rank buckets; each bucket holds learned
// weights toward the tokens that should follow. The effective contribution
// of a weight is scaled by Alpha/Rank, so rank and alpha trade capacity
// against update strength the usual way.
type Adapter struct {
	BaseModel string  `json:"base_model"`
	Rank      int     `json:"rank"`
	Alpha     float64 `json:"alpha"`
	Steps     int     `json:"steps"`
	BatchSize int     `json:"batch_size"`

	// Rows maps a context bucket to next-token weights.
	Rows map[string]map[string]float64 `json:"rows"`
}

// NewAdapter returns an empty adapter for baseModel.
func NewAdapter(baseModel string, rank int, alpha float64) *Adapter {
	return &Adapter{
		BaseModel: baseModel,
		Rank:      rank,
		Alpha:     alpha,
		Rows:      make(map[string]map[string]float64),
	}
}

func (a *Adapter) bucket(tok string) string {
	h := fnv.New32a()
	h.Write([]byte(tok))
	return fmt.Sprintf("b%d", h.Sum32()%uint32(a.Rank))
}

// Update performs one training step over a token sequence: every adjacent
// pair strengthens the weight from the first token's bucket toward the
// second token.
func (a *Adapter) Update(tokens []string, lr float64) {
	for i := 0; i+1 < len(tokens); i++ {
		b := a.bucket(tokens[i])
		row := a.Rows[b]
		if row == nil {
			row = make(map[string]float64)
			a.Rows[b] = row
		}
		row[tokens[i+1]] += lr
	}
	a.Steps++
}

// Boost returns the adapter's scaled contribution to the score of next
// following prev. Zero when the pair was never trained.
func (a *Adapter) Boost(prev, next string) float64 {
	row, ok := a.Rows[a.bucket(prev)]
	if !ok {
		return 0
	}
	return row[next] * a.Alpha / float64(a.Rank)
}

// Save writes the adapter weights to path as JSON.
func (a *Adapter) Save(path string) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding adapter: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing adapter: %w", err)
	}
	return nil
}

// LoadAdapter reads adapter weights saved by Save and validates them.
func LoadAdapter(path string) (*Adapter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading adapter: %w", err)
	}
	var a Adapter
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decoding adapter: %w", err)
	}
	if a.Rank <= 0 {
		return nil, fmt.Errorf("adapter %s has invalid rank %d", path, a.Rank)
	}
	if a.BaseModel == "" {
		return nil, fmt.Errorf("adapter %s does not name a base model", path)
	}
	if a.Rows == nil {
		a.Rows = make(map[string]map[string]float64)
	}
	return &a, nil
}
