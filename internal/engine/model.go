package engine

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
)

// LocalModel is a loaded simulated model: a base scoring function derived
// deterministically from the model name, plus an optional trained adapter.
// Generation samples token by token from a temperature-scaled softmax over
// the vocabulary.
type LocalModel struct {
	baseModel   string
	temperature float64
	tokenizer   *Tokenizer
	adapter     *Adapter // nil when serving the bare base model
}

// baseScore deterministically maps (model, prev, next) to [0, 1). It stands
// in for the frozen base weights: stable across runs, different per model.
func (m *LocalModel) baseScore(prev, next string) float64 {
	h := fnv.New64a()
	h.Write([]byte(m.baseModel))
	h.Write([]byte{'|'})
	h.Write([]byte(prev))
	h.Write([]byte{'|'})
	h.Write([]byte(next))
	return float64(h.Sum64()%1_000_000) / 1_000_000
}

func softmax(logits []float64, temperature float64) []float64 {
	if temperature <= 0 {
		temperature = 1e-3
	}
	maxL := math.Inf(-1)
	for _, l := range logits {
		if l > maxL {
			maxL = l
		}
	}
	probs := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		probs[i] = math.Exp((l - maxL) / temperature)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

func sampleWeighted(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	r := rand.Float64() * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return i
		}
	}
	return len(weights) - 1
}

// Generate produces up to maxTokens new tokens conditioned on prompt. The
// returned completion includes the prompt as its prefix, matching how
// causal decoding echoes its input.
func (m *LocalModel) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	vocab := m.tokenizer.Vocab
	tokens := Tokenize(prompt)

	prev := ""
	if len(tokens) > 0 {
		prev = tokens[len(tokens)-1]
	}

	generated := make([]string, 0, maxTokens)
	for step := 0; step < maxTokens; step++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		logits := make([]float64, len(vocab))
		for i, next := range vocab {
			logits[i] = m.baseScore(prev, next)
			if m.adapter != nil {
				logits[i] += m.adapter.Boost(prev, next)
			}
		}
		probs := softmax(logits, m.temperature)
		next := vocab[sampleWeighted(probs)]
		generated = append(generated, next)
		prev = next
	}

	if len(generated) == 0 {
		return prompt, nil
	}
	return strings.TrimSpace(prompt) + " " + strings.Join(generated, " "), nil
}

// BaseModel returns the name of the base weights this model was loaded from.
func (m *LocalModel) BaseModel() string { return m.baseModel }

// Adapter returns the loaded adapter, or nil for the bare base model.
func (m *LocalModel) Adapter() *Adapter { return m.adapter }
