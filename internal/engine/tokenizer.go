// Package engine implements the local inference backend: a simulated
// language model with word-level tokenization, a trainable low-rank
// adapter, and temperature sampling.
package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// baseVocabulary seeds every tokenizer so the bare base model can produce
// text before any adapter has been trained.
var baseVocabulary = []string{
	"the", "a", "an", "is", "are", "was", "to", "of", "and", "in",
	"that", "it", "for", "on", "with", "as", "this", "by", "from", "at",
	"model", "prompt", "completion", "answer", "question", "result",
	"value", "function", "system", "user", "data", "code", "error",
	"correct", "output", "input", "example", "response", "text", "word",
}

// Tokenizer maps text to a sequence of word tokens over a known
// vocabulary. New tokens can be added, and the vocabulary round-trips
// through tokenizer.json next to the adapter weights.
type Tokenizer struct {
	Vocab []string `json:"vocab"`

	index map[string]int
}

// NewTokenizer returns a tokenizer seeded with the base vocabulary.
func NewTokenizer() *Tokenizer {
	t := &Tokenizer{}
	for _, w := range baseVocabulary {
		t.Add(w)
	}
	return t
}

// Add inserts a token into the vocabulary if it is not already present.
func (t *Tokenizer) Add(tok string) {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if _, ok := t.index[tok]; ok {
		return
	}
	t.index[tok] = len(t.Vocab)
	t.Vocab = append(t.Vocab, tok)
}

// Tokenize splits text into lowercase word tokens, stripping surrounding
// punctuation. Tokens do not have to be in the vocabulary.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()[]{}")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// Learn adds every token of text to the vocabulary.
func (t *Tokenizer) Learn(text string) {
	for _, tok := range Tokenize(text) {
		t.Add(tok)
	}
}

// Save writes the vocabulary to path as JSON.
func (t *Tokenizer) Save(path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding tokenizer: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing tokenizer: %w", err)
	}
	return nil
}

// LoadTokenizer reads a tokenizer saved by Save and rebuilds its index.
func LoadTokenizer(path string) (*Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tokenizer: %w", err)
	}
	var t Tokenizer
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decoding tokenizer: %w", err)
	}
	if len(t.Vocab) == 0 {
		return nil, fmt.Errorf("tokenizer %s has an empty vocabulary", path)
	}
	t.index = make(map[string]int, len(t.Vocab))
	for i, w := range t.Vocab {
		t.index[w] = i
	}
	return &t, nil
}
