// Package trainer runs simulated fine-tuning jobs: it formats a feedback
// batch into training examples, fits a fresh low-rank adapter on them, and
// writes the artifact under a new numbered directory.
package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kalambet/seald/internal/engine"
	"github.com/kalambet/seald/internal/feedback"
)

// TrainingError reports a failed fine-tuning run.
type TrainingError struct {
	Err error
}

func (e *TrainingError) Error() string { return fmt.Sprintf("fine-tuning: %v", e.Err) }
func (e *TrainingError) Unwrap() error { return e.Err }

// Artifact describes a completed adapter checkpoint on disk. Path points at
// the final/ directory holding weights.json and tokenizer.json.
type Artifact struct {
	Path                 string
	CreatedFromBatchSize int
}

// Result is the outcome of a training run. Skipped is set when the batch
// was empty and no artifact was produced.
type Result struct {
	Artifact *Artifact
	Skipped  bool
}

// Trainer fits adapters with fixed hyperparameters.
type Trainer struct {
	Rank         int
	Alpha        float64
	LearningRate float64

	logger *slog.Logger
}

// New returns a Trainer with the given hyperparameters. Non-positive values
// fall back to the defaults (rank 16, alpha 32, lr 2e-4).
func New(rank int, alpha, learningRate float64, logger *slog.Logger) *Trainer {
	if rank <= 0 {
		rank = 16
	}
	if alpha <= 0 {
		alpha = 32
	}
	if learningRate <= 0 {
		learningRate = 2e-4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Trainer{Rank: rank, Alpha: alpha, LearningRate: learningRate, logger: logger}
}

// Run trains a new adapter for baseModel on batch and writes it under
// outputRoot/adapter_<n>/final, where n is one past the highest existing
// adapter number. An empty batch is reported as skipped, not as an error.
func (t *Trainer) Run(ctx context.Context, batch []feedback.Record, baseModel, outputRoot string) (Result, error) {
	if len(batch) == 0 {
		return Result{Skipped: true}, nil
	}

	examples, err := formatExamples(ctx, batch)
	if err != nil {
		return Result{}, &TrainingError{Err: err}
	}

	tok := engine.NewTokenizer()
	for _, ex := range examples {
		tok.Learn(ex)
	}

	adapter := engine.NewAdapter(baseModel, t.Rank, t.Alpha)
	adapter.BatchSize = len(batch)
	for _, ex := range examples {
		// One epoch over the batch.
		adapter.Update(engine.Tokenize(ex), t.LearningRate)
	}

	n, err := nextAdapterNumber(outputRoot)
	if err != nil {
		return Result{}, &TrainingError{Err: err}
	}
	finalDir := filepath.Join(outputRoot, fmt.Sprintf("adapter_%d", n), "final")
	if err := os.MkdirAll(finalDir, 0o755); err != nil {
		return Result{}, &TrainingError{Err: fmt.Errorf("creating artifact directory: %w", err)}
	}
	if err := adapter.Save(filepath.Join(finalDir, "weights.json")); err != nil {
		return Result{}, &TrainingError{Err: err}
	}
	if err := tok.Save(filepath.Join(finalDir, "tokenizer.json")); err != nil {
		return Result{}, &TrainingError{Err: err}
	}

	t.logger.Info("trained adapter",
		"path", finalDir,
		"batch_size", len(batch),
		"steps", adapter.Steps)

	return Result{Artifact: &Artifact{Path: finalDir, CreatedFromBatchSize: len(batch)}}, nil
}

// nextAdapterNumber scans outputRoot for adapter_<n> directories and
// returns max+1, so a run never reuses a number even after deletions.
func nextAdapterNumber(outputRoot string) (int, error) {
	entries, err := os.ReadDir(outputRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return 1, nil
		}
		return 0, fmt.Errorf("scanning adapter directory: %w", err)
	}
	highest := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(e.Name(), "adapter_%d", &n); err == nil && n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}
