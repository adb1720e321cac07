package trainer

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/seald/internal/feedback"
)

// exampleTemplate is the supervised-text shape of one training example.
const exampleTemplate = "Prompt: %s\nCorrected Completion: %s"

// formatExamples renders a feedback batch into training texts, preserving
// batch order. Malformed records fail the whole batch.
func formatExamples(ctx context.Context, batch []feedback.Record) ([]string, error) {
	examples := make([]string, len(batch))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, rec := range batch {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if rec.Prompt == "" {
				return fmt.Errorf("feedback record %s has an empty prompt", rec.ID)
			}
			if rec.CorrectedCompletion == "" {
				return fmt.Errorf("feedback record %s has an empty corrected completion", rec.ID)
			}
			examples[i] = fmt.Sprintf(exampleTemplate, rec.Prompt, rec.CorrectedCompletion)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return examples, nil
}
