// Package feedback holds correction records submitted by users: an
// append-only JSONL journal on disk and the in-memory pool consumed by
// adaptation cycles.
package feedback

import (
	"time"
)

// Record is a single human correction. Immutable once created.
type Record struct {
	ID                  string    `json:"id"`
	CreatedAt           time.Time `json:"created_at"`
	Prompt              string    `json:"prompt"`
	OriginalCompletion  string    `json:"original_completion"`
	CorrectedCompletion string    `json:"corrected_completion"`
}
