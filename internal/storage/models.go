package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// AdaptationEvent is one entry of the append-only adaptation audit trail.
// Seq is monotonically increasing and 1-based.
type AdaptationEvent struct {
	Seq       int64     `json:"sequence_number"`
	Kind      string    `json:"event_kind"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// Interaction records one served completion.
type Interaction struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Prompt     string    `json:"prompt"`
	Completion string    `json:"completion"`
	Adapter    string    `json:"adapter"`
	DurationMs int64     `json:"duration_ms"`
}
