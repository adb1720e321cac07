// Package policy decides when accumulated feedback should trigger an
// adaptation cycle.
package policy

import (
	"fmt"
	"sync"
)

// Policy counts feedback submissions against a fixed threshold. The count
// resets to zero exactly when a cycle is triggered, never otherwise.
type Policy struct {
	mu        sync.Mutex
	count     int
	threshold int
}

// Status is a snapshot of the policy counters.
type Status struct {
	FeedbackCount     int `json:"feedback_count"`
	FeedbackThreshold int `json:"feedback_threshold"`
}

// New creates a Policy. The threshold is fixed for the policy's lifetime
// and must be positive.
func New(threshold int) (*Policy, error) {
	if threshold <= 0 {
		return nil, fmt.Errorf("feedback threshold must be positive, got %d", threshold)
	}
	return &Policy{threshold: threshold}, nil
}

// RecordFeedback counts one submission and reports whether the threshold
// has been reached.
func (p *Policy) RecordFeedback() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
	return p.count >= p.threshold
}

// Reset sets the feedback count back to zero. Called by the orchestrator
// when a cycle is triggered.
func (p *Policy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count = 0
}

// Status returns the current counters.
func (p *Policy) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{FeedbackCount: p.count, FeedbackThreshold: p.threshold}
}
