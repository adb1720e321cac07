package policy

import (
	"sync"
	"testing"
)

func TestNewRejectsNonPositiveThreshold(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Error("New(0) succeeded, want error")
	}
	if _, err := New(-1); err == nil {
		t.Error("New(-1) succeeded, want error")
	}
	if _, err := New(1); err != nil {
		t.Errorf("New(1) failed: %v", err)
	}
}

func TestNoTriggerBelowThreshold(t *testing.T) {
	p, err := New(5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 1; i < 5; i++ {
		if p.RecordFeedback() {
			t.Fatalf("triggered at count %d, threshold is 5", i)
		}
		if got := p.Status().FeedbackCount; got != i {
			t.Errorf("after %d submissions, count = %d", i, got)
		}
	}
}

func TestTriggerAtThreshold(t *testing.T) {
	p, err := New(3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	p.RecordFeedback()
	p.RecordFeedback()
	if !p.RecordFeedback() {
		t.Fatal("3rd submission did not trigger with threshold 3")
	}

	p.Reset()
	if got := p.Status().FeedbackCount; got != 0 {
		t.Errorf("count after Reset = %d, want 0", got)
	}
	if got := p.Status().FeedbackThreshold; got != 3 {
		t.Errorf("threshold after Reset = %d, want 3 (fixed at construction)", got)
	}

	// Counting starts over after a reset.
	if p.RecordFeedback() {
		t.Error("1st submission after Reset triggered")
	}
}

func TestTriggerPastThresholdWithoutReset(t *testing.T) {
	p, err := New(2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	p.RecordFeedback()
	if !p.RecordFeedback() {
		t.Fatal("2nd submission did not trigger")
	}
	// Without a reset the policy keeps reporting trigger.
	if !p.RecordFeedback() {
		t.Error("3rd submission did not trigger (count above threshold)")
	}
}

func TestConcurrentRecordFeedback(t *testing.T) {
	p, err := New(1000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				p.RecordFeedback()
			}
		}()
	}
	wg.Wait()

	if got := p.Status().FeedbackCount; got != 500 {
		t.Errorf("count = %d after 500 concurrent submissions, want 500", got)
	}
}
