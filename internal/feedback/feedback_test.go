package feedback

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func testRecord(i int) Record {
	return Record{
		ID:                  fmt.Sprintf("rec-%d", i),
		CreatedAt:           time.Now().UTC(),
		Prompt:              fmt.Sprintf("prompt %d", i),
		OriginalCompletion:  "original",
		CorrectedCompletion: "corrected",
	}
}

func TestLogAppendAndReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.jsonl")

	l, err := OpenLog(path)
	if err != nil {
		t.Fatalf("OpenLog: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	for i := 0; i < 3; i++ {
		if err := l.Append(testRecord(i)); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	records, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("ReadAll returned %d records, want 3", len(records))
	}
	for i, rec := range records {
		if rec.Prompt != fmt.Sprintf("prompt %d", i) {
			t.Errorf("record %d out of order: prompt = %q", i, rec.Prompt)
		}
	}
}

func TestLogAppendSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.jsonl")

	l, err := OpenLog(path)
	if err != nil {
		t.Fatalf("OpenLog: %v", err)
	}
	if err := l.Append(testRecord(0)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	l.Close()

	l2, err := OpenLog(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l2.Close()
	if err := l2.Append(testRecord(1)); err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}

	records, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("ReadAll returned %d records, want 2 (append-only across reopen)", len(records))
	}
}

func TestReadAllMissingFile(t *testing.T) {
	records, err := ReadAll(filepath.Join(t.TempDir(), "nope.jsonl"))
	if err != nil {
		t.Fatalf("ReadAll on missing file: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records from missing file, want 0", len(records))
	}
}

func TestPoolDrainClearsAndPreservesOrder(t *testing.T) {
	p := NewPool()
	for i := 0; i < 5; i++ {
		p.Add(testRecord(i))
	}
	if p.Len() != 5 {
		t.Fatalf("Len = %d, want 5", p.Len())
	}

	batch := p.Drain()
	if len(batch) != 5 {
		t.Fatalf("Drain returned %d records, want 5", len(batch))
	}
	for i, rec := range batch {
		if rec.ID != fmt.Sprintf("rec-%d", i) {
			t.Errorf("batch[%d].ID = %q, order not preserved", i, rec.ID)
		}
	}
	if p.Len() != 0 {
		t.Errorf("pool not empty after Drain: %d", p.Len())
	}
}

func TestPoolConcurrentAdd(t *testing.T) {
	p := NewPool()

	const goroutines = 8
	const perGoroutine = 25

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				p.Add(testRecord(g*perGoroutine + i))
			}
		}(g)
	}
	wg.Wait()

	if got := p.Len(); got != goroutines*perGoroutine {
		t.Errorf("Len = %d, want %d", got, goroutines*perGoroutine)
	}
}
