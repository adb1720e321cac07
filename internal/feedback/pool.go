package feedback

import "sync"

// Pool accumulates records since the last adaptation cycle attempt. A cycle
// drains it atomically, so records submitted while a cycle is running land
// in the next cycle's batch.
type Pool struct {
	mu      sync.Mutex
	records []Record
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{}
}

// Add appends a record to the pool.
func (p *Pool) Add(rec Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, rec)
}

// Len returns the number of pooled records.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

// Drain returns the pooled records in submission order and clears the pool
// in one step.
func (p *Pool) Drain() []Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.records
	p.records = nil
	return out
}
