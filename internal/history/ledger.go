// Package history keeps the bounded, append-only record of past trigger
// attempts.
package history

import (
	"sync"
	"time"
)

// TriggerType tells manual test runs apart from automatic fires.
type TriggerType string

const (
	TriggerAuto   TriggerType = "auto"
	TriggerManual TriggerType = "manual"
)

// Record is one trigger attempt. It is immutable once appended.
type Record struct {
	At         time.Time   `json:"at"`
	Success    bool        `json:"success"`
	Trigger    TriggerType `json:"trigger"`
	Prompt     string      `json:"prompt,omitempty"`
	Message    string      `json:"message,omitempty"`
	DurationMS int64       `json:"duration_ms,omitempty"`
}

// DefaultCap bounds the ledger when no cap is configured.
const DefaultCap = 50

// Ledger is a bounded most-recent-first list of trigger records.
//
// Append inserts at the head and evicts past the cap; records are never
// mutated after append. Thread-safe.
type Ledger struct {
	mu      sync.Mutex
	cap     int
	records []Record
}

func New(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Ledger{cap: capacity}
}

// Append inserts r at the head and drops the oldest records past the cap.
func (l *Ledger) Append(r Record) {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append([]Record{r}, l.records...)
	if len(l.records) > l.cap {
		l.records = l.records[:l.cap]
	}
}

// Replace swaps the whole ledger content (used when restoring from storage).
// The slice is truncated to the cap; input order is preserved and assumed
// most-recent-first.
func (l *Ledger) Replace(records []Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := append([]Record(nil), records...)
	if len(cp) > l.cap {
		cp = cp[:l.cap]
	}
	l.records = cp
}

// Clear empties the ledger.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
}

// List returns a most-recent-first copy.
func (l *Ledger) List() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Record(nil), l.records...)
}

// Len reports the current record count.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Cap reports the retention bound.
func (l *Ledger) Cap() int { return l.cap }
