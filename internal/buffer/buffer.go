// Package buffer holds activity records between scheduler cycles.
package buffer

import (
	"sync"

	"github.com/codetribute/codetribute/internal/models"
)

// Buffer is an ordered, append-only collection of activity records that is
// emptied in one step by Drain.
type Buffer struct {
	mu      sync.Mutex
	records []models.ActivityRecord
}

// New creates an empty buffer.
func New() *Buffer {
	return &Buffer{}
}

// Append adds a record to the end of the buffer.
func (b *Buffer) Append(record models.ActivityRecord) {
	b.mu.Lock()
	b.records = append(b.records, record)
	b.mu.Unlock()
}

// Drain returns every buffered record in insertion order and leaves the
// buffer empty. The swap happens under a single lock acquisition, so a record
// appended concurrently lands either in the returned batch or in the next one.
// Returns nil when the buffer is empty.
func (b *Buffer) Drain() []models.ActivityRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.records) == 0 {
		return nil
	}

	drained := b.records
	b.records = nil
	return drained
}

// Len returns the number of buffered records.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}
