package log

import (
	"fmt"
	"io"
	"sync"
)

// DefaultBufferCapacity is used when a non-positive capacity is requested.
const DefaultBufferCapacity = 100

// CircularBuffer is an [io.Writer] that retains the most recent log records.
//
// It is used while the status line owns the terminal: records written during
// the session are held in memory and flushed to stderr once the status line
// has been cleared. When full, the oldest record is overwritten and counted
// as dropped.
type CircularBuffer struct {
	records  [][]byte
	start    int
	count    int
	dropped  int
	capacity int
	mu       sync.Mutex
}

// NewCircularBuffer creates a [CircularBuffer] holding at most capacity records.
func NewCircularBuffer(capacity int) *CircularBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}

	return &CircularBuffer{
		records:  make([][]byte, capacity),
		capacity: capacity,
	}
}

// Write stores a copy of p as a single record.
func (cb *CircularBuffer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	record := make([]byte, len(p))
	copy(record, p)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.count < cb.capacity {
		cb.records[(cb.start+cb.count)%cb.capacity] = record
		cb.count++

		return len(p), nil
	}

	// Overwrite the oldest record.
	cb.records[cb.start] = record
	cb.start = (cb.start + 1) % cb.capacity
	cb.dropped++

	return len(p), nil
}

// Records returns copies of the retained records, oldest first.
func (cb *CircularBuffer) Records() [][]byte {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	out := make([][]byte, 0, cb.count)
	for i := range cb.count {
		r := cb.records[(cb.start+i)%cb.capacity]
		out = append(out, append([]byte(nil), r...))
	}

	return out
}

// Len returns the number of retained records.
func (cb *CircularBuffer) Len() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.count
}

// Dropped returns how many records were overwritten because the buffer was full.
func (cb *CircularBuffer) Dropped() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.dropped
}

// Capacity returns the maximum number of retained records.
func (cb *CircularBuffer) Capacity() int {
	return cb.capacity
}

// WriteTo writes the retained records to w, oldest first. It implements
// [io.WriterTo].
func (cb *CircularBuffer) WriteTo(w io.Writer) (int64, error) {
	var total int64

	for _, r := range cb.Records() {
		n, err := w.Write(r)
		total += int64(n)

		if err != nil {
			return total, fmt.Errorf("write record: %w", err)
		}
	}

	return total, nil
}
