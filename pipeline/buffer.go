package pipeline

import (
	"github.com/google/uuid"

	"github.com/rogpeppe/accellog/accel"
)

// DefaultBatchSize holds the number of records in a batch
// when no size is specified.
const DefaultBatchSize = 15

// Buffer accumulates records until a whole batch is available.
// It is not safe to call its methods concurrently.
type Buffer struct {
	size    int
	records []accel.Record
	newID   func() string
}

// NewBuffer returns a Buffer that produces batches of the
// given size, or DefaultBatchSize if size is not positive.
func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Buffer{
		size:  size,
		newID: uuid.NewString,
	}
}

// Add appends r to the buffer. If that fills a batch, the first
// batch-size records are removed from the front of the buffer and
// returned as a new batch, and Add reports true.
func (b *Buffer) Add(r accel.Record) (accel.Batch, bool) {
	b.records = append(b.records, r)
	if len(b.records) < b.size {
		return accel.Batch{}, false
	}
	batch := accel.Batch{
		ID:      b.newID(),
		Records: append([]accel.Record(nil), b.records[:b.size]...),
	}
	// Shift any remaining records to the front.
	n := copy(b.records, b.records[b.size:])
	b.records = b.records[:n]
	return batch, true
}

// Len returns the number of records waiting in the buffer.
func (b *Buffer) Len() int {
	return len(b.records)
}

// Size returns the batch size.
func (b *Buffer) Size() int {
	return b.size
}
