package daq

import "fmt"

// CircularBuffer is a fixed-capacity array of raw samples written by the
// hardware and wrapped to index 0 after reaching capacity. The application
// never writes into it.
type CircularBuffer struct {
	data []RawSample
}

// NewCircularBuffer allocates a buffer of totalCount samples.
func NewCircularBuffer(totalCount int) (*CircularBuffer, error) {
	if totalCount <= 0 {
		return nil, fmt.Errorf("invalid buffer size: %d", totalCount)
	}
	return &CircularBuffer{data: make([]RawSample, totalCount)}, nil
}

// Len returns the buffer capacity (total_count).
func (b *CircularBuffer) Len() int {
	return len(b.data)
}

// Slice returns a copy of the samples in [from, to). The range must not wrap.
func (b *CircularBuffer) Slice(from, to int) []RawSample {
	out := make([]RawSample, to-from)
	copy(out, b.data[from:to])
	return out
}

// Hardware returns the backing array for the device driver to write into.
// Only device implementations may call it.
func (b *CircularBuffer) Hardware() []RawSample {
	return b.data
}

// WriteIndex maps a monotonic transfer count to the hardware write index,
// -1 when nothing was transferred yet.
func (b *CircularBuffer) WriteIndex(count int64) int {
	if count <= 0 {
		return -1
	}
	return int(count % int64(len(b.data)))
}
