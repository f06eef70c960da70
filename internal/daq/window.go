package daq

import (
	"fmt"
	"sync"
)

// Window implements a thread-safe rolling buffer holding the most recent
// capacity samples in volts. Once full, every new sample evicts the oldest
// one. It is the input to spectral analysis.
type Window struct {
	capacity int

	mu   sync.Mutex
	buf  []float64
	head int // index of the oldest sample
	size int
}

// NewWindow creates a new rolling window holding up to capacity samples.
// Returns an error if capacity is not positive.
func NewWindow(capacity int) (*Window, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid window capacity: %d", capacity)
	}
	return &Window{
		capacity: capacity,
		buf:      make([]float64, capacity),
	}, nil
}

// Extend appends samples to the tail of the window, discarding the oldest
// samples from the head when capacity is exceeded.
func (w *Window) Extend(samples []float64) {
	if len(samples) == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	// Only the newest capacity samples of the batch can survive
	if len(samples) > w.capacity {
		samples = samples[len(samples)-w.capacity:]
	}

	for len(samples) > 0 {
		tail := (w.head + w.size) % w.capacity
		n := copy(w.buf[tail:min(tail+len(samples), w.capacity)], samples)
		samples = samples[n:]

		w.size += n
		if w.size > w.capacity {
			w.head = (w.head + w.size - w.capacity) % w.capacity
			w.size = w.capacity
		}
	}
}

// Snapshot returns the current contents in chronological order.
// The window is not modified.
func (w *Window) Snapshot() []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]float64, w.size)
	n := copy(out, w.buf[w.head:min(w.head+w.size, w.capacity)])
	copy(out[n:], w.buf[:w.size-n])
	return out
}

// IsFull returns true if the window holds capacity samples.
func (w *Window) IsFull() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.size >= w.capacity
}

// Len returns the current number of samples in the window.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Cap returns the window capacity.
func (w *Window) Cap() int {
	return w.capacity
}

// Clear removes all samples from the window.
func (w *Window) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.head = 0
	w.size = 0
}
