package daq

import (
	"fmt"
)

// Consumer drains newly written samples from a hardware-owned circular
// buffer. It owns the consumer cursor (pre_index) for the whole session.
//
// The hardware cannot be made to wait for the consumer, so samples lost to
// an overrun are detected and reported, never prevented.
type Consumer struct {
	buf *CircularBuffer

	preIndex int   // last fully consumed index, exclusive
	consumed int64 // total samples handed out since the session started
}

// NewConsumer creates a consumer positioned at index 0 of buf.
func NewConsumer(buf *CircularBuffer) *Consumer {
	return &Consumer{buf: buf}
}

// Cursor returns the last consumed index (exclusive).
func (c *Consumer) Cursor() int {
	return c.preIndex
}

// Consumed returns the total number of samples consumed so far.
func (c *Consumer) Consumed() int64 {
	return c.consumed
}

// Consume returns the samples written since the previous call, in
// acquisition order, and advances the cursor to status.Index.
//
// An unchanged write index yields an empty batch. A write index behind the
// cursor means the hardware wrapped, and the batch is [pre, total) followed
// by [0, index).
func (c *Consumer) Consume(status ScanStatus) ([]RawSample, error) {
	if status.State != StateRunning {
		return nil, fmt.Errorf("%w: hardware status is %s", ErrAcquisitionFault, status.State)
	}
	if status.Index < 0 {
		return nil, nil // no transfer yet
	}

	total := c.buf.Len()
	if status.Index >= total {
		return nil, fmt.Errorf("%w: write index %d out of range [0, %d)", ErrAcquisitionFault, status.Index, total)
	}

	var fullCycle bool
	if status.Count >= 0 {
		pending := status.Count - c.consumed
		if pending > int64(total) {
			return nil, fmt.Errorf("%w: %d samples pending exceed buffer of %d, %d overwritten before read",
				ErrBufferOverrun, pending, total, pending-int64(total))
		}
		fullCycle = pending == int64(total)
	}

	var batch []RawSample
	switch curr := status.Index; {
	case curr == c.preIndex && !fullCycle:
		return nil, nil

	case curr > c.preIndex:
		batch = c.buf.Slice(c.preIndex, curr)

	default: // wrapped, or exactly one full cycle behind
		batch = make([]RawSample, 0, total-c.preIndex+curr)
		batch = append(batch, c.buf.Slice(c.preIndex, total)...)
		batch = append(batch, c.buf.Slice(0, curr)...)
	}

	c.preIndex = status.Index
	c.consumed += int64(len(batch))
	return batch, nil
}
