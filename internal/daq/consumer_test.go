package daq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// filledBuffer returns a buffer whose sample at index i holds the code i.
func filledBuffer(t *testing.T, total int) *CircularBuffer {
	t.Helper()

	buf, err := NewCircularBuffer(total)
	require.NoError(t, err)
	for i := range buf.Hardware() {
		buf.Hardware()[i] = RawSample(i)
	}
	return buf
}

func running(index int) ScanStatus {
	return ScanStatus{State: StateRunning, Count: -1, Index: index}
}

func TestConsumer_Contiguous(t *testing.T) {
	c := NewConsumer(filledBuffer(t, 10))

	batch, err := c.Consume(running(4))
	require.NoError(t, err)
	assert.Equal(t, []RawSample{0, 1, 2, 3}, batch)
	assert.Equal(t, 4, c.Cursor())

	batch, err = c.Consume(running(7))
	require.NoError(t, err)
	assert.Equal(t, []RawSample{4, 5, 6}, batch)
	assert.Equal(t, 7, c.Cursor())
	assert.EqualValues(t, 7, c.Consumed())
}

func TestConsumer_Wraparound(t *testing.T) {
	for total := 1; total <= 12; total++ {
		for pre := 0; pre < total; pre++ {
			for curr := 0; curr < pre; curr++ {
				c := NewConsumer(filledBuffer(t, total))
				c.preIndex = pre

				batch, err := c.Consume(running(curr))
				require.NoError(t, err)
				require.Len(t, batch, (total-pre)+curr)

				var want []RawSample
				for i := pre; i < total; i++ {
					want = append(want, RawSample(i))
				}
				for i := 0; i < curr; i++ {
					want = append(want, RawSample(i))
				}
				require.Equal(t, want, batch, "total=%d pre=%d curr=%d", total, pre, curr)
				require.Equal(t, curr, c.Cursor())
			}
		}
	}
}

func TestConsumer_NoAdvance(t *testing.T) {
	c := NewConsumer(filledBuffer(t, 8))
	_, err := c.Consume(running(5))
	require.NoError(t, err)

	batch, err := c.Consume(running(5))
	require.NoError(t, err)
	assert.Empty(t, batch)
	assert.Equal(t, 5, c.Cursor())
	assert.EqualValues(t, 5, c.Consumed())
}

func TestConsumer_NotStarted(t *testing.T) {
	c := NewConsumer(filledBuffer(t, 8))

	batch, err := c.Consume(running(-1))
	require.NoError(t, err)
	assert.Empty(t, batch)
	assert.Equal(t, 0, c.Cursor())
}

func TestConsumer_Faults(t *testing.T) {
	testCases := []struct {
		name   string
		status ScanStatus
		want   error
	}{
		{"idle", ScanStatus{State: StateIdle, Count: -1, Index: 3}, ErrAcquisitionFault},
		{"error", ScanStatus{State: StateError, Count: -1, Index: 3}, ErrAcquisitionFault},
		{"index out of range", running(8), ErrAcquisitionFault},
		{"overrun", ScanStatus{State: StateRunning, Count: 17, Index: 1}, ErrBufferOverrun},
		{"full cycle with unchanged index", ScanStatus{State: StateRunning, Count: 9, Index: 0}, ErrBufferOverrun},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewConsumer(filledBuffer(t, 8))
			_, err := c.Consume(tc.status)
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, 0, c.Cursor(), "cursor must not move on fault")
		})
	}
}

func TestConsumer_CountWithinBuffer(t *testing.T) {
	c := NewConsumer(filledBuffer(t, 8))

	// A whole buffer pending is still readable
	batch, err := c.Consume(ScanStatus{State: StateRunning, Count: 6, Index: 6})
	require.NoError(t, err)
	assert.Len(t, batch, 6)

	// Exactly one cycle behind: the unchanged index hides a full buffer of new data
	batch, err = c.Consume(ScanStatus{State: StateRunning, Count: 14, Index: 6})
	require.NoError(t, err)
	assert.Equal(t, []RawSample{6, 7, 0, 1, 2, 3, 4, 5}, batch)
	assert.EqualValues(t, 14, c.Consumed())

	_, err = c.Consume(ScanStatus{State: StateRunning, Count: 23, Index: 7})
	require.ErrorIs(t, err, ErrBufferOverrun)
}
