package daq

import (
	"context"
	"fmt"
)

// RawSample is an unscaled ADC code as written by the hardware.
type RawSample uint16

// State is the hardware scan state reported by a device.
type State int32

const (
	StateIdle    State = iota // scan not started or already stopped
	StateRunning              // scan is transferring samples
	StateError                // hardware reported an error
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ScanStatus is a snapshot of the hardware transfer position.
type ScanStatus struct {
	State State // Current scan state
	Count int64 // Total samples transferred since scan start, negative if unknown
	Index int   // Current write index into the circular buffer, -1 before the first transfer
}

// ScanConfig describes a hardware scan request.
type ScanConfig struct {
	LowChannel  int // First channel of the scan
	HighChannel int // Last channel of the scan, equal to LowChannel for single-channel scans
	Rate        int // Samples per second per channel
}

func (c *ScanConfig) Validate() error {
	if c.LowChannel < 0 {
		return fmt.Errorf("daq.ScanConfig: channel must not be negative: %d", c.LowChannel)
	}
	if c.HighChannel != c.LowChannel {
		return fmt.Errorf("daq.ScanConfig: only single-channel scans are supported: %d..%d", c.LowChannel, c.HighChannel)
	}
	if c.Rate <= 0 {
		return fmt.Errorf("daq.ScanConfig: rate must be positive: %d", c.Rate)
	}
	return nil
}

// Device is the hardware collaborator. The device owns the circular buffer
// and writes into it from its own acquisition thread; callers only read.
type Device interface {
	AllocateBuffer(totalCount int) (*CircularBuffer, error)                   // Allocates the hardware-visible buffer
	FreeBuffer(buf *CircularBuffer) error                                     // Releases the buffer
	StartScan(ctx context.Context, scan ScanConfig, buf *CircularBuffer) error // Starts a continuous background scan
	Status() (ScanStatus, error)                                              // Current state and write position
	StopScan() error                                                          // Halts the background scan
	ID() string                                                               // Unique device identifier
}
