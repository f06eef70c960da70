package acquisition

import (
	"fmt"
	"time"
)

// FaultError is the terminal error of a faulted session. It records where
// the data stream ended so that the loss boundary can be found in the log.
type FaultError struct {
	Err       error     // Cause, wraps one of the daq or binlog sentinels
	Time      time.Time // When the fault was detected
	LastIndex int       // Consumer cursor at the time of the fault
	Consumed  int64     // Samples consumed from the buffer
	Logged    int64     // Samples durably appended to the log
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("%s at %s: last index %d, consumed %d, logged %d",
		e.Err, e.Time.Format(time.RFC3339Nano), e.LastIndex, e.Consumed, e.Logged)
}

func (e *FaultError) Unwrap() error {
	return e.Err
}
