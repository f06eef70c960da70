package daq

import "errors"

var (
	// ErrDeviceUnavailable is returned when no device could be detected or opened
	ErrDeviceUnavailable = errors.New("device unavailable")

	// ErrAcquisitionFault is returned when the hardware reports a non-running or error status mid-session
	ErrAcquisitionFault = errors.New("acquisition fault")

	// ErrBufferOverrunRisk is returned when the tick cadence is too slow for the buffer depth
	ErrBufferOverrunRisk = errors.New("buffer overrun risk")

	// ErrBufferOverrun is returned when the hardware overwrote samples before they were read
	ErrBufferOverrun = errors.New("buffer overrun")
)

// ConfigError is a custom error type for device configuration errors
type ConfigError struct {
	msg string
}

func NewConfigError(msg string) *ConfigError {
	return &ConfigError{msg}
}

func (e *ConfigError) Error() string {
	return e.msg
}
