package serial

import (
	"fmt"
	"time"

	"github.com/roman-kulish/daqscope/internal/daq"
)

const (
	DefaultBaudRate            = 921_600
	DefaultReadTimeout         = 100 * time.Millisecond
	DefaultReadErrorsThreshold = 5
)

/*
Example: a microcontroller streaming 16-bit little-endian codes over USB CDC

	serialConfig := serial.Config{
	    Port:     "/dev/ttyACM0",
	    BaudRate: 2_000_000,
	}
*/

// Config configures a serial-attached acquisition front end
type Config struct {
	Port     string `yaml:"port" json:"port"`         // Port name, empty to use the first detected port
	BaudRate int    `yaml:"baudRate" json:"baudRate"` // Line speed (default: 921600)

	ReadTimeout         time.Duration `yaml:"readTimeout" json:"readTimeout"`                 // Blocking read timeout (default: 100ms)
	ReadErrorsThreshold int           `yaml:"readErrorsThreshold" json:"readErrorsThreshold"` // Consecutive read errors before the device reports an error (default: 5)
}

func (c *Config) Validate() error {
	if c.BaudRate < 0 {
		return daq.NewConfigError(fmt.Sprintf("serial.Config: baud rate must not be negative: %d", c.BaudRate))
	}
	if c.ReadTimeout < 0 {
		return daq.NewConfigError(fmt.Sprintf("serial.Config: read timeout must not be negative: %s", c.ReadTimeout))
	}
	if c.ReadErrorsThreshold < 0 {
		return daq.NewConfigError(fmt.Sprintf("serial.Config: read errors threshold must not be negative: %d", c.ReadErrorsThreshold))
	}
	return nil
}

func (c *Config) baudRate() int {
	if c.BaudRate == 0 {
		return DefaultBaudRate
	}
	return c.BaudRate
}

func (c *Config) readTimeout() time.Duration {
	if c.ReadTimeout == 0 {
		return DefaultReadTimeout
	}
	return c.ReadTimeout
}

func (c *Config) readErrorsThreshold() int {
	if c.ReadErrorsThreshold == 0 {
		return DefaultReadErrorsThreshold
	}
	return c.ReadErrorsThreshold
}
