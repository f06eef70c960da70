package sim

import (
	"fmt"
	"time"

	"github.com/roman-kulish/daqscope/internal/daq"
)

const (
	DefaultChunkInterval = 10 * time.Millisecond

	MinChunkInterval = time.Millisecond
	MaxChunkInterval = time.Second
)

/*
Example: 50 Hz mains hum with a little noise on a 16-bit converter

	simConfig := sim.Config{
	    Frequency: 50,
	    Amplitude: 0.5,
	    Noise:     0.01,
	}
*/

// Config is the waveform generator configuration
type Config struct {
	Frequency float64 `yaml:"frequency" json:"frequency"` // Test tone frequency in Hz
	Amplitude float64 `yaml:"amplitude" json:"amplitude"` // Tone amplitude as a fraction of full scale, 0..1
	Offset    float64 `yaml:"offset" json:"offset"`       // DC offset as a fraction of full scale, -1..1
	Noise     float64 `yaml:"noise" json:"noise"`         // Uniform noise amplitude as a fraction of full scale, 0..1
	BitDepth  int     `yaml:"bitDepth" json:"bitDepth"`   // Converter resolution (default: 16)
	Seed      int64   `yaml:"seed" json:"seed"`           // Noise seed, 0 picks a time-based seed

	// Transfer cadence of the simulated driver thread (default: 10ms)
	ChunkInterval time.Duration `yaml:"chunkInterval" json:"chunkInterval"`

	// Fault drill: report a hardware error once this many samples were transferred (default: off/0)
	FailAfter int64 `yaml:"failAfter" json:"failAfter"`
}

func (c *Config) Validate() error {
	if c.Frequency < 0 {
		return daq.NewConfigError(fmt.Sprintf("sim.Config: frequency must not be negative: %f", c.Frequency))
	}
	if c.Amplitude < 0 || c.Amplitude > 1 {
		return daq.NewConfigError(fmt.Sprintf("sim.Config: amplitude must be between 0 and 1: %0.2f given", c.Amplitude))
	}
	if c.Offset < -1 || c.Offset > 1 {
		return daq.NewConfigError(fmt.Sprintf("sim.Config: offset must be between -1 and 1: %0.2f given", c.Offset))
	}
	if c.Noise < 0 || c.Noise > 1 {
		return daq.NewConfigError(fmt.Sprintf("sim.Config: noise must be between 0 and 1: %0.2f given", c.Noise))
	}
	if c.BitDepth != 0 && (c.BitDepth < 1 || c.BitDepth > 16) {
		return daq.NewConfigError(fmt.Sprintf("sim.Config: bit depth must be between 1 and 16: %d given", c.BitDepth))
	}
	if c.ChunkInterval != 0 && (c.ChunkInterval < MinChunkInterval || c.ChunkInterval > MaxChunkInterval) {
		return daq.NewConfigError(fmt.Sprintf("sim.Config: chunk interval must be between %s and %s: %s given",
			MinChunkInterval, MaxChunkInterval, c.ChunkInterval))
	}
	if c.FailAfter < 0 {
		return daq.NewConfigError(fmt.Sprintf("sim.Config: fail after must not be negative: %d", c.FailAfter))
	}
	return nil
}

func (c *Config) bitDepth() int {
	if c.BitDepth == 0 {
		return daq.DefaultBitDepth
	}
	return c.BitDepth
}

func (c *Config) chunkInterval() time.Duration {
	if c.ChunkInterval == 0 {
		return DefaultChunkInterval
	}
	return c.ChunkInterval
}
