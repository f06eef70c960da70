package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/daqscope/internal/acquisition"
	"github.com/roman-kulish/daqscope/internal/daq"
	"github.com/roman-kulish/daqscope/internal/daq/serial"
	"github.com/roman-kulish/daqscope/internal/daq/sim"
)

const (
	DeviceSimulator DeviceType = sim.Device
	DeviceSerial    DeviceType = serial.Device
)

const (
	defaultDataDirectory = "data"
	defaultCatalog       = "daqscope.sqlite"
	defaultBufferSeconds = 1.0
)

type DeviceType string

// Config represents the main application configuration
type Config struct {
	Settings    Settings          `yaml:"settings" json:"settings"`
	Acquisition AcquisitionConfig `yaml:"acquisition" json:"acquisition"`
	Device      DeviceConfig      `yaml:"device" json:"device"`
	Storage     StorageConfig     `yaml:"storage" json:"storage"`
	Render      RenderConfig      `yaml:"render" json:"render"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel" json:"logLevel"`
}

// AcquisitionConfig represents the session settings
type AcquisitionConfig struct {
	SampleRate    int          `yaml:"sampleRate" json:"sampleRate"`       // Samples per second
	TickInterval  TimeDuration `yaml:"tickInterval" json:"tickInterval"`   // Consumer cadence (default: 200ms)
	BufferSeconds float64      `yaml:"bufferSeconds" json:"bufferSeconds"` // Circular buffer length in seconds (default: 1)
	TransformSize int          `yaml:"transformSize" json:"transformSize"` // FFT length (default: the sample rate)
	Channel       int          `yaml:"channel" json:"channel"`             // Analog input channel
	BitDepth      int          `yaml:"bitDepth" json:"bitDepth"`           // Converter resolution (default: 16)
	FullScale     float64      `yaml:"fullScale" json:"fullScale"`         // Full-scale input voltage (default: 1)
}

// DeviceConfig represents the acquisition device
type DeviceConfig struct {
	Type      DeviceType     `yaml:"type" json:"type"`
	Name      string         `yaml:"name" json:"name"`
	Simulator *sim.Config    `yaml:"simulator,omitempty" json:"simulator,omitempty"`
	Serial    *serial.Config `yaml:"serial,omitempty" json:"serial,omitempty"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory" json:"dataDirectory"` // Binary logs directory (default: ./data)
	Catalog       string `yaml:"catalog" json:"catalog"`             // Session catalog file, relative to the data directory
}

// RenderConfig represents the live plot settings. The plot is disabled
// when no output file is set.
type RenderConfig struct {
	OutputFile string       `yaml:"outputFile" json:"outputFile"`
	Interval   TimeDuration `yaml:"interval" json:"interval"`
	Width      int          `yaml:"width" json:"width"`
	Height     int          `yaml:"height" json:"height"`
	TimeZone   string       `yaml:"timeZone" json:"timeZone"`
}

// LoadConfig reads the YAML configuration file at path, applies the
// overrides and validates the result
func LoadConfig(path string, overrides ...func(c *Config)) (*Config, error) {
	p, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(p, &config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	for _, override := range overrides {
		override(&config)
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if c.Settings.LogLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(c.Settings.LogLevel)); err != nil {
			return fmt.Errorf("settings: invalid log level '%s'", c.Settings.LogLevel)
		}
	}

	if err := c.Acquisition.Validate(); err != nil {
		return err
	}
	if err := c.Device.Validate(); err != nil {
		return err
	}
	if err := c.Render.Validate(); err != nil {
		return err
	}

	// surface an overrun risk before any device is touched
	sessionConfig, err := c.SessionConfig()
	if err != nil {
		return err
	}
	return sessionConfig.Validate()
}

func (c *AcquisitionConfig) Validate() error {
	if c.SampleRate <= 0 {
		return daq.NewConfigError(fmt.Sprintf("acquisition: sample rate must be positive: %d", c.SampleRate))
	}
	if err := c.TickInterval.Validate(); err != nil {
		return err
	}
	if c.BufferSeconds < 0 {
		return daq.NewConfigError(fmt.Sprintf("acquisition: buffer length must not be negative: %0.2fs", c.BufferSeconds))
	}
	if c.Channel < 0 {
		return daq.NewConfigError(fmt.Sprintf("acquisition: channel must not be negative: %d", c.Channel))
	}
	return nil
}

func (c *AcquisitionConfig) converter() (daq.Converter, error) {
	bitDepth, fullScale := c.BitDepth, c.FullScale
	if bitDepth == 0 {
		bitDepth = daq.DefaultBitDepth
	}
	if fullScale == 0 {
		fullScale = daq.DefaultFullScale
	}
	return daq.NewConverter(bitDepth, fullScale)
}

func (c *AcquisitionConfig) bufferSize() int {
	seconds := c.BufferSeconds
	if seconds == 0 {
		seconds = defaultBufferSeconds
	}
	return max(1, int(seconds*float64(c.SampleRate)))
}

func (c *DeviceConfig) Validate() error {
	switch c.Type {
	case DeviceSimulator:
		if c.Simulator == nil {
			c.Simulator = &sim.Config{}
		}
		return c.Simulator.Validate()

	case DeviceSerial:
		if c.Serial == nil {
			c.Serial = &serial.Config{}
		}
		return c.Serial.Validate()

	case "":
		return daq.NewConfigError("device: type is required")

	default:
		return daq.NewConfigError(fmt.Sprintf("device: unknown type '%s'", c.Type))
	}
}

// ID returns the device name, or the device type when no name is set
func (c *DeviceConfig) ID() string {
	if c.Name != "" {
		return c.Name
	}
	return string(c.Type)
}

func (c *RenderConfig) Validate() error {
	if c.Width < 0 || c.Height < 0 {
		return daq.NewConfigError(fmt.Sprintf("render: image size must not be negative: %dx%d", c.Width, c.Height))
	}
	if c.Interval < 0 {
		return daq.NewConfigError(fmt.Sprintf("render: interval must not be negative: %s", c.Interval))
	}
	if c.TimeZone != "" {
		if _, err := time.LoadLocation(c.TimeZone); err != nil {
			return daq.NewConfigError(fmt.Sprintf("render: invalid time zone '%s'", c.TimeZone))
		}
	}
	return nil
}

// SessionConfig builds the acquisition session configuration
func (c *Config) SessionConfig() (acquisition.Config, error) {
	converter, err := c.Acquisition.converter()
	if err != nil {
		return acquisition.Config{}, daq.NewConfigError(fmt.Sprintf("acquisition: %s", err.Error()))
	}

	return acquisition.Config{
		SampleRate:    c.Acquisition.SampleRate,
		TickInterval:  time.Duration(c.Acquisition.TickInterval),
		BufferSize:    c.Acquisition.bufferSize(),
		TransformSize: c.Acquisition.TransformSize,
		Channel:       c.Acquisition.Channel,
		Directory:     c.Storage.dataDirectory(),
		Converter:     converter,
	}, nil
}

func (c *StorageConfig) dataDirectory() string {
	if c.DataDirectory == "" {
		return defaultDataDirectory
	}
	return c.DataDirectory
}

// CatalogPath returns the location of the session catalog database
func (c *StorageConfig) CatalogPath() string {
	catalog := c.Catalog
	if catalog == "" {
		catalog = defaultCatalog
	}
	if filepath.IsAbs(catalog) {
		return catalog
	}
	return filepath.Join(c.dataDirectory(), catalog)
}

type TimeDuration time.Duration

func (d TimeDuration) String() string {
	return time.Duration(d).String()
}

func (d *TimeDuration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(strings.TrimSpace(value.Value))
	if err != nil {
		return fmt.Errorf("app.TimeDuration: failed to parse: %s", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d TimeDuration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *TimeDuration) UnmarshalJSON(bytes []byte) error {
	var v string
	if err := json.Unmarshal(bytes, &v); err != nil {
		return err
	}

	duration, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("app.TimeDuration: failed to parse: %s", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d TimeDuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *TimeDuration) Validate() error {
	if *d < 0 {
		return daq.NewConfigError(fmt.Sprintf("app.TimeDuration: must not be negative: %s", *d))
	}
	return nil
}
