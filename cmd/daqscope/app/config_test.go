package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/daqscope/internal/daq"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
settings:
  logLevel: debug
acquisition:
  sampleRate: 2000
  tickInterval: 100ms
  bufferSeconds: 2
  bitDepth: 12
  fullScale: 5
device:
  type: serial
  name: front
  serial:
    port: /dev/ttyACM0
    baudRate: 115200
    readTimeout: 50ms
storage:
  dataDirectory: /var/lib/daqscope
render:
  outputFile: scope.png
  interval: 1s
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", config.Settings.LogLevel)
	assert.Equal(t, 2000, config.Acquisition.SampleRate)
	assert.Equal(t, TimeDuration(100*time.Millisecond), config.Acquisition.TickInterval)
	assert.Equal(t, DeviceSerial, config.Device.Type)
	assert.Equal(t, "front", config.Device.ID())
	require.NotNil(t, config.Device.Serial)
	assert.Equal(t, "/dev/ttyACM0", config.Device.Serial.Port)
	assert.Equal(t, 115200, config.Device.Serial.BaudRate)
	assert.Equal(t, 50*time.Millisecond, config.Device.Serial.ReadTimeout)
	assert.Equal(t, TimeDuration(time.Second), config.Render.Interval)
	assert.Equal(t, "/var/lib/daqscope/daqscope.sqlite", config.Storage.CatalogPath())

	sessionConfig, err := config.SessionConfig()
	require.NoError(t, err)
	assert.Equal(t, 4000, sessionConfig.BufferSize)
	assert.Equal(t, 100*time.Millisecond, sessionConfig.TickInterval)
	assert.Equal(t, "/var/lib/daqscope", sessionConfig.Directory)

	// 12-bit mid-scale is zero volts, the top code is just below full scale
	volts := sessionConfig.Converter.Convert([]daq.RawSample{2048, 4095})
	assert.InDelta(t, 0, volts[0], 1e-12)
	assert.InDelta(t, 5*(4095.0/2048-1), volts[1], 1e-12)
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
acquisition:
  sampleRate: 1000
device:
  type: simulator
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	require.NotNil(t, config.Device.Simulator, "missing device section gets the defaults")
	assert.Equal(t, "simulator", config.Device.ID())
	assert.Equal(t, filepath.Join("data", "daqscope.sqlite"), config.Storage.CatalogPath())

	sessionConfig, err := config.SessionConfig()
	require.NoError(t, err)
	assert.Equal(t, 1000, sessionConfig.BufferSize)
	assert.Equal(t, "data", sessionConfig.Directory)
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := writeConfig(t, `
device:
  type: simulator
`)

	_, err := LoadConfig(path)
	require.Error(t, err, "sample rate is required")

	config, err := LoadConfig(path, func(c *Config) {
		c.Acquisition.SampleRate = 500
	})
	require.NoError(t, err)
	assert.Equal(t, 500, config.Acquisition.SampleRate)
}

func TestLoadConfig_Errors(t *testing.T) {
	testCases := []struct {
		name   string
		config string
	}{
		{
			name:   "malformed",
			config: "acquisition: [",
		},
		{
			name:   "bad duration",
			config: "acquisition:\n  sampleRate: 1000\n  tickInterval: soon\ndevice:\n  type: simulator\n",
		},
		{
			name:   "bad log level",
			config: "settings:\n  logLevel: loud\nacquisition:\n  sampleRate: 1000\ndevice:\n  type: simulator\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.config))
			require.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Acquisition: AcquisitionConfig{SampleRate: 1000},
			Device:      DeviceConfig{Type: DeviceSimulator},
		}
	}

	testCases := []struct {
		name   string
		modify func(c *Config)
	}{
		{"no sample rate", func(c *Config) { c.Acquisition.SampleRate = 0 }},
		{"negative tick", func(c *Config) { c.Acquisition.TickInterval = TimeDuration(-time.Second) }},
		{"negative buffer", func(c *Config) { c.Acquisition.BufferSeconds = -1 }},
		{"negative channel", func(c *Config) { c.Acquisition.Channel = -1 }},
		{"no device", func(c *Config) { c.Device.Type = "" }},
		{"unknown device", func(c *Config) { c.Device.Type = "rtlsdr" }},
		{"bad render size", func(c *Config) { c.Render.Width = -1 }},
		{"bad time zone", func(c *Config) { c.Render.TimeZone = "Mars/Olympus" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := valid()
			tc.modify(&config)

			var cfgErr *daq.ConfigError
			require.ErrorAs(t, config.Validate(), &cfgErr)
		})
	}

	config := valid()
	require.NoError(t, config.Validate())

	t.Run("bad bit depth", func(t *testing.T) {
		config := valid()
		config.Acquisition.BitDepth = 24
		require.Error(t, config.Validate())
	})

	t.Run("overrun risk", func(t *testing.T) {
		config := valid()
		config.Acquisition.BufferSeconds = 0.2
		config.Acquisition.TickInterval = TimeDuration(200 * time.Millisecond)
		require.ErrorIs(t, config.Validate(), daq.ErrBufferOverrunRisk)
	})
}
