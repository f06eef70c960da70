package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/daqscope/internal/binlog"
	"github.com/roman-kulish/daqscope/internal/daq"
	"github.com/roman-kulish/daqscope/internal/daq/sim"
	"github.com/roman-kulish/daqscope/internal/spectrum"
	"github.com/roman-kulish/daqscope/internal/storage"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRun_Simulator(t *testing.T) {
	dir := t.TempDir()

	config := Config{
		Acquisition: AcquisitionConfig{
			SampleRate:   1000,
			TickInterval: TimeDuration(50 * time.Millisecond),
		},
		Device: DeviceConfig{
			Type:      DeviceSimulator,
			Name:      "sim0",
			Simulator: &sim.Config{Frequency: 50, Amplitude: 0.5, Seed: 1},
		},
		Storage: StorageConfig{DataDirectory: filepath.Join(dir, "logs")},
	}
	require.NoError(t, config.Validate())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, Run(ctx, &config, discard))

	store := storage.NewSqliteStore(config.Storage.CatalogPath())
	defer store.Close()

	sessions, err := store.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	session := sessions[0]
	assert.Equal(t, "sim0", session.DeviceID)
	assert.Equal(t, 1000, session.SampleRate)
	assert.Equal(t, "stopped", session.State)
	assert.Positive(t, session.Samples)
	require.NotNil(t, session.Config)
	assert.Contains(t, *session.Config, `"sampleRate":1000`)

	header, samples, err := binlog.ReadAll(session.LogPath)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, header.SampleRate)
	// the reader stops at the last whole chunk of rate/10 samples
	assert.Len(t, samples, int(session.Samples)/100*100)

	var out bytes.Buffer
	require.NoError(t, ListSessions(context.Background(), config.Storage.CatalogPath(), &out))
	assert.Contains(t, out.String(), "sim0")
	assert.Contains(t, out.String(), "stopped")
}

func TestRun_Fault(t *testing.T) {
	dir := t.TempDir()

	config := Config{
		Acquisition: AcquisitionConfig{
			SampleRate:   1000,
			TickInterval: TimeDuration(20 * time.Millisecond),
		},
		Device: DeviceConfig{
			Type:      DeviceSimulator,
			Simulator: &sim.Config{FailAfter: 100},
		},
		Storage: StorageConfig{DataDirectory: dir},
	}
	require.NoError(t, config.Validate())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := Run(ctx, &config, discard)
	require.ErrorIs(t, err, daq.ErrAcquisitionFault)

	store := storage.NewSqliteStore(config.Storage.CatalogPath())
	defer store.Close()

	sessions, err := store.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "faulted", sessions[0].State)
	require.NotNil(t, sessions[0].Error)
}

func TestListSessions_MissingCatalog(t *testing.T) {
	err := ListSessions(context.Background(), filepath.Join(t.TempDir(), "none.sqlite"), io.Discard)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestPrintSessions(t *testing.T) {
	start := time.Now().Add(-time.Hour)
	end := start.Add(90 * time.Second)
	fault := "buffer overrun"

	var out bytes.Buffer
	require.NoError(t, printSessions(&out, []*storage.Session{
		{ID: 1, StartTime: start, EndTime: &end, DeviceID: "sim0", SampleRate: 48000, Samples: 4320000, State: "stopped", LogPath: "a.bin"},
		{ID: 2, StartTime: start, DeviceID: "ttyACM0", SampleRate: 1000, State: "faulted", Error: &fault, LogPath: "b.bin"},
	}))

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[1]), "1m30s")
	assert.Contains(t, string(lines[1]), "4,320,000")
	assert.Contains(t, string(lines[1]), "48 kS/s")
	assert.Contains(t, string(lines[2]), "faulted (buffer overrun)")
	assert.Contains(t, string(lines[2]), "-")
}

func seedAnalyses(t *testing.T, start time.Time) (path string, sessionID int64) {
	t.Helper()

	ctx := context.Background()
	path = filepath.Join(t.TempDir(), "daqscope.sqlite")

	store := storage.NewSqliteStore(path)
	defer store.Close()

	sessionID, err := store.CreateSession(ctx, "sim0", 1000, "a.bin", nil)
	require.NoError(t, err)

	peak, mag := 50.1, 0.5
	for i := range 6 {
		summary := spectrum.Summary{
			Timestamp: start.Add(time.Duration(i) * time.Second),
			Min:       -0.5,
			Max:       0.5,
			RMS:       0.3536,
		}
		if i%2 == 0 {
			summary.PeakFrequency, summary.PeakMagnitude = &peak, &mag
		}
		require.NoError(t, store.StoreAnalysis(ctx, sessionID, summary))
	}
	return path, sessionID
}

func TestListAnalyses(t *testing.T) {
	start := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	path, id := seedAnalyses(t, start)

	testCases := []struct {
		name     string
		from, to time.Time
		rows     int
	}{
		{name: "all", rows: 6},
		{name: "from", from: start.Add(4 * time.Second), rows: 2},
		{name: "to", to: start.Add(time.Second), rows: 2},
		{name: "range", from: start.Add(time.Second), to: start.Add(3 * time.Second), rows: 3},
		{name: "empty", from: start.Add(time.Hour), rows: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, ListAnalyses(context.Background(), path, id, tc.from, tc.to, &out))

			lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
			require.Len(t, lines, tc.rows+2)
			assert.Contains(t, string(lines[0]), "on sim0")
			assert.Contains(t, string(lines[1]), "PEAK")
		})
	}
}

func TestListAnalyses_Errors(t *testing.T) {
	start := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	path, id := seedAnalyses(t, start)

	err := ListAnalyses(context.Background(), path, id+1, time.Time{}, time.Time{}, io.Discard)
	require.ErrorIs(t, err, storage.ErrSessionNotFound)

	err = ListAnalyses(context.Background(), path, id, start.Add(time.Second), start, io.Discard)
	require.Error(t, err)

	err = ListAnalyses(context.Background(), filepath.Join(t.TempDir(), "none.sqlite"), id, time.Time{}, time.Time{}, io.Discard)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestPrintAnalyses(t *testing.T) {
	at := time.Date(2026, 10, 19, 10, 0, 0, 250_000_000, time.Local)
	peak, mag := 1250.0, 0.25

	var out bytes.Buffer
	require.NoError(t, printAnalyses(&out, &storage.Session{ID: 7, DeviceID: "ttyACM0"}, []spectrum.Summary{
		{Timestamp: at, Min: -0.25, Max: 0.75, Mean: 0.125, RMS: 0.5, PeakFrequency: &peak, PeakMagnitude: &mag},
		{Timestamp: at.Add(time.Second)},
	}))

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 4)
	assert.Equal(t, "session 7 on ttyACM0, 2 analyses", string(lines[0]))
	assert.Contains(t, string(lines[2]), "2026-10-19 10:00:00.250")
	assert.Contains(t, string(lines[2]), "0.125")
	assert.Contains(t, string(lines[2]), "1.25 kHz")
	assert.Contains(t, string(lines[3]), "10:00:01.250")
	assert.True(t, bytes.HasSuffix(lines[3], []byte("-")))
}

func TestParseTime(t *testing.T) {
	got, err := ParseTime("")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = ParseTime("2026-10-19T10:00:00Z")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)))

	got, err = ParseTime("2026-10-19 10:00:00")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 10, 19, 10, 0, 0, 0, time.Local)))

	_, err = ParseTime("yesterday")
	require.Error(t, err)
}
