package binlog

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2023, 5, 19, 11, 37, 27, 250_000_000, time.Local)

func TestWriter_Layout(t *testing.T) {
	dir := t.TempDir()

	w, err := Create(dir, start, 1000)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2023-05-19_11_37_27.bin"), w.Path())

	require.NoError(t, w.Append([]float64{-1, 0.5}))
	require.NoError(t, w.Append(nil))
	require.NoError(t, w.Append([]float64{math.SmallestNonzeroFloat64}))
	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "close is idempotent")
	assert.EqualValues(t, 3, w.Count())

	raw, err := os.ReadFile(w.Path())
	require.NoError(t, err)
	require.Len(t, raw, HeaderSize+3*8)

	assert.Equal(t, float64(start.UnixNano())/1e9, math.Float64frombits(binary.LittleEndian.Uint64(raw[0:])))
	assert.EqualValues(t, 1000, int32(binary.LittleEndian.Uint32(raw[8:])))
	assert.Equal(t, -1.0, math.Float64frombits(binary.LittleEndian.Uint64(raw[12:])))
	assert.Equal(t, 0.5, math.Float64frombits(binary.LittleEndian.Uint64(raw[20:])))
	assert.Equal(t, math.SmallestNonzeroFloat64, math.Float64frombits(binary.LittleEndian.Uint64(raw[28:])))
}

func TestWriter_AppendAfterClose(t *testing.T) {
	w, err := Create(t.TempDir(), start, 10)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.ErrorIs(t, w.Append([]float64{1}), ErrWriteFailure)
}

func TestCreate_NeverOverwrites(t *testing.T) {
	dir := t.TempDir()

	w, err := Create(dir, start, 10)
	require.NoError(t, err)
	require.NoError(t, w.Append([]float64{1, 2, 3}))

	_, err = Create(dir, start, 10)
	require.ErrorIs(t, err, ErrWriteFailure)

	_, samples, err := ReadAll(w.Path())
	require.NoError(t, err)
	assert.Len(t, samples, 3, "existing log untouched")
}

func TestCreate_Failures(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "missing"), start, 10)
	require.ErrorIs(t, err, ErrWriteFailure)

	_, err = Create(t.TempDir(), start, 0)
	require.ErrorIs(t, err, ErrWriteFailure)
}

func TestCreate_HeaderFailureRemovesFile(t *testing.T) {
	failure := errors.New("disk full")
	original := writeHeader
	writeHeader = func(io.Writer, Header) error { return failure }
	t.Cleanup(func() { writeHeader = original })

	dir := t.TempDir()
	_, err := Create(dir, start, 10)
	require.ErrorIs(t, err, ErrWriteFailure)
	require.ErrorIs(t, err, failure)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no headerless log left behind")
}

func TestHeader_Time(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
	}{
		{"whole second", time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)},
		{"milliseconds", time.Date(2026, 10, 19, 10, 0, 0, 1_000_000, time.UTC)},
		{"microseconds", time.Date(2026, 10, 19, 10, 0, 0, 999_999_000, time.UTC)},
		{"before epoch", time.Date(1969, 12, 31, 23, 59, 59, 500_000_000, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := Header{StartTime: float64(tt.at.UnixNano()) / 1e9}
			assert.True(t, header.Time().Equal(tt.at), "got %s", header.Time())
		})
	}
}

func TestRoundTrip(t *testing.T) {
	w, err := Create(t.TempDir(), start, 20) // chunks of two samples
	require.NoError(t, err)

	want := []float64{-1, -0.25, 0, 1e-300, math.Pi, 65535.0/32768 - 1}
	require.NoError(t, w.Append(want[:4]))
	require.NoError(t, w.Append(want[4:]))
	require.NoError(t, w.Close())

	header, got, err := ReadAll(w.Path())
	require.NoError(t, err)
	assert.EqualValues(t, 20, header.SampleRate)
	assert.Equal(t, float64(start.UnixNano())/1e9, header.StartTime)
	assert.Equal(t, start.UnixMilli(), header.Time().UnixMilli())
	assert.True(t, header.Time().Equal(start), "got %s", header.Time())
	assert.Equal(t, want, got, "samples are bit-exact")
}

func TestReader_TruncatedTail(t *testing.T) {
	w, err := Create(t.TempDir(), start, 30) // chunks of three samples
	require.NoError(t, err)
	require.NoError(t, w.Append([]float64{1, 2, 3, 4, 5, 6, 7, 8}))
	require.NoError(t, w.Close())

	// Cut the last sample in half as an interrupted write would
	info, err := os.Stat(w.Path())
	require.NoError(t, err)
	require.NoError(t, os.Truncate(w.Path(), info.Size()-4))

	_, got, err := ReadAll(w.Path())
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, got, "partial chunk discarded")
}

func TestReader_LowRate(t *testing.T) {
	assert.Equal(t, 1, ChunkSize(5))
	assert.Equal(t, 100, ChunkSize(1000))

	w, err := Create(t.TempDir(), start, 5)
	require.NoError(t, err)
	require.NoError(t, w.Append([]float64{1, 2, 3}))

	_, got, err := ReadAll(w.Path())
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, got)
}

func TestReader_ShortHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, HeaderSize-1), 0o644))

	_, _, err := ReadAll(path)
	require.ErrorIs(t, err, ErrShortHeader)

	empty := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	_, err = Open(empty)
	require.ErrorIs(t, err, ErrShortHeader)
}

func TestReader_HeaderOnly(t *testing.T) {
	w, err := Create(t.TempDir(), start, 1000)
	require.NoError(t, err)

	header, got, err := ReadAll(w.Path())
	require.NoError(t, err)
	assert.EqualValues(t, 1000, header.SampleRate)
	assert.Empty(t, got)
}

func TestReader_InvalidHeader(t *testing.T) {
	tests := []struct {
		name   string
		header Header
	}{
		{"zero rate", Header{StartTime: 1e9, SampleRate: 0}},
		{"negative rate", Header{StartTime: 1e9, SampleRate: -1000}},
		{"nan start", Header{StartTime: math.NaN(), SampleRate: 1000}},
		{"infinite start", Header{StartTime: math.Inf(1), SampleRate: 1000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "corrupt.bin")
			raw, err := binary.Append(nil, binary.LittleEndian, tt.header)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(path, raw, 0o644))

			_, err = Open(path)
			require.ErrorIs(t, err, ErrInvalidHeader)
		})
	}
}

func TestReadAllContext_Cancelled(t *testing.T) {
	w, err := Create(t.TempDir(), start, 10)
	require.NoError(t, err)
	require.NoError(t, w.Append([]float64{1, 2, 3}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = ReadAllContext(ctx, w.Path())
	require.ErrorIs(t, err, context.Canceled)
}
