package binlog

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileNameLayout is the local-time layout of log file names
const FileNameLayout = "2006-01-02_15_04_05"

// Extension is appended to every log file name
const Extension = ".bin"

// HeaderSize is the encoded size of Header in bytes
const HeaderSize = 8 + 4

// sampleSize is the encoded size of a single sample in bytes
const sampleSize = 8

// ErrWriteFailure is returned when the log cannot be created or appended to
var ErrWriteFailure = errors.New("log write failure")

// Header opens every log file.
type Header struct {
	StartTime  float64 // Session start, seconds since the Unix epoch
	SampleRate int32   // Samples per second
}

// Time returns the session start as time.Time.
// The float64 start time only resolves about a microsecond at present-day
// epochs, so the value is rounded to the nearest microsecond.
func (h Header) Time() time.Time {
	return time.UnixMicro(int64(math.Round(h.StartTime * 1e6)))
}

// writeHeader encodes h at the start of a new log.
var writeHeader = func(w io.Writer, h Header) error {
	return binary.Write(w, binary.LittleEndian, h)
}

// Writer appends converted samples to a session log file:
//
//	float64 start_time | int32 sample_rate | float64 samples...
//
// all little-endian and unpadded. The file is opened for every append and
// closed right after, so its content is durable once Append returns.
type Writer struct {
	path string

	mu     sync.Mutex
	count  int64
	closed bool
}

// FileName returns the log file name for a session started at start.
func FileName(start time.Time) string {
	return start.Local().Format(FileNameLayout) + Extension
}

// Create creates a new log file in dir named after start and writes the
// header. An existing file is never overwritten, and the file is removed
// again when the header cannot be written.
func Create(dir string, start time.Time, sampleRate int) (*Writer, error) {
	if sampleRate <= 0 || sampleRate > math.MaxInt32 {
		return nil, fmt.Errorf("%w: invalid sample rate %d", ErrWriteFailure, sampleRate)
	}

	path := filepath.Join(dir, FileName(start))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: creating log file: %w", ErrWriteFailure, err)
	}

	header := Header{
		StartTime:  float64(start.UnixNano()) / 1e9,
		SampleRate: int32(sampleRate),
	}
	if err = writeHeader(f, header); err == nil {
		err = f.Close()
	} else {
		_ = f.Close()
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: writing header: %w", ErrWriteFailure, err)
	}

	return &Writer{path: path}, nil
}

// Append writes samples to the end of the log in a single write.
func (w *Writer) Append(samples []float64) (err error) {
	if len(samples) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("%w: log %s is closed", ErrWriteFailure, w.path)
	}

	var buf bytes.Buffer
	buf.Grow(len(samples) * sampleSize)
	_ = binary.Write(&buf, binary.LittleEndian, samples) // writes to bytes.Buffer do not fail

	f, err := os.OpenFile(w.path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("%w: opening log file: %w", ErrWriteFailure, err)
	}
	defer closeWithError(f, &err)

	if _, err = f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("%w: appending %d samples: %w", ErrWriteFailure, len(samples), err)
	}

	w.count += int64(len(samples))
	return nil
}

// Count returns the number of samples appended so far.
func (w *Writer) Count() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Path returns the log file path.
func (w *Writer) Path() string {
	return w.path
}

// Close syncs the log to stable storage. Further appends fail. It is safe to
// call Close multiple times.
func (w *Writer) Close() (err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	f, err := os.OpenFile(w.path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer closeWithError(f, &err)

	if err = f.Sync(); err != nil {
		return fmt.Errorf("syncing log file: %w", err)
	}
	return nil
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = fmt.Errorf("%w: %w", ErrWriteFailure, cErr)
	}
}
