package binlog

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// ErrShortHeader is returned when a log is too short to hold its header
var ErrShortHeader = errors.New("short log header")

// ErrInvalidHeader is returned when a log header holds a non-positive sample
// rate or a start time that is not a finite number
var ErrInvalidHeader = errors.New("invalid log header")

// Reader reads a session log back in chunks of a tenth of a second. A
// partial trailing chunk, left behind by an interrupted session, is
// discarded.
type Reader struct {
	file   *os.File
	r      *bufio.Reader
	header Header
	chunk  []byte
}

// Open opens the log at path and reads its header.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	r := Reader{
		file: f,
		r:    bufio.NewReader(f),
	}

	if err = binary.Read(r.r, binary.LittleEndian, &r.header); err != nil {
		_ = f.Close()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %s", ErrShortHeader, path)
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	if r.header.SampleRate <= 0 || math.IsNaN(r.header.StartTime) || math.IsInf(r.header.StartTime, 0) {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s: sample rate %d, start time %v",
			ErrInvalidHeader, path, r.header.SampleRate, r.header.StartTime)
	}

	r.chunk = make([]byte, ChunkSize(int(r.header.SampleRate))*sampleSize)
	return &r, nil
}

// ChunkSize returns the number of samples per chunk for a sample rate.
func ChunkSize(sampleRate int) int {
	return max(1, sampleRate/10)
}

// Header returns the log header.
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next full chunk of samples, or io.EOF when no full
// chunk is left.
func (r *Reader) Next() ([]float64, error) {
	if _, err := io.ReadFull(r.r, r.chunk); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF // truncated tail
		}
		return nil, err
	}

	samples := make([]float64, len(r.chunk)/sampleSize)
	for i := range samples {
		samples[i] = math.Float64frombits(binary.LittleEndian.Uint64(r.chunk[i*sampleSize:]))
	}
	return samples, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadAll reads the header and every full chunk of the log at path.
func ReadAll(path string) (Header, []float64, error) {
	return ReadAllContext(context.Background(), path)
}

// ReadAllContext is like ReadAll but gives up between chunks once ctx is
// done.
func ReadAllContext(ctx context.Context, path string) (header Header, samples []float64, err error) {
	r, err := Open(path)
	if err != nil {
		return Header{}, nil, err
	}
	defer func() {
		if cErr := r.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	for {
		if err = ctx.Err(); err != nil {
			return Header{}, nil, err
		}

		chunk, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Header{}, nil, fmt.Errorf("reading samples: %w", err)
		}
		samples = append(samples, chunk...)
	}

	return r.Header(), samples, nil
}
