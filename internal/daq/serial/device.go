package serial

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	bugst "go.bug.st/serial"

	"github.com/roman-kulish/daqscope/internal/daq"
)

const Device = "serial"

// readChunk is the size of a single port read in bytes
const readChunk = 4096

var (
	// ErrTooManyReadErrors is returned when the number of consecutive read errors exceeds the threshold
	ErrTooManyReadErrors = errors.New("too many consecutive read errors")
)

// Port is the subset of a serial port the device reads from.
type Port interface {
	io.ReadCloser
	SetReadTimeout(t time.Duration) error
}

// Opener opens the named port at the given line speed.
type Opener func(name string, baudRate int) (Port, error)

// Lister enumerates the ports present on the system.
type Lister func() ([]string, error)

// OpenPort opens a system serial port with 8N1 framing.
func OpenPort(name string, baudRate int) (Port, error) {
	return bugst.Open(name, &bugst.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	})
}

// Ports returns the names of the serial ports present on the system.
func Ports() ([]string, error) {
	return bugst.GetPortsList()
}

// WithLogger sets the logger for the device
func WithLogger(logger *slog.Logger) func(d *Reader) {
	return func(d *Reader) {
		d.logger = logger.With(
			slog.String("device", Device),
			slog.String("deviceID", d.deviceID),
		)
	}
}

// WithOpener replaces the system port opener
func WithOpener(open Opener) func(d *Reader) {
	return func(d *Reader) {
		d.open = open
	}
}

// WithLister replaces the system port enumeration used for auto-detection
func WithLister(list Lister) func(d *Reader) {
	return func(d *Reader) {
		d.list = list
	}
}

// Reader is a DAQ device fed by a serial-attached front end that streams
// little-endian 16-bit codes. A reader goroutine copies the stream into the
// circular buffer and publishes the transfer count.
type Reader struct {
	deviceID string
	config   Config

	open Opener
	list Lister
	port Port

	buf *daq.CircularBuffer

	state atomic.Int32
	count atomic.Int64

	mu         sync.Mutex
	isSampling atomic.Bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	logger *slog.Logger
}

// New creates a serial device with a discard logger
func New(deviceID string, config *Config, options ...func(d *Reader)) (*Reader, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	d := Reader{
		deviceID: deviceID,
		config:   *config,
		open:     OpenPort,
		list:     Ports,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&d)
	}

	return &d, nil
}

// ID returns the unique device identifier
func (d *Reader) ID() string {
	return d.deviceID
}

// AllocateBuffer allocates the circular buffer the reader goroutine fills
func (d *Reader) AllocateBuffer(totalCount int) (*daq.CircularBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.buf != nil {
		return nil, fmt.Errorf("buffer already allocated")
	}

	buf, err := daq.NewCircularBuffer(totalCount)
	if err != nil {
		return nil, fmt.Errorf("allocating buffer: %w", err)
	}

	d.buf = buf
	return buf, nil
}

// FreeBuffer releases a buffer previously returned by AllocateBuffer
func (d *Reader) FreeBuffer(buf *daq.CircularBuffer) error {
	if d.isSampling.Load() {
		return fmt.Errorf("cannot free buffer while scan is running")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if buf == nil || buf != d.buf {
		return fmt.Errorf("buffer not owned by device %s", d.deviceID)
	}

	d.buf = nil
	return nil
}

// StartScan opens the port and starts streaming into buf. The sample rate
// is set by the front end firmware; scan.Rate is informational.
func (d *Reader) StartScan(ctx context.Context, scan daq.ScanConfig, buf *daq.CircularBuffer) error {
	if err := scan.Validate(); err != nil {
		return err
	}
	if d.isSampling.Load() {
		return fmt.Errorf("device is already running")
	}

	d.mu.Lock()
	owned := buf != nil && buf == d.buf
	d.mu.Unlock()
	if !owned {
		return fmt.Errorf("buffer not owned by device %s", d.deviceID)
	}

	name, err := d.portName()
	if err != nil {
		return err
	}

	port, err := d.open(name, d.config.baudRate())
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", daq.ErrDeviceUnavailable, name, err)
	}
	if err = port.SetReadTimeout(d.config.readTimeout()); err != nil {
		_ = port.Close()
		return fmt.Errorf("setting read timeout on %s: %w", name, err)
	}

	d.port = port
	d.count.Store(0)
	d.state.Store(int32(daq.StateRunning))
	d.isSampling.Store(true)

	ctx, d.cancel = context.WithCancel(ctx)

	d.wg.Add(1)
	go d.readLoop(ctx, name, scan.Rate)

	return nil
}

// StopScan halts the reader goroutine and closes the port
func (d *Reader) StopScan() error {
	if !d.isSampling.Load() {
		return nil // already stopped
	}

	d.cancel()
	err := d.port.Close() // unblocks a pending read
	d.wg.Wait()

	d.isSampling.Store(false)
	if daq.State(d.state.Load()) == daq.StateRunning {
		d.state.Store(int32(daq.StateIdle))
	}

	if err != nil {
		return fmt.Errorf("closing port: %w", err)
	}
	return nil
}

// Status returns the scan state and the current transfer position
func (d *Reader) Status() (daq.ScanStatus, error) {
	count := d.count.Load()

	status := daq.ScanStatus{
		State: daq.State(d.state.Load()),
		Count: count,
		Index: -1,
	}

	d.mu.Lock()
	if d.buf != nil {
		status.Index = d.buf.WriteIndex(count)
	}
	d.mu.Unlock()

	return status, nil
}

func (d *Reader) portName() (string, error) {
	if d.config.Port != "" {
		return d.config.Port, nil
	}

	ports, err := d.list()
	if err != nil {
		return "", fmt.Errorf("%w: listing serial ports: %w", daq.ErrDeviceUnavailable, err)
	}
	if len(ports) == 0 {
		return "", fmt.Errorf("%w: no serial ports found", daq.ErrDeviceUnavailable)
	}

	d.logger.Info("auto-detected serial port", slog.String("port", ports[0]), slog.Int("found", len(ports)))
	return ports[0], nil
}

// readLoop copies the byte stream into the circular buffer. A code split
// across two reads is carried over to the next one.
func (d *Reader) readLoop(ctx context.Context, name string, rate int) {
	defer d.wg.Done()

	d.logger.Info("starting serial stream...", slog.String("port", name), slog.Int("rate", rate))

	var (
		chunk      = make([]byte, readChunk+1)
		carry      int // 0 or 1 byte left over from the previous read
		readErrors int
	)

	for {
		n, err := d.port.Read(chunk[carry:])
		if ctx.Err() != nil {
			d.logger.Info("serial stream stopped", slog.Int64("count", d.count.Load()))
			return
		}

		if n > 0 {
			readErrors = 0
			total := carry + n
			if carry = d.transfer(chunk[:total]); carry == 1 {
				chunk[0] = chunk[total-1]
			}
		}

		switch {
		case err == nil:
			continue // n == 0 is a read timeout

		case errors.Is(err, io.EOF):
			d.fail(fmt.Errorf("port %s closed by the device: %w", name, err))
			return

		default:
			readErrors++
			d.logger.Warn(fmt.Sprintf("error reading samples: %s", err.Error()), slog.Int("errors", readErrors))

			if readErrors >= d.config.readErrorsThreshold() {
				d.fail(fmt.Errorf("%w: %w", ErrTooManyReadErrors, err))
				return
			}
		}
	}
}

// transfer decodes whole codes from p into the buffer, publishes the new
// count and returns the number of trailing bytes that did not form a code.
func (d *Reader) transfer(p []byte) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.buf == nil {
		return 0
	}

	data := d.buf.Hardware()
	count := d.count.Load()

	codes := len(p) / 2
	for i := 0; i < codes; i++ {
		data[count%int64(len(data))] = daq.RawSample(binary.LittleEndian.Uint16(p[2*i:]))
		count++
	}

	// samples are written before the position is published
	d.count.Store(count)
	return len(p) % 2
}

func (d *Reader) fail(err error) {
	d.state.Store(int32(daq.StateError))
	d.logger.Error(err.Error(), slog.Int64("count", d.count.Load()))
}
