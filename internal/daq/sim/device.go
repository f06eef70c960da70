package sim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/daqscope/internal/daq"
)

const Device = "simulator"

// WithLogger sets the logger for the device
func WithLogger(logger *slog.Logger) func(d *Simulator) {
	return func(d *Simulator) {
		d.logger = logger.With(
			slog.String("device", Device),
			slog.String("deviceID", d.deviceID),
		)
	}
}

// WithManualTransfer disables the driver thread. Samples are only produced
// by explicit Transfer calls, which makes the device deterministic.
func WithManualTransfer() func(d *Simulator) {
	return func(d *Simulator) {
		d.manual = true
	}
}

// Simulator is a DAQ device that synthesizes a tone plus noise and writes it
// into the circular buffer at the scan rate from its own goroutine, the way
// a driver performs a background continuous scan.
type Simulator struct {
	deviceID string
	config   Config
	manual   bool

	buf  *daq.CircularBuffer
	rate int
	rng  *rand.Rand

	state atomic.Int32
	count atomic.Int64 // total transferred samples; the write index is derived from it

	mu         sync.Mutex // serializes transfers and buffer ownership
	isSampling atomic.Bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	logger *slog.Logger
}

// New creates a simulated device with a discard logger
func New(deviceID string, config *Config, options ...func(d *Simulator)) (*Simulator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	d := Simulator{
		deviceID: deviceID,
		config:   *config,
		rng:      rand.New(rand.NewSource(seed)),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&d)
	}

	return &d, nil
}

// ID returns the unique device identifier
func (d *Simulator) ID() string {
	return d.deviceID
}

// AllocateBuffer allocates the hardware-visible circular buffer
func (d *Simulator) AllocateBuffer(totalCount int) (*daq.CircularBuffer, error) {
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
func (d *Simulator) FreeBuffer(buf *daq.CircularBuffer) error {
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

// StartScan starts the background continuous scan into buf
func (d *Simulator) StartScan(ctx context.Context, scan daq.ScanConfig, buf *daq.CircularBuffer) error {
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

	d.rate = scan.Rate
	d.count.Store(0)
	d.state.Store(int32(daq.StateRunning))
	d.isSampling.Store(true)

	if d.manual {
		return nil
	}

	ctx, d.cancel = context.WithCancel(ctx)

	d.wg.Add(1)
	go d.transferLoop(ctx)

	return nil
}

// StopScan halts the background scan. Stopping an idle device is a no-op.
func (d *Simulator) StopScan() error {
	if !d.isSampling.Load() {
		return nil // already stopped
	}

	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()

	d.isSampling.Store(false)
	if daq.State(d.state.Load()) == daq.StateRunning {
		d.state.Store(int32(daq.StateIdle))
	}
	return nil
}

// Status returns the scan state and the current transfer position
func (d *Simulator) Status() (daq.ScanStatus, error) {
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

// Transfer writes n synthesized samples into the buffer and publishes the
// new write position. The driver thread calls it on every chunk; with
// WithManualTransfer callers drive it directly.
func (d *Simulator) Transfer(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.buf == nil || daq.State(d.state.Load()) != daq.StateRunning {
		return
	}

	data := d.buf.Hardware()
	count := d.count.Load()

	for i := 0; i < n; i++ {
		if d.config.FailAfter > 0 && count >= d.config.FailAfter {
			d.state.Store(int32(daq.StateError))
			d.logger.Warn("injected hardware error", slog.Int64("count", count))
			break
		}

		data[count%int64(len(data))] = d.code(count)
		count++
	}

	// samples are written before the position is published
	d.count.Store(count)
}

// code synthesizes the raw sample number n.
func (d *Simulator) code(n int64) daq.RawSample {
	t := float64(n) / float64(d.rate)

	v := d.config.Offset + d.config.Amplitude*math.Sin(2*math.Pi*d.config.Frequency*t)
	if d.config.Noise > 0 {
		v += d.config.Noise * (2*d.rng.Float64() - 1)
	}

	half := math.Ldexp(1, d.config.bitDepth()-1)
	code := math.Round((v + 1) * half)
	code = math.Min(math.Max(code, 0), 2*half-1) // the converter saturates, not wraps

	return daq.RawSample(code)
}

func (d *Simulator) transferLoop(ctx context.Context) {
	defer d.wg.Done()

	d.logger.Info("starting background scan...", slog.Int("rate", d.rate))

	ticker := time.NewTicker(d.config.chunkInterval())
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("background scan stopped", slog.Int64("count", d.count.Load()))
			return

		case now := <-ticker.C:
			target := int64(now.Sub(start).Seconds() * float64(d.rate))
			if n := target - d.count.Load(); n > 0 {
				d.Transfer(int(n))
			}

			if daq.State(d.state.Load()) == daq.StateError {
				d.logger.Error("background scan failed", slog.Int64("count", d.count.Load()))
				return
			}
		}
	}
}
