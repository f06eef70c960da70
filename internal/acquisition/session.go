package acquisition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/daqscope/internal/binlog"
	"github.com/roman-kulish/daqscope/internal/daq"
	"github.com/roman-kulish/daqscope/internal/spectrum"
)

const DefaultTickInterval = 200 * time.Millisecond

// Frame is handed to the renderer whenever a new analysis exists.
type Frame struct {
	Timestamp  time.Time          // Tick that produced the frame
	SampleRate int                // Samples per second
	TimeDomain []float64          // Analysis window, oldest sample first
	Spectrum   *spectrum.Estimate // Spectrum of TimeDomain
}

// Renderer displays frames. Render is called from the acquisition loop and
// must not block.
type Renderer interface {
	Render(frame *Frame)
}

// Catalog records sessions and their analyses. Catalog failures are logged
// and never stop a session.
type Catalog interface {
	CreateSession(ctx context.Context, deviceID string, sampleRate int, logPath string, config any) (sessionID int64, err error)
	StoreAnalysis(ctx context.Context, sessionID int64, summary spectrum.Summary) error
	FinishSession(ctx context.Context, sessionID int64, state string, samples int64, fault error) error
}

// Config is the acquisition session configuration
type Config struct {
	SampleRate    int           // Samples per second
	TickInterval  time.Duration // Consumer cadence (default: 200ms)
	BufferSize    int           // Circular buffer capacity in samples (default: one second)
	TransformSize int           // FFT length (default: the sample rate)
	Channel       int           // Analog input channel
	Directory     string        // Where the session log is created

	Converter daq.Converter // Raw code to volts transform (default: 16-bit, 1V full scale)
}

func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("acquisition.Config: sample rate must be positive: %d", c.SampleRate)
	}
	if c.TickInterval < 0 {
		return fmt.Errorf("acquisition.Config: tick interval must not be negative: %s", c.TickInterval)
	}
	if c.BufferSize < 0 {
		return fmt.Errorf("acquisition.Config: buffer size must not be negative: %d", c.BufferSize)
	}
	if c.TransformSize != 0 && c.TransformSize < 2 {
		return fmt.Errorf("acquisition.Config: transform size must be at least 2: %d", c.TransformSize)
	}
	if c.Channel < 0 {
		return fmt.Errorf("acquisition.Config: channel must not be negative: %d", c.Channel)
	}

	// The consumer must come round at least twice per buffer cycle
	if limit := c.bufferDuration() / 2; c.tickInterval() > limit {
		return fmt.Errorf("%w: tick interval %s exceeds %s, half of the %d sample buffer at %d S/s",
			daq.ErrBufferOverrunRisk, c.tickInterval(), limit, c.bufferSize(), c.SampleRate)
	}

	return nil
}

func (c *Config) tickInterval() time.Duration {
	if c.TickInterval == 0 {
		return DefaultTickInterval
	}
	return c.TickInterval
}

func (c *Config) bufferSize() int {
	if c.BufferSize == 0 {
		return c.SampleRate
	}
	return c.BufferSize
}

func (c *Config) transformSize() int {
	if c.TransformSize == 0 {
		return c.SampleRate
	}
	return c.TransformSize
}

func (c *Config) bufferDuration() time.Duration {
	return time.Duration(float64(c.bufferSize()) / float64(c.SampleRate) * float64(time.Second))
}

// WithLogger sets the logger for the session
func WithLogger(logger *slog.Logger) func(s *Session) {
	return func(s *Session) {
		s.logger = logger.With(slog.String("deviceID", s.device.ID()))
	}
}

// WithRenderer sets the renderer that receives analysis frames
func WithRenderer(r Renderer) func(s *Session) {
	return func(s *Session) {
		s.renderer = r
	}
}

// WithCatalog sets the catalog the session is recorded in. config is
// stored with the session record.
func WithCatalog(c Catalog, config any) func(s *Session) {
	return func(s *Session) {
		s.catalog = c
		s.catalogConfig = config
	}
}

// Session runs one acquisition from a device: it drains the circular
// buffer on every tick, logs the converted samples and analyses the most
// recent second of signal. A session runs once; Stopped and Faulted are
// terminal.
type Session struct {
	device daq.Device
	config Config

	converter daq.Converter
	analyzer  *spectrum.Analyzer
	window    *daq.Window

	renderer      Renderer
	catalog       Catalog
	catalogConfig any
	sessionID     int64

	buf      *daq.CircularBuffer
	consumer *daq.Consumer
	writer   *binlog.Writer
	lastTick time.Time

	started  atomic.Bool
	state    atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once

	cursor   atomic.Int64
	consumed atomic.Int64

	mu  sync.Mutex
	err error

	logger *slog.Logger
}

// NewSession creates an idle session for device. A tick interval that
// cannot keep up with the buffer is rejected with daq.ErrBufferOverrunRisk.
func NewSession(device daq.Device, config Config, options ...func(s *Session)) (*Session, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	analyzer, err := spectrum.NewAnalyzer(config.SampleRate, config.transformSize())
	if err != nil {
		return nil, fmt.Errorf("creating analyzer: %w", err)
	}

	window, err := daq.NewWindow(config.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("creating analysis window: %w", err)
	}

	converter := config.Converter
	if converter == (daq.Converter{}) {
		converter = daq.DefaultConverter()
	}

	s := Session{
		device:    device,
		config:    config,
		converter: converter,
		analyzer:  analyzer,
		window:    window,
		stop:      make(chan struct{}),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&s)
	}

	return &s, nil
}

// State returns the current session state
func (s *Session) State() State {
	return State(s.state.Load())
}

// Err returns the fault of a faulted session, nil otherwise
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cursor returns the last consumed buffer index and the total number of
// samples consumed so far
func (s *Session) Cursor() (index int, consumed int64) {
	return int(s.cursor.Load()), s.consumed.Load()
}

// Stop requests the session to stop. The request is observed at the next
// tick boundary. It is safe to call Stop multiple times from any goroutine.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Run opens the session and ticks until ctx is cancelled, Stop is called or
// a fault occurs. Resources are released before Run returns. It returns nil
// when the session stopped on request and a *FaultError when it faulted,
// including a session that failed to open.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrSessionUsed
	}

	if err := s.open(ctx); err != nil {
		fault := &FaultError{Err: err, Time: time.Now()}
		s.logger.Error("acquisition fault", slog.String("error", err.Error()))

		s.setErr(fault)
		s.state.Store(int32(StateFaulted))
		return fault
	}

	s.state.Store(int32(StateRunning))
	s.logger.Info("acquisition started",
		slog.Int("rate", s.config.SampleRate),
		slog.Int("bufferSize", s.buf.Len()),
		slog.Duration("tick", s.config.tickInterval()),
		slog.String("log", s.writer.Path()),
	)

	ticker := time.NewTicker(s.config.tickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.finish(ctx, s.drain())

		case <-s.stop:
			return s.finish(ctx, s.drain())

		case now := <-ticker.C:
			if err := s.tick(ctx, now); err != nil {
				return s.finish(ctx, err)
			}
		}
	}
}

// open allocates the buffer, creates the log and starts the scan, undoing
// the completed steps when a later one fails.
func (s *Session) open(ctx context.Context) (err error) {
	if s.buf, err = s.device.AllocateBuffer(s.config.bufferSize()); err != nil {
		return fmt.Errorf("%w: allocating buffer: %w", daq.ErrDeviceUnavailable, err)
	}

	start := time.Now()
	if s.writer, err = binlog.Create(s.config.Directory, start, s.config.SampleRate); err != nil {
		return errors.Join(fmt.Errorf("creating session log: %w", err), s.device.FreeBuffer(s.buf))
	}

	scan := daq.ScanConfig{
		LowChannel:  s.config.Channel,
		HighChannel: s.config.Channel,
		Rate:        s.config.SampleRate,
	}
	if err = s.device.StartScan(ctx, scan, s.buf); err != nil {
		return errors.Join(fmt.Errorf("starting scan: %w", err), s.device.FreeBuffer(s.buf), s.writer.Close())
	}

	s.consumer = daq.NewConsumer(s.buf)
	s.lastTick = start

	if s.catalog != nil {
		s.sessionID, err = s.catalog.CreateSession(ctx, s.device.ID(), s.config.SampleRate, s.writer.Path(), s.catalogConfig)
		if err != nil {
			s.logger.Warn(fmt.Sprintf("error recording session: %s", err.Error()))
			s.catalog = nil
		}
	}

	return nil
}

// tick drains the buffer once and fans the converted batch out to the log
// and the analysis window. Analysis runs only when the window is full and
// new samples arrived.
func (s *Session) tick(ctx context.Context, now time.Time) error {
	began := time.Now()
	defer func() {
		if elapsed, interval := time.Since(began), s.config.tickInterval(); elapsed > interval {
			s.logger.Warn("tick exceeded interval",
				slog.Duration("elapsed", elapsed),
				slog.Duration("interval", interval),
			)
		}
	}()

	if gap, limit := now.Sub(s.lastTick), s.config.bufferDuration()/2; gap > limit {
		s.logger.Warn(daq.ErrBufferOverrunRisk.Error(),
			slog.Duration("gap", gap),
			slog.Duration("limit", limit),
		)
	}
	s.lastTick = now

	status, err := s.device.Status()
	if err != nil {
		return fmt.Errorf("%w: reading status: %w", daq.ErrAcquisitionFault, err)
	}

	batch, err := s.consumer.Consume(status)
	if err != nil {
		return err
	}
	s.cursor.Store(int64(s.consumer.Cursor()))
	s.consumed.Store(s.consumer.Consumed())

	if len(batch) == 0 {
		return nil
	}

	samples := s.converter.Convert(batch)
	if err = s.writer.Append(samples); err != nil {
		return err
	}

	s.window.Extend(samples)
	if !s.window.IsFull() {
		return nil
	}

	window := s.window.Snapshot()
	estimate, err := s.analyzer.Analyze(window)
	if errors.Is(err, spectrum.ErrInputUnderrun) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("analysing window: %w", err)
	}

	if s.renderer != nil {
		s.renderer.Render(&Frame{
			Timestamp:  now,
			SampleRate: s.config.SampleRate,
			TimeDomain: window,
			Spectrum:   estimate,
		})
	}

	if s.catalog != nil {
		if err := s.catalog.StoreAnalysis(ctx, s.sessionID, spectrum.Summarize(now, window, estimate)); err != nil {
			s.logger.Warn(fmt.Sprintf("error storing analysis: %s", err.Error()))
		}
	}

	return nil
}

// drain consumes what the device wrote since the last tick, so that a
// stopped session logs everything acquired up to the stop request.
func (s *Session) drain() error {
	return s.tick(context.Background(), time.Now())
}

// finish releases the session resources and moves to the terminal state.
// A nil cause means a requested stop.
func (s *Session) finish(ctx context.Context, cause error) error {
	state := StateStopped

	var fault *FaultError
	if cause != nil {
		state = StateFaulted

		index, consumed := s.Cursor()
		fault = &FaultError{
			Err:       cause,
			Time:      time.Now(),
			LastIndex: index,
			Consumed:  consumed,
			Logged:    s.writer.Count(),
		}

		s.logger.Error("acquisition fault",
			slog.String("error", cause.Error()),
			slog.Int("lastIndex", fault.LastIndex),
			slog.Int64("consumed", fault.Consumed),
			slog.Int64("logged", fault.Logged),
		)
	}

	var errs []error
	if err := s.device.StopScan(); err != nil {
		errs = append(errs, fmt.Errorf("stopping scan: %w", err))
	}
	if err := s.device.FreeBuffer(s.buf); err != nil {
		errs = append(errs, fmt.Errorf("freeing buffer: %w", err))
	}
	if err := s.writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing session log: %w", err))
	}

	if s.catalog != nil {
		var faultErr error
		if fault != nil {
			faultErr = fault
		}
		// the session record is finished even when ctx was the stop signal
		if err := s.catalog.FinishSession(context.WithoutCancel(ctx), s.sessionID, state.String(), s.writer.Count(), faultErr); err != nil {
			s.logger.Warn(fmt.Sprintf("error finishing session record: %s", err.Error()))
		}
	}

	cleanup := errors.Join(errs...)
	if cleanup != nil {
		s.logger.Error(fmt.Sprintf("error releasing resources: %s", cleanup.Error()))
	}

	s.state.Store(int32(state))
	s.logger.Info("acquisition finished",
		slog.String("state", state.String()),
		slog.Int64("logged", s.writer.Count()),
	)

	if fault != nil {
		s.setErr(fault)
		if cleanup != nil {
			return errors.Join(fault, cleanup)
		}
		return fault
	}
	return cleanup
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
