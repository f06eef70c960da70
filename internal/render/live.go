package render

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/daqscope/internal/acquisition"
)

// WithLogger sets the logger for the live renderer
func WithLogger(logger *slog.Logger) func(l *Live) {
	return func(l *Live) {
		l.logger = logger.With(slog.String("output", l.path))
	}
}

// WithInterval sets the minimum time between two image updates
func WithInterval(interval time.Duration) func(l *Live) {
	return func(l *Live) {
		l.interval = interval
	}
}

// Live keeps an image file up to date with the latest frame. Frames are
// drawn on a separate goroutine; a frame that arrives while another is
// pending replaces it.
type Live struct {
	scope    *Scope
	path     string
	interval time.Duration

	frames   chan *acquisition.Frame
	rendered atomic.Int64
	dropped  atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *slog.Logger
}

// NewLive creates a live renderer writing PNG images to path
func NewLive(scope *Scope, path string, options ...func(l *Live)) *Live {
	l := Live{
		scope:  scope,
		path:   path,
		frames: make(chan *acquisition.Frame, 1),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&l)
	}

	return &l
}

// Start starts the drawing goroutine. It stops when ctx is cancelled or
// Close is called.
func (l *Live) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)

	l.wg.Add(1)
	go l.loop(ctx)
}

// Render queues frame for drawing without blocking
func (l *Live) Render(frame *acquisition.Frame) {
	select {
	case l.frames <- frame:
		return
	default:
	}

	// replace the pending frame with the newer one
	select {
	case <-l.frames:
		l.dropped.Add(1)
	default:
	}

	select {
	case l.frames <- frame:
	default:
		l.dropped.Add(1) // the drawing goroutine took the slot and another producer filled it
	}
}

// Rendered returns the number of images written so far
func (l *Live) Rendered() int64 {
	return l.rendered.Load()
}

// Dropped returns the number of frames replaced before they were drawn
func (l *Live) Dropped() int64 {
	return l.dropped.Load()
}

// Close stops the drawing goroutine, the pending frame is discarded
func (l *Live) Close() error {
	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()
	return nil
}

func (l *Live) loop(ctx context.Context) {
	defer l.wg.Done()

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return

		case frame := <-l.frames:
			if wait := l.interval - time.Since(last); wait > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}

				// a newer frame may have arrived while waiting
				select {
				case newer := <-l.frames:
					l.dropped.Add(1)
					frame = newer
				default:
				}
			}
			last = time.Now()

			if err := l.draw(frame); err != nil {
				l.logger.Warn(fmt.Sprintf("error rendering frame: %s", err.Error()))
				continue
			}
			l.rendered.Add(1)
		}
	}
}

func (l *Live) draw(frame *acquisition.Frame) error {
	img, err := l.scope.Draw(frame)
	if err != nil {
		return err
	}
	return WritePNG(l.path, img)
}

// WritePNG encodes img to path. The image is written to a temporary file
// first and renamed, so readers never see a partial image.
func WritePNG(path string, img image.Image) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = png.Encode(tmp, img); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encoding image: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing temporary file: %w", err)
	}

	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
