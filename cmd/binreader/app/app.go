package app

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/floats"

	"github.com/roman-kulish/daqscope/internal/acquisition"
	"github.com/roman-kulish/daqscope/internal/binlog"
	"github.com/roman-kulish/daqscope/internal/render"
	"github.com/roman-kulish/daqscope/internal/spectrum"
)

// Run reads a session log, reports its header and statistics and, when an
// output file is configured, plots the tail of the signal.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	stat, err := os.Stat(config.InputFile)
	if err != nil {
		return fmt.Errorf("session log '%s': %w", config.InputFile, err)
	}

	header, samples, err := binlog.ReadAllContext(ctx, config.InputFile)
	if err != nil {
		return fmt.Errorf("reading session log: %w", err)
	}

	rate := int(header.SampleRate)
	duration := time.Duration(float64(len(samples)) / float64(rate) * float64(time.Second))

	logger.Info("session log",
		slog.String("file", config.InputFile),
		slog.String("size", humanize.Bytes(uint64(stat.Size()))),
		slog.String("started", header.Time().In(config.TimeZone).Format(time.DateTime)),
		slog.String("rate", humanize.SIWithDigits(float64(rate), 2, "S/s")),
		slog.String("samples", humanize.Comma(int64(len(samples)))),
		slog.String("duration", duration.Round(time.Millisecond).String()),
	)

	if len(samples) == 0 {
		logger.Warn("session log holds no complete chunk")
		return nil
	}

	if config.Verbose {
		logger.Info("signal statistics",
			slog.Float64("min", floats.Min(samples)),
			slog.Float64("max", floats.Max(samples)),
			slog.Float64("mean", floats.Sum(samples)/float64(len(samples))),
		)
	}

	if config.OutputFile == "" {
		return nil
	}

	frame, err := tailFrame(header, samples, config.Window)
	if err != nil {
		return err
	}

	if frame.Spectrum != nil && config.Verbose {
		if peak, mag, ok := frame.Spectrum.Peak(); ok {
			logger.Info("spectral peak",
				slog.String("frequency", fmt.Sprintf("%0.2f Hz", peak)),
				slog.Float64("magnitude", mag),
			)
		}
	}

	scope, err := render.NewScope(render.Config{Location: config.TimeZone})
	if err != nil {
		return fmt.Errorf("creating scope: %w", err)
	}

	img, err := scope.Draw(frame)
	if err != nil {
		return fmt.Errorf("drawing scope: %w", err)
	}

	logger.Info("rendering signal",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.Int("width", img.Bounds().Dx()),
			slog.Int("height", img.Bounds().Dy()),
		))

	return writeImage(config.OutputFile, config.Format, img)
}

// tailFrame analyses the last window of the signal. The spectrum is left
// out when the log is shorter than one second.
func tailFrame(header binlog.Header, samples []float64, window time.Duration) (*acquisition.Frame, error) {
	rate := int(header.SampleRate)

	n := max(1, int(window.Seconds()*float64(rate)))
	start := max(0, len(samples)-n)
	tail := samples[start:]

	frame := acquisition.Frame{
		Timestamp:  header.Time().Add(time.Duration(float64(len(samples)) / float64(rate) * float64(time.Second))),
		SampleRate: rate,
		TimeDomain: tail,
	}

	if len(samples) >= rate && rate >= 2 {
		estimate, err := spectrum.Analyze(samples[len(samples)-rate:], rate, rate)
		if err != nil {
			return nil, fmt.Errorf("analysing signal: %w", err)
		}
		frame.Spectrum = estimate
	}

	return &frame, nil
}

func writeImage(path string, format ImageFormat, img image.Image) (err error) {
	if format == ImagePNG {
		return render.WritePNG(path, img)
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	return jpeg.Encode(out, img, &jpeg.Options{
		Quality: 98,
	})
}
