package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roman-kulish/daqscope/internal/acquisition"
	"github.com/roman-kulish/daqscope/internal/daq"
	"github.com/roman-kulish/daqscope/internal/daq/serial"
	"github.com/roman-kulish/daqscope/internal/daq/sim"
	"github.com/roman-kulish/daqscope/internal/render"
	"github.com/roman-kulish/daqscope/internal/storage"
)

// Run acquires from the configured device until ctx is cancelled or the
// session faults.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	sessionConfig, err := config.SessionConfig()
	if err != nil {
		return err
	}

	if err = os.MkdirAll(sessionConfig.Directory, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	store := storage.NewSqliteStore(config.Storage.CatalogPath())
	defer store.Close()

	device, err := createDevice(&config.Device, logger)
	if err != nil {
		return fmt.Errorf("creating device: %w", err)
	}

	options := []func(s *acquisition.Session){
		acquisition.WithLogger(logger),
		acquisition.WithCatalog(store, config),
	}

	if config.Render.OutputFile != "" {
		live, err := createRenderer(&config.Render, logger)
		if err != nil {
			return fmt.Errorf("creating renderer: %w", err)
		}
		live.Start(ctx)
		defer live.Close()

		options = append(options, acquisition.WithRenderer(live))
	}

	session, err := acquisition.NewSession(device, sessionConfig, options...)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	err = session.Run(ctx)

	index, consumed := session.Cursor()
	logger.Info("session ended",
		slog.String("state", session.State().String()),
		slog.Int("lastIndex", index),
		slog.Int64("consumed", consumed),
	)

	var fault *acquisition.FaultError
	if errors.As(err, &fault) {
		return fmt.Errorf("session faulted: %w", err)
	}
	return err
}

func createDevice(config *DeviceConfig, logger *slog.Logger) (daq.Device, error) {
	switch config.Type {
	case DeviceSimulator:
		return sim.New(config.ID(), config.Simulator, sim.WithLogger(logger))

	case DeviceSerial:
		return serial.New(config.ID(), config.Serial, serial.WithLogger(logger))

	default:
		return nil, fmt.Errorf("unknown device type '%s'", config.Type)
	}
}

func createRenderer(config *RenderConfig, logger *slog.Logger) (*render.Live, error) {
	location := time.Local
	if config.TimeZone != "" {
		var err error
		if location, err = time.LoadLocation(config.TimeZone); err != nil {
			return nil, fmt.Errorf("loading time zone: %w", err)
		}
	}

	scope, err := render.NewScope(render.Config{
		Width:    config.Width,
		Height:   config.Height,
		Location: location,
	})
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(config.OutputFile); dir != "." {
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}

	return render.NewLive(scope, config.OutputFile,
		render.WithLogger(logger),
		render.WithInterval(time.Duration(config.Interval)),
	), nil
}
