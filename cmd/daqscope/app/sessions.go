package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/daqscope/internal/daq/serial"
	"github.com/roman-kulish/daqscope/internal/spectrum"
	"github.com/roman-kulish/daqscope/internal/storage"
)

// ListSessions prints the sessions recorded in the catalog at path
func ListSessions(ctx context.Context, path string, w io.Writer) error {
	if _, err := os.Stat(path); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("catalog file '%s' does not exist: %w", path, err)
	}

	store := storage.NewSqliteStore(path)
	defer store.Close()

	sessions, err := store.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("reading sessions: %w", err)
	}

	return printSessions(w, sessions)
}

func printSessions(w io.Writer, sessions []*storage.Session) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tDEVICE\tRATE\tSAMPLES\tSTATE\tLOG")
	for _, s := range sessions {
		duration := "-"
		if s.EndTime != nil {
			duration = s.Duration().Round(time.Millisecond).String()
		}

		state := s.State
		if s.Error != nil {
			state = fmt.Sprintf("%s (%s)", s.State, *s.Error)
		}

		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID,
			humanize.Time(s.StartTime),
			duration,
			s.DeviceID,
			humanize.SIWithDigits(float64(s.SampleRate), 2, "S/s"),
			humanize.Comma(s.Samples),
			state,
			s.LogPath,
		)
	}

	return tw.Flush()
}

// ListAnalyses prints the per-tick analyses of a session. A zero from or to
// leaves that end of the range open.
func ListAnalyses(ctx context.Context, path string, sessionID int64, from, to time.Time, w io.Writer) (err error) {
	if _, err = os.Stat(path); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("catalog file '%s' does not exist: %w", path, err)
	}

	store := storage.NewSqliteStore(path)
	defer store.Close()

	session, err := store.Session(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("reading session: %w", err)
	}
	if session == nil {
		return fmt.Errorf("%w: %d", storage.ErrSessionNotFound, sessionID)
	}

	var opts []storage.ReaderOption
	switch {
	case !from.IsZero() && !to.IsZero():
		if to.Before(from) {
			return fmt.Errorf("range end %s is before its start %s", to.Format(time.DateTime), from.Format(time.DateTime))
		}
		opts = append(opts, storage.WithTimeRange(from, to))
	case !from.IsZero():
		opts = append(opts, storage.WithStartTime(from))
	case !to.IsZero():
		opts = append(opts, storage.WithEndTime(to))
	}

	reader, err := store.ReadAnalyses(ctx, sessionID, opts...)
	if err != nil {
		return fmt.Errorf("reading analyses: %w", err)
	}
	defer func() {
		if cErr := reader.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	var analyses []spectrum.Summary
	for reader.Next() {
		analyses = append(analyses, reader.Current())
	}
	if err = reader.Err(); err != nil {
		return fmt.Errorf("reading analyses: %w", err)
	}

	return printAnalyses(w, session, analyses)
}

func printAnalyses(w io.Writer, session *storage.Session, analyses []spectrum.Summary) error {
	fmt.Fprintf(w, "session %d on %s, %s analyses\n", session.ID, session.DeviceID, humanize.Comma(int64(len(analyses))))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "TIME\tMIN\tMAX\tMEAN\tRMS\tPEAK")
	for _, a := range analyses {
		peak := "-"
		if a.PeakFrequency != nil {
			peak = humanize.SIWithDigits(*a.PeakFrequency, 2, "Hz")
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.Timestamp.Local().Format("2006-01-02 15:04:05.000"),
			humanize.FtoaWithDigits(a.Min, 4),
			humanize.FtoaWithDigits(a.Max, 4),
			humanize.FtoaWithDigits(a.Mean, 4),
			humanize.FtoaWithDigits(a.RMS, 4),
			peak,
		)
	}

	return tw.Flush()
}

// ParseTime parses a range bound given on the command line, either as
// RFC 3339 or as a local date and time.
func ParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateTime, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("time '%s' is neither RFC 3339 nor '%s'", value, time.DateTime)
	}
	return t, nil
}

// ListPorts prints the serial ports present on the system
func ListPorts(w io.Writer) error {
	ports, err := serial.Ports()
	if err != nil {
		return fmt.Errorf("listing serial ports: %w", err)
	}
	if len(ports) == 0 {
		_, err = fmt.Fprintln(w, "no serial ports found")
		return err
	}

	for _, port := range ports {
		if _, err = fmt.Fprintln(w, port); err != nil {
			return err
		}
	}
	return nil
}
