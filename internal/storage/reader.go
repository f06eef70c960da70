package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/roman-kulish/daqscope/internal/spectrum"
)

// ReaderOption configures an AnalysisReader
type ReaderOption func(*AnalysisReader)

// WithStartTime excludes analyses before t
func WithStartTime(t time.Time) ReaderOption {
	return func(r *AnalysisReader) {
		r.startTime = &t
	}
}

// WithEndTime excludes analyses after t
func WithEndTime(t time.Time) ReaderOption {
	return func(r *AnalysisReader) {
		r.endTime = &t
	}
}

// WithTimeRange is a shorthand for WithStartTime and WithEndTime
func WithTimeRange(start, end time.Time) ReaderOption {
	return func(r *AnalysisReader) {
		r.startTime = &start
		r.endTime = &end
	}
}

// AnalysisReader iterates over the analyses of a session in time order.
// It must be used from a single goroutine.
type AnalysisReader struct {
	sessionID int64
	startTime *time.Time
	endTime   *time.Time

	rows    *sql.Rows
	current spectrum.Summary
	err     error
}

func newAnalysisReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*AnalysisReader, error) {
	r := AnalysisReader{sessionID: sessionID}
	for _, opt := range opts {
		opt(&r)
	}

	query, args := r.buildQuery()

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying analyses: %w", err)
	}

	r.rows = rows
	return &r, nil
}

func (r *AnalysisReader) buildQuery() (string, []any) {
	var sb strings.Builder
	sb.WriteString(selectAnalysesSQL)

	args := []any{r.sessionID}
	if r.startTime != nil {
		sb.WriteString(" AND timestamp >= ?")
		args = append(args, r.startTime.UTC())
	}
	if r.endTime != nil {
		sb.WriteString(" AND timestamp <= ?")
		args = append(args, r.endTime.UTC())
	}
	sb.WriteString(" ORDER BY timestamp, id")

	return sb.String(), args
}

// Next advances to the next analysis. It returns false at the end of the
// data or on error; check Err to tell them apart.
func (r *AnalysisReader) Next() bool {
	if r.err != nil || !r.rows.Next() {
		if r.err == nil {
			r.err = r.rows.Err()
		}
		return false
	}

	var data analysisData
	err := r.rows.Scan(
		&data.Timestamp,
		&data.Min,
		&data.Max,
		&data.Mean,
		&data.RMS,
		&data.PeakFrequency,
		&data.PeakMagnitude,
	)
	if err != nil {
		r.err = fmt.Errorf("scanning analysis: %w", err)
		return false
	}

	r.current = spectrum.Summary{
		Timestamp:     data.Timestamp,
		Min:           data.Min,
		Max:           data.Max,
		Mean:          data.Mean,
		RMS:           data.RMS,
		PeakFrequency: fromSQLNullFloat(data.PeakFrequency),
		PeakMagnitude: fromSQLNullFloat(data.PeakMagnitude),
	}
	return true
}

// Current returns the analysis Next advanced to
func (r *AnalysisReader) Current() spectrum.Summary {
	return r.current
}

// Err returns the error that stopped the iteration, if any
func (r *AnalysisReader) Err() error {
	return r.err
}

// Close releases the underlying rows
func (r *AnalysisReader) Close() error {
	return r.rows.Close()
}
