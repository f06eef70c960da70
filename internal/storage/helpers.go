package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roman-kulish/daqscope/internal/spectrum"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func toConfigData(config any) (sql.NullString, error) {
	var configData sql.NullString

	switch c := config.(type) {
	case nil:
		return configData, nil

	case string:
		configData.String = c

	case []byte:
		configData.String = string(c)

	default:
		p, err := json.Marshal(config)
		if err != nil {
			return configData, fmt.Errorf("marshaling config: %w", err)
		}
		configData.String = string(p)
	}

	configData.Valid = true
	return configData, nil
}

func toAnalysisData(sessionID int64, s *spectrum.Summary) *analysisData {
	return &analysisData{
		SessionID: sessionID,
		Timestamp: s.Timestamp.UTC(),
		Min:       s.Min,
		Max:       s.Max,
		Mean:      s.Mean,
		RMS:       s.RMS,
		PeakFrequency: sql.NullFloat64{
			Float64: toSQLNullType[float64](s.PeakFrequency),
			Valid:   s.PeakFrequency != nil,
		},
		PeakMagnitude: sql.NullFloat64{
			Float64: toSQLNullType[float64](s.PeakMagnitude),
			Valid:   s.PeakMagnitude != nil,
		},
	}
}

func toSession(d *sessionData) *Session {
	s := Session{
		ID:         d.ID,
		StartTime:  d.StartTime,
		DeviceID:   d.DeviceID,
		SampleRate: d.SampleRate,
		LogPath:    d.LogPath,
		State:      d.State,
		Samples:    d.Samples,
		Config:     fromSQLNullString(d.Config),
		Error:      fromSQLNullString(d.Error),
	}
	if d.EndTime.Valid {
		s.EndTime = &d.EndTime.Time
	}
	return &s
}

func toSQLNullType[T float64 | int64, Y float64 | int | int64](f *Y) T {
	if f == nil {
		return 0
	}
	return T(*f)
}

func fromSQLNullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func fromSQLNullFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	return &f.Float64
}
