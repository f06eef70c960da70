package storage

import (
	"database/sql"
	"time"
)

type sessionData struct {
	ID         int64
	StartTime  time.Time
	EndTime    sql.NullTime
	DeviceID   string
	SampleRate int
	LogPath    string
	Config     sql.NullString
	State      string
	Samples    int64
	Error      sql.NullString
}

type analysisData struct {
	SessionID     int64
	Timestamp     time.Time
	Min           float64
	Max           float64
	Mean          float64
	RMS           float64
	PeakFrequency sql.NullFloat64
	PeakMagnitude sql.NullFloat64
}
