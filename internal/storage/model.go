package storage

import (
	"time"
)

// Session is the catalog record of one acquisition session.
type Session struct {
	ID         int64      `json:"ID"`                      // Unique identifier for the session
	StartTime  time.Time  `json:"startTime"`               // When the session was opened
	EndTime    *time.Time `json:"endTime,omitempty"`       // When the session finished (nil while running)
	DeviceID   string     `json:"deviceID"`                // Identifier of the acquisition device
	SampleRate int        `json:"sampleRate"`              // Samples per second
	LogPath    string     `json:"logPath"`                 // Binary log of the session
	Config     *string    `json:"config,string,omitempty"` // Optional session configuration in JSON format
	State      string     `json:"state"`                   // running, stopped or faulted
	Samples    int64      `json:"samples"`                 // Samples written to the log
	Error      *string    `json:"error,omitempty"`         // Fault of a faulted session
}

// Duration returns the session length, or zero for an unfinished session.
func (s *Session) Duration() time.Duration {
	if s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}
