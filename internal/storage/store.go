package storage

import (
	"context"
	"errors"

	"github.com/roman-kulish/daqscope/internal/spectrum"
)

// ErrSessionNotFound is returned when a session record does not exist
var ErrSessionNotFound = errors.New("session not found")

// Store is the session catalog. It records acquisition sessions, one
// summary per analysed window and how each session ended.
type Store interface {
	// CreateSession records a new running session and returns its unique identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - deviceID: Identifier of the acquisition device
	//   - sampleRate: Samples per second
	//   - logPath: Binary log the session writes to
	//   - config: Optional session configuration. Can be string, []byte, or JSON-serializable object
	//
	// Returns:
	//   - sessionID: Unique identifier for the created session
	//   - error: If session creation fails or context is cancelled
	CreateSession(ctx context.Context, deviceID string, sampleRate int, logPath string, config any) (sessionID int64, err error)

	// StoreAnalysis saves the summary of one analysed window.
	StoreAnalysis(ctx context.Context, sessionID int64, summary spectrum.Summary) error

	// FinishSession records the terminal state of a session, the number of
	// logged samples and, for a faulted session, the fault.
	//
	// Returns ErrSessionNotFound if the session does not exist.
	FinishSession(ctx context.Context, sessionID int64, state string, samples int64, fault error) error

	// Session retrieves a session by its ID, nil if not found.
	Session(ctx context.Context, id int64) (*Session, error)

	// Sessions returns all sessions ordered by start time in ascending order.
	Sessions(ctx context.Context) ([]*Session, error)

	// ReadAnalyses returns a reader over the analyses of a session in
	// time order. The reader must be closed after use.
	ReadAnalyses(ctx context.Context, sessionID int64, opts ...ReaderOption) (*AnalysisReader, error)

	// Close releases all database connections. It is safe to call Close
	// multiple times.
	Close() error
}
