package acquisition

import (
	"errors"
	"fmt"
)

// ErrSessionUsed is returned when Run is called on a session that has
// already been started
var ErrSessionUsed = errors.New("session already used")

// State is the lifecycle state of a session.
type State int32

const (
	StateIdle    State = iota // buffer unallocated, no log open
	StateRunning              // ticking
	StateStopped              // stopped on request, terminal
	StateFaulted              // stopped on a fault, terminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateFaulted
}
