package ws

import "sync/atomic"

// ConnState represents the lifecycle phase of one feed connection.
type ConnState int32

// Connection states. A connection only moves forward:
// Connecting -> Open -> Closing -> Closed, where Open and Closing may be
// skipped on failure.
const (
	// StateConnecting indicates the dial or handshake is in flight.
	StateConnecting ConnState = iota
	// StateOpen indicates the connection is registered and its heartbeat runs.
	StateOpen
	// StateClosing indicates a local close was requested and the peer close is pending.
	StateClosing
	// StateClosed indicates the connection is gone for good.
	StateClosed
)

// String returns the string representation of the connection state.
func (s ConnState) String() string {
	return [...]string{
		"connecting",
		"open",
		"closing",
		"closed",
	}[s]
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to ConnState) bool {
	switch from {
	case StateConnecting:
		return to == StateOpen || to == StateClosed
	case StateOpen:
		return to == StateClosing || to == StateClosed
	case StateClosing:
		return to == StateClosed
	}
	return false
}

// State provides thread-safe atomic access to a ConnState value.
// The zero value is StateConnecting.
type State struct {
	state atomic.Int32
}

// Load returns the current connection state.
func (s *State) Load() ConnState {
	return ConnState(s.state.Load())
}

// CompareAndSwap atomically compares the current state with old and swaps to new if equal.
// It returns true if the swap was performed.
func (s *State) CompareAndSwap(old, new ConnState) bool {
	return s.state.CompareAndSwap(int32(old), int32(new))
}

// Transition moves to the target state if that is legal from the current
// one. It returns the state it left and whether it moved.
func (s *State) Transition(to ConnState) (ConnState, bool) {
	for {
		from := s.Load()
		if !CanTransition(from, to) {
			return from, false
		}
		if s.CompareAndSwap(from, to) {
			return from, true
		}
	}
}
