package rtpoll

import (
	"sync/atomic"
)

// State is the state of a Scheduler.
//
//	StateIdle       → StatePreparing   [Run]
//	StatePreparing  → StateWaiting     [pre-wait callbacks done, wait not skipped]
//	StatePreparing  → StateCompleting  [wait skipped]
//	StateWaiting    → StateCompleting  [wait returned]
//	StateCompleting → StateIdle        [post-wait callbacks done]
//	StateIdle       → StateClosed      [Close]
//	StateClosed     → (terminal)
type State uint32

const (
	// StateIdle indicates no iteration is in progress.
	StateIdle State = iota
	// StatePreparing indicates pre-wait callbacks are running.
	StatePreparing
	// StateWaiting indicates the scheduler is blocked in the OS wait.
	StateWaiting
	// StateCompleting indicates post-wait callbacks are running.
	StateCompleting
	// StateClosed indicates the scheduler has been closed.
	StateClosed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StatePreparing:
		return "Preparing"
	case StateWaiting:
		return "Waiting"
	case StateCompleting:
		return "Completing"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// fastState is a lock-free state holder. Transitions are not validated;
// callers use tryTransition where a race is possible, and store otherwise.
type fastState struct {
	v atomic.Uint32
}

func (s *fastState) load() State {
	return State(s.v.Load())
}

func (s *fastState) store(state State) {
	s.v.Store(uint32(state))
}

func (s *fastState) tryTransition(from, to State) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
