package rtpoll

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrSchedulerClosed is returned by operations on a closed Scheduler.
	ErrSchedulerClosed = errors.New("rtpoll: scheduler closed")

	// ErrReentrantRun is returned when Run is called from within a callback.
	ErrReentrantRun = errors.New("rtpoll: cannot call Run from within a callback")

	// ErrSchedulerBusy is returned when Run or Close is called while another
	// goroutine is running an iteration.
	ErrSchedulerBusy = errors.New("rtpoll: scheduler is running on another goroutine")

	// ErrSourcesRemaining is returned by Close if live sources are still
	// registered.
	ErrSourcesRemaining = errors.New("rtpoll: sources still registered")

	// ErrFDOutOfRange is returned by Source.SetFD for descriptors that cannot
	// be polled.
	ErrFDOutOfRange = errors.New("rtpoll: fd out of range")
)

// Phase identifies the part of an iteration a callback ran in.
type Phase int

const (
	// PhasePreWait is the phase before the shared wait.
	PhasePreWait Phase = iota
	// PhasePostWait is the phase after the shared wait.
	PhasePostWait
)

// String returns a human-readable representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhasePreWait:
		return "pre-wait"
	case PhasePostWait:
		return "post-wait"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// PanicError wraps a value recovered from a panicking callback.
type PanicError struct {
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("rtpoll: callback panicked: %v", e.Value)
}

// Unwrap returns the panic value, if it is an error.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// CallbackError is returned (possibly joined with others) by Run, when a
// callback failed.
type CallbackError struct {
	Err      error
	Phase    Phase
	Priority Priority
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("rtpoll: %s callback (priority %s) failed: %v", e.Phase, e.Priority, e.Err)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *CallbackError) Unwrap() error {
	return e.Err
}
