//go:build unix

package rtpoll

import (
	"strconv"
)

// Priority orders sources within an iteration. Lower values run first.
// Any value may be used; the named classes are conventions.
type Priority int

const (
	// Early sources prepare resources, before Normal sources use them.
	Early Priority = -100
	// Normal is the default class.
	Normal Priority = 0
	// Late sources run after everything else, e.g. to flush or account.
	Late Priority = 100
)

// String returns a human-readable representation of the priority.
func (p Priority) String() string {
	switch p {
	case Early:
		return "early"
	case Normal:
		return "normal"
	case Late:
		return "late"
	default:
		return strconv.Itoa(int(p))
	}
}

// PreWaitFunc is called before the shared wait. Returning true skips the OS
// wait for this iteration (e.g. because the source already has work), though
// the remaining pre-wait callbacks still run. Returning an error aborts the
// iteration.
type PreWaitFunc func(s *Source) (skipWait bool, err error)

// PostWaitFunc is called after the shared wait (or after it was skipped).
// The source's ready events, if any, are available via Source.Ready.
type PostWaitFunc func(s *Source) error

// Hooks models the optional callbacks and userdata of a Source.
type Hooks struct {
	PreWait  PreWaitFunc
	PostWait PostWaitFunc
	// Release, if set, is called once the source has been unregistered and
	// removed from the scheduler, at an iteration boundary (or on Close).
	// From then on, the scheduler no longer references the descriptor, so it
	// may be closed.
	Release func(s *Source)
	// Data is arbitrary userdata, available via Source.Data.
	Data any
}

// Source is a participant in the shared wait of a Scheduler.
//
// Sources, like their Scheduler, must only be used from the goroutine
// driving the Scheduler.
type Source struct {
	sched     *Scheduler
	hooks     Hooks
	priority  Priority
	fd        int
	events    IOEvents
	ready     IOEvents
	pollIndex int
	// merged is set once the source is part of the ordered collection,
	// as opposed to pending insertion at the next iteration boundary.
	merged bool
	// prepared is set once the pre-wait phase visited the source, in the
	// current iteration.
	prepared bool
	dead     bool
}

// Priority returns the priority the source was registered with.
func (s *Source) Priority() Priority { return s.priority }

// Scheduler returns the owning scheduler.
func (s *Source) Scheduler() *Scheduler { return s.sched }

// Data returns Hooks.Data.
func (s *Source) Data() any { return s.hooks.Data }

// Alive reports whether the source has not been unregistered.
func (s *Source) Alive() bool { return !s.dead }

// FD returns the wait descriptor, or -1 if none.
func (s *Source) FD() int { return s.fd }

// Events returns the events of interest for the wait descriptor.
func (s *Source) Events() IOEvents { return s.events }

// Ready returns the events reported for the wait descriptor by the most
// recent wait. It is reset at the start of every iteration, and is zero if
// the wait was skipped.
func (s *Source) Ready() IOEvents { return s.ready }

// SetFD sets (or replaces) the wait descriptor. Changes made during the
// pre-wait phase apply to the wait of the same iteration; later changes
// apply from the next iteration. A negative fd clears the descriptor.
func (s *Source) SetFD(fd int, events IOEvents) error {
	if fd < 0 {
		s.ClearFD()
		return nil
	}
	if !validFD(fd) {
		return ErrFDOutOfRange
	}
	if s.fd == fd && s.events == events {
		return nil
	}
	s.fd = fd
	s.events = events
	s.touch()
	return nil
}

// ClearFD removes the wait descriptor, if any.
func (s *Source) ClearFD() {
	if s.fd < 0 {
		return
	}
	s.fd = -1
	s.events = 0
	s.touch()
}

// Unregister marks the source dead. Its callbacks will not be called again,
// and its descriptor is excluded from any wait that has not yet started.
// Physical removal happens at the start of the next iteration. Idempotent.
func (s *Source) Unregister() {
	if s.dead {
		return
	}
	s.dead = true
	if s.merged {
		s.sched.dead++
	}
	s.touch()
}

// touch marks the poll set for rebuild, if it includes this source.
func (s *Source) touch() {
	if s.merged {
		s.sched.pollSet.dirty = true
	}
}
