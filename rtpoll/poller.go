//go:build unix

package rtpoll

import (
	"math"
	"time"

	"golang.org/x/sys/unix"
)

// IOEvents represents the type of I/O events to monitor, or that occurred.
type IOEvents uint32

const (
	// EventRead indicates the file descriptor is ready for reading.
	EventRead IOEvents = 1 << iota
	// EventWrite indicates the file descriptor is ready for writing.
	EventWrite
	// EventError indicates an error condition on the file descriptor.
	EventError
	// EventHangup indicates the peer closed its end of the connection.
	EventHangup
	// EventInvalid indicates the file descriptor is not open.
	EventInvalid
)

// pollSet is the descriptor array handed to the OS wait. It is rebuilt only
// when the set of descriptors changes.
type pollSet struct {
	fds   []unix.PollFd
	dirty bool
}

// rebuild assigns each live source with a descriptor a slot in fds, after
// the wakeup descriptor, which is always at index 0.
func (p *pollSet) rebuild(wakeFD int, sources []*Source) {
	p.fds = append(p.fds[:0], unix.PollFd{
		Fd:     int32(wakeFD),
		Events: unix.POLLIN,
	})
	for _, s := range sources {
		s.pollIndex = -1
		if s.dead || s.fd < 0 {
			continue
		}
		s.pollIndex = len(p.fds)
		p.fds = append(p.fds, unix.PollFd{
			Fd:     int32(s.fd),
			Events: eventsToPoll(s.events),
		})
	}
	p.dirty = false
}

// wait blocks until a descriptor is ready or timeout elapses. A negative
// timeout blocks indefinitely. EINTR is returned to the caller.
func (p *pollSet) wait(timeout time.Duration) (int, error) {
	for i := range p.fds {
		p.fds[i].Revents = 0
	}
	return pollWait(p.fds, timeout)
}

// revents returns the ready events for the slot at index i.
func (p *pollSet) revents(i int) IOEvents {
	if i < 0 || i >= len(p.fds) {
		return 0
	}
	return pollToEvents(p.fds[i].Revents)
}

// eventsToPoll converts IOEvents to poll event flags.
func eventsToPoll(events IOEvents) int16 {
	var pollEvents int16
	if events&EventRead != 0 {
		pollEvents |= unix.POLLIN
	}
	if events&EventWrite != 0 {
		pollEvents |= unix.POLLOUT
	}
	return pollEvents
}

// pollToEvents converts poll event flags to IOEvents.
func pollToEvents(pollEvents int16) IOEvents {
	var events IOEvents
	if pollEvents&unix.POLLIN != 0 {
		events |= EventRead
	}
	if pollEvents&unix.POLLOUT != 0 {
		events |= EventWrite
	}
	if pollEvents&unix.POLLERR != 0 {
		events |= EventError
	}
	if pollEvents&unix.POLLHUP != 0 {
		events |= EventHangup
	}
	if pollEvents&unix.POLLNVAL != 0 {
		events |= EventInvalid
	}
	return events
}

func validFD(fd int) bool {
	return fd >= 0 && fd <= math.MaxInt32
}
