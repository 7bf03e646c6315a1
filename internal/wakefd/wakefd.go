// Package wakefd implements a pollable readiness signal, used to wake a
// goroutine blocked in poll(2) from another goroutine.
//
// Signals are coalesced: any number of Signal calls between two Drain calls
// leave the descriptor readable exactly once.
package wakefd

import (
	"errors"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// ErrClosed is returned by Signal after Close.
var ErrClosed = errors.New("wakefd: closed")

// FD is a readiness signal backed by an eventfd (Linux) or a non-blocking
// self-pipe (other unix). The zero value is not usable, see New.
type FD struct {
	r, w    int
	pending atomic.Uint32
	closed  atomic.Bool
	buf     [8]byte
}

// New allocates the underlying descriptor(s).
func New() (*FD, error) {
	r, w, err := createWakeFd()
	if err != nil {
		return nil, err
	}
	return &FD{r: r, w: w}, nil
}

// ReadFD returns the descriptor to poll for readability.
func (x *FD) ReadFD() int { return x.r }

// Pending reports whether a signal has been sent but not yet drained.
func (x *FD) Pending() bool { return x.pending.Load() != 0 }

// Signal makes ReadFD readable. Safe to call from any goroutine.
func (x *FD) Signal() error {
	if x.closed.Load() {
		return ErrClosed
	}
	if !x.pending.CompareAndSwap(0, 1) {
		return nil
	}
	for {
		_, err := unix.Write(x.w, wakeValue[:])
		switch err {
		case nil, unix.EAGAIN:
			// EAGAIN: the counter (or pipe) is already full, i.e. readable
			return nil
		case unix.EINTR:
			continue
		default:
			x.pending.Store(0)
			return err
		}
	}
}

// Drain consumes any pending signal, making ReadFD non-readable until the
// next Signal. Must only be called by the goroutine that polls ReadFD, which
// must re-check its condition after Drain returns, since a Signal racing
// with Drain may be absorbed.
func (x *FD) Drain() {
	for {
		_, err := unix.Read(x.r, x.buf[:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			break
		}
	}
	x.pending.Store(0)
}

// Close releases the descriptor(s). Idempotent.
func (x *FD) Close() error {
	if !x.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := unix.Close(x.r)
	if x.w != x.r {
		if e := unix.Close(x.w); err == nil {
			err = e
		}
	}
	return err
}
