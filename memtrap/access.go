package memtrap

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/joeycumines/go-catrate"
)

// faultLogLimiter limits absorbed fault logs, per region.
var faultLogLimiter = catrate.NewLimiter(map[time.Duration]int{
	time.Second: 1,
	time.Minute: 10,
})

// addrError is implemented by the runtime.Error raised for memory faults,
// with panic on fault enabled.
type addrError interface {
	error
	Addr() uintptr
}

// Access runs fn, absorbing memory faults on watched regions.
//
// If fn faults inside a watched region, the region is marked bad, its pages
// are replaced by zero filled anonymous memory, fn is run a second time, and
// ErrFaulted is returned. Any fn side effects must therefore be safe to
// repeat. A fault outside every watched region, or any other panic, is
// re-raised.
//
// The replacement covers whole pages, so watched regions should be page
// aligned, as is the case for mappings.
func Access(fn func()) error {
	if !installed.Load() {
		return ErrNotInstalled
	}

	fault := guard(fn)
	if fault == nil {
		return nil
	}
	if err := absorb(fault); err != nil {
		return err
	}

	if again := guard(fn); again != nil {
		if err := absorb(again); err != nil {
			return err
		}
		return fmt.Errorf("%w: repeated fault at %#x", ErrFaulted, again.Addr())
	}

	return ErrFaulted
}

// guard runs fn with panic on fault enabled, returning the fault, if any.
// Other panics propagate.
func guard(fn func()) (fault addrError) {
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(addrError)
			if !ok {
				panic(r)
			}
			fault = err
		}
	}()
	fn()
	return nil
}

// absorb handles a fault recovered by guard, re-raising it if it is not
// within a watched region.
func absorb(fault addrError) error {
	addr := fault.Addr()
	s, ok := lookup(addr)
	if !ok {
		panic(fault)
	}

	mu.Lock()
	defer mu.Unlock()

	first := s.region.bad.CompareAndSwap(false, true)

	// the region may have been moved, or removed, since the lookup
	if !s.region.removed && !s.region.substituted &&
		s.region.addr == s.start && s.region.length == s.end-s.start {
		if err := substitute(s.start, s.end-s.start); err != nil {
			logger.Load().Crit().
				Err(err).
				Str("addr", fmt.Sprintf("%#x", addr)).
				Log("memtrap: failed to substitute mapping")
			return fmt.Errorf("memtrap: substitute mapping at %#x: %w", s.start, err)
		}
		s.region.substituted = true
	}

	if l := logger.Load(); l != nil {
		if _, allowed := faultLogLimiter.Allow(s.region); allowed {
			l.Warning().
				Str("addr", fmt.Sprintf("%#x", addr)).
				Str("region", fmt.Sprintf("%#x+%d", s.start, s.end-s.start)).
				Bool("first", first).
				Log("memtrap: absorbed memory fault")
		}
	}

	return nil
}
