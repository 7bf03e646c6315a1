package memtrap

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/joeycumines/logiface"
)

var (
	// ErrNotInstalled is returned by Add and Access before Install.
	ErrNotInstalled = errors.New("memtrap: not installed")

	// ErrFaulted is returned by Access when a fault was absorbed.
	ErrFaulted = errors.New("memtrap: region faulted")

	// ErrInvalidRegion is returned for empty or overflowing ranges.
	ErrInvalidRegion = errors.New("memtrap: invalid region")

	// ErrRemoved is returned by Region.Update after Region.Remove.
	ErrRemoved = errors.New("memtrap: region removed")
)

// Region is a watched address range.
type Region struct {
	// guarded by mu
	addr, length uintptr
	removed      bool
	// substituted is set once the pages of the current range were replaced
	substituted bool

	bad atomic.Bool
}

// span is an immutable registry entry.
type span struct {
	start, end uintptr
	region     *Region
}

var (
	installed atomic.Bool

	// mu serializes registry writers, and fault absorption
	mu    sync.Mutex
	spans atomic.Pointer[[]span]

	logger atomic.Pointer[logiface.Logger[logiface.Event]]
)

// Install enables the guard. It must be called before Add. Idempotent.
func Install() error {
	if err := checkSupported(); err != nil {
		return err
	}
	installed.Store(true)
	return nil
}

// SetLogger sets (or with nil, clears) the logger used to report absorbed
// faults. Logs are rate limited per region.
func SetLogger(l *logiface.Logger[logiface.Event]) {
	logger.Store(l)
}

// Add starts watching [addr, addr+length).
func Add(addr, length uintptr) (*Region, error) {
	if !installed.Load() {
		return nil, ErrNotInstalled
	}
	if length == 0 || addr+length < addr {
		return nil, ErrInvalidRegion
	}
	r := &Region{addr: addr, length: length}
	mu.Lock()
	defer mu.Unlock()
	publish(append(loadSpans(), span{start: addr, end: addr + length, region: r}))
	return r, nil
}

// AddSlice starts watching the backing memory of b, typically a mapping.
func AddSlice(b []byte) (*Region, error) {
	if len(b) == 0 {
		return nil, ErrInvalidRegion
	}
	return Add(uintptr(unsafe.Pointer(unsafe.SliceData(b))), uintptr(len(b)))
}

// Regions returns the number of watched regions.
func Regions() int {
	return len(loadSpans())
}

// Addr returns the start of the watched range.
func (r *Region) Addr() uintptr {
	mu.Lock()
	defer mu.Unlock()
	return r.addr
}

// Len returns the length of the watched range.
func (r *Region) Len() uintptr {
	mu.Lock()
	defer mu.Unlock()
	return r.length
}

// IsGood reports whether no fault was absorbed for this region. Once bad, a
// region never becomes good again.
func (r *Region) IsGood() bool {
	return !r.bad.Load()
}

// Update moves the watched range, e.g. after the underlying memory was
// remapped. The health flag is unchanged.
func (r *Region) Update(addr, length uintptr) error {
	if length == 0 || addr+length < addr {
		return ErrInvalidRegion
	}
	mu.Lock()
	defer mu.Unlock()
	if r.removed {
		return ErrRemoved
	}
	r.addr, r.length = addr, length
	r.substituted = false
	next := slices.Clone(loadSpans())
	for i := range next {
		if next[i].region == r {
			next[i].start, next[i].end = addr, addr+length
		}
	}
	publish(next)
	return nil
}

// Remove stops watching the region. It is safe to call after a fault, and
// is idempotent.
func (r *Region) Remove() {
	mu.Lock()
	defer mu.Unlock()
	if r.removed {
		return
	}
	r.removed = true
	publish(slices.DeleteFunc(slices.Clone(loadSpans()), func(s span) bool {
		return s.region == r
	}))
}

func loadSpans() []span {
	if p := spans.Load(); p != nil {
		return *p
	}
	return nil
}

// publish replaces the snapshot. Snapshots are clipped, so appending to one
// always copies. Must be called with mu held.
func publish(next []span) {
	next = slices.Clip(next)
	spans.Store(&next)
}

// lookup finds the span containing addr. Lock-free, and non-allocating.
func lookup(addr uintptr) (span, bool) {
	p := spans.Load()
	if p == nil {
		return span{}, false
	}
	for _, s := range *p {
		if addr >= s.start && addr < s.end {
			return s, true
		}
	}
	return span{}, false
}
