package asyncq

import (
	"errors"
)

// Standard errors.
var (
	// ErrInvalidCapacity is returned by New for a capacity less than 1, or
	// too large to round up to a power of two.
	ErrInvalidCapacity = errors.New("asyncq: invalid capacity")

	// ErrWouldBlock is returned by non-waiting Push and Pop calls, when the
	// queue is full or empty, respectively.
	ErrWouldBlock = errors.New("asyncq: operation would block")

	// ErrDestroyed is returned by operations on a destroyed queue, including
	// those blocked when Destroy was called.
	ErrDestroyed = errors.New("asyncq: queue destroyed")

	// ErrNoDescriptors is returned when attaching a queue created
	// WithoutDescriptors to a scheduler.
	ErrNoDescriptors = errors.New("asyncq: queue has no descriptors")
)
