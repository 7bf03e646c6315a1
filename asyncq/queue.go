package asyncq

import (
	"context"
	"math/bits"
	"sync"

	"github.com/joeycumines/go-rtcore/internal/wakefd"
	"github.com/joeycumines/logiface"
)

// maxCapacity bounds the ring, so the slot count is representable as an int.
const maxCapacity = 1 << 30

// Queue is a bounded FIFO for handing values between goroutines, typically
// a realtime goroutine driving an rtpoll.Scheduler and a worker.
//
// The ring has a fixed, power of two, number of slots. The read and write
// indices are monotonic, and wrap modulo the capacity when indexing, so the
// write index is never more than the capacity ahead of the read index.
//
// Unless created WithoutDescriptors, the queue owns two readiness
// descriptors, see ReadFD and WriteFD.
type Queue[T any] struct { // betteralign:ignore
	logger *logiface.Logger[logiface.Event]

	mu    sync.Mutex
	slots []T
	mask  uint64
	read  uint64
	write uint64

	// readable and writable are closed (then cleared) to wake blocked Pop
	// and Push callers. Nil when nothing is blocked.
	readable chan struct{}
	writable chan struct{}

	// readFD is signaled on every push, writeFD on every pop.
	readFD  *wakefd.FD
	writeFD *wakefd.FD
	// attached counts scheduler sources that may still poll the
	// descriptors, which stay open until it drops to zero
	attached int

	destroyed bool
}

// New creates a queue with room for at least capacity values. The capacity
// is rounded up to the next power of two.
func New[T any](capacity int, opts ...Option) (*Queue[T], error) {
	if capacity < 1 || capacity > maxCapacity {
		return nil, ErrInvalidCapacity
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	size := 1 << bits.Len(uint(capacity-1))
	x := &Queue[T]{
		logger: cfg.logger,
		slots:  make([]T, size),
		mask:   uint64(size - 1),
	}

	if !cfg.noDescriptors {
		if x.readFD, err = wakefd.New(); err != nil {
			return nil, err
		}
		if x.writeFD, err = wakefd.New(); err != nil {
			_ = x.readFD.Close()
			return nil, err
		}
		// empty, so there is room
		x.signal(x.writeFD)
	}

	return x, nil
}

// Cap returns the number of slots.
func (x *Queue[T]) Cap() int {
	return len(x.slots)
}

// Len returns the number of queued values.
func (x *Queue[T]) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return int(x.write - x.read)
}

// Push appends v. If the queue is full, it fails with ErrWouldBlock, unless
// wait is true, in which case it blocks until a slot is vacated. Fails with
// ErrDestroyed if the queue is (or becomes) destroyed.
func (x *Queue[T]) Push(v T, wait bool) error {
	if wait {
		return x.PushContext(context.Background(), v)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.pushLocked(v)
}

// PushContext is a blocking Push that may be canceled via ctx.
func (x *Queue[T]) PushContext(ctx context.Context, v T) error {
	x.mu.Lock()
	for {
		err := x.pushLocked(v)
		if err != ErrWouldBlock {
			x.mu.Unlock()
			return err
		}
		if x.writable == nil {
			x.writable = make(chan struct{})
		}
		ch := x.writable
		x.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}

		// re-check, another pusher may have taken the slot
		x.mu.Lock()
	}
}

// Pop removes the oldest value. If the queue is empty, it fails with
// ErrWouldBlock, unless wait is true, in which case it blocks until a value
// is pushed. Fails with ErrDestroyed if the queue is (or becomes) destroyed.
func (x *Queue[T]) Pop(wait bool) (T, error) {
	if wait {
		return x.PopContext(context.Background())
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.popLocked()
}

// PopContext is a blocking Pop that may be canceled via ctx.
func (x *Queue[T]) PopContext(ctx context.Context) (T, error) {
	x.mu.Lock()
	for {
		v, err := x.popLocked()
		if err != ErrWouldBlock {
			x.mu.Unlock()
			return v, err
		}
		if x.readable == nil {
			x.readable = make(chan struct{})
		}
		ch := x.readable
		x.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}

		x.mu.Lock()
	}
}

// Peek returns the oldest value without removing it.
func (x *Queue[T]) Peek() (v T, ok bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.destroyed || x.read == x.write {
		return v, false
	}
	return x.slots[x.read&x.mask], true
}

// Destroy releases the queue. Blocked and subsequent Push and Pop calls fail
// with ErrDestroyed. Values still queued are passed to drain, if non-nil,
// oldest first. Idempotent.
//
// Sources attached via ReadSource or WriteSource unregister themselves in
// their next callback. The descriptors are closed once no attached source
// remains in its scheduler, i.e. immediately if there are none, otherwise
// at the scheduler's next iteration boundary (or Close).
func (x *Queue[T]) Destroy(drain func(v T)) {
	x.mu.Lock()
	if x.destroyed {
		x.mu.Unlock()
		return
	}
	x.destroyed = true

	remaining := make([]T, 0, x.write-x.read)
	var zero T
	for ; x.read != x.write; x.read++ {
		i := x.read & x.mask
		remaining = append(remaining, x.slots[i])
		x.slots[i] = zero
	}

	broadcast(&x.readable)
	broadcast(&x.writable)

	// wake any poller, so it observes the destruction promptly
	for _, fd := range [...]*wakefd.FD{x.readFD, x.writeFD} {
		if fd != nil {
			x.signal(fd)
		}
	}
	if x.attached == 0 {
		x.closeFDs()
	}
	x.mu.Unlock()

	x.logger.Debug().
		Int("drained", len(remaining)).
		Log("asyncq: destroyed")

	if drain != nil {
		for _, v := range remaining {
			drain(v)
		}
	}
}

// ReadFD returns a descriptor that becomes readable after a push, or -1 if
// the queue was created WithoutDescriptors. Readiness is a hint: a consumer
// must re-check the queue after the descriptor fired.
func (x *Queue[T]) ReadFD() int {
	if x.readFD == nil {
		return -1
	}
	return x.readFD.ReadFD()
}

// WriteFD returns a descriptor that becomes readable after a pop (and
// initially), or -1 if the queue was created WithoutDescriptors.
func (x *Queue[T]) WriteFD() int {
	if x.writeFD == nil {
		return -1
	}
	return x.writeFD.ReadFD()
}

func (x *Queue[T]) pushLocked(v T) error {
	if x.destroyed {
		return ErrDestroyed
	}
	if x.write-x.read == uint64(len(x.slots)) {
		return ErrWouldBlock
	}
	x.slots[x.write&x.mask] = v
	x.write++
	broadcast(&x.readable)
	if x.readFD != nil {
		x.signal(x.readFD)
	}
	return nil
}

func (x *Queue[T]) popLocked() (v T, err error) {
	if x.destroyed {
		return v, ErrDestroyed
	}
	if x.read == x.write {
		return v, ErrWouldBlock
	}
	i := x.read & x.mask
	v = x.slots[i]
	var zero T
	x.slots[i] = zero
	x.read++
	broadcast(&x.writable)
	if x.writeFD != nil {
		x.signal(x.writeFD)
	}
	return v, nil
}

func (x *Queue[T]) signal(fd *wakefd.FD) {
	if err := fd.Signal(); err != nil {
		x.logger.Err().Err(err).Log("asyncq: failed to signal descriptor")
	}
}

func (x *Queue[T]) closeFDs() {
	for _, fd := range [...]*wakefd.FD{x.readFD, x.writeFD} {
		if fd == nil {
			continue
		}
		if err := fd.Close(); err != nil {
			x.logger.Err().Err(err).Log("asyncq: failed to close descriptor")
		}
	}
}

// attach accounts for a source that will poll a descriptor.
func (x *Queue[T]) attach() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.destroyed {
		return ErrDestroyed
	}
	x.attached++
	return nil
}

// release is the counterpart of attach, called once the scheduler dropped
// the source.
func (x *Queue[T]) release() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.attached--
	if x.attached == 0 && x.destroyed {
		x.closeFDs()
	}
}

// state returns the number of queued values, reporting false if the queue
// was destroyed.
func (x *Queue[T]) state() (n int, ok bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.destroyed {
		return 0, false
	}
	return int(x.write - x.read), true
}

// drainFD clears the readiness of fd, reporting false if the queue was
// destroyed.
func (x *Queue[T]) drainFD(fd *wakefd.FD) (n int, ok bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.destroyed {
		return 0, false
	}
	fd.Drain()
	return int(x.write - x.read), true
}

func broadcast(ch *chan struct{}) {
	if *ch != nil {
		close(*ch)
		*ch = nil
	}
}
