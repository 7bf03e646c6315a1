//go:build unix

package rtpoll

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/joeycumines/go-rtcore/internal/wakefd"
	"github.com/joeycumines/logiface"
	"golang.org/x/sys/unix"
)

// Status is the outcome of a single Scheduler.Run iteration.
type Status int

const (
	// StatusRan indicates the iteration completed (including when the wait
	// was skipped by a pre-wait callback, or descriptors became ready).
	StatusRan Status = iota
	// StatusTimedOut indicates the wait returned because the deadline was
	// reached, with no descriptors ready.
	StatusTimedOut
	// StatusInterrupted indicates the iteration was cut short, by
	// Scheduler.Interrupt or context cancellation.
	StatusInterrupted
	// StatusError indicates a callback or the OS wait failed.
	StatusError
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusRan:
		return "ran"
	case StatusTimedOut:
		return "timed out"
	case StatusInterrupted:
		return "interrupted"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Scheduler multiplexes any number of Source values onto one blocking wait
// per iteration, see Run.
//
// A Scheduler is single-threaded: exactly one goroutine may drive it, and all
// callbacks run synchronously on that goroutine. Other goroutines must
// communicate with it via a descriptor, e.g. an asyncq.Queue, with the
// exception of Interrupt.
type Scheduler struct { // betteralign:ignore
	logger  *logiface.Logger[logiface.Event]
	metrics *metrics

	state fastState
	// owner is the goroutine running the current iteration, 0 if idle
	owner atomic.Uint64

	// sources is ordered by priority, then registration order.
	sources []*Source
	// pending holds *Source values registered since the last boundary.
	pending *queue.Queue
	dead    int

	pollSet pollSet
	// wake is always polled, at index 0, see Interrupt
	wake *wakefd.FD

	deadline        time.Time
	deadlineSet     bool
	deadlineElapsed bool

	interrupt atomic.Bool
}

// New creates a Scheduler.
func New(opts ...Option) (*Scheduler, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	wake, err := wakefd.New()
	if err != nil {
		return nil, err
	}
	x := &Scheduler{
		logger:  cfg.logger,
		pending: queue.New(),
		wake:    wake,
	}
	x.pollSet.dirty = true
	if cfg.metricsEnabled {
		x.metrics = newMetrics()
	}
	return x, nil
}

// State returns the current state.
func (x *Scheduler) State() State {
	return x.state.load()
}

// Register adds a source. It will participate from the next iteration that
// starts after this call, in priority order, after any source of the same
// priority registered before it. Safe to call from callbacks.
func (x *Scheduler) Register(priority Priority, hooks Hooks) (*Source, error) {
	if x.state.load() == StateClosed {
		return nil, ErrSchedulerClosed
	}
	s := &Source{
		sched:     x,
		hooks:     hooks,
		priority:  priority,
		fd:        -1,
		pollIndex: -1,
	}
	x.pending.Add(s)
	return s, nil
}

// Sources returns the number of live sources, including those pending
// insertion at the next iteration boundary.
func (x *Scheduler) Sources() int {
	n := len(x.sources) - x.dead
	for i := 0; i < x.pending.Length(); i++ {
		if !x.pending.Get(i).(*Source).dead {
			n++
		}
	}
	return n
}

// SetDeadline arms the deadline d from now, replacing any existing deadline.
// A zero (or negative) d makes the next wait a single non-blocking poll.
func (x *Scheduler) SetDeadline(d time.Duration) {
	x.SetDeadlineAt(time.Now().Add(d))
}

// SetDeadlineAt arms an absolute deadline, replacing any existing deadline.
// The deadline stays armed until replaced or disabled, meaning every wait
// after it has passed is non-blocking.
func (x *Scheduler) SetDeadlineAt(t time.Time) {
	x.deadline = t
	x.deadlineSet = true
}

// DisableDeadline disarms the deadline. Waits then block until a descriptor
// becomes ready.
func (x *Scheduler) DisableDeadline() {
	x.deadline = time.Time{}
	x.deadlineSet = false
}

// Deadline returns the armed deadline, if any.
func (x *Scheduler) Deadline() (time.Time, bool) {
	return x.deadline, x.deadlineSet
}

// DeadlineElapsed reports whether the wait of the most recent iteration
// returned with the deadline reached.
func (x *Scheduler) DeadlineElapsed() bool {
	return x.deadlineElapsed
}

// Interrupt requests that the current (or, if idle, the next) iteration end
// with StatusInterrupted. If requested before the wait, the wait is skipped,
// otherwise the wait is woken. Post-wait callbacks still run. Each request
// ends exactly one iteration.
//
// Unlike the rest of the API, Interrupt is safe to call from any goroutine,
// though it must not race with Close.
func (x *Scheduler) Interrupt() {
	x.interrupt.Store(true)
	if err := x.wake.Signal(); err != nil && err != wakefd.ErrClosed {
		x.logger.Err().Err(err).Log("rtpoll: failed to signal wakeup")
	}
}

// Run performs one iteration:
//
//  1. Sources unregistered since the last iteration are removed, and sources
//     registered since then are inserted.
//  2. The pre-wait callback of every live source is called, in order. Any
//     may request that the wait be skipped.
//  3. Unless skipped, one OS-level wait is performed across the descriptors
//     of all live sources, bounded by the deadline, if armed.
//  4. The post-wait callback of every live source is called, in order.
//
// Callback errors (and panics) end the iteration with StatusError, and are
// reported once; the scheduler remains usable. If a pre-wait callback fails,
// the remaining pre-wait callbacks and the wait are skipped, but post-wait
// callbacks are still called for the sources that were already prepared, so
// that setup and cleanup stay paired.
//
// The ctx is checked before the wait; the wait itself is only bounded by
// the deadline. Run must not be called from within a callback.
func (x *Scheduler) Run(ctx context.Context) (status Status, err error) {
	gid := goroutineID()
	if !x.state.tryTransition(StateIdle, StatePreparing) {
		switch {
		case x.state.load() == StateClosed:
			return StatusError, ErrSchedulerClosed
		case x.owner.Load() == gid:
			return StatusError, ErrReentrantRun
		default:
			return StatusError, ErrSchedulerBusy
		}
	}
	x.owner.Store(gid)
	start := time.Now()
	defer func() {
		if status == StatusError {
			// consumed, as for any other outcome
			x.interrupt.Store(false)
		}
		x.metrics.recordIteration(status, time.Since(start))
		x.owner.Store(0)
		x.state.store(StateIdle)
	}()

	x.compact()
	x.deadlineElapsed = false

	skip, err := x.preWait()
	if err != nil {
		x.state.store(StateCompleting)
		err = errors.Join(err, x.postWait())
		x.logError(err, "rtpoll: iteration aborted")
		return StatusError, err
	}

	status = StatusRan
	switch {
	case x.interrupt.Load():
		status = StatusInterrupted
	case ctx.Err() != nil:
		status, err = StatusInterrupted, ctx.Err()
	case skip:
		x.metrics.recordSkip()
	default:
		x.state.store(StateWaiting)
		status, err = x.wait()
	}

	x.state.store(StateCompleting)
	if perr := x.postWait(); perr != nil {
		x.logError(perr, "rtpoll: post-wait failed")
		return StatusError, errors.Join(err, perr)
	}
	if status == StatusError {
		return status, err
	}
	if x.interrupt.Swap(false) {
		status = StatusInterrupted
	}
	if status == StatusInterrupted {
		x.logger.Debug().Log("rtpoll: iteration interrupted")
	}
	return status, err
}

// Close releases the scheduler. It fails with ErrSourcesRemaining if any
// source is still registered; owners must unregister their sources first.
func (x *Scheduler) Close() error {
	if !x.state.tryTransition(StateIdle, StateClosed) {
		if x.state.load() == StateClosed {
			return ErrSchedulerClosed
		}
		return ErrSchedulerBusy
	}
	x.compact()
	if len(x.sources) != 0 {
		x.state.store(StateIdle)
		return ErrSourcesRemaining
	}
	x.pollSet.fds = nil
	return x.wake.Close()
}

// compact removes dead sources, and merges pending registrations, keeping
// the collection ordered by priority then registration order.
func (x *Scheduler) compact() {
	if x.dead != 0 {
		x.sources = slices.DeleteFunc(x.sources, func(s *Source) bool {
			if s.dead {
				x.release(s)
				return true
			}
			return false
		})
		x.dead = 0
		x.pollSet.dirty = true
	}
	for x.pending.Length() != 0 {
		s := x.pending.Remove().(*Source)
		if s.dead {
			x.release(s)
			continue
		}
		i := sort.Search(len(x.sources), func(i int) bool {
			return x.sources[i].priority > s.priority
		})
		x.sources = slices.Insert(x.sources, i, s)
		s.merged = true
		x.pollSet.dirty = true
	}
}

// release calls the Release hook of a source removed from the collection.
// Panics are logged, since removal happens outside any callback phase.
func (x *Scheduler) release(s *Source) {
	if s.hooks.Release == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			x.logger.Crit().Err(PanicError{Value: r}).Log("rtpoll: release callback panicked")
		}
	}()
	s.hooks.Release(s)
}

func (x *Scheduler) preWait() (skip bool, err error) {
	for _, s := range x.sources {
		if s.dead {
			continue
		}
		s.ready = 0
		if s.hooks.PreWait != nil {
			ok, err := callPreWait(s)
			if err != nil {
				return false, &CallbackError{Err: err, Phase: PhasePreWait, Priority: s.priority}
			}
			skip = skip || ok
		}
		s.prepared = true
	}
	return skip, nil
}

func (x *Scheduler) postWait() error {
	var errs []error
	for _, s := range x.sources {
		if !s.prepared {
			continue
		}
		s.prepared = false
		if s.dead || s.hooks.PostWait == nil {
			continue
		}
		if err := callPostWait(s); err != nil {
			errs = append(errs, &CallbackError{Err: err, Phase: PhasePostWait, Priority: s.priority})
		}
	}
	return errors.Join(errs...)
}

// wait performs the OS wait, retrying on EINTR unless interrupted.
func (x *Scheduler) wait() (Status, error) {
	if x.pollSet.dirty {
		x.pollSet.rebuild(x.wake.ReadFD(), x.sources)
	}
	start := time.Now()
	defer func() { x.metrics.recordWait(time.Since(start)) }()

	for {
		timeout := time.Duration(-1)
		if x.deadlineSet {
			timeout = max(time.Until(x.deadline), 0)
		}

		n, err := x.pollSet.wait(timeout)
		if err == unix.EINTR {
			x.metrics.recordEINTR()
			if x.interrupt.Load() {
				return StatusInterrupted, nil
			}
			continue
		}
		if err != nil {
			x.logger.Err().Err(err).Log("rtpoll: poll failed")
			return StatusError, err
		}

		if x.deadlineSet && !time.Now().Before(x.deadline) {
			x.deadlineElapsed = true
		}
		if x.pollSet.revents(0) != 0 {
			x.wake.Drain()
			n--
			if x.interrupt.Load() {
				return StatusInterrupted, nil
			}
		}
		if n == 0 {
			if x.deadlineElapsed {
				return StatusTimedOut, nil
			}
			// woken without events before the deadline, e.g. a coarse clock,
			// or a stale wakeup
			continue
		}

		for _, s := range x.sources {
			if s.pollIndex >= 0 && !s.dead {
				s.ready = x.pollSet.revents(s.pollIndex)
			}
		}
		return StatusRan, nil
	}
}

func callPreWait(s *Source) (skip bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = PanicError{Value: r}
		}
	}()
	return s.hooks.PreWait(s)
}

func callPostWait(s *Source) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = PanicError{Value: r}
		}
	}()
	return s.hooks.PostWait(s)
}

func (x *Scheduler) logError(err error, msg string) {
	var panicErr PanicError
	if errors.As(err, &panicErr) {
		x.logger.Crit().Err(err).Log(msg)
		return
	}
	x.logger.Err().Err(err).Log(msg)
}
