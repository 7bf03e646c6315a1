//go:build unix

package asyncmsgq

import (
	"github.com/joeycumines/go-rtcore/rtpoll"
)

// ThreadMQ is the pair of queues between a control goroutine and a realtime
// goroutine driving an rtpoll.Scheduler. In carries messages to the realtime
// side, Out carries them back.
//
// The realtime goroutine calls Install, then runs its scheduler until
// ShutdownRequested. The control goroutine stops it by sending a message
// with code Shutdown and no Object to In, then calls Close once the realtime
// goroutine has exited.
//
// If the realtime side fails, it should post a notification to Out, then
// keep processing In until shutdown, i.e. In.WaitFor(ctx, Shutdown), so
// the control side's Send calls are still answered.
type ThreadMQ struct {
	In  *Queue
	Out *Queue

	sched    *rtpoll.Scheduler
	src      *rtpoll.Source
	shutdown bool
}

// NewThreadMQ creates both queues, each with room for at least capacity
// messages.
func NewThreadMQ(capacity int, opts ...Option) (*ThreadMQ, error) {
	in, err := New(capacity, opts...)
	if err != nil {
		return nil, err
	}
	out, err := New(capacity, opts...)
	if err != nil {
		in.Destroy()
		return nil, err
	}
	return &ThreadMQ{In: in, Out: out}, nil
}

// Install attaches In to s, at Early priority. Must be called from the
// goroutine driving s.
func (x *ThreadMQ) Install(s *rtpoll.Scheduler) error {
	if x.src != nil {
		return ErrInstalled
	}
	src, err := x.In.readSource(s, rtpoll.Early, func(m *Message) {
		if m.Object == nil && m.Code == Shutdown {
			x.shutdown = true
			s.Interrupt()
		}
	})
	if err != nil {
		return err
	}
	x.sched = s
	x.src = src
	return nil
}

// ShutdownRequested reports whether the installed source processed a
// Shutdown message. Only meaningful on the realtime goroutine.
func (x *ThreadMQ) ShutdownRequested() bool {
	return x.shutdown
}

// Scheduler returns the installed scheduler, or nil.
func (x *ThreadMQ) Scheduler() *rtpoll.Scheduler {
	return x.sched
}

// Uninstall detaches In from its scheduler, if installed.
func (x *ThreadMQ) Uninstall() {
	if x.src == nil {
		return
	}
	x.src.Unregister()
	x.src = nil
	x.sched = nil
}

// Close destroys both queues.
func (x *ThreadMQ) Close() {
	x.In.Destroy()
	x.Out.Destroy()
}
