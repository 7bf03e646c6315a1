//go:build unix

package asyncq

import (
	"github.com/joeycumines/go-rtcore/rtpoll"
)

// ReadSource attaches the consumer side of the queue to a scheduler. Each
// iteration, values available at the start of the post-wait phase are
// popped and passed to fn, oldest first. If values are already queued
// before the wait, the wait is skipped.
//
// The returned source must be unregistered by the caller, unless the queue
// is destroyed, in which case it unregisters itself. A non-nil error from
// fn stops the drain for that iteration, and is reported by Run.
func (x *Queue[T]) ReadSource(s *rtpoll.Scheduler, priority rtpoll.Priority, fn func(v T) error) (*rtpoll.Source, error) {
	if x.readFD == nil {
		return nil, ErrNoDescriptors
	}
	return x.attachSource(s, priority, x.readFD.ReadFD(), rtpoll.Hooks{
		PreWait: func(src *rtpoll.Source) (bool, error) {
			n, ok := x.drainFD(x.readFD)
			if !ok {
				x.detach(src)
				return false, nil
			}
			return n != 0, nil
		},
		PostWait: func(src *rtpoll.Source) error {
			n, ok := x.state()
			if !ok {
				x.detach(src)
				return nil
			}
			// bounded, in case fn pushes back onto the queue
			for ; n > 0; n-- {
				v, err := x.Pop(false)
				switch err {
				case nil:
				case ErrWouldBlock:
					return nil
				case ErrDestroyed:
					x.detach(src)
					return nil
				default:
					return err
				}
				if err := fn(v); err != nil {
					return err
				}
			}
			return nil
		},
	})
}

// WriteSource attaches the producer side of the queue to a scheduler. Each
// iteration in which the queue has room, fn is called from the post-wait
// phase, and is expected to push. If there is room before the wait, the
// wait is skipped, so the source should be registered only while the caller
// has values to write, e.g. unregistering it from fn once its backlog is
// empty.
//
// As with ReadSource, the source unregisters itself if the queue is
// destroyed, and fn is not called.
func (x *Queue[T]) WriteSource(s *rtpoll.Scheduler, priority rtpoll.Priority, fn func() error) (*rtpoll.Source, error) {
	if x.writeFD == nil {
		return nil, ErrNoDescriptors
	}
	return x.attachSource(s, priority, x.writeFD.ReadFD(), rtpoll.Hooks{
		PreWait: func(src *rtpoll.Source) (bool, error) {
			n, ok := x.drainFD(x.writeFD)
			if !ok {
				x.detach(src)
				return false, nil
			}
			return n < x.Cap(), nil
		},
		PostWait: func(src *rtpoll.Source) error {
			n, ok := x.state()
			if !ok {
				x.detach(src)
				return nil
			}
			if n >= x.Cap() {
				return nil
			}
			return fn()
		},
	})
}

func (x *Queue[T]) attachSource(s *rtpoll.Scheduler, priority rtpoll.Priority, fd int, hooks rtpoll.Hooks) (*rtpoll.Source, error) {
	if err := x.attach(); err != nil {
		return nil, err
	}
	hooks.Release = func(*rtpoll.Source) { x.release() }
	hooks.Data = x
	src, err := s.Register(priority, hooks)
	if err != nil {
		x.release()
		return nil, err
	}
	if err := src.SetFD(fd, rtpoll.EventRead); err != nil {
		// released by the scheduler
		src.Unregister()
		return nil, err
	}
	return src, nil
}

func (x *Queue[T]) detach(src *rtpoll.Source) {
	x.logger.Debug().
		Str("priority", src.Priority().String()).
		Log("asyncq: queue destroyed, detaching source")
	src.ClearFD()
	src.Unregister()
}
