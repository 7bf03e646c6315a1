// Package rtpoll implements a priority-ordered poll scheduler, which lets
// independent subsystems (device I/O, timers, inter-goroutine signaling)
// share one blocking wait per iteration, with deterministic callback order.
//
// # Iterations
//
// Each call to [Scheduler.Run] performs one iteration. Every live [Source]
// has its pre-wait callback called, in [Priority] order (ties broken by
// registration order), then a single ppoll(2) waits on the descriptors of all
// sources, bounded by the scheduler's deadline, then every post-wait
// callback is called, in the same order.
//
// A pre-wait callback may report that it already has work, which skips the
// wait for that iteration. This is how, for example, an [asyncq] consumer
// avoids sleeping while data is queued.
//
// # Mutation during iterations
//
// [Scheduler.Register] and [Source.Unregister] may be called from
// callbacks. Unregistered sources are marked dead immediately (their
// callbacks are never called again) but only removed at the next iteration
// boundary; registered sources join at the next boundary.
//
// # Thread Safety
//
// A Scheduler, and its sources, belong to the goroutine driving Run. The only
// methods safe to call from other goroutines are [Scheduler.State],
// [Scheduler.Metrics] and [Scheduler.Interrupt], the latter until Close.
// Calling Run from within a callback fails with [ErrReentrantRun].
//
// # Usage
//
//	sched, err := rtpoll.New()
//	if err != nil {
//	    return err
//	}
//	defer sched.Close()
//
//	src, err := sched.Register(rtpoll.Normal, rtpoll.Hooks{
//	    PostWait: func(s *rtpoll.Source) error {
//	        if s.Ready()&rtpoll.EventRead != 0 {
//	            // read from the device
//	        }
//	        return nil
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer src.Unregister()
//	_ = src.SetFD(deviceFD, rtpoll.EventRead)
//
//	for {
//	    sched.SetDeadline(period)
//	    if _, err := sched.Run(ctx); err != nil {
//	        return err
//	    }
//	}
//
// [asyncq]: https://pkg.go.dev/github.com/joeycumines/go-rtcore/asyncq
package rtpoll
