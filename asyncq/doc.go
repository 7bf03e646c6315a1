// Package asyncq implements a bounded FIFO queue, for handing values between
// a realtime goroutine and a worker goroutine, without unbounded blocking on
// the realtime side.
//
// # Blocking and Non-Blocking Use
//
// Push and Pop accept a wait flag. A realtime goroutine passes false, and
// handles ErrWouldBlock, typically by waiting on the queue's readiness
// descriptors via an [rtpoll.Scheduler] (see ReadSource and WriteSource). A
// worker goroutine passes true, or uses PushContext and PopContext.
//
// # End of Stream
//
// The queue never interprets values. Signaling the end of a stream is up to
// the application, e.g. by pushing an agreed sentinel value, or by
// destroying the queue.
//
// # Destruction
//
// Destroy wakes every blocked caller (with ErrDestroyed), hands any values
// still queued to a drain callback, and closes the descriptors once no
// scheduler source still polls them.
//
// [rtpoll.Scheduler]: https://pkg.go.dev/github.com/joeycumines/go-rtcore/rtpoll#Scheduler
package asyncq
