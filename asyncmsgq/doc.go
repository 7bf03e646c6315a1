// Package asyncmsgq implements message passing on top of asyncq, between a
// control goroutine and a realtime goroutine.
//
// A [Message] is addressed to an [Object], and carries a code, arbitrary
// data, and an offset. [Queue.Post] is fire and forget, while [Queue.Send]
// blocks until the consumer processed the message, and returns the Object's
// error. The consumer processes messages one at a time ([Queue.ProcessOne]),
// until a given code ([Queue.WaitFor]), or from a scheduler
// ([Queue.ReadSource]).
//
// [ThreadMQ] bundles the queues in both directions, along with the
// conventional [Shutdown] handshake.
package asyncmsgq
