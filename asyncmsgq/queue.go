package asyncmsgq

import (
	"context"

	"github.com/joeycumines/go-rtcore/asyncq"
	"github.com/joeycumines/logiface"
)

// Queue carries messages from any number of goroutines to the one goroutine
// consuming it, either directly (ProcessOne, WaitFor, Flush) or via a
// scheduler (ReadSource).
type Queue struct {
	logger *logiface.Logger[logiface.Event]
	q      *asyncq.Queue[*Message]
}

// New creates a queue with room for at least capacity messages.
func New(capacity int, opts ...Option) (*Queue, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	q, err := asyncq.New[*Message](capacity, asyncq.WithLogger(cfg.logger))
	if err != nil {
		return nil, err
	}
	return &Queue{logger: cfg.logger, q: q}, nil
}

// Cap returns the number of slots.
func (x *Queue) Cap() int {
	return x.q.Cap()
}

// Len returns the number of queued messages.
func (x *Queue) Len() int {
	return x.q.Len()
}

// Post enqueues m without waiting for it to be processed. If the queue is
// full, it fails with ErrWouldBlock, unless wait is true. The realtime side
// posts with wait false.
//
// On failure, m was not enqueued, and Free is not called.
func (x *Queue) Post(m Message, wait bool) error {
	m.reply = nil
	return x.q.Push(&m, wait)
}

// Send enqueues m, then blocks until it was processed, returning the
// Object's error. Must not be called from the consuming goroutine.
//
// If ctx is canceled after m was enqueued, Send returns ctx.Err(), but m
// is still processed.
func (x *Queue) Send(ctx context.Context, m Message) error {
	reply := make(chan error, 1)
	m.reply = reply
	if err := x.q.PushContext(ctx, &m); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ProcessOne processes the oldest message, if any, reporting whether one
// was processed. If wait is true, it blocks until a message arrives.
func (x *Queue) ProcessOne(wait bool) (bool, error) {
	m, err := x.q.Pop(wait)
	switch err {
	case nil:
	case asyncq.ErrWouldBlock:
		return false, nil
	default:
		return false, err
	}
	x.process(m)
	return true, nil
}

// WaitFor processes messages, blocking as necessary, until one with the
// given code has been processed.
func (x *Queue) WaitFor(ctx context.Context, code int) error {
	for {
		m, err := x.q.PopContext(ctx)
		if err != nil {
			return err
		}
		found := m.Code == code
		x.process(m)
		if found {
			return nil
		}
	}
}

// Flush empties the queue without blocking. If run is true the messages are
// processed, otherwise they are discarded, and pending Send calls fail with
// ErrFlushed.
func (x *Queue) Flush(run bool) {
	for {
		m, err := x.q.Pop(false)
		if err != nil {
			return
		}
		if run {
			x.process(m)
		} else {
			m.complete(ErrFlushed)
		}
	}
}

// Destroy releases the queue. Messages still queued are discarded, with
// pending Send calls failing with ErrDestroyed. Idempotent.
func (x *Queue) Destroy() {
	x.q.Destroy(func(m *Message) {
		m.complete(ErrDestroyed)
	})
}

func (x *Queue) process(m *Message) {
	err := dispatch(m)
	if err != nil && m.reply == nil {
		x.logger.Err().
			Err(err).
			Int("code", m.Code).
			Log("asyncmsgq: posted message failed")
	}
	m.complete(err)
}

func dispatch(m *Message) (err error) {
	if m.Object == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = PanicError{Value: r}
		}
	}()
	return m.Object.ProcessMsg(m.Code, m.Data, m.Offset)
}
