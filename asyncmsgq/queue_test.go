package asyncmsgq

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueue(t *testing.T, capacity int, opts ...Option) *Queue {
	t.Helper()
	x, err := New(capacity, opts...)
	require.NoError(t, err)
	t.Cleanup(x.Destroy)
	return x
}

type call struct {
	code   int
	data   any
	offset int64
}

// recorder is an Object that records its calls, failing with err.
type recorder struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (r *recorder) ProcessMsg(code int, data any, offset int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{code, data, offset})
	return r.err
}

func (r *recorder) codes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var codes []int
	for _, c := range r.calls {
		codes = append(codes, c.code)
	}
	return codes
}

func TestNew_InvalidCapacity(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)
}

func TestQueue_Send(t *testing.T) {
	x := newQueue(t, 1)
	errFail := errors.New("some error")
	r := &recorder{err: errFail}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ok, err := x.ProcessOne(true)
		assert.True(t, ok)
		assert.NoError(t, err)
	}()

	err := x.Send(context.Background(), Message{Object: r, Code: 7, Data: "data", Offset: -3})
	assert.Same(t, errFail, err)
	<-done
	assert.Equal(t, []call{{7, "data", -3}}, r.calls)
}

func TestQueue_SendNilObject(t *testing.T) {
	x := newQueue(t, 1)
	go func() { _, _ = x.ProcessOne(true) }()
	assert.NoError(t, x.Send(context.Background(), Message{Code: 1}))
}

func TestQueue_SendPanic(t *testing.T) {
	x := newQueue(t, 1)
	errCause := errors.New("cause")
	go func() { _, _ = x.ProcessOne(true) }()
	err := x.Send(context.Background(), Message{Object: ObjectFunc(func(int, any, int64) error {
		panic(errCause)
	})})
	var pe PanicError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, errCause)
}

func TestQueue_SendContext(t *testing.T) {
	x := newQueue(t, 1)
	r := &recorder{}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := x.Send(ctx, Message{Object: r, Code: 1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// still delivered, and completing it must not block
	ok, err := x.ProcessOne(false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []int{1}, r.codes())

	// full queue
	require.NoError(t, x.Post(Message{Code: 2}, false))
	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, x.Send(ctx, Message{Code: 3}), context.DeadlineExceeded)
	assert.Equal(t, 1, x.Len())
}

func TestQueue_Post(t *testing.T) {
	var buf bytes.Buffer
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(&buf), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(logiface.LevelError),
	).Logger()
	x := newQueue(t, 2, WithLogger(logger))
	r := &recorder{err: errors.New("some error")}

	var freed []any
	free := func(data any) { freed = append(freed, data) }

	require.NoError(t, x.Post(Message{Object: r, Code: 1, Data: "a", Free: free}, false))
	require.NoError(t, x.Post(Message{Object: r, Code: 2, Data: "b", Free: free}, false))
	assert.ErrorIs(t, x.Post(Message{Code: 3}, false), ErrWouldBlock)
	assert.Empty(t, freed)

	for i := 0; i < 2; i++ {
		ok, err := x.ProcessOne(false)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := x.ProcessOne(false)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []int{1, 2}, r.codes())
	assert.Equal(t, []any{"a", "b"}, freed)
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("asyncmsgq: posted message failed")))
}

func TestQueue_WaitFor(t *testing.T) {
	x := newQueue(t, 8)
	r := &recorder{}
	for code := 1; code <= 4; code++ {
		require.NoError(t, x.Post(Message{Object: r, Code: code}, false))
	}
	require.NoError(t, x.WaitFor(context.Background(), 3))
	assert.Equal(t, []int{1, 2, 3}, r.codes())
	assert.Equal(t, 1, x.Len())

	go func() {
		time.Sleep(10 * time.Millisecond)
		assert.NoError(t, x.Post(Message{Code: Shutdown}, true))
	}()
	require.NoError(t, x.WaitFor(context.Background(), Shutdown))
	assert.Equal(t, []int{1, 2, 3, 4}, r.codes())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, x.WaitFor(ctx, Shutdown), context.DeadlineExceeded)
}

func TestQueue_Flush(t *testing.T) {
	x := newQueue(t, 4)
	r := &recorder{}

	sent := make(chan error, 1)
	go func() { sent <- x.Send(context.Background(), Message{Object: r, Code: 1}) }()
	require.Eventually(t, func() bool { return x.Len() == 1 }, time.Second, time.Millisecond)

	var freed int
	require.NoError(t, x.Post(Message{Object: r, Code: 2, Free: func(any) { freed++ }}, false))

	x.Flush(false)
	assert.ErrorIs(t, <-sent, ErrFlushed)
	assert.Equal(t, 1, freed)
	assert.Empty(t, r.codes())
	assert.Zero(t, x.Len())

	require.NoError(t, x.Post(Message{Object: r, Code: 3}, false))
	require.NoError(t, x.Post(Message{Object: r, Code: 4}, false))
	x.Flush(true)
	assert.Equal(t, []int{3, 4}, r.codes())
	assert.Zero(t, x.Len())
}

func TestQueue_Destroy(t *testing.T) {
	x := newQueue(t, 4)
	r := &recorder{}

	sent := make(chan error, 1)
	go func() { sent <- x.Send(context.Background(), Message{Object: r, Code: 1}) }()
	require.Eventually(t, func() bool { return x.Len() == 1 }, time.Second, time.Millisecond)

	var freed int
	require.NoError(t, x.Post(Message{Code: 2, Free: func(any) { freed++ }}, false))

	x.Destroy()
	assert.ErrorIs(t, <-sent, ErrDestroyed)
	assert.Equal(t, 1, freed)
	assert.Empty(t, r.codes())

	assert.ErrorIs(t, x.Post(Message{}, false), ErrDestroyed)
	assert.ErrorIs(t, x.Send(context.Background(), Message{}), ErrDestroyed)
	_, err := x.ProcessOne(true)
	assert.ErrorIs(t, err, ErrDestroyed)
	assert.ErrorIs(t, x.WaitFor(context.Background(), 1), ErrDestroyed)
	x.Flush(true)
	x.Destroy()
}
