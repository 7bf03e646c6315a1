package asyncq

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueue[T any](t *testing.T, capacity int, opts ...Option) *Queue[T] {
	t.Helper()
	x, err := New[T](capacity, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { x.Destroy(nil) })
	return x
}

func TestNew_Capacity(t *testing.T) {
	for _, tc := range []struct {
		capacity int
		want     int
	}{
		{1, 1},
		{2, 2},
		{3, 4},
		{4, 4},
		{5, 8},
		{1000, 1024},
	} {
		x := newQueue[int](t, tc.capacity, WithoutDescriptors())
		assert.Equal(t, tc.want, x.Cap(), "capacity %d", tc.capacity)
	}

	for _, capacity := range []int{0, -1, maxCapacity + 1} {
		_, err := New[int](capacity)
		assert.ErrorIs(t, err, ErrInvalidCapacity, "capacity %d", capacity)
	}
}

func TestQueue_FIFO(t *testing.T) {
	x := newQueue[int](t, 16)
	for i := 0; i < 16; i++ {
		require.NoError(t, x.Push(i, false))
	}
	assert.Equal(t, 16, x.Len())
	for i := 0; i < 16; i++ {
		v, err := x.Pop(false)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	_, err := x.Pop(false)
	assert.ErrorIs(t, err, ErrWouldBlock)
}

func TestQueue_Wraparound(t *testing.T) {
	x := newQueue[int](t, 4, WithoutDescriptors())
	next, want := 0, 0
	for round := 0; round < 100; round++ {
		for x.Push(next, false) == nil {
			next++
		}
		assert.Equal(t, 4, x.Len())
		for i := 0; i < 3; i++ {
			v, err := x.Pop(false)
			require.NoError(t, err)
			require.Equal(t, want, v)
			want++
		}
	}
}

func TestQueue_CapacityOne(t *testing.T) {
	x := newQueue[string](t, 1)

	require.NoError(t, x.Push("x", false))
	assert.ErrorIs(t, x.Push("y", false), ErrWouldBlock)

	v, err := x.Pop(false)
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	require.NoError(t, x.Push("y", false))
	v, err = x.Pop(false)
	require.NoError(t, err)
	assert.Equal(t, "y", v)
}

func TestQueue_Peek(t *testing.T) {
	x := newQueue[int](t, 2)
	_, ok := x.Peek()
	assert.False(t, ok)

	require.NoError(t, x.Push(1, false))
	require.NoError(t, x.Push(2, false))
	v, ok := x.Peek()
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, x.Len())
}

func TestQueue_PushWaitUnblockedByPop(t *testing.T) {
	x := newQueue[int](t, 1)
	require.NoError(t, x.Push(1, false))

	done := make(chan error, 1)
	go func() { done <- x.Push(2, true) }()

	select {
	case err := <-done:
		t.Fatalf("push returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	v, err := x.Pop(false)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("push did not unblock")
	}
	v, err = x.Pop(false)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestQueue_PopWaitUnblockedByPush(t *testing.T) {
	x := newQueue[int](t, 4)

	done := make(chan int, 1)
	go func() {
		v, err := x.Pop(true)
		assert.NoError(t, err)
		done <- v
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, x.Push(7, false))

	select {
	case v := <-done:
		assert.Equal(t, 7, v)
	case <-time.After(5 * time.Second):
		t.Fatal("pop did not unblock")
	}
}

func TestQueue_DestroyWakesPop(t *testing.T) {
	x := newQueue[int](t, 4)

	done := make(chan error, 1)
	go func() {
		_, err := x.Pop(true)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	x.Destroy(nil)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrDestroyed)
	case <-time.After(5 * time.Second):
		t.Fatal("pop did not unblock")
	}
}

func TestQueue_DestroyWakesPush(t *testing.T) {
	x := newQueue[int](t, 1)
	require.NoError(t, x.Push(1, false))

	done := make(chan error, 1)
	go func() { done <- x.Push(2, true) }()

	time.Sleep(20 * time.Millisecond)
	var drained []int
	x.Destroy(func(v int) { drained = append(drained, v) })

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrDestroyed)
	case <-time.After(5 * time.Second):
		t.Fatal("push did not unblock")
	}
	assert.Equal(t, []int{1}, drained)
}

func TestQueue_DestroyDrain(t *testing.T) {
	x := newQueue[int](t, 8)
	for i := 0; i < 5; i++ {
		require.NoError(t, x.Push(i, false))
	}
	_, err := x.Pop(false)
	require.NoError(t, err)

	var drained []int
	x.Destroy(func(v int) { drained = append(drained, v) })
	assert.Equal(t, []int{1, 2, 3, 4}, drained)

	// idempotent
	x.Destroy(func(v int) { t.Errorf("unexpected drain: %d", v) })

	assert.ErrorIs(t, x.Push(9, false), ErrDestroyed)
	assert.ErrorIs(t, x.Push(9, true), ErrDestroyed)
	_, err = x.Pop(false)
	assert.ErrorIs(t, err, ErrDestroyed)
	_, err = x.Pop(true)
	assert.ErrorIs(t, err, ErrDestroyed)
	_, ok := x.Peek()
	assert.False(t, ok)
	assert.Equal(t, 0, x.Len())
}

func TestQueue_Context(t *testing.T) {
	x := newQueue[int](t, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := x.PopContext(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, x.Push(1, false))
	ctx, cancel = context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	assert.ErrorIs(t, x.PushContext(ctx, 2), context.Canceled)

	// still usable
	v, err := x.PopContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	const (
		producers = 4
		perProd   = 1000
	)
	type item struct{ producer, seq int }
	x := newQueue[item](t, 8)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProd; i++ {
				if !assert.NoError(t, x.Push(item{p, i}, true)) {
					return
				}
			}
		}()
	}

	next := make([]int, producers)
	for n := 0; n < producers*perProd; n++ {
		v, err := x.Pop(true)
		require.NoError(t, err)
		require.Equal(t, next[v.producer], v.seq)
		next[v.producer]++
	}
	wg.Wait()
	assert.Equal(t, 0, x.Len())
}

func TestQueue_WithoutDescriptors(t *testing.T) {
	x := newQueue[int](t, 2, WithoutDescriptors(), nil)
	assert.Equal(t, -1, x.ReadFD())
	assert.Equal(t, -1, x.WriteFD())
	require.NoError(t, x.Push(1, false))
	v, err := x.Pop(false)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}
