//go:build unix

package rtpoll

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// newPipe returns the read and write ends of a pipe, closed on cleanup.
func newPipe(t *testing.T) (int, int) {
	t.Helper()
	var fds [2]int
	require.NoError(t, unix.Pipe(fds[:]))
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func newScheduler(t *testing.T, opts ...Option) *Scheduler {
	t.Helper()
	x, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = x.wake.Close() })
	return x
}

// recorder captures callback invocations, in order.
type recorder struct {
	calls []string
}

func (r *recorder) hooks(name string) Hooks {
	return Hooks{
		PreWait: func(*Source) (bool, error) {
			r.calls = append(r.calls, name+".pre")
			return false, nil
		},
		PostWait: func(*Source) error {
			r.calls = append(r.calls, name+".post")
			return nil
		},
		Data: name,
	}
}

func (r *recorder) reset() []string {
	calls := r.calls
	r.calls = nil
	return calls
}

// runNonBlocking runs a single iteration with a zero deadline.
func runNonBlocking(t *testing.T, x *Scheduler) (Status, error) {
	t.Helper()
	x.SetDeadline(0)
	return x.Run(context.Background())
}
