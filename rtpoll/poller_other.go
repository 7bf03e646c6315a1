//go:build unix && !linux

package rtpoll

import (
	"time"

	"golang.org/x/sys/unix"
)

// pollWait uses poll(2). The timeout is rounded up to the next millisecond,
// so a deadline never fires early.
func pollWait(fds []unix.PollFd, timeout time.Duration) (int, error) {
	ms := -1
	if timeout >= 0 {
		ms = int((timeout + time.Millisecond - 1) / time.Millisecond)
	}
	return unix.Poll(fds, ms)
}
