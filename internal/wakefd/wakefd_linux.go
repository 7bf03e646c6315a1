//go:build linux

package wakefd

import (
	"golang.org/x/sys/unix"
)

// eventfd counters are written in host byte order; 1 is valid either way
// round, as any non-zero value makes the descriptor readable.
var wakeValue = [8]byte{1, 0, 0, 0, 0, 0, 0, 0}

// createWakeFd creates an eventfd, returned as both read and write ends.
func createWakeFd() (int, int, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	return fd, fd, err
}
