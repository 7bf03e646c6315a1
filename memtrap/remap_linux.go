//go:build linux

package memtrap

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

var pageSize = uintptr(os.Getpagesize())

func checkSupported() error {
	return nil
}

// substitute replaces the pages spanning [addr, addr+length) with a private,
// zero filled, anonymous mapping.
func substitute(addr, length uintptr) error {
	start := addr &^ (pageSize - 1)
	end := (addr + length + pageSize - 1) &^ (pageSize - 1)
	_, err := unix.MmapPtr(
		-1,
		0,
		unsafe.Pointer(start),
		end-start,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_FIXED,
	)
	return err
}
