//go:build !linux

package memtrap

import (
	"errors"
)

// ErrUnsupported is returned by Install on platforms without fault
// absorption.
var ErrUnsupported = errors.New("memtrap: unsupported platform")

func checkSupported() error {
	return ErrUnsupported
}

func substitute(addr, length uintptr) error {
	return ErrUnsupported
}
