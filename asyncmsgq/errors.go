package asyncmsgq

import (
	"errors"
	"fmt"

	"github.com/joeycumines/go-rtcore/asyncq"
)

// Standard errors.
var (
	// ErrWouldBlock is returned by a non-waiting Post on a full queue.
	ErrWouldBlock = asyncq.ErrWouldBlock

	// ErrDestroyed is returned by operations on a destroyed queue, and is the
	// reply to a Send still pending when the queue was destroyed.
	ErrDestroyed = asyncq.ErrDestroyed

	// ErrFlushed is the reply to a Send discarded by Flush.
	ErrFlushed = errors.New("asyncmsgq: message flushed")

	// ErrInstalled is returned by ThreadMQ.Install, if already installed.
	ErrInstalled = errors.New("asyncmsgq: already installed")
)

// PanicError wraps a value recovered from a panicking Object.
type PanicError struct {
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("asyncmsgq: object panicked: %v", e.Value)
}

// Unwrap returns the panic value, if it is an error.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
