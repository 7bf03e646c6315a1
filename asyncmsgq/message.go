package asyncmsgq

// Shutdown is the code of the message, with no Object, that asks the
// realtime side of a ThreadMQ to stop.
const Shutdown = -1

// Object is the target of a message. ProcessMsg runs on the consuming
// goroutine, and its error is the reply to Send.
type Object interface {
	ProcessMsg(code int, data any, offset int64) error
}

// ObjectFunc adapts a function to Object.
type ObjectFunc func(code int, data any, offset int64) error

func (f ObjectFunc) ProcessMsg(code int, data any, offset int64) error {
	return f(code, data, offset)
}

// Message is a unit of work addressed to an Object. A message with a nil
// Object is still delivered, and completes successfully, which makes it
// useful as a marker, see Queue.WaitFor.
type Message struct {
	Object Object
	Code   int
	Data   any
	Offset int64
	// Free, if set, is called with Data once a posted message has been
	// processed or discarded. Never called for Send.
	Free func(data any)

	reply chan error
}

// complete finishes m, exactly once.
func (m *Message) complete(err error) {
	if m.reply != nil {
		// buffered, the sender may have given up
		m.reply <- err
		return
	}
	if m.Free != nil {
		m.Free(m.Data)
	}
}
