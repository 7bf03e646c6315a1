package rtpoll

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID parses the current goroutine's ID from its stack header, which
// looks like "goroutine 123 [running]:".
func goroutineID() uint64 {
	var buf [64]byte
	b := bytes.TrimPrefix(buf[:runtime.Stack(buf[:], false)], []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}
