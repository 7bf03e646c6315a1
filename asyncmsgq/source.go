//go:build unix

package asyncmsgq

import (
	"github.com/joeycumines/go-rtcore/rtpoll"
)

// ReadSource attaches the queue to a scheduler, as its consumer. Each
// iteration, queued messages are processed from the post-wait phase. Object
// errors go to the sender, or are logged, and never fail the iteration.
//
// As with asyncq.Queue.ReadSource, the caller unregisters the source.
func (x *Queue) ReadSource(s *rtpoll.Scheduler, priority rtpoll.Priority) (*rtpoll.Source, error) {
	return x.readSource(s, priority, nil)
}

func (x *Queue) readSource(s *rtpoll.Scheduler, priority rtpoll.Priority, after func(m *Message)) (*rtpoll.Source, error) {
	return x.q.ReadSource(s, priority, func(m *Message) error {
		x.process(m)
		if after != nil {
			after(m)
		}
		return nil
	})
}
