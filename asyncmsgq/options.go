package asyncmsgq

import (
	"github.com/joeycumines/logiface"
)

// queueOptions holds configuration options for Queue creation.
type queueOptions struct {
	logger *logiface.Logger[logiface.Event]
}

// Option configures a Queue or ThreadMQ instance.
type Option interface {
	applyQueue(*queueOptions) error
}

// queueOptionImpl implements Option.
type queueOptionImpl struct {
	applyQueueFunc func(*queueOptions) error
}

func (o *queueOptionImpl) applyQueue(opts *queueOptions) error {
	return o.applyQueueFunc(opts)
}

// WithLogger attaches a structured logger, also used by the underlying
// asyncq.Queue. Errors from posted messages, which have no sender to reply
// to, are logged. A nil logger disables logging (the default).
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &queueOptionImpl{func(opts *queueOptions) error {
		opts.logger = logger
		return nil
	}}
}

func resolveOptions(opts []Option) (*queueOptions, error) {
	cfg := &queueOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyQueue(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
