package asyncq

import (
	"github.com/joeycumines/logiface"
)

// queueOptions holds configuration options for Queue creation.
type queueOptions struct {
	logger        *logiface.Logger[logiface.Event]
	noDescriptors bool
}

// Option configures a Queue instance.
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

// WithLogger attaches a structured logger. A nil logger disables logging
// (the default).
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &queueOptionImpl{func(opts *queueOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithoutDescriptors creates a purely in-memory queue. ReadFD and WriteFD
// return -1, and the queue cannot be attached to a scheduler.
func WithoutDescriptors() Option {
	return &queueOptionImpl{func(opts *queueOptions) error {
		opts.noDescriptors = true
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
