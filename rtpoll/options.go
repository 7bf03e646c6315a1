package rtpoll

import (
	"github.com/joeycumines/logiface"
)

// schedulerOptions holds configuration options for Scheduler creation.
type schedulerOptions struct {
	logger         *logiface.Logger[logiface.Event]
	metricsEnabled bool
}

// Option configures a Scheduler instance.
type Option interface {
	applyScheduler(*schedulerOptions) error
}

// schedulerOptionImpl implements Option.
type schedulerOptionImpl struct {
	applySchedulerFunc func(*schedulerOptions) error
}

func (o *schedulerOptionImpl) applyScheduler(opts *schedulerOptions) error {
	return o.applySchedulerFunc(opts)
}

// WithLogger attaches a structured logger. Callback failures, poll errors and
// interrupts are logged. A nil logger disables logging (the default).
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &schedulerOptionImpl{func(opts *schedulerOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMetrics enables iteration metrics, accessible via Scheduler.Metrics.
func WithMetrics(enabled bool) Option {
	return &schedulerOptionImpl{func(opts *schedulerOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// resolveOptions applies Option instances to schedulerOptions.
func resolveOptions(opts []Option) (*schedulerOptions, error) {
	cfg := &schedulerOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyScheduler(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
