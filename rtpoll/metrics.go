//go:build unix

package rtpoll

import (
	"sync"
	"time"

	"github.com/joeycumines/go-rtcore/internal/quantile"
)

// Metrics is a snapshot of iteration statistics, see WithMetrics.
type Metrics struct {
	// Iterations is the number of Run calls that started an iteration.
	Iterations uint64
	// Waits is the number of OS waits performed.
	Waits uint64
	// SkippedWaits is the number of iterations where a pre-wait callback
	// skipped the wait.
	SkippedWaits uint64
	// TimedOut, Interrupted and Errors count iterations by status.
	TimedOut    uint64
	Interrupted uint64
	Errors      uint64
	// Retries is the number of waits retried after EINTR.
	Retries uint64

	// Wait duration estimates.
	WaitP50 time.Duration
	WaitP99 time.Duration
	WaitMax time.Duration

	// Iteration duration estimates, including callbacks.
	IterationP50 time.Duration
	IterationP99 time.Duration
}

// metrics is the mutable state behind Metrics. All methods accept a nil
// receiver, which is the disabled state.
type metrics struct {
	mu           sync.Mutex
	snapshot     Metrics
	waitP50      *quantile.Estimator
	waitP99      *quantile.Estimator
	iterationP50 *quantile.Estimator
	iterationP99 *quantile.Estimator
}

func newMetrics() *metrics {
	return &metrics{
		waitP50:      quantile.New(0.50),
		waitP99:      quantile.New(0.99),
		iterationP50: quantile.New(0.50),
		iterationP99: quantile.New(0.99),
	}
}

func (m *metrics) recordIteration(status Status, d time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot.Iterations++
	switch status {
	case StatusTimedOut:
		m.snapshot.TimedOut++
	case StatusInterrupted:
		m.snapshot.Interrupted++
	case StatusError:
		m.snapshot.Errors++
	}
	m.iterationP50.Observe(float64(d))
	m.iterationP99.Observe(float64(d))
}

func (m *metrics) recordWait(d time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot.Waits++
	m.snapshot.WaitMax = max(m.snapshot.WaitMax, d)
	m.waitP50.Observe(float64(d))
	m.waitP99.Observe(float64(d))
}

func (m *metrics) recordSkip() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.snapshot.SkippedWaits++
	m.mu.Unlock()
}

func (m *metrics) recordEINTR() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.snapshot.Retries++
	m.mu.Unlock()
}

func (m *metrics) load() Metrics {
	if m == nil {
		return Metrics{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.snapshot
	v.WaitP50 = time.Duration(m.waitP50.Value())
	v.WaitP99 = time.Duration(m.waitP99.Value())
	v.IterationP50 = time.Duration(m.iterationP50.Value())
	v.IterationP99 = time.Duration(m.iterationP99.Value())
	return v
}

// Metrics returns a snapshot of the iteration statistics. It returns the zero
// value unless the scheduler was created WithMetrics(true). Safe to call from
// any goroutine.
func (x *Scheduler) Metrics() Metrics {
	return x.metrics.load()
}
