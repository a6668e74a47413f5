package borrowing

import (
	"errors"

	"github.com/AntonStoeckl/borrowing-ledger-go/ledger"
)

// ErrNilClock is returned when WithClock is given a nil Clock.
var ErrNilClock = errors.New("clock must not be nil")

// Option defines a functional option for configuring the Coordinator.
type Option func(*Coordinator) error

// WithClock sets the clock used for borrow dates, return dates and fee assessment.
func WithClock(clock Clock) Option {
	return func(c *Coordinator) error {
		if clock == nil {
			return ErrNilClock
		}

		c.clock = clock

		return nil
	}
}

// WithFeePolicy replaces the default five-day loan with a daily late fee of 5000.
func WithFeePolicy(policy ledger.FeePolicy) Option {
	return func(c *Coordinator) error {
		c.recordStore = ledger.NewBorrowingRecordStore(policy)
		return nil
	}
}

// WithRetryOptions sets a custom retry configuration for concurrency conflicts.
// Invalid retry options make NewCoordinator fail.
func WithRetryOptions(opts ...RetryOption) Option {
	return func(c *Coordinator) error {
		if _, err := buildRetryConfig(opts...); err != nil {
			return err
		}

		c.retryOptions = opts

		return nil
	}
}

// WithLogger sets the logger for the Coordinator.
//
// Info level: completed and rejected operations
// Error level: transaction failures.
func WithLogger(logger ledger.Logger) Option {
	return func(c *Coordinator) error {
		c.logger = logger
		return nil
	}
}

// WithContextualLogger sets a logger that receives the operation's context for trace correlation.
func WithContextualLogger(logger ledger.ContextualLogger) Option {
	return func(c *Coordinator) error {
		c.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for operation, retry and late fee metrics.
func WithMetrics(collector ledger.MetricsCollector) Option {
	return func(c *Coordinator) error {
		c.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector. Each borrow, return and listing gets a span.
func WithTracing(collector ledger.TracingCollector) Option {
	return func(c *Coordinator) error {
		c.tracingCollector = collector
		return nil
	}
}
