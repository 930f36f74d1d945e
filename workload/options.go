package workload

import (
	"time"

	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
)

// Option defines a functional option for configuring a Driver.
type Option func(*Driver) error

// WithMaxAttempts sets how often a unit is attempted before it is abandoned.
func WithMaxAttempts(maxAttempts int) Option {
	return func(d *Driver) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		d.maxAttempts = maxAttempts

		return nil
	}
}

// WithBaseDelay sets the base delay for the exponential backoff between attempts.
// Zero, the default, retries immediately.
func WithBaseDelay(delay time.Duration) Option {
	return func(d *Driver) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		d.baseDelay = delay

		return nil
	}
}

// WithMaxDelay caps the backoff delay before jitter is added.
func WithMaxDelay(delay time.Duration) Option {
	return func(d *Driver) error {
		if delay <= 0 {
			return ErrInvalidMaxDelay
		}

		d.maxDelay = delay

		return nil
	}
}

// WithJitterFactor sets the jitter factor (0.0 to 1.0) added on top of each backoff delay.
func WithJitterFactor(factor float64) Option {
	return func(d *Driver) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		d.jitterFactor = factor

		return nil
	}
}

// WithLogger sets the logger for the Driver.
//
// Info level: abandoned units
// Warn level: failed attempts caused by backend or pool errors
// Error level: consistency violations.
func WithLogger(logger entitystore.Logger) Option {
	return func(d *Driver) error {
		d.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Driver.
func WithMetrics(collector entitystore.MetricsCollector) Option {
	return func(d *Driver) error {
		d.metricsCollector = collector
		return nil
	}
}
