package entitystore

import "time"

// Option defines a functional option for configuring a Store.
type Option func(*Store) error

// WithSnapshotInterval sets K, the maximum number of trailing events scanned to reconstruct an entity.
func WithSnapshotInterval(interval int) Option {
	return func(s *Store) error {
		if interval < minSnapshotInterval {
			return ErrInvalidSnapshotInterval
		}

		s.snapshotInterval = interval

		return nil
	}
}

// WithAcquireTimeout sets how long Begin waits for a backend handle before failing with ErrPoolTimeout.
func WithAcquireTimeout(timeout time.Duration) Option {
	return func(s *Store) error {
		if timeout <= 0 {
			return ErrInvalidAcquireTimeout
		}

		s.acquireTimeout = timeout

		return nil
	}
}

// WithLogger sets the logger for the Store.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: backend calls with execution timing (development use)
// Info level: appended snapshots (production-safe)
// Warn level: non-critical issues like a rollback of an already finished transaction
// Error level: backend failures that cause operation failures.
func WithLogger(logger Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Store.
// It receives operation durations, appended snapshots, pool timeouts, and backend errors.
func WithMetrics(collector MetricsCollector) Option {
	return func(s *Store) error {
		s.metricsCollector = collector
		return nil
	}
}
