package harness

import "github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"

// Option defines a functional option for configuring a Harness.
type Option func(*Harness) error

// WithSeed makes the per-worker seeds of every session reproducible.
func WithSeed(seed uint64) Option {
	return func(h *Harness) error {
		h.seed = seed
		return nil
	}
}

// WithLogger sets the logger for the Harness. It logs the start and the result of every session at info level.
func WithLogger(logger entitystore.Logger) Option {
	return func(h *Harness) error {
		h.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Harness.
func WithMetrics(collector entitystore.MetricsCollector) Option {
	return func(h *Harness) error {
		h.metricsCollector = collector
		return nil
	}
}
