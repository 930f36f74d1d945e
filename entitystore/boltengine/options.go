package boltengine

import (
	"time"

	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
)

// Option defines a functional option for configuring an Engine.
type Option func(*Engine) error

// WithOpenTimeout sets how long Open waits for the file lock of the database.
func WithOpenTimeout(timeout time.Duration) Option {
	return func(e *Engine) error {
		if timeout <= 0 {
			return ErrInvalidOpenTimeout
		}

		e.openTimeout = timeout

		return nil
	}
}

// WithLogger sets the logger for the Engine.
func WithLogger(logger entitystore.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}
