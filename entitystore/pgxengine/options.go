package pgxengine

import (
	"errors"

	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore/internal/sqlschema"
)

// Option defines a functional option for configuring an Engine.
type Option func(*Engine) error

// WithTableName sets the event table name for the Engine.
func WithTableName(tableName string) Option {
	return func(e *Engine) error {
		if err := sqlschema.ValidateTableName(tableName); err != nil {
			return errors.Join(ErrInvalidTableName, err)
		}

		e.tableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the Engine.
// Debug level receives executed SQL with timing, warn level receives cleanup failures.
func WithLogger(logger entitystore.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}
