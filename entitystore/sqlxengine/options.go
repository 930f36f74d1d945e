package sqlxengine

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

// WithDialect overrides the SQL dialect detected from the driver name.
// Valid values are DialectPostgres and DialectSQLite.
func WithDialect(dialect string) Option {
	return func(e *Engine) error {
		if dialect != DialectPostgres && dialect != DialectSQLite {
			return ErrUnsupportedDriver
		}

		e.dialect = dialect

		return nil
	}
}

// WithLogger sets the logger for the Engine.
// It logs executed SQL at debug level and cleanup failures at warn level.
func WithLogger(logger entitystore.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}
