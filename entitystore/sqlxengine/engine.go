package sqlxengine

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore/internal/sqlschema"
)

const (
	// DialectPostgres selects PostgreSQL SQL generation.
	DialectPostgres = sqlschema.DialectPostgres

	// DialectSQLite selects SQLite SQL generation.
	DialectSQLite = sqlschema.DialectSQLite

	logMsgSQLExecuted     = "executed sql for: "
	logMsgReleaseRollback = "rolling back open transaction on release failed"
	logMsgCloseConnFailed = "closing database connection failed"
	logAttrError          = "error"
	logAttrQuery          = "query"
	logAttrDurationMS     = "duration_ms"
	logActionRecentEvents = "recent_events"
	logActionAppendEvent  = "append_event"
	logActionCreateSchema = "create_schema"
	logActionTruncate     = "truncate"
)

var (
	// ErrNilDB is returned when NewEngine is called without a database.
	ErrNilDB = errors.New("sqlx database must not be nil")

	// ErrUnsupportedDriver is returned for drivers other than postgres and sqlite.
	ErrUnsupportedDriver = errors.New("unsupported sql driver")

	// ErrInvalidTableName is returned when the configured table name is not a plain identifier.
	ErrInvalidTableName = errors.New("invalid event table name")

	// ErrNoActiveTransaction is returned when a session is used without a running transaction.
	ErrNoActiveTransaction = errors.New("session has no active transaction")

	// ErrTransactionActive is returned when Begin is called twice on one session.
	ErrTransactionActive = errors.New("session already has an active transaction")

	// ErrSessionReleased is returned when a session is used after Release.
	ErrSessionReleased = errors.New("session has already been released")

	// ErrBuildingQueryFailed is returned when an SQL statement could not be built.
	ErrBuildingQueryFailed = errors.New("building sql query failed")
)

// Engine is an entitystore.Pool backed by a sqlx.DB.
type Engine struct {
	db        *sqlx.DB
	dialect   string
	tableName string
	queries   sqlschema.QueryBuilder
	logger    entitystore.Logger
}

// NewEngine creates an Engine on db. The dialect is derived from the driver name unless WithDialect is given.
func NewEngine(db *sqlx.DB, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, ErrNilDB
	}

	e := &Engine{
		db:        db,
		dialect:   dialectForDriver(db.DriverName()),
		tableName: sqlschema.DefaultTableName,
	}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	if e.dialect == "" {
		return nil, ErrUnsupportedDriver
	}

	queries, err := sqlschema.NewQueryBuilder(e.dialect, e.tableName)
	if err != nil {
		return nil, errors.Join(ErrBuildingQueryFailed, err)
	}

	e.queries = queries

	return e, nil
}

func dialectForDriver(driverName string) string {
	switch driverName {
	case "postgres", "pgx":
		return DialectPostgres
	case "sqlite", "sqlite3":
		return DialectSQLite
	default:
		return ""
	}
}

// Dialect returns the SQL dialect in use.
func (e *Engine) Dialect() string {
	return e.dialect
}

// Acquire takes a dedicated connection out of the database/sql pool, waiting until ctx expires.
func (e *Engine) Acquire(ctx context.Context) (entitystore.Handle, error) {
	conn, err := e.db.Connx(ctx)
	if err != nil {
		return nil, err
	}

	return &session{engine: e, conn: conn}, nil
}

// Stats reports the configured connection limit and the connections currently in use.
// With an unlimited pool MaxHandles is 0.
func (e *Engine) Stats() entitystore.PoolStats {
	stats := e.db.Stats()

	return entitystore.PoolStats{
		MaxHandles:   stats.MaxOpenConnections,
		InUseHandles: stats.InUse,
	}
}

// CreateSchema creates the event table and its lookup index if they do not exist.
func (e *Engine) CreateSchema(ctx context.Context) error {
	statements, err := sqlschema.CreateStatements(e.dialect, e.tableName)
	if err != nil {
		return err
	}

	for _, statement := range statements {
		if err = e.exec(ctx, logActionCreateSchema, statement); err != nil {
			return err
		}
	}

	return nil
}

// Truncate removes all events.
func (e *Engine) Truncate(ctx context.Context) error {
	statement, err := sqlschema.TruncateStatement(e.dialect, e.tableName)
	if err != nil {
		return err
	}

	return e.exec(ctx, logActionTruncate, statement)
}

func (e *Engine) exec(ctx context.Context, action string, statement string) error {
	start := time.Now()
	_, err := e.db.ExecContext(ctx, statement)
	e.logQuery(action, statement, time.Since(start))

	return err
}

// logQuery logs executed SQL at debug level if the logger is configured.
func (e *Engine) logQuery(action string, query string, duration time.Duration) {
	if e.logger != nil {
		e.logger.Debug(
			logMsgSQLExecuted+action,
			logAttrDurationMS, entitystore.ToMilliseconds(duration),
			logAttrQuery, query,
		)
	}
}

// logWarn logs cleanup failures at warn level if the logger is configured.
func (e *Engine) logWarn(message string, err error) {
	if e.logger != nil {
		e.logger.Warn(message, logAttrError, err.Error())
	}
}
