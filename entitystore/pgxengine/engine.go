package pgxengine

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore/internal/sqlschema"
)

const (
	logMsgSQLExecuted     = "executed sql for: "
	logMsgReleaseRollback = "rolling back open transaction on release failed"
	logAttrError          = "error"
	logAttrQuery          = "query"
	logAttrDurationMS     = "duration_ms"
	logActionRecentEvents = "recent_events"
	logActionAppendEvent  = "append_event"
	logActionCreateSchema = "create_schema"
	logActionTruncate     = "truncate"
)

var (
	// ErrNilPool is returned when NewEngine is called without a pool.
	ErrNilPool = errors.New("pgx pool must not be nil")

	// ErrInvalidTableName is returned when the configured table name is not a plain identifier.
	ErrInvalidTableName = errors.New("invalid event table name")

	// ErrNoActiveTransaction is returned when a connection is used without a running transaction.
	ErrNoActiveTransaction = errors.New("connection has no active transaction")

	// ErrTransactionActive is returned when Begin is called twice on one connection.
	ErrTransactionActive = errors.New("connection already has an active transaction")

	// ErrConnectionReleased is returned when a connection is used after Release.
	ErrConnectionReleased = errors.New("connection has already been released")

	// ErrBuildingQueryFailed is returned when an SQL statement could not be built.
	ErrBuildingQueryFailed = errors.New("building sql query failed")
)

// Engine is an entitystore.Pool backed by a pgxpool.Pool.
type Engine struct {
	pool      *pgxpool.Pool
	tableName string
	queries   sqlschema.QueryBuilder
	logger    entitystore.Logger
}

// NewEngine creates an Engine on pool.
func NewEngine(pool *pgxpool.Pool, options ...Option) (*Engine, error) {
	if pool == nil {
		return nil, ErrNilPool
	}

	e := &Engine{
		pool:      pool,
		tableName: sqlschema.DefaultTableName,
	}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	queries, err := sqlschema.NewQueryBuilder(sqlschema.DialectPostgres, e.tableName)
	if err != nil {
		return nil, errors.Join(ErrBuildingQueryFailed, err)
	}

	e.queries = queries

	return e, nil
}

// Acquire takes a connection out of the pgx pool, waiting until ctx expires.
func (e *Engine) Acquire(ctx context.Context) (entitystore.Handle, error) {
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	return &connection{engine: e, conn: conn}, nil
}

// Stats reports the pool's connection limit and the connections currently acquired.
func (e *Engine) Stats() entitystore.PoolStats {
	stat := e.pool.Stat()

	return entitystore.PoolStats{
		MaxHandles:   int(stat.MaxConns()),
		InUseHandles: int(stat.AcquiredConns()),
	}
}

// CreateSchema creates the event table and its lookup index if they do not exist.
func (e *Engine) CreateSchema(ctx context.Context) error {
	statements, err := sqlschema.CreateStatements(sqlschema.DialectPostgres, e.tableName)
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

// Truncate removes all events and restarts the id sequence.
func (e *Engine) Truncate(ctx context.Context) error {
	statement, err := sqlschema.TruncateStatement(sqlschema.DialectPostgres, e.tableName)
	if err != nil {
		return err
	}

	return e.exec(ctx, logActionTruncate, statement)
}

func (e *Engine) exec(ctx context.Context, action string, statement string) error {
	start := time.Now()
	_, err := e.pool.Exec(ctx, statement)
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
