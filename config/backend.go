package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore/boltengine"
	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore/pgxengine"
	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore/sqlxengine"
)

const (
	defaultMaxConnLifetime   = time.Hour
	defaultMaxConnIdleTime   = time.Minute * 5
	defaultHealthCheckPeriod = time.Minute
	defaultConnectTimeout    = time.Second * 5
	sqliteBusyTimeoutMS      = 10000
)

// ErrUnknownBackend is returned for an unsupported backend type.
var ErrUnknownBackend = errors.New("unknown backend type")

// Backend is a provisioned storage backend: a handle pool plus schema management.
type Backend interface {
	entitystore.Pool
	CreateSchema(ctx context.Context) error
	Truncate(ctx context.Context) error
	Close() error
}

// SQLiteDSN returns a modernc.org/sqlite DSN for path. Transactions take the write lock up front
// and wait on it for up to the busy timeout, which serializes concurrent workers.
func SQLiteDSN(path string) string {
	return fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_txlock=immediate",
		path, sqliteBusyTimeoutMS,
	)
}

// OpenBackend opens and connects the backend described by cfg.
func OpenBackend(ctx context.Context, cfg BackendConfig, logger entitystore.Logger) (Backend, error) {
	switch cfg.Type {
	case BackendPGX:
		return openPGX(ctx, cfg, logger)
	case BackendSQLXPostgres:
		db, err := sqlx.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres db: %w", err)
		}

		return openSQLX(ctx, db, cfg, logger)
	case BackendSQLXSQLite:
		db, err := sqlx.Open("sqlite", SQLiteDSN(cfg.Path))
		if err != nil {
			return nil, fmt.Errorf("open sqlite db: %w", err)
		}

		return openSQLX(ctx, db, cfg, logger)
	case BackendBolt:
		engine, err := boltengine.Open(cfg.Path, cfg.PoolSize, boltengine.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("open bolt db: %w", err)
		}

		return engine, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Type)
	}
}

type pgxBackend struct {
	*pgxengine.Engine
	pool *pgxpool.Pool
}

func (b pgxBackend) Close() error {
	b.pool.Close()
	return nil
}

func openPGX(ctx context.Context, cfg BackendConfig, logger entitystore.Logger) (Backend, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse pgx pool config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.PoolSize) //nolint:gosec // pool sizes are small
	poolConfig.MinConns = 0
	poolConfig.MaxConnLifetime = defaultMaxConnLifetime
	poolConfig.MaxConnIdleTime = defaultMaxConnIdleTime
	poolConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	poolConfig.ConnConfig.ConnectTimeout = defaultConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	engine, err := pgxengine.NewEngine(pool, pgxengine.WithTableName(cfg.TableName), pgxengine.WithLogger(logger))
	if err != nil {
		pool.Close()
		return nil, err
	}

	return pgxBackend{Engine: engine, pool: pool}, nil
}

type sqlxBackend struct {
	*sqlxengine.Engine
	db *sqlx.DB
}

func (b sqlxBackend) Close() error {
	return b.db.Close()
}

func openSQLX(ctx context.Context, db *sqlx.DB, cfg BackendConfig, logger entitystore.Logger) (Backend, error) {
	db.SetMaxOpenConns(cfg.PoolSize)
	db.SetMaxIdleConns(cfg.PoolSize)
	db.SetConnMaxLifetime(defaultMaxConnLifetime)
	db.SetConnMaxIdleTime(defaultMaxConnIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	engine, err := sqlxengine.NewEngine(db, sqlxengine.WithTableName(cfg.TableName), sqlxengine.WithLogger(logger))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return sqlxBackend{Engine: engine, db: db}, nil
}
