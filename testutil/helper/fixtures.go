package helper

import (
	"context"
	"math"
	"path/filepath"
	"slices"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/AntonStoeckl/snapshotting-entitystore-go/config"
	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore/boltengine"
	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore/sqlxengine"
)

// OpenSQLiteEngine creates a file backed SQLite database below t.TempDir with at most poolSize
// connections and returns an Engine on it with the schema in place.
func OpenSQLiteEngine(t testing.TB, poolSize int) *sqlxengine.Engine {
	t.Helper()

	db, err := sqlx.Open("sqlite", config.SQLiteDSN(filepath.Join(t.TempDir(), "entitystore.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	db.SetMaxOpenConns(poolSize)
	db.SetMaxIdleConns(poolSize)

	engine, err := sqlxengine.NewEngine(db)
	require.NoError(t, err)
	require.NoError(t, engine.CreateSchema(context.Background()))

	return engine
}

// OpenBoltEngine creates a bolt file below t.TempDir with at most poolSize handles.
func OpenBoltEngine(t testing.TB, poolSize int) *boltengine.Engine {
	t.Helper()

	engine, err := boltengine.Open(filepath.Join(t.TempDir(), "entitystore.bolt"), poolSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	return engine
}

// PostgresDSNOrSkip returns the PostgreSQL test DSN or skips the test when none is configured.
func PostgresDSNOrSkip(t testing.TB) string {
	t.Helper()

	env, err := config.TestDSNs()
	require.NoError(t, err)

	if env.PostgresDSN == "" {
		t.Skip("ENTITYSTORE_TEST_POSTGRES_DSN is not set")
	}

	return env.PostgresDSN
}

// AllEvents reads the complete history of entityID oldest-first in its own transaction.
func AllEvents(t testing.TB, ctx context.Context, pool entitystore.Pool, entityID entitystore.EntityID) entitystore.StoredEvents {
	t.Helper()

	h, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer h.Release()

	require.NoError(t, h.Begin(ctx))

	events, err := h.RecentEvents(ctx, entityID, math.MaxInt32)
	require.NoError(t, err)
	require.NoError(t, h.Rollback(ctx))

	slices.Reverse(events)

	return events
}

// EventTypes returns the types of events in order.
func EventTypes(events entitystore.StoredEvents) []entitystore.EventType {
	types := make([]entitystore.EventType, 0, len(events))
	for _, event := range events {
		types = append(types, event.Type)
	}

	return types
}
