package sqlxengine_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/snapshotting-entitystore-go/config"
	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
	. "github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore/sqlxengine"
	"github.com/AntonStoeckl/snapshotting-entitystore-go/testutil/helper"
)

func openSQLite(t *testing.T, poolSize int) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open("sqlite", config.SQLiteDSN(filepath.Join(t.TempDir(), "engine.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(poolSize)

	return db
}

func beginHandle(t *testing.T, ctx context.Context, engine *Engine) entitystore.Handle {
	t.Helper()

	h, err := engine.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, h.Begin(ctx))

	return h
}

func Test_NewEngine_Validates_Its_Input(t *testing.T) {
	db := openSQLite(t, 1)

	_, err := NewEngine(nil)
	assert.ErrorIs(t, err, ErrNilDB)

	_, err = NewEngine(sqlx.NewDb(db.DB, "mysql"))
	assert.ErrorIs(t, err, ErrUnsupportedDriver)

	_, err = NewEngine(db, WithTableName("drop table;"))
	assert.ErrorIs(t, err, ErrInvalidTableName)

	_, err = NewEngine(db, WithDialect("oracle"))
	assert.ErrorIs(t, err, ErrUnsupportedDriver)

	engine, err := NewEngine(db)
	require.NoError(t, err)
	assert.Equal(t, DialectSQLite, engine.Dialect())

	engine, err = NewEngine(sqlx.NewDb(db.DB, "sqlite3"), WithDialect(DialectPostgres))
	require.NoError(t, err)
	assert.Equal(t, DialectPostgres, engine.Dialect())
}

func Test_RecentEvents_Returns_Newest_First_Within_Limit(t *testing.T) {
	// setup
	ctx := context.Background()
	engine := helper.OpenSQLiteEngine(t, 1)
	h := beginHandle(t, ctx, engine)
	defer h.Release()

	var ids []entitystore.EventID
	for i, payload := range []string{`{"n":"1"}`, `{"n":"2"}`, `{"n":"3"}`} {
		id, err := h.AppendEvent(ctx, 21, entitystore.EventTypeUpdate, []byte(payload))
		require.NoError(t, err, "append %d", i)
		ids = append(ids, id)
	}

	_, err := h.AppendEvent(ctx, 22, entitystore.EventTypeSnapshot, []byte(`{"other":"x"}`))
	require.NoError(t, err)

	// act
	events, err := h.RecentEvents(ctx, 21, 2)

	// assert
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Less(t, ids[0], ids[1])
	assert.Less(t, ids[1], ids[2])
	assert.Equal(t, ids[2], events[0].ID)
	assert.Equal(t, ids[1], events[1].ID)
	assert.Equal(t, entitystore.EntityID(21), events[0].EntityID)
	assert.Equal(t, entitystore.EventTypeUpdate, events[0].Type)
	assert.JSONEq(t, `{"n":"3"}`, string(events[0].PayloadJSON))

	unknown, err := h.RecentEvents(ctx, 99, 10)
	require.NoError(t, err)
	assert.Empty(t, unknown)
}

func Test_Session_Lifecycle_Errors(t *testing.T) {
	// setup
	ctx := context.Background()
	engine := helper.OpenSQLiteEngine(t, 1)

	h, err := engine.Acquire(ctx)
	require.NoError(t, err)

	// act & assert
	assert.ErrorIs(t, h.Commit(ctx), ErrNoActiveTransaction)
	assert.ErrorIs(t, h.Rollback(ctx), ErrNoActiveTransaction)

	_, err = h.RecentEvents(ctx, 1, 1)
	assert.ErrorIs(t, err, ErrNoActiveTransaction)

	require.NoError(t, h.Begin(ctx))
	assert.ErrorIs(t, h.Begin(ctx), ErrTransactionActive)

	h.Release()
	h.Release()

	assert.ErrorIs(t, h.Begin(ctx), ErrSessionReleased)

	_, err = h.AppendEvent(ctx, 1, entitystore.EventTypeUpdate, []byte(`{}`))
	assert.ErrorIs(t, err, ErrSessionReleased)
}

func Test_Release_Rolls_Back_Open_Transaction(t *testing.T) {
	// setup
	ctx := context.Background()
	engine := helper.OpenSQLiteEngine(t, 1)

	h := beginHandle(t, ctx, engine)
	_, err := h.AppendEvent(ctx, 5, entitystore.EventTypeUpdate, []byte(`{"n":"1"}`))
	require.NoError(t, err)

	// act
	h.Release()

	// assert
	assert.Empty(t, helper.AllEvents(t, ctx, engine, 5))
	assert.Equal(t, 0, engine.Stats().InUseHandles)
}

func Test_Acquire_Waits_Until_Context_Expires(t *testing.T) {
	// setup
	ctx := context.Background()
	engine := helper.OpenSQLiteEngine(t, 1)

	holder, err := engine.Acquire(ctx)
	require.NoError(t, err)
	defer holder.Release()

	assert.Equal(t, entitystore.PoolStats{MaxHandles: 1, InUseHandles: 1}, engine.Stats())

	acquireCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	// act
	_, err = engine.Acquire(acquireCtx)

	// assert
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func Test_Truncate_Removes_All_Events(t *testing.T) {
	// setup
	ctx := context.Background()
	engine := helper.OpenSQLiteEngine(t, 1)

	h := beginHandle(t, ctx, engine)
	_, err := h.AppendEvent(ctx, 8, entitystore.EventTypeUpdate, []byte(`{"n":"1"}`))
	require.NoError(t, err)
	require.NoError(t, h.Commit(ctx))
	h.Release()

	// act
	require.NoError(t, engine.Truncate(ctx))

	// assert
	assert.Empty(t, helper.AllEvents(t, ctx, engine, 8))
}

func Test_Engine_With_Custom_Table_Name(t *testing.T) {
	// setup
	ctx := context.Background()
	db := openSQLite(t, 1)
	logger, logSpy := helper.NewSpyLogger()

	engine, err := NewEngine(db, WithTableName("bench_event"), WithLogger(logger))
	require.NoError(t, err)
	require.NoError(t, engine.CreateSchema(ctx))
	require.NoError(t, engine.CreateSchema(ctx))

	// act
	h := beginHandle(t, ctx, engine)
	_, err = h.AppendEvent(ctx, 1, entitystore.EventTypeUpdate, []byte(`{"n":"1"}`))
	require.NoError(t, err)
	require.NoError(t, h.Commit(ctx))
	h.Release()

	// assert
	var count int
	require.NoError(t, db.GetContext(ctx, &count, `SELECT COUNT(*) FROM "bench_event"`))
	assert.Equal(t, 1, count)
	assert.True(t, logSpy.HasDebugLogWithMessage("executed sql for: append_event").WithDurationMS().WithAttribute("query").Assert())
}
