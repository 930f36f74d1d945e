package sqlxengine_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
	. "github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore/sqlxengine"
	"github.com/AntonStoeckl/snapshotting-entitystore-go/testutil/helper"
)

func Test_Postgres_Append_And_Read_Back(t *testing.T) {
	// setup
	dsn := helper.PostgresDSNOrSkip(t)
	ctx := context.Background()

	db, err := sqlx.Open("postgres", dsn)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(2)

	engine, err := NewEngine(db, WithTableName("sqlx_engine_test_event"))
	require.NoError(t, err)
	require.NoError(t, engine.CreateSchema(ctx))
	require.NoError(t, engine.Truncate(ctx))
	assert.Equal(t, DialectPostgres, engine.Dialect())

	// act
	h := beginHandle(t, ctx, engine)
	first, err := h.AppendEvent(ctx, 42, entitystore.EventTypeUpdate, []byte(`{"name":"w0-1"}`))
	require.NoError(t, err)
	second, err := h.AppendEvent(ctx, 42, entitystore.EventTypeUpdate, []byte(`{"age":"37"}`))
	require.NoError(t, err)
	require.NoError(t, h.Commit(ctx))
	h.Release()

	// assert
	events := helper.AllEvents(t, ctx, engine, 42)
	require.Len(t, events, 2)
	assert.Equal(t, first, events[0].ID)
	assert.Equal(t, second, events[1].ID)
	assert.JSONEq(t, `{"age":"37"}`, string(events[1].PayloadJSON))
}
