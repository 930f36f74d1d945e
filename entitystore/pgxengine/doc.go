// Package pgxengine provides a PostgreSQL backend for the entitystore on raw pooled pgx connections.
//
// A handle is a *pgxpool.Conn held exclusively between Acquire and Release, and a transaction is
// a pgx.Tx on that connection. Statements are built with goqu as prepared statements.
//
// Usage example:
//
//	pool, _ := pgxpool.New(ctx, dsn)
//	engine, _ := pgxengine.NewEngine(pool, pgxengine.WithTableName("event"))
//	_ = engine.CreateSchema(ctx)
//	store, _ := entitystore.NewStore(engine, entitystore.WithSnapshotInterval(10))
package pgxengine
