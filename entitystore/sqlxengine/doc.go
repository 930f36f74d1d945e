// Package sqlxengine provides a session based backend for the entitystore on top of sqlx.DB.
//
// Each acquired handle is a dedicated sqlx.Conn from the database/sql pool, and each transaction
// is a sqlx.Tx on that connection. The pool size is whatever the sqlx.DB is configured with
// (SetMaxOpenConns), and Acquire blocks until a connection is free or the context expires.
//
// Supported drivers:
//   - PostgreSQL via lib/pq (driver name "postgres")
//   - SQLite via modernc.org/sqlite (driver name "sqlite")
//
// Usage examples:
//
//	db, _ := sqlx.Open("postgres", dsn)
//	db.SetMaxOpenConns(16)
//	engine, _ := sqlxengine.NewEngine(db)
//	_ = engine.CreateSchema(ctx)
//	store, _ := entitystore.NewStore(engine)
//
//	// SQLite needs immediate transactions so that concurrent writers queue on the busy timeout
//	db, _ := sqlx.Open("sqlite", "file:bench.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate")
//	engine, _ := sqlxengine.NewEngine(db, sqlxengine.WithTableName("bench_event"))
package sqlxengine
