// Package entitystore provides an event-sourced entity store with windowed snapshot compaction.
//
// An entity has no row of its own. Its state is derived by folding the most recent events that
// were appended for it, oldest to newest, with last-write-wins per field. Each update appends
// one Update event carrying a partial diff and, whenever the window of the last K events is
// about to slide past its anchor, one Snapshot event carrying the complete state. Reading an
// entity therefore never scans more than K events, no matter how long its history is.
//
// Key types:
//   - Fields: a partial diff or a complete state (field name -> string value)
//   - Event / StoredEvent: a decoded log record and its scalar-only storage DTO
//   - Pool / Handle: the backend boundary (pooled connection or session with transaction control)
//   - Store: the transactional facade used by workers
//
// Common usage pattern:
//
//	store, err := entitystore.NewStore(engine, entitystore.WithLogger(logger))
//	if err != nil {
//		// handle error
//	}
//
//	tx, err := store.Begin(ctx)
//	if err != nil {
//		// handle error (ErrPoolTimeout when no handle became available)
//	}
//
//	if err = store.UpdateEntity(ctx, tx, 42, entitystore.Fields{"name": "alice"}); err != nil {
//		_ = store.Rollback(ctx, tx)
//		// handle error
//	}
//
//	state, err := store.GetEntity(ctx, tx, 42)
//	err = store.Commit(ctx, tx)
package entitystore
