// Package workload drives the entity store with a retryable two-update business transaction
// and checks the store's answers inside that transaction.
//
// A Unit updates the name and the age of one entity, reads back the two most recent updates and
// the folded state, and commits. Any mismatch is a ConsistencyViolation: a compaction or ordering
// bug, not a transient condition. Backend errors and violations share the same retry path, but are
// logged at different levels.
//
// Common usage pattern:
//
//	driver, err := workload.NewDriver(store, workload.WithLogger(logger))
//	if err != nil {
//		// handle error
//	}
//
//	outcome := driver.RunUnit(ctx, workload.NewUnit(42, "alice", 30))
//	if outcome.Abandoned {
//		// count it, the next unit runs anyway
//	}
package workload
