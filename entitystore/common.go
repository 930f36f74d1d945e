package entitystore

import (
	"errors"
	"time"
)

const (
	// DefaultSnapshotInterval is the maximum number of trailing events scanned to reconstruct an entity.
	DefaultSnapshotInterval = 10

	// DefaultAcquireTimeout bounds the wait for a backend handle in Store.Begin.
	DefaultAcquireTimeout = 10 * time.Second

	minSnapshotInterval = 2
)

var (
	// ErrNilPool is returned when a Store is constructed without a backend pool.
	ErrNilPool = errors.New("backend pool must not be nil")

	// ErrInvalidSnapshotInterval is returned when the snapshot interval is smaller than 2.
	ErrInvalidSnapshotInterval = errors.New("snapshot interval must be at least 2")

	// ErrInvalidAcquireTimeout is returned when the acquire timeout is not positive.
	ErrInvalidAcquireTimeout = errors.New("acquire timeout must be positive")

	// ErrPoolTimeout is returned when no backend handle became available within the acquire timeout.
	ErrPoolTimeout = errors.New("no backend handle became available within the acquire timeout")

	// ErrBackend is joined into every error caused by the backend pool, connection or transaction.
	ErrBackend = errors.New("backend error")

	// ErrAcquiringHandleFailed is returned when the pool failed for a reason other than the timeout.
	ErrAcquiringHandleFailed = errors.New("acquiring backend handle failed")

	// ErrBeginFailed is returned when the backend could not start a transaction.
	ErrBeginFailed = errors.New("beginning backend transaction failed")

	// ErrQueryingEventsFailed is returned when fetching recent events from the backend failed.
	ErrQueryingEventsFailed = errors.New("querying recent events failed")

	// ErrAppendingEventFailed is returned when the backend could not append an event.
	ErrAppendingEventFailed = errors.New("appending event failed")

	// ErrCommitFailed is returned when the backend transaction could not be committed.
	ErrCommitFailed = errors.New("committing backend transaction failed")

	// ErrRollbackFailed is returned when the backend transaction could not be rolled back.
	ErrRollbackFailed = errors.New("rolling back backend transaction failed")

	// ErrUnorderedEvents is returned when a backend returns recent events that are not strictly newest-first.
	ErrUnorderedEvents = errors.New("backend returned events out of order")

	// ErrNilTx is returned when a nil transaction is passed to a Store operation.
	ErrNilTx = errors.New("transaction must not be nil")

	// ErrTxFinished is returned when a transaction is used after Commit or Rollback.
	ErrTxFinished = errors.New("transaction has already been committed or rolled back")

	// ErrEmptyChange is returned when UpdateEntity is called without any field.
	ErrEmptyChange = errors.New("change must contain at least one field")

	// ErrInvalidCount is returned when GetRecentUpdates is called with a non-positive count.
	ErrInvalidCount = errors.New("count must be positive")
)
