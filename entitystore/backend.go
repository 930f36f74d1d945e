package entitystore

import "context"

// Pool hands out backend handles. Acquire must honor ctx: the Store bounds the wait
// with its acquire timeout and reports an expired deadline as ErrPoolTimeout.
type Pool interface {
	Acquire(ctx context.Context) (Handle, error)
}

// Handle is a pooled connection or session, exclusively owned between Acquire and Release.
//
// RecentEvents returns at most count events for entityID, newest-first.
// Release returns the handle to its pool and is called exactly once per Acquire.
type Handle interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	AppendEvent(ctx context.Context, entityID EntityID, eventType EventType, payloadJSON []byte) (EventID, error)
	RecentEvents(ctx context.Context, entityID EntityID, count int) (StoredEvents, error)
	Release()
}

// PoolStats is a point-in-time view of a pool's capacity.
type PoolStats struct {
	MaxHandles   int
	InUseHandles int
}

// Available returns how many handles could be acquired without waiting.
func (s PoolStats) Available() int {
	return s.MaxHandles - s.InUseHandles
}

// StatsReporter is implemented by pools that can report their capacity.
type StatsReporter interface {
	Stats() PoolStats
}
