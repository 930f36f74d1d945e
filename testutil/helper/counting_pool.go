package helper

import (
	"context"
	"errors"
	"sync"

	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
)

var (
	// ErrInjectedCommitFailure is returned by a CountingPool handle when commit failures are switched on.
	ErrInjectedCommitFailure = errors.New("injected commit failure")

	// ErrInjectedBeginFailure is returned by a CountingPool handle when begin failures are switched on.
	ErrInjectedBeginFailure = errors.New("injected begin failure")
)

// PoolCalls is a snapshot of the calls a CountingPool has seen.
type PoolCalls struct {
	Acquires  int
	Releases  int
	Begins    int
	Commits   int
	Rollbacks int
	Appends   int
	Reads     int
}

// Outstanding returns how many handles were acquired but not released.
func (c PoolCalls) Outstanding() int {
	return c.Acquires - c.Releases
}

// CountingPool wraps an entitystore.Pool, counts the calls on it and its handles,
// and can inject failures into them.
type CountingPool struct {
	inner entitystore.Pool

	mu           sync.Mutex
	calls        PoolCalls
	failCommits  bool
	failBegins   bool
	dropAppends  bool
	droppedSince entitystore.EventID
}

// NewCountingPool wraps inner.
func NewCountingPool(inner entitystore.Pool) *CountingPool {
	return &CountingPool{inner: inner, droppedSince: 1 << 40}
}

// FailCommits makes every following Commit fail after rolling the inner transaction back.
func (p *CountingPool) FailCommits(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failCommits = fail
}

// FailBegins makes every following Begin fail without touching the inner handle.
func (p *CountingPool) FailBegins(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failBegins = fail
}

// DropAppends makes AppendEvent report success without writing anything,
// so reads inside the same transaction no longer see the written changes.
func (p *CountingPool) DropAppends(drop bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropAppends = drop
}

// Calls returns the counted calls so far.
func (p *CountingPool) Calls() PoolCalls {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calls
}

// Acquire implements entitystore.Pool.
func (p *CountingPool) Acquire(ctx context.Context) (entitystore.Handle, error) {
	h, err := p.inner.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	p.count(func(c *PoolCalls) { c.Acquires++ })

	return &countingHandle{pool: p, inner: h}, nil
}

// Stats forwards to the inner pool if it reports its capacity.
func (p *CountingPool) Stats() entitystore.PoolStats {
	if reporter, ok := p.inner.(entitystore.StatsReporter); ok {
		return reporter.Stats()
	}

	return entitystore.PoolStats{}
}

func (p *CountingPool) count(update func(*PoolCalls)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	update(&p.calls)
}

func (p *CountingPool) flags() (failBegins bool, failCommits bool, dropAppends bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.failBegins, p.failCommits, p.dropAppends
}

func (p *CountingPool) nextDroppedID() entitystore.EventID {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.droppedSince++

	return p.droppedSince
}

type countingHandle struct {
	pool  *CountingPool
	inner entitystore.Handle
}

func (h *countingHandle) Begin(ctx context.Context) error {
	h.pool.count(func(c *PoolCalls) { c.Begins++ })

	if failBegins, _, _ := h.pool.flags(); failBegins {
		return ErrInjectedBeginFailure
	}

	return h.inner.Begin(ctx)
}

func (h *countingHandle) Commit(ctx context.Context) error {
	h.pool.count(func(c *PoolCalls) { c.Commits++ })

	if _, failCommits, _ := h.pool.flags(); failCommits {
		_ = h.inner.Rollback(ctx)
		return ErrInjectedCommitFailure
	}

	return h.inner.Commit(ctx)
}

func (h *countingHandle) Rollback(ctx context.Context) error {
	h.pool.count(func(c *PoolCalls) { c.Rollbacks++ })
	return h.inner.Rollback(ctx)
}

func (h *countingHandle) AppendEvent(
	ctx context.Context,
	entityID entitystore.EntityID,
	eventType entitystore.EventType,
	payloadJSON []byte,
) (entitystore.EventID, error) {
	h.pool.count(func(c *PoolCalls) { c.Appends++ })

	if _, _, dropAppends := h.pool.flags(); dropAppends {
		return h.pool.nextDroppedID(), nil
	}

	return h.inner.AppendEvent(ctx, entityID, eventType, payloadJSON)
}

func (h *countingHandle) RecentEvents(
	ctx context.Context,
	entityID entitystore.EntityID,
	count int,
) (entitystore.StoredEvents, error) {
	h.pool.count(func(c *PoolCalls) { c.Reads++ })
	return h.inner.RecentEvents(ctx, entityID, count)
}

func (h *countingHandle) Release() {
	h.pool.count(func(c *PoolCalls) { c.Releases++ })
	h.inner.Release()
}
