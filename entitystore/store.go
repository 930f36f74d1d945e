package entitystore

import (
	"context"
	"errors"
	"math"
	"slices"
	"time"
)

// Store is the transactional facade over a backend Pool and the snapshot engine.
//
// A Store is safe for concurrent use. A Tx is not: it is owned by exactly one worker
// between Begin and the paired Commit or Rollback.
type Store struct {
	pool             Pool
	snapshotInterval int
	acquireTimeout   time.Duration
	logger           Logger
	metricsCollector MetricsCollector
}

// Tx is one backend transaction on an exclusively owned Handle.
type Tx struct {
	handle   Handle
	finished bool
}

// NewStore creates a new Store on top of pool with optional configuration.
func NewStore(pool Pool, options ...Option) (*Store, error) {
	if pool == nil {
		return nil, ErrNilPool
	}

	s := &Store{
		pool:             pool,
		snapshotInterval: DefaultSnapshotInterval,
		acquireTimeout:   DefaultAcquireTimeout,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// SnapshotInterval returns K.
func (s *Store) SnapshotInterval() int {
	return s.snapshotInterval
}

// Stats reports the pool capacity if the pool supports it.
func (s *Store) Stats() (PoolStats, bool) {
	reporter, ok := s.pool.(StatsReporter)
	if !ok {
		return PoolStats{}, false
	}

	return reporter.Stats(), true
}

// AvailableHandles returns how many handles the pool could hand out without waiting.
// It returns false if the pool does not report its capacity.
func (s *Store) AvailableHandles() (int, bool) {
	stats, ok := s.Stats()
	if !ok {
		return 0, false
	}

	return stats.Available(), true
}

// Begin acquires a handle, waiting at most the acquire timeout, and starts a backend transaction on it.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	start := time.Now()
	tx, err := s.begin(ctx)
	s.recordDuration(ctx, operationBegin, time.Since(start), err)

	return tx, err
}

func (s *Store) begin(ctx context.Context) (*Tx, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()

	handle, acquireErr := s.pool.Acquire(acquireCtx)
	if acquireErr != nil {
		if ctx.Err() == nil && errors.Is(acquireCtx.Err(), context.DeadlineExceeded) {
			s.logError(logMsgPoolTimeout, acquireErr, logAttrTimeoutMS, ToMilliseconds(s.acquireTimeout))
			s.incrementCounter(ctx, metricPoolTimeouts, operationBegin)

			return nil, errors.Join(ErrPoolTimeout, acquireErr)
		}

		s.logError(logMsgAcquireFailed, acquireErr)
		s.incrementCounter(ctx, metricBackendErrors, operationBegin)

		return nil, errors.Join(ErrBackend, ErrAcquiringHandleFailed, acquireErr)
	}

	// The transaction must not inherit the acquire deadline.
	if beginErr := handle.Begin(ctx); beginErr != nil {
		handle.Release()
		s.logError(logMsgBeginFailed, beginErr)
		s.incrementCounter(ctx, metricBackendErrors, operationBegin)

		return nil, errors.Join(ErrBackend, ErrBeginFailed, beginErr)
	}

	return &Tx{handle: handle}, nil
}

// UpdateEntity appends change as an Update event and, when the pre-update window calls for it,
// a Snapshot event with the complete state. Both appends happen inside tx, Update first.
func (s *Store) UpdateEntity(ctx context.Context, tx *Tx, entityID EntityID, change Fields) error {
	start := time.Now()
	err := s.updateEntity(ctx, tx, entityID, change)
	s.recordDuration(ctx, operationUpdateEntity, time.Since(start), err)

	return err
}

func (s *Store) updateEntity(ctx context.Context, tx *Tx, entityID EntityID, change Fields) error {
	if err := tx.usable(); err != nil {
		return err
	}

	if len(change) == 0 {
		return ErrEmptyChange
	}

	window, err := s.recentEvents(ctx, tx, entityID, s.snapshotInterval)
	if err != nil {
		return err
	}

	if _, err = s.appendEvent(ctx, tx, entityID, EventTypeUpdate, change); err != nil {
		return err
	}

	if !NeedsSnapshot(window, s.snapshotInterval) {
		return nil
	}

	snapshot := BuildSnapshotPayload(window, change)

	snapshotID, err := s.appendEvent(ctx, tx, entityID, EventTypeSnapshot, snapshot)
	if err != nil {
		return err
	}

	s.logOperation(
		logMsgSnapshotAppended,
		logAttrEntityID, entityID,
		logAttrEventID, snapshotID,
		logAttrFieldCount, len(snapshot),
	)
	s.incrementCounter(ctx, metricSnapshotsAppended, operationUpdateEntity)

	return nil
}

// GetRecentUpdates returns the raw payloads of the count most recent Update events for entityID, oldest-first.
// Snapshot events are skipped, so the result reflects the changes callers applied, in log order.
func (s *Store) GetRecentUpdates(ctx context.Context, tx *Tx, entityID EntityID, count int) ([]Fields, error) {
	start := time.Now()
	updates, err := s.getRecentUpdates(ctx, tx, entityID, count)
	s.recordDuration(ctx, operationGetRecentUpdates, time.Since(start), err)

	return updates, err
}

func (s *Store) getRecentUpdates(ctx context.Context, tx *Tx, entityID EntityID, count int) ([]Fields, error) {
	if err := tx.usable(); err != nil {
		return nil, err
	}

	if count <= 0 {
		return nil, ErrInvalidCount
	}

	// Snapshots are never adjacent, so 2*count events always hold count updates if the log has them.
	fetch := count
	if count <= math.MaxInt32/2 {
		fetch = 2 * count
	}

	events, err := s.recentEvents(ctx, tx, entityID, fetch)
	if err != nil {
		return nil, err
	}

	updates := make([]Fields, 0, min(count, len(events)))
	for _, event := range events {
		if event.Type == EventTypeUpdate {
			updates = append(updates, event.Payload)
		}
	}

	if len(updates) > count {
		updates = updates[len(updates)-count:]
	}

	return updates, nil
}

// GetEntity folds the last K events for entityID into its current state.
// An entity without events has an empty state.
func (s *Store) GetEntity(ctx context.Context, tx *Tx, entityID EntityID) (Fields, error) {
	start := time.Now()
	state, err := s.getEntity(ctx, tx, entityID)
	s.recordDuration(ctx, operationGetEntity, time.Since(start), err)

	return state, err
}

func (s *Store) getEntity(ctx context.Context, tx *Tx, entityID EntityID) (Fields, error) {
	if err := tx.usable(); err != nil {
		return nil, err
	}

	window, err := s.recentEvents(ctx, tx, entityID, s.snapshotInterval)
	if err != nil {
		return nil, err
	}

	return Fold(window), nil
}

// Commit commits tx and releases its handle, also when the backend commit fails.
func (s *Store) Commit(ctx context.Context, tx *Tx) error {
	if err := tx.usable(); err != nil {
		return err
	}

	start := time.Now()
	defer tx.release()

	err := tx.handle.Commit(ctx)
	s.recordDuration(ctx, operationCommit, time.Since(start), err)

	if err != nil {
		s.logError(logMsgCommitFailed, err)
		s.incrementCounter(ctx, metricBackendErrors, operationCommit)

		return errors.Join(ErrBackend, ErrCommitFailed, err)
	}

	return nil
}

// Rollback rolls tx back and releases its handle, also when the backend rollback fails.
// Rolling back a transaction that is already finished is a no-op.
func (s *Store) Rollback(ctx context.Context, tx *Tx) error {
	if tx == nil {
		return ErrNilTx
	}

	if tx.finished {
		s.logWarn(logMsgRollbackOfFinished)
		return nil
	}

	start := time.Now()
	defer tx.release()

	err := tx.handle.Rollback(ctx)
	s.recordDuration(ctx, operationRollback, time.Since(start), err)

	if err != nil {
		s.logError(logMsgRollbackFailed, err)
		s.incrementCounter(ctx, metricBackendErrors, operationRollback)

		return errors.Join(ErrBackend, ErrRollbackFailed, err)
	}

	return nil
}

// recentEvents fetches at most count events newest-first and returns them decoded and oldest-first.
func (s *Store) recentEvents(ctx context.Context, tx *Tx, entityID EntityID, count int) (Events, error) {
	start := time.Now()
	stored, err := tx.handle.RecentEvents(ctx, entityID, count)
	s.logDebug(backendCallRecentEvents, time.Since(start), logAttrEntityID, entityID, logAttrEventCount, len(stored))

	if err != nil {
		s.logError(logMsgQueryFailed, err, logAttrEntityID, entityID)
		s.incrementCounter(ctx, metricBackendErrors, backendCallRecentEvents)

		return nil, errors.Join(ErrBackend, ErrQueryingEventsFailed, err)
	}

	events := make(Events, 0, len(stored))
	for i, storedEvent := range stored {
		if i > 0 && storedEvent.ID >= stored[i-1].ID {
			s.logError(logMsgUnorderedEvents, ErrUnorderedEvents, logAttrEntityID, entityID)
			return nil, ErrUnorderedEvents
		}

		event, decodeErr := decodeEvent(storedEvent)
		if decodeErr != nil {
			s.logError(logMsgDecodeFailed, decodeErr, logAttrEntityID, entityID, logAttrEventID, storedEvent.ID)
			return nil, decodeErr
		}

		events = append(events, event)
	}

	slices.Reverse(events)

	return events, nil
}

// appendEvent encodes payload and appends it as one event of eventType.
func (s *Store) appendEvent(
	ctx context.Context,
	tx *Tx,
	entityID EntityID,
	eventType EventType,
	payload Fields,
) (EventID, error) {
	payloadJSON, err := EncodeFields(payload)
	if err != nil {
		s.logError(logMsgEncodeFailed, err, logAttrEntityID, entityID)
		return 0, err
	}

	start := time.Now()
	eventID, err := tx.handle.AppendEvent(ctx, entityID, eventType, payloadJSON)
	s.logDebug(backendCallAppendEvent, time.Since(start), logAttrEntityID, entityID, logAttrEventType, eventType.String())

	if err != nil {
		s.logError(logMsgAppendFailed, err, logAttrEntityID, entityID, logAttrEventType, eventType.String())
		s.incrementCounter(ctx, metricBackendErrors, backendCallAppendEvent)

		return 0, errors.Join(ErrBackend, ErrAppendingEventFailed, err)
	}

	return eventID, nil
}

// usable reports whether tx can still be used.
func (tx *Tx) usable() error {
	if tx == nil {
		return ErrNilTx
	}

	if tx.finished {
		return ErrTxFinished
	}

	return nil
}

// release returns the handle to its pool exactly once.
func (tx *Tx) release() {
	if tx.finished {
		return
	}

	tx.finished = true
	tx.handle.Release()
}
