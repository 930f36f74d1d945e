package boltengine

import (
	"context"
	"encoding/binary"
	"errors"

	bolt "go.etcd.io/bbolt"

	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
)

// handle owns one semaphore slot and at most one writable bolt transaction.
type handle struct {
	engine   *Engine
	tx       *bolt.Tx
	released bool
}

// Begin blocks until bolt's single writer lock is free.
func (h *handle) Begin(ctx context.Context) error {
	if h.released {
		return ErrHandleReleased
	}

	if h.tx != nil {
		return ErrTransactionActive
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := h.engine.db.Begin(true)
	if err != nil {
		return err
	}

	h.tx = tx

	return nil
}

func (h *handle) Commit(_ context.Context) error {
	tx, err := h.activeTx()
	if err != nil {
		return err
	}

	h.tx = nil

	return tx.Commit()
}

func (h *handle) Rollback(_ context.Context) error {
	tx, err := h.activeTx()
	if err != nil {
		return err
	}

	h.tx = nil

	return tx.Rollback()
}

func (h *handle) AppendEvent(
	ctx context.Context,
	entityID entitystore.EntityID,
	eventType entitystore.EventType,
	payloadJSON []byte,
) (entitystore.EventID, error) {
	tx, err := h.activeTx()
	if err != nil {
		return 0, err
	}

	if err = ctx.Err(); err != nil {
		return 0, err
	}

	root := tx.Bucket(rootBucket)
	if root == nil {
		return 0, ErrRootBucketMissing
	}

	bucket, err := root.CreateBucketIfNotExists(entityKey(entityID))
	if err != nil {
		return 0, err
	}

	sequence, err := root.NextSequence()
	if err != nil {
		return 0, err
	}

	value := make([]byte, 0, len(payloadJSON)+1)
	value = append(value, byte(eventType))
	value = append(value, payloadJSON...)

	if err = bucket.Put(eventKey(sequence), value); err != nil {
		return 0, err
	}

	return entitystore.EventID(sequence), nil
}

func (h *handle) RecentEvents(
	ctx context.Context,
	entityID entitystore.EntityID,
	count int,
) (entitystore.StoredEvents, error) {
	tx, err := h.activeTx()
	if err != nil {
		return nil, err
	}

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	root := tx.Bucket(rootBucket)
	if root == nil {
		return nil, ErrRootBucketMissing
	}

	events := make(entitystore.StoredEvents, 0, min(count, maxPreallocatedEvents))

	bucket := root.Bucket(entityKey(entityID))
	if bucket == nil {
		return events, nil
	}

	cursor := bucket.Cursor()
	for key, value := cursor.Last(); key != nil && len(events) < count; key, value = cursor.Prev() {
		if len(value) == 0 {
			return nil, ErrCorruptEvent
		}

		// bolt values are only valid for the life of the transaction
		payload := make([]byte, len(value)-1)
		copy(payload, value[1:])

		events = append(events, entitystore.StoredEvent{
			ID:          entitystore.EventID(binary.BigEndian.Uint64(key)),
			EntityID:    entityID,
			Type:        entitystore.EventType(value[0]),
			PayloadJSON: payload,
		})
	}

	return events, nil
}

// Release rolls back a transaction left open and frees the pool slot.
func (h *handle) Release() {
	if h.released {
		return
	}

	h.released = true

	if h.tx != nil {
		if err := h.tx.Rollback(); err != nil && !errors.Is(err, bolt.ErrTxClosed) {
			h.engine.logWarn(logMsgReleaseFailed, err)
		}

		h.tx = nil
	}

	h.engine.release()
}

func (h *handle) activeTx() (*bolt.Tx, error) {
	if h.released {
		return nil, ErrHandleReleased
	}

	if h.tx == nil {
		return nil, ErrNoActiveTransaction
	}

	return h.tx, nil
}
