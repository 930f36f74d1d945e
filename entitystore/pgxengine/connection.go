package pgxengine

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
)

const (
	// releaseRollbackTimeout bounds the cleanup rollback in Release, which has no caller context.
	releaseRollbackTimeout = 5 * time.Second

	maxPreallocatedEvents = 64
)

// connection is one exclusively held pool connection with at most one open transaction.
type connection struct {
	engine   *Engine
	conn     *pgxpool.Conn
	tx       pgx.Tx
	released bool
}

func (c *connection) Begin(ctx context.Context) error {
	if c.released {
		return ErrConnectionReleased
	}

	if c.tx != nil {
		return ErrTransactionActive
	}

	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return err
	}

	c.tx = tx

	return nil
}

func (c *connection) Commit(ctx context.Context) error {
	tx, err := c.activeTx()
	if err != nil {
		return err
	}

	c.tx = nil

	return tx.Commit(ctx)
}

func (c *connection) Rollback(ctx context.Context) error {
	tx, err := c.activeTx()
	if err != nil {
		return err
	}

	c.tx = nil

	return tx.Rollback(ctx)
}

func (c *connection) AppendEvent(
	ctx context.Context,
	entityID entitystore.EntityID,
	eventType entitystore.EventType,
	payloadJSON []byte,
) (entitystore.EventID, error) {
	tx, err := c.activeTx()
	if err != nil {
		return 0, err
	}

	insertSQL, args, err := c.engine.queries.InsertEvent(entityID, int(eventType), string(payloadJSON))
	if err != nil {
		return 0, errors.Join(ErrBuildingQueryFailed, err)
	}

	var eventID entitystore.EventID

	start := time.Now()
	err = tx.QueryRow(ctx, insertSQL, args...).Scan(&eventID)
	c.engine.logQuery(logActionAppendEvent, insertSQL, time.Since(start))

	if err != nil {
		return 0, err
	}

	return eventID, nil
}

func (c *connection) RecentEvents(
	ctx context.Context,
	entityID entitystore.EntityID,
	count int,
) (entitystore.StoredEvents, error) {
	tx, err := c.activeTx()
	if err != nil {
		return nil, err
	}

	selectSQL, args, err := c.engine.queries.RecentEvents(entityID, count)
	if err != nil {
		return nil, errors.Join(ErrBuildingQueryFailed, err)
	}

	start := time.Now()
	rows, err := tx.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make(entitystore.StoredEvents, 0, min(count, maxPreallocatedEvents))

	for rows.Next() {
		var (
			event   entitystore.StoredEvent
			typ     int32
			payload string
		)

		if err = rows.Scan(&event.ID, &event.EntityID, &typ, &payload); err != nil {
			return nil, err
		}

		event.Type = entitystore.EventType(typ)
		event.PayloadJSON = []byte(payload)
		events = append(events, event)
	}

	c.engine.logQuery(logActionRecentEvents, selectSQL, time.Since(start))

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// Release rolls back a transaction left open and hands the connection back to the pool.
func (c *connection) Release() {
	if c.released {
		return
	}

	c.released = true

	if c.tx != nil {
		ctx, cancel := context.WithTimeout(context.Background(), releaseRollbackTimeout)
		if err := c.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			c.engine.logWarn(logMsgReleaseRollback, err)
		}
		cancel()

		c.tx = nil
	}

	c.conn.Release()
}

func (c *connection) activeTx() (pgx.Tx, error) {
	if c.released {
		return nil, ErrConnectionReleased
	}

	if c.tx == nil {
		return nil, ErrNoActiveTransaction
	}

	return c.tx, nil
}
