package sqlxengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore/internal/sqlschema"
)

// session is one dedicated connection with at most one open transaction.
type session struct {
	engine   *Engine
	conn     *sqlx.Conn
	tx       *sqlx.Tx
	released bool
}

func (s *session) Begin(ctx context.Context) error {
	if s.released {
		return ErrSessionReleased
	}

	if s.tx != nil {
		return ErrTransactionActive
	}

	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	s.tx = tx

	return nil
}

func (s *session) Commit(_ context.Context) error {
	tx, err := s.activeTx()
	if err != nil {
		return err
	}

	s.tx = nil

	return tx.Commit()
}

func (s *session) Rollback(_ context.Context) error {
	tx, err := s.activeTx()
	if err != nil {
		return err
	}

	s.tx = nil

	return tx.Rollback()
}

func (s *session) AppendEvent(
	ctx context.Context,
	entityID entitystore.EntityID,
	eventType entitystore.EventType,
	payloadJSON []byte,
) (entitystore.EventID, error) {
	tx, err := s.activeTx()
	if err != nil {
		return 0, err
	}

	// payload is a text column, lib/pq would send []byte as bytea
	insertSQL, args, err := s.engine.queries.InsertEvent(entityID, int(eventType), string(payloadJSON))
	if err != nil {
		return 0, errors.Join(ErrBuildingQueryFailed, err)
	}

	start := time.Now()
	defer func() { s.engine.logQuery(logActionAppendEvent, insertSQL, time.Since(start)) }()

	if s.engine.queries.SupportsReturning() {
		var eventID entitystore.EventID
		if err = tx.QueryRowxContext(ctx, insertSQL, args...).Scan(&eventID); err != nil {
			return 0, err
		}

		return eventID, nil
	}

	result, err := tx.ExecContext(ctx, insertSQL, args...)
	if err != nil {
		return 0, err
	}

	return result.LastInsertId()
}

func (s *session) RecentEvents(
	ctx context.Context,
	entityID entitystore.EntityID,
	count int,
) (entitystore.StoredEvents, error) {
	tx, err := s.activeTx()
	if err != nil {
		return nil, err
	}

	selectSQL, args, err := s.engine.queries.RecentEvents(entityID, count)
	if err != nil {
		return nil, errors.Join(ErrBuildingQueryFailed, err)
	}

	var rows []sqlschema.EventRow

	start := time.Now()
	err = tx.SelectContext(ctx, &rows, selectSQL, args...)
	s.engine.logQuery(logActionRecentEvents, selectSQL, time.Since(start))

	if err != nil {
		return nil, err
	}

	events := make(entitystore.StoredEvents, 0, len(rows))
	for _, row := range rows {
		events = append(events, entitystore.StoredEvent{
			ID:          row.ID,
			EntityID:    row.EntityID,
			Type:        entitystore.EventType(row.Type),
			PayloadJSON: []byte(row.Payload),
		})
	}

	return events, nil
}

// Release rolls back a transaction left open and returns the connection to the pool.
func (s *session) Release() {
	if s.released {
		return
	}

	s.released = true

	if s.tx != nil {
		if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.engine.logWarn(logMsgReleaseRollback, err)
		}

		s.tx = nil
	}

	if err := s.conn.Close(); err != nil {
		s.engine.logWarn(logMsgCloseConnFailed, err)
	}
}

func (s *session) activeTx() (*sqlx.Tx, error) {
	if s.released {
		return nil, ErrSessionReleased
	}

	if s.tx == nil {
		return nil, ErrNoActiveTransaction
	}

	return s.tx, nil
}
