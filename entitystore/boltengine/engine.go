package boltengine

import (
	"context"
	"encoding/binary"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
	"golang.org/x/sync/semaphore"

	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
)

const (
	defaultOpenTimeout    = time.Second
	fileMode              = 0o600
	maxPreallocatedEvents = 64
	logMsgDatabaseOpened  = "bolt database opened"
	logMsgReleaseFailed   = "rolling back open transaction on release failed"
	logAttrPath           = "path"
	logAttrPoolSize       = "pool_size"
	logAttrError          = "error"
)

var rootBucket = []byte("events")

var (
	// ErrEmptyPath is returned when Open is called without a file path.
	ErrEmptyPath = errors.New("bolt database path is required")

	// ErrInvalidPoolSize is returned when the pool size is not positive.
	ErrInvalidPoolSize = errors.New("pool size must be positive")

	// ErrInvalidOpenTimeout is returned when the open timeout is not positive.
	ErrInvalidOpenTimeout = errors.New("open timeout must be positive")

	// ErrOpeningDatabaseFailed is returned when the bolt file could not be opened or initialized.
	ErrOpeningDatabaseFailed = errors.New("opening bolt database failed")

	// ErrRootBucketMissing is returned when the events bucket does not exist.
	ErrRootBucketMissing = errors.New("events bucket is missing")

	// ErrNoActiveTransaction is returned when a handle is used without a running transaction.
	ErrNoActiveTransaction = errors.New("handle has no active transaction")

	// ErrTransactionActive is returned when Begin is called twice on one handle.
	ErrTransactionActive = errors.New("handle already has an active transaction")

	// ErrHandleReleased is returned when a handle is used after Release.
	ErrHandleReleased = errors.New("handle has already been released")

	// ErrCorruptEvent is returned for stored values without a type byte.
	ErrCorruptEvent = errors.New("stored event is corrupt")
)

// Engine is an entitystore.Pool backed by a single bbolt file.
type Engine struct {
	db          *bolt.DB
	slots       *semaphore.Weighted
	poolSize    int
	inUse       atomic.Int64
	openTimeout time.Duration
	logger      entitystore.Logger
}

// Open opens or creates the bolt file at path and allows at most poolSize concurrent handles.
func Open(path string, poolSize int, options ...Option) (*Engine, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrEmptyPath
	}

	if poolSize <= 0 {
		return nil, ErrInvalidPoolSize
	}

	e := &Engine{
		slots:       semaphore.NewWeighted(int64(poolSize)),
		poolSize:    poolSize,
		openTimeout: defaultOpenTimeout,
	}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	cleanPath := filepath.Clean(path)

	db, err := bolt.Open(cleanPath, fileMode, &bolt.Options{Timeout: e.openTimeout})
	if err != nil {
		return nil, errors.Join(ErrOpeningDatabaseFailed, err)
	}

	e.db = db

	if err = e.CreateSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, errors.Join(ErrOpeningDatabaseFailed, err)
	}

	if e.logger != nil {
		e.logger.Info(logMsgDatabaseOpened, logAttrPath, cleanPath, logAttrPoolSize, poolSize)
	}

	return e, nil
}

// Close closes the underlying bolt database.
func (e *Engine) Close() error {
	if e == nil || e.db == nil {
		return nil
	}

	return e.db.Close()
}

// Acquire waits for a free slot until ctx expires.
func (e *Engine) Acquire(ctx context.Context) (entitystore.Handle, error) {
	if err := e.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	e.inUse.Add(1)

	return &handle{engine: e}, nil
}

// Stats reports the pool size and the handles currently held.
func (e *Engine) Stats() entitystore.PoolStats {
	return entitystore.PoolStats{
		MaxHandles:   e.poolSize,
		InUseHandles: int(e.inUse.Load()),
	}
}

// CreateSchema creates the events bucket if it does not exist.
func (e *Engine) CreateSchema(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return e.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	})
}

// Truncate removes all events and restarts the event id sequence.
func (e *Engine) Truncate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return e.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(rootBucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}

		_, err := tx.CreateBucket(rootBucket)

		return err
	})
}

func (e *Engine) release() {
	e.inUse.Add(-1)
	e.slots.Release(1)
}

func (e *Engine) logWarn(message string, err error) {
	if e.logger != nil {
		e.logger.Warn(message, logAttrError, err.Error())
	}
}

func entityKey(entityID entitystore.EntityID) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(entityID))

	return key
}

func eventKey(sequence uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, sequence)

	return key
}
