package workload

import (
	"context"
	"errors"
	"time"

	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
)

const (
	// DefaultMaxAttempts is how often a unit is attempted before it is abandoned.
	DefaultMaxAttempts = 3

	// DefaultMaxDelay caps the exponential backoff between attempts, jitter excluded.
	DefaultMaxDelay = 30 * time.Second

	fieldName = "name"
	fieldAge  = "age"

	recentUpdatesToVerify = 2
)

var (
	// ErrNilStore is returned when a Driver is constructed without an EntityStore.
	ErrNilStore = errors.New("entity store must not be nil")

	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidMaxDelay is returned when the max delay is not positive.
	ErrInvalidMaxDelay = errors.New("max delay must be positive")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")

	// ErrConsistencyViolation is matched by every *ConsistencyViolation via errors.Is.
	ErrConsistencyViolation = errors.New("consistency violation")

	// ErrRetriesCancelled is returned when the context ended while waiting for the next attempt.
	ErrRetriesCancelled = errors.New("retries cancelled")
)

// EntityStore is the capability the Driver needs. *entitystore.Store implements it for every backend.
type EntityStore interface {
	Begin(ctx context.Context) (*entitystore.Tx, error)
	UpdateEntity(ctx context.Context, tx *entitystore.Tx, entityID entitystore.EntityID, change entitystore.Fields) error
	GetRecentUpdates(ctx context.Context, tx *entitystore.Tx, entityID entitystore.EntityID, count int) ([]entitystore.Fields, error)
	GetEntity(ctx context.Context, tx *entitystore.Tx, entityID entitystore.EntityID) (entitystore.Fields, error)
	Commit(ctx context.Context, tx *entitystore.Tx) error
	Rollback(ctx context.Context, tx *entitystore.Tx) error
}

// Outcome summarizes all attempts of one Unit.
type Outcome struct {
	Attempts   int
	Rollbacks  int
	Violations int
	Committed  bool
	Abandoned  bool
	LastErr    error
	Duration   time.Duration
}
