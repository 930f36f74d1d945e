package workload

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"strconv"
	"time"

	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
)

// Driver runs Units against an EntityStore and retries failed attempts.
// A Driver is safe for concurrent use.
type Driver struct {
	store            EntityStore
	maxAttempts      int
	baseDelay        time.Duration
	maxDelay         time.Duration
	jitterFactor     float64
	logger           entitystore.Logger
	metricsCollector entitystore.MetricsCollector
}

// NewDriver creates a new Driver for store with optional configuration.
func NewDriver(store EntityStore, options ...Option) (*Driver, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	d := &Driver{
		store:       store,
		maxAttempts: DefaultMaxAttempts,
		maxDelay:    DefaultMaxDelay,
	}

	for _, option := range options {
		if err := option(d); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// MaxAttempts returns how often a unit is attempted before it is abandoned.
func (d *Driver) MaxAttempts() int {
	return d.maxAttempts
}

// RunUnit attempts unit up to the configured number of times. Every attempt is an independent
// transaction that is rolled back whenever it fails. A unit that exhausts its attempts, or whose
// context ends, is abandoned. RunUnit never panics on a failing unit and never returns an error:
// the Outcome carries the last failure.
func (d *Driver) RunUnit(ctx context.Context, unit Unit) Outcome {
	start := time.Now()
	outcome := Outcome{}

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := d.backoff(ctx, attempt); err != nil {
				outcome.LastErr = err
				break
			}
		}

		outcome.Attempts++

		err := d.attempt(ctx, unit, &outcome)
		if err == nil {
			outcome.Committed = true
			outcome.LastErr = nil

			break
		}

		outcome.LastErr = err
		if errors.Is(err, ErrConsistencyViolation) {
			outcome.Violations++
		}

		d.reportFailedAttempt(ctx, unit, attempt, err)

		if ctx.Err() != nil {
			break
		}
	}

	outcome.Duration = time.Since(start)

	status := statusCommitted
	if !outcome.Committed {
		status = statusAbandoned
		outcome.Abandoned = true

		d.logOperation(
			logMsgUnitAbandoned,
			logAttrEntityID, unit.EntityID,
			logAttrMaxAttempts, d.maxAttempts,
			logAttrDurationMS, entitystore.ToMilliseconds(outcome.Duration),
		)
		d.incrementCounter(ctx, metricUnitsAbandoned, map[string]string{labelErrorType: errorType(outcome.LastErr)})
	}

	d.recordDuration(ctx, metricUnitDuration, outcome.Duration, map[string]string{labelStatus: status})

	return outcome
}

// attempt runs steps begin, update, update, verify, verify, commit once.
// Any failure after Begin is followed by exactly one Rollback.
func (d *Driver) attempt(ctx context.Context, unit Unit, outcome *Outcome) error {
	tx, err := d.store.Begin(ctx)
	if err != nil {
		return err
	}

	if err = d.applyAndVerify(ctx, tx, unit); err == nil {
		err = d.store.Commit(ctx, tx)
		if err == nil {
			return nil
		}
	}

	// A failed Commit already released the handle, Rollback is then a no-op on the finished tx.
	outcome.Rollbacks++
	if rollbackErr := d.store.Rollback(context.WithoutCancel(ctx), tx); rollbackErr != nil {
		d.logError(logMsgRollbackFailed, rollbackErr, logAttrEntityID, unit.EntityID)
	}

	return err
}

func (d *Driver) applyAndVerify(ctx context.Context, tx *entitystore.Tx, unit Unit) error {
	if err := d.store.UpdateEntity(ctx, tx, unit.EntityID, unit.NameChange); err != nil {
		return err
	}

	if err := d.store.UpdateEntity(ctx, tx, unit.EntityID, unit.AgeChange); err != nil {
		return err
	}

	recent, err := d.store.GetRecentUpdates(ctx, tx, unit.EntityID, recentUpdatesToVerify)
	if err != nil {
		return err
	}

	expectedUpdates := unit.expectedUpdates()
	if !slices.EqualFunc(recent, expectedUpdates, entitystore.Fields.Equal) {
		return &ConsistencyViolation{Step: StepRecentUpdates, Expected: expectedUpdates, Actual: recent}
	}

	state, err := d.store.GetEntity(ctx, tx, unit.EntityID)
	if err != nil {
		return err
	}

	if expectedState := unit.expectedState(); !expectedState.Equal(state) {
		return &ConsistencyViolation{Step: StepEntityState, Expected: expectedState, Actual: state}
	}

	return nil
}

// backoff waits min(baseDelay * 2^(attempt-2), maxDelay) plus jitter before the given attempt.
func (d *Driver) backoff(ctx context.Context, attempt int) error {
	if d.baseDelay == 0 {
		if err := ctx.Err(); err != nil {
			return errors.Join(ErrRetriesCancelled, err)
		}

		return nil
	}

	delay := d.cappedDelay(attempt)
	jitter := rand.Float64() * float64(delay) * d.jitterFactor //nolint:gosec //math/rand is sufficient for jitter
	backoffDelay := delay + time.Duration(jitter)

	d.recordDuration(ctx, metricRetryDelay, backoffDelay, map[string]string{labelAttempt: strconv.Itoa(attempt)})

	timer := time.NewTimer(backoffDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return errors.Join(ErrRetriesCancelled, ctx.Err())
	}
}

// cappedDelay doubles baseDelay per retry up to maxDelay without overflowing.
func (d *Driver) cappedDelay(attempt int) time.Duration {
	delay := min(d.baseDelay, d.maxDelay)
	for i := 2; i < attempt; i++ {
		if delay >= d.maxDelay/2 {
			return d.maxDelay
		}

		delay *= 2
	}

	return delay
}

func (d *Driver) reportFailedAttempt(ctx context.Context, unit Unit, attempt int, err error) {
	var violation *ConsistencyViolation
	if errors.As(err, &violation) {
		d.logError(
			logMsgConsistencyViolated, err,
			logAttrEntityID, unit.EntityID,
			logAttrAttempt, attempt,
			logAttrStep, violation.Step,
		)
		d.incrementCounter(ctx, metricViolations, map[string]string{logAttrStep: violation.Step})
	} else {
		d.logWarn(logMsgAttemptFailed, err, logAttrEntityID, unit.EntityID, logAttrAttempt, attempt)
	}

	d.incrementCounter(ctx, metricAttemptsFailed, attemptLabels(attempt, err))
}

func errorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConsistencyViolation):
		return errorTypeViolation
	case errors.Is(err, entitystore.ErrPoolTimeout):
		return errorTypePoolTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errorTypeCancelled
	case errors.Is(err, entitystore.ErrBackend):
		return errorTypeBackend
	default:
		return errorTypeOther
	}
}
