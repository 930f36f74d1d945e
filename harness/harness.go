package harness

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
	"github.com/AntonStoeckl/snapshotting-entitystore-go/workload"
)

// DefaultShutdownGrace is how long Shutdown waits for running sessions by default.
const DefaultShutdownGrace = 5 * time.Second

var (
	// ErrNilRunner is returned when a Harness is constructed without a UnitRunner.
	ErrNilRunner = errors.New("unit runner must not be nil")

	// ErrInvalidWorkers is returned when a session has no workers.
	ErrInvalidWorkers = errors.New("workers must be positive")

	// ErrInvalidIterations is returned when a session has a negative number of iterations.
	ErrInvalidIterations = errors.New("iterations must not be negative")

	// ErrTruncateFailed is returned when the session's truncate hook failed.
	ErrTruncateFailed = errors.New("truncating before the session failed")

	// ErrHarnessClosed is returned by Run after Shutdown was called.
	ErrHarnessClosed = errors.New("harness has been shut down")

	// ErrShutdownTimeout is returned when running sessions did not finish within the grace period.
	// It is a fatal configuration error: the backend pool must not be closed under running workers.
	ErrShutdownTimeout = errors.New("sessions did not finish within the shutdown grace period")
)

// UnitRunner runs one workload unit. *workload.Driver implements it.
type UnitRunner interface {
	RunUnit(ctx context.Context, unit workload.Unit) workload.Outcome
}

// Session describes one measured run.
type Session struct {
	Workers    int
	Iterations int

	// Band defaults to DefaultBand when left zero.
	Band Band

	// Truncate, if set, is called before any worker is spawned.
	Truncate func(ctx context.Context) error
}

// Result aggregates all workers of one session.
type Result struct {
	RunID   uuid.UUID
	Session int
	Workers int
	Totals  Totals
	Latency LatencySummary
	Elapsed time.Duration
}

// Throughput returns the units per second of the session.
func (r Result) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}

	return float64(r.Totals.Units) / r.Elapsed.Seconds()
}

// Harness runs sessions of concurrent workers against a UnitRunner.
type Harness struct {
	runner           UnitRunner
	runID            uuid.UUID
	seed             uint64
	logger           entitystore.Logger
	metricsCollector entitystore.MetricsCollector

	sessions atomic.Int64

	mu       sync.Mutex
	closed   bool
	inFlight sync.WaitGroup
}

// New creates a Harness for runner with optional configuration.
func New(runner UnitRunner, options ...Option) (*Harness, error) {
	if runner == nil {
		return nil, ErrNilRunner
	}

	h := &Harness{
		runner: runner,
		runID:  uuid.New(),
		seed:   uint64(time.Now().UnixNano()), //nolint:gosec // a seed, not a security boundary
	}

	for _, option := range options {
		if err := option(h); err != nil {
			return nil, err
		}
	}

	return h, nil
}

// RunID identifies all sessions of this Harness in logs and metrics.
func (h *Harness) RunID() uuid.UUID {
	return h.runID
}

// Run executes one session and blocks until every worker finished.
//
// A cancelled ctx stops the workers after their current unit; Run then returns what was
// recorded so far together with the context error.
func (h *Harness) Run(ctx context.Context, session Session) (Result, error) {
	if session.Band == (Band{}) {
		session.Band = DefaultBand()
	}

	if err := session.validate(); err != nil {
		return Result{}, err
	}

	if err := h.enter(); err != nil {
		return Result{}, err
	}
	defer h.inFlight.Done()

	index := int(h.sessions.Add(1))

	if session.Truncate != nil {
		if err := session.Truncate(ctx); err != nil {
			h.logError(logMsgTruncateFailed, err, logAttrRunID, h.runID.String(), logAttrSession, index)
			return Result{}, errors.Join(ErrTruncateFailed, err)
		}
	}

	h.logOperation(
		logMsgSessionStarted,
		logAttrRunID, h.runID.String(),
		logAttrSession, index,
		logAttrWorkers, session.Workers,
		logAttrIterations, session.Iterations,
	)

	// Seeds are drawn up front so that every worker gets its own generator.
	seeder := rand.New(rand.NewPCG(h.seed, uint64(index))) //nolint:gosec // seeds, not a security boundary
	recorders := make([]*Recorder, session.Workers)

	var ready sync.WaitGroup
	start := make(chan struct{})
	group := new(errgroup.Group)

	for worker := range session.Workers {
		seed := int32(seeder.Uint32()) //nolint:gosec // reinterpretation of the bits is intended
		recorders[worker] = NewRecorder(session.Iterations)
		ready.Add(1)

		group.Go(func() error {
			ready.Done()
			<-start

			return h.work(ctx, worker, NewXorShift(seed), session, recorders[worker])
		})
	}

	ready.Wait()
	begin := time.Now()
	close(start)

	err := group.Wait()
	elapsed := time.Since(begin)

	merged := NewRecorder(session.Workers * session.Iterations)
	for _, recorder := range recorders {
		merged.Merge(recorder)
	}

	result := Result{
		RunID:   h.runID,
		Session: index,
		Workers: session.Workers,
		Totals:  merged.Totals(),
		Latency: merged.Summary(),
		Elapsed: elapsed,
	}

	h.logOperation(
		logMsgSessionFinished,
		logAttrRunID, h.runID.String(),
		logAttrSession, index,
		logAttrUnits, result.Totals.Units,
		logAttrCommitted, result.Totals.Committed,
		logAttrAbandoned, result.Totals.Abandoned,
		logAttrViolations, result.Totals.Violations,
		logAttrThroughput, result.Throughput(),
		logAttrP99MS, entitystore.ToMilliseconds(result.Latency.P99),
		logAttrDurationMS, entitystore.ToMilliseconds(elapsed),
	)
	h.recordSession(ctx, result)

	return result, err
}

// Shutdown rejects further sessions and waits up to grace for running ones.
// It returns ErrShutdownTimeout when they did not finish in time.
func (h *Harness) Shutdown(grace time.Duration) error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.inFlight.Wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrShutdownTimeout
	}
}

func (h *Harness) enter() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHarnessClosed
	}

	h.inFlight.Add(1)

	return nil
}

// work runs the iterations of one worker. Failed units are recorded, never returned.
func (h *Harness) work(ctx context.Context, worker int, rnd *XorShift, session Session, recorder *Recorder) error {
	prefix := strconv.Itoa(worker) + "-"

	for i := range session.Iterations {
		if err := ctx.Err(); err != nil {
			return err
		}

		entityID := session.Band.EntityID(rnd.Next(), worker)
		unit := workload.NewUnit(entityID, prefix+strconv.Itoa(i), ageFrom(rnd.Next()))

		begin := time.Now()
		outcome := h.runner.RunUnit(ctx, unit)
		recorder.Record(time.Since(begin), outcome)
	}

	return nil
}

func (s Session) validate() error {
	if s.Workers <= 0 {
		return ErrInvalidWorkers
	}

	if s.Iterations < 0 {
		return ErrInvalidIterations
	}

	return s.Band.Validate()
}
