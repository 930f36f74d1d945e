package harness_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
	. "github.com/AntonStoeckl/snapshotting-entitystore-go/harness"
	"github.com/AntonStoeckl/snapshotting-entitystore-go/testutil/helper"
	"github.com/AntonStoeckl/snapshotting-entitystore-go/workload"
)

// recordingRunner commits every unit and remembers it.
type recordingRunner struct {
	mu    sync.Mutex
	units map[string]workload.Unit
	onRun func()
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{units: make(map[string]workload.Unit)}
}

func (r *recordingRunner) RunUnit(_ context.Context, unit workload.Unit) workload.Outcome {
	if r.onRun != nil {
		r.onRun()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.units[unit.NameChange["name"]] = unit

	return workload.Outcome{Attempts: 1, Committed: true}
}

// blockingRunner blocks every unit until release is closed.
type blockingRunner struct {
	started     chan struct{}
	release     chan struct{}
	startedOnce sync.Once
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
}

func (r *blockingRunner) RunUnit(_ context.Context, _ workload.Unit) workload.Outcome {
	r.startedOnce.Do(func() { close(r.started) })
	<-r.release

	return workload.Outcome{Attempts: 1, Committed: true}
}

func newHarness(t *testing.T, runner UnitRunner, options ...Option) *Harness {
	t.Helper()

	h, err := New(runner, options...)
	require.NoError(t, err)

	return h
}

func Test_New_Validates_Its_Input(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilRunner)

	h, err := New(newRecordingRunner())
	require.NoError(t, err)
	assert.NotEqual(t, h.RunID(), newHarness(t, newRecordingRunner()).RunID())
}

func Test_Run_Validates_The_Session(t *testing.T) {
	h := newHarness(t, newRecordingRunner())

	_, err := h.Run(context.Background(), Session{Workers: 0, Iterations: 1})
	assert.ErrorIs(t, err, ErrInvalidWorkers)

	_, err = h.Run(context.Background(), Session{Workers: 1, Iterations: -1})
	assert.ErrorIs(t, err, ErrInvalidIterations)

	_, err = h.Run(context.Background(), Session{Workers: 1, Iterations: 1, Band: Band{Width: -1}})
	assert.ErrorIs(t, err, ErrInvalidBandWidth)
}

func Test_Run_Every_Worker_Runs_Its_Iterations_Inside_Its_Band(t *testing.T) {
	// setup
	ctx := context.Background()
	runner := newRecordingRunner()
	h := newHarness(t, runner, WithSeed(7))

	// act
	result, err := h.Run(ctx, Session{Workers: 4, Iterations: 25})

	// assert
	require.NoError(t, err)
	assert.Equal(t, 1, result.Session)
	assert.Equal(t, h.RunID(), result.RunID)
	assert.Equal(t, 4, result.Workers)
	assert.Equal(t, Totals{Units: 100, Committed: 100, Attempts: 100}, result.Totals)
	assert.Equal(t, 100, result.Latency.Count)
	require.Len(t, runner.units, 100)

	for name, unit := range runner.units {
		worker, err := strconv.Atoi(strings.SplitN(name, "-", 2)[0])
		require.NoError(t, err)

		base := int64(worker) * DefaultBandWidth
		assert.Contains(t, []int64{base, base + DefaultBandMask}, unit.EntityID, name)

		age, err := strconv.Atoi(unit.AgeChange["age"])
		require.NoError(t, err)
		assert.GreaterOrEqual(t, age, 0)
		assert.Less(t, age, 100)
	}
}

func Test_Run_With_The_Same_Seed_Produces_The_Same_Units(t *testing.T) {
	// setup
	ctx := context.Background()
	first := newRecordingRunner()
	second := newRecordingRunner()

	// act
	_, firstErr := newHarness(t, first, WithSeed(99)).Run(ctx, Session{Workers: 3, Iterations: 20})
	_, secondErr := newHarness(t, second, WithSeed(99)).Run(ctx, Session{Workers: 3, Iterations: 20})

	// assert
	require.NoError(t, firstErr)
	require.NoError(t, secondErr)
	assert.Equal(t, first.units, second.units)
}

func Test_Run_Calls_Truncate_Before_Any_Unit(t *testing.T) {
	// setup
	ctx := context.Background()
	var truncated atomic.Bool
	var unitsBeforeTruncate atomic.Int64

	runner := newRecordingRunner()
	runner.onRun = func() {
		if !truncated.Load() {
			unitsBeforeTruncate.Add(1)
		}
	}

	h := newHarness(t, runner)

	// act
	_, err := h.Run(ctx, Session{
		Workers:    2,
		Iterations: 5,
		Truncate: func(context.Context) error {
			truncated.Store(true)
			return nil
		},
	})

	// assert
	require.NoError(t, err)
	assert.True(t, truncated.Load())
	assert.Zero(t, unitsBeforeTruncate.Load())
}

func Test_Run_When_Truncate_Fails_No_Worker_Starts(t *testing.T) {
	// setup
	runner := newRecordingRunner()
	h := newHarness(t, runner)
	truncateErr := errors.New("table is locked")

	// act
	_, err := h.Run(context.Background(), Session{
		Workers:    2,
		Iterations: 5,
		Truncate:   func(context.Context) error { return truncateErr },
	})

	// assert
	assert.ErrorIs(t, err, ErrTruncateFailed)
	assert.ErrorIs(t, err, truncateErr)
	assert.Empty(t, runner.units)
}

func Test_Run_When_The_Context_Is_Cancelled_Workers_Stop(t *testing.T) {
	// setup
	runner := newRecordingRunner()
	h := newHarness(t, runner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// act
	result, err := h.Run(ctx, Session{Workers: 3, Iterations: 10})

	// assert
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, result.Totals.Units)
	assert.Empty(t, runner.units)
}

func Test_Run_Logs_And_Records_The_Session(t *testing.T) {
	// setup
	logger, logSpy := helper.NewSpyLogger()
	metricsSpy := helper.NewMetricsCollectorSpy()
	h := newHarness(t, newRecordingRunner(), WithLogger(logger), WithMetrics(metricsSpy))

	// act
	_, err := h.Run(context.Background(), Session{Workers: 2, Iterations: 3})

	// assert
	require.NoError(t, err)
	assert.True(t, logSpy.HasInfoLogWithMessage("session started").
		WithAttributeValue("run_id", h.RunID().String()).
		WithAttributeValue("workers", "2").Assert())
	assert.True(t, logSpy.HasInfoLogWithMessage("session finished").
		WithAttributeValue("units", "6").
		WithAttributeValue("committed", "6").
		WithDurationMS().Assert())
	assert.True(t, metricsSpy.HasDurationRecordForMetric("harness_session_duration_seconds").
		WithLabel("run_id", h.RunID().String()).Assert())
	assert.Len(t, metricsSpy.GetValueRecords(), 2)
}

func Test_Shutdown_When_A_Session_Is_Still_Running_It_Times_Out(t *testing.T) {
	// setup
	runner := newBlockingRunner()
	h := newHarness(t, runner)

	runDone := make(chan error, 1)
	go func() {
		_, err := h.Run(context.Background(), Session{Workers: 1, Iterations: 1})
		runDone <- err
	}()

	<-runner.started

	// act
	timeoutErr := h.Shutdown(20 * time.Millisecond)
	_, closedErr := h.Run(context.Background(), Session{Workers: 1, Iterations: 1})

	close(runner.release)
	require.NoError(t, <-runDone)
	graceErr := h.Shutdown(time.Second)

	// assert
	assert.ErrorIs(t, timeoutErr, ErrShutdownTimeout)
	assert.ErrorIs(t, closedErr, ErrHarnessClosed)
	assert.NoError(t, graceErr)
}

func Test_Run_Against_A_Real_Store_Finds_No_Violations(t *testing.T) {
	for name, pool := range map[string]entitystore.Pool{
		"sqlite": helper.OpenSQLiteEngine(t, 4),
		"bolt":   helper.OpenBoltEngine(t, 4),
	} {
		t.Run(name, func(t *testing.T) {
			// setup
			ctx := context.Background()
			counting := helper.NewCountingPool(pool)

			store, err := entitystore.NewStore(counting, entitystore.WithSnapshotInterval(3))
			require.NoError(t, err)

			driver, err := workload.NewDriver(store, workload.WithBaseDelay(time.Millisecond), workload.WithJitterFactor(0.3))
			require.NoError(t, err)

			h := newHarness(t, driver, WithSeed(2024))

			// act
			result, err := h.Run(ctx, Session{Workers: 4, Iterations: 30})

			// assert
			require.NoError(t, err)
			assert.Equal(t, 120, result.Totals.Units)
			assert.Equal(t, 120, result.Totals.Committed)
			assert.Zero(t, result.Totals.Abandoned)
			assert.Zero(t, result.Totals.Violations)
			assert.Zero(t, counting.Calls().Outstanding())
			assert.NoError(t, h.Shutdown(DefaultShutdownGrace))
		})
	}
}
