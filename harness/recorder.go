package harness

import (
	"math"
	"slices"
	"time"

	"github.com/AntonStoeckl/snapshotting-entitystore-go/workload"
)

// Recorder collects unit latencies and outcomes of one worker. It is not safe for concurrent use.
type Recorder struct {
	latencies []time.Duration
	totals    Totals
}

// Totals counts units and what happened to them.
type Totals struct {
	Units      int
	Committed  int
	Abandoned  int
	Attempts   int
	Rollbacks  int
	Violations int
}

// LatencySummary describes the latency distribution of the recorded units.
type LatencySummary struct {
	Count int
	Min   time.Duration
	Mean  time.Duration
	Max   time.Duration
	P99   time.Duration
}

// NewRecorder creates a Recorder sized for the expected number of units.
func NewRecorder(expectedUnits int) *Recorder {
	return &Recorder{latencies: make([]time.Duration, 0, max(expectedUnits, 0))}
}

// Record adds one unit.
func (r *Recorder) Record(latency time.Duration, outcome workload.Outcome) {
	r.latencies = append(r.latencies, latency)
	r.totals.Units++
	r.totals.Attempts += outcome.Attempts
	r.totals.Rollbacks += outcome.Rollbacks
	r.totals.Violations += outcome.Violations

	if outcome.Committed {
		r.totals.Committed++
	}

	if outcome.Abandoned {
		r.totals.Abandoned++
	}
}

// Merge adds everything other recorded.
func (r *Recorder) Merge(other *Recorder) {
	r.latencies = append(r.latencies, other.latencies...)
	r.totals.Units += other.totals.Units
	r.totals.Committed += other.totals.Committed
	r.totals.Abandoned += other.totals.Abandoned
	r.totals.Attempts += other.totals.Attempts
	r.totals.Rollbacks += other.totals.Rollbacks
	r.totals.Violations += other.totals.Violations
}

// Totals returns the counts recorded so far.
func (r *Recorder) Totals() Totals {
	return r.totals
}

// Summary computes min, mean, max, and the nearest-rank 99th percentile.
func (r *Recorder) Summary() LatencySummary {
	if len(r.latencies) == 0 {
		return LatencySummary{}
	}

	sorted := slices.Clone(r.latencies)
	slices.Sort(sorted)

	var sum time.Duration
	for _, latency := range sorted {
		sum += latency
	}

	rank := int(math.Ceil(0.99*float64(len(sorted)))) - 1

	return LatencySummary{
		Count: len(sorted),
		Min:   sorted[0],
		Mean:  sum / time.Duration(len(sorted)),
		Max:   sorted[len(sorted)-1],
		P99:   sorted[rank],
	}
}
