package harness

import (
	"context"

	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
)

const (
	logMsgSessionStarted    = "session started"
	logMsgSessionFinished   = "session finished"
	logMsgTruncateFailed    = "truncating the event log failed"
	logAttrError            = "error"
	logAttrRunID            = "run_id"
	logAttrSession          = "session"
	logAttrWorkers          = "workers"
	logAttrIterations       = "iterations"
	logAttrUnits            = "units"
	logAttrCommitted        = "committed"
	logAttrAbandoned        = "abandoned"
	logAttrViolations       = "violations"
	logAttrThroughput       = "units_per_second"
	logAttrP99MS            = "p99_ms"
	logAttrDurationMS       = "duration_ms"
	metricSessionDuration   = "harness_session_duration_seconds"
	metricSessionThroughput = "harness_session_throughput_units_per_second"
	metricSessionViolations = "harness_session_violations"
	labelRunID              = "run_id"
)

func (h *Harness) logOperation(message string, args ...any) {
	if h.logger != nil {
		h.logger.Info(message, args...)
	}
}

func (h *Harness) logError(message string, err error, args ...any) {
	if h.logger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		h.logger.Error(message, allArgs...)
	}
}

func (h *Harness) recordSession(ctx context.Context, result Result) {
	if h.metricsCollector == nil {
		return
	}

	labels := map[string]string{labelRunID: h.runID.String()}

	if contextualCollector, ok := h.metricsCollector.(entitystore.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metricSessionDuration, result.Elapsed, labels)
		contextualCollector.RecordValueContext(ctx, metricSessionThroughput, result.Throughput(), labels)
		contextualCollector.RecordValueContext(ctx, metricSessionViolations, float64(result.Totals.Violations), labels)

		return
	}

	h.metricsCollector.RecordDuration(metricSessionDuration, result.Elapsed, labels)
	h.metricsCollector.RecordValue(metricSessionThroughput, result.Throughput(), labels)
	h.metricsCollector.RecordValue(metricSessionViolations, float64(result.Totals.Violations), labels)
}
