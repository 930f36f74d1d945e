package workload

import (
	"context"
	"strconv"
	"time"

	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
)

const (
	logMsgAttemptFailed       = "unit attempt failed"
	logMsgConsistencyViolated = "unit attempt violated consistency"
	logMsgUnitAbandoned       = "unit abandoned"
	logMsgRollbackFailed      = "rollback after failed attempt failed"
	logAttrError              = "error"
	logAttrEntityID           = "entity_id"
	logAttrAttempt            = "attempt"
	logAttrMaxAttempts        = "max_attempts"
	logAttrStep               = "step"
	logAttrDurationMS         = "duration_ms"
	metricUnitDuration        = "workload_unit_duration_seconds"
	metricRetryDelay          = "workload_retry_delay_seconds"
	metricAttemptsFailed      = "workload_attempts_failed_total"
	metricViolations          = "workload_consistency_violations_total"
	metricUnitsAbandoned      = "workload_units_abandoned_total"
	labelStatus               = "status"
	labelAttempt              = "attempt_number"
	labelErrorType            = "error_type"
	statusCommitted           = "committed"
	statusAbandoned           = "abandoned"
	errorTypeViolation        = "consistency_violation"
	errorTypePoolTimeout      = "pool_timeout"
	errorTypeCancelled        = "cancelled"
	errorTypeBackend          = "backend"
	errorTypeOther            = "other"
)

func (d *Driver) logWarn(message string, err error, args ...any) {
	if d.logger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		d.logger.Warn(message, allArgs...)
	}
}

func (d *Driver) logError(message string, err error, args ...any) {
	if d.logger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		d.logger.Error(message, allArgs...)
	}
}

func (d *Driver) logOperation(message string, args ...any) {
	if d.logger != nil {
		d.logger.Info(message, args...)
	}
}

func (d *Driver) recordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if d.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := d.metricsCollector.(entitystore.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metric, duration, labels)
	} else {
		d.metricsCollector.RecordDuration(metric, duration, labels)
	}
}

func (d *Driver) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if d.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := d.metricsCollector.(entitystore.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
	} else {
		d.metricsCollector.IncrementCounter(metric, labels)
	}
}

func attemptLabels(attempt int, err error) map[string]string {
	return map[string]string{
		labelAttempt:   strconv.Itoa(attempt),
		labelErrorType: errorType(err),
	}
}
