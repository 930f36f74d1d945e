package entitystore

import (
	"context"
	"math"
	"time"
)

const (
	logMsgPoolTimeout         = "no backend handle available within acquire timeout"
	logMsgAcquireFailed       = "acquiring backend handle failed"
	logMsgBeginFailed         = "beginning backend transaction failed"
	logMsgQueryFailed         = "querying recent events failed"
	logMsgDecodeFailed        = "decoding event payload failed"
	logMsgUnorderedEvents     = "backend returned recent events out of order"
	logMsgEncodeFailed        = "encoding event payload failed"
	logMsgAppendFailed        = "appending event failed"
	logMsgCommitFailed        = "committing backend transaction failed"
	logMsgRollbackFailed      = "rolling back backend transaction failed"
	logMsgRollbackOfFinished  = "rollback of finished transaction ignored"
	logMsgSnapshotAppended    = "snapshot appended"
	logMsgBackendCall         = "backend call: "
	logAttrError              = "error"
	logAttrEntityID           = "entity_id"
	logAttrEventID            = "event_id"
	logAttrEventType          = "event_type"
	logAttrEventCount         = "event_count"
	logAttrFieldCount         = "field_count"
	logAttrDurationMS         = "duration_ms"
	logAttrTimeoutMS          = "timeout_ms"
	metricOperationDuration   = "entitystore_operation_duration_seconds"
	metricSnapshotsAppended   = "entitystore_snapshots_appended_total"
	metricPoolTimeouts        = "entitystore_pool_timeouts_total"
	metricBackendErrors       = "entitystore_backend_errors_total"
	labelOperation            = "operation"
	labelStatus               = "status"
	statusSuccess             = "success"
	statusError               = "error"
	operationBegin            = "begin"
	operationUpdateEntity     = "update_entity"
	operationGetRecentUpdates = "get_recent_updates"
	operationGetEntity        = "get_entity"
	operationCommit           = "commit"
	operationRollback         = "rollback"
	backendCallRecentEvents   = "recent_events"
	backendCallAppendEvent    = "append_event"
)

// Logger interface for backend call logging, operational messages, warnings, and error reporting.
// A *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsCollector interface for collecting Store performance and operational metrics.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// ContextualMetricsCollector extends MetricsCollector with context-aware methods.
// The Store uses them when available and falls back to the base MetricsCollector otherwise.
type ContextualMetricsCollector interface {
	MetricsCollector
	RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string)
	IncrementCounterContext(ctx context.Context, metric string, labels map[string]string)
	RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string)
}

// logDebug logs backend calls at debug level if the logger is configured.
func (s *Store) logDebug(call string, duration time.Duration, args ...any) {
	if s.logger != nil {
		allArgs := []any{logAttrDurationMS, ToMilliseconds(duration)}
		allArgs = append(allArgs, args...)
		s.logger.Debug(logMsgBackendCall+call, allArgs...)
	}
}

// logOperation logs operational information at info level if the logger is configured.
func (s *Store) logOperation(message string, args ...any) {
	if s.logger != nil {
		s.logger.Info(message, args...)
	}
}

// logWarn logs non-critical issues at warn level if the logger is configured.
func (s *Store) logWarn(message string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(message, args...)
	}
}

// logError logs error information at the error level if the logger is configured.
func (s *Store) logError(message string, err error, args ...any) {
	if s.logger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		s.logger.Error(message, allArgs...)
	}
}

// recordDuration records an operation duration with context if the collector supports it.
func (s *Store) recordDuration(ctx context.Context, operation string, duration time.Duration, err error) {
	if s.metricsCollector == nil {
		return
	}

	status := statusSuccess
	if err != nil {
		status = statusError
	}

	labels := map[string]string{
		labelOperation: operation,
		labelStatus:    status,
	}

	if contextualCollector, ok := s.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metricOperationDuration, duration, labels)
	} else {
		s.metricsCollector.RecordDuration(metricOperationDuration, duration, labels)
	}
}

// incrementCounter increments a counter with context if the collector supports it.
func (s *Store) incrementCounter(ctx context.Context, metric string, operation string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{labelOperation: operation}

	if contextualCollector, ok := s.metricsCollector.(ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
	} else {
		s.metricsCollector.IncrementCounter(metric, labels)
	}
}

// ToMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func ToMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
