package helper

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// LogHandlerSpy is a slog.Handler implementation that captures log records for testing.
type LogHandlerSpy struct {
	records     []slog.Record
	mu          sync.Mutex
	logToStdout bool
}

// NewLogHandlerSpy creates a new LogHandlerSpy.
// Switchable to log to stdout, which can be useful for debugging tests by seeing the actual log output.
func NewLogHandlerSpy(logToStdOut bool) *LogHandlerSpy {
	return &LogHandlerSpy{
		records:     make([]slog.Record, 0),
		logToStdout: logToStdOut,
	}
}

// NewSpyLogger returns a *slog.Logger writing into a fresh LogHandlerSpy.
func NewSpyLogger() (*slog.Logger, *LogHandlerSpy) {
	spy := NewLogHandlerSpy(false)
	return slog.New(spy), spy
}

// Handle implements slog.Handler interface.
func (s *LogHandlerSpy) Handle(ctx context.Context, record slog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record.Clone())

	if s.logToStdout {
		jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
		_ = jsonHandler.Handle(ctx, record)
	}

	return nil
}

// Enabled implements slog.Handler interface.
func (s *LogHandlerSpy) Enabled(_ context.Context, _ slog.Level) bool {
	return true // Always enabled for testing
}

// WithAttrs implements slog.Handler interface.
func (s *LogHandlerSpy) WithAttrs(_ []slog.Attr) slog.Handler {
	return s
}

// WithGroup implements slog.Handler interface.
func (s *LogHandlerSpy) WithGroup(_ string) slog.Handler {
	return s
}

// GetRecordCount returns the number of captured log records.
func (s *LogHandlerSpy) GetRecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}

// GetRecords returns a copy of all captured log records.
func (s *LogHandlerSpy) GetRecords() []slog.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]slog.Record, len(s.records))
	copy(records, s.records)

	return records
}

// Reset clears all captured log records.
func (s *LogHandlerSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = s.records[:0]
}

// CountLogs counts the records with the given level and message.
func (s *LogHandlerSpy) CountLogs(level slog.Level, message string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.records {
		if record.Level == level && record.Message == message {
			count++
		}
	}

	return count
}

// LogRecordMatcher provides a fluent interface for checking log record attributes.
// Assert is true if at least one record with the level and message satisfies every condition.
type LogRecordMatcher struct {
	handler    *LogHandlerSpy
	level      slog.Level
	message    string
	conditions []func(slog.Attr) bool
}

// HasDebugLogWithMessage starts a fluent chain to check a debug-level log record.
func (s *LogHandlerSpy) HasDebugLogWithMessage(message string) *LogRecordMatcher {
	return &LogRecordMatcher{handler: s, level: slog.LevelDebug, message: message}
}

// HasInfoLogWithMessage starts a fluent chain to check an info-level log record.
func (s *LogHandlerSpy) HasInfoLogWithMessage(message string) *LogRecordMatcher {
	return &LogRecordMatcher{handler: s, level: slog.LevelInfo, message: message}
}

// HasWarnLogWithMessage starts a fluent chain to check a warn-level log record.
func (s *LogHandlerSpy) HasWarnLogWithMessage(message string) *LogRecordMatcher {
	return &LogRecordMatcher{handler: s, level: slog.LevelWarn, message: message}
}

// HasErrorLogWithMessage starts a fluent chain to check an error-level log record.
func (s *LogHandlerSpy) HasErrorLogWithMessage(message string) *LogRecordMatcher {
	return &LogRecordMatcher{handler: s, level: slog.LevelError, message: message}
}

// WithDurationMS requires a duration_ms attribute with a non-negative value.
func (m *LogRecordMatcher) WithDurationMS() *LogRecordMatcher {
	m.conditions = append(m.conditions, func(attr slog.Attr) bool {
		if attr.Key != "duration_ms" {
			return false
		}

		switch attr.Value.Kind() {
		case slog.KindInt64:
			return attr.Value.Int64() >= 0
		case slog.KindFloat64:
			return attr.Value.Float64() >= 0
		default:
			return false
		}
	})

	return m
}

// WithAttribute requires an attribute with the given key.
func (m *LogRecordMatcher) WithAttribute(key string) *LogRecordMatcher {
	m.conditions = append(m.conditions, func(attr slog.Attr) bool {
		return attr.Key == key
	})

	return m
}

// WithAttributeValue requires an attribute with the given key whose value renders as value.
func (m *LogRecordMatcher) WithAttributeValue(key string, value string) *LogRecordMatcher {
	m.conditions = append(m.conditions, func(attr slog.Attr) bool {
		return attr.Key == key && attr.Value.String() == value
	})

	return m
}

// Assert returns true if all conditions in the fluent chain were met by one record.
func (m *LogRecordMatcher) Assert() bool {
	m.handler.mu.Lock()
	defer m.handler.mu.Unlock()

	for _, record := range m.handler.records {
		if record.Level != m.level || record.Message != m.message {
			continue
		}

		if m.matches(record) {
			return true
		}
	}

	return false
}

func (m *LogRecordMatcher) matches(record slog.Record) bool {
	for _, condition := range m.conditions {
		satisfied := false
		record.Attrs(func(attr slog.Attr) bool {
			if condition(attr) {
				satisfied = true
				return false // Stop iteration
			}

			return true // Continue iteration
		})

		if !satisfied {
			return false
		}
	}

	return true
}
