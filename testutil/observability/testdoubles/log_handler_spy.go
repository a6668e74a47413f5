package testdoubles

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

// LogHandlerSpy is a slog.Handler that captures log records for testing.
type LogHandlerSpy struct {
	records     []slog.Record
	mu          sync.Mutex
	logToStdout bool
}

// NewLogHandlerSpy creates a new LogHandlerSpy.
// Switchable to log to stdout, which helps when debugging a test.
func NewLogHandlerSpy(logToStdout bool) *LogHandlerSpy {
	return &LogHandlerSpy{
		records:     make([]slog.Record, 0),
		logToStdout: logToStdout,
	}
}

// Handle implements slog.Handler.
func (s *LogHandlerSpy) Handle(ctx context.Context, record slog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, record.Clone())

	if s.logToStdout {
		_ = slog.NewJSONHandler(os.Stdout, nil).Handle(ctx, record)
	}

	return nil
}

// Enabled implements slog.Handler.
func (s *LogHandlerSpy) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

// WithAttrs implements slog.Handler.
func (s *LogHandlerSpy) WithAttrs(_ []slog.Attr) slog.Handler {
	return s
}

// WithGroup implements slog.Handler.
func (s *LogHandlerSpy) WithGroup(_ string) slog.Handler {
	return s
}

// RecordCount returns the number of captured records.
func (s *LogHandlerSpy) RecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}

// Reset clears all captured records.
func (s *LogHandlerSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = s.records[:0]
}

// LogRecordMatcher provides a fluent interface for checking a log record's attributes.
type LogRecordMatcher struct {
	record *slog.Record
}

// HasLog starts a fluent chain for the first record with the level and message.
func (s *LogHandlerSpy) HasLog(level slog.Level, message string) *LogRecordMatcher {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].Level == level && s.records[i].Message == message {
			record := s.records[i]
			return &LogRecordMatcher{record: &record}
		}
	}

	return &LogRecordMatcher{}
}

// HasDebugLog starts a fluent chain for a debug-level record.
func (s *LogHandlerSpy) HasDebugLog(message string) *LogRecordMatcher {
	return s.HasLog(slog.LevelDebug, message)
}

// HasInfoLog starts a fluent chain for an info-level record.
func (s *LogHandlerSpy) HasInfoLog(message string) *LogRecordMatcher {
	return s.HasLog(slog.LevelInfo, message)
}

// HasWarnLog starts a fluent chain for a warn-level record.
func (s *LogHandlerSpy) HasWarnLog(message string) *LogRecordMatcher {
	return s.HasLog(slog.LevelWarn, message)
}

// HasErrorLog starts a fluent chain for an error-level record.
func (s *LogHandlerSpy) HasErrorLog(message string) *LogRecordMatcher {
	return s.HasLog(slog.LevelError, message)
}

// WithAttr requires the record to carry key with a value whose string form equals value.
func (m *LogRecordMatcher) WithAttr(key, value string) *LogRecordMatcher {
	if m.record == nil {
		return m
	}

	if v, ok := m.attr(key); !ok || v.String() != value {
		m.record = nil
	}

	return m
}

// WithAttrKey requires the record to carry key with any value.
func (m *LogRecordMatcher) WithAttrKey(key string) *LogRecordMatcher {
	if m.record == nil {
		return m
	}

	if _, ok := m.attr(key); !ok {
		m.record = nil
	}

	return m
}

// WithDurationMS requires a non-negative duration_ms attribute.
func (m *LogRecordMatcher) WithDurationMS() *LogRecordMatcher {
	if m.record == nil {
		return m
	}

	if v, ok := m.attr("duration_ms"); !ok || v.Kind() != slog.KindFloat64 || v.Float64() < 0 {
		m.record = nil
	}

	return m
}

// Assert returns true if a record was found and all conditions in the chain were met.
func (m *LogRecordMatcher) Assert() bool {
	return m.record != nil
}

func (m *LogRecordMatcher) attr(key string) (slog.Value, bool) {
	var (
		found slog.Value
		ok    bool
	)

	m.record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == key {
			found, ok = attr.Value, true
			return false
		}

		return true
	})

	return found, ok
}
