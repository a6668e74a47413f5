package testdoubles

import (
	"context"
	"maps"
	"sync"
	"time"
)

// MetricsCollectorSpy is a ContextualMetricsCollector that captures metric calls for testing.
type MetricsCollectorSpy struct {
	durations   []SpyMetricRecord
	counters    []SpyMetricRecord
	values      []SpyMetricRecord
	mu          sync.Mutex
	recordCalls bool
}

// SpyMetricRecord represents one recorded metric call. Duration is set for durations, Value for values.
type SpyMetricRecord struct {
	Metric     string
	Duration   time.Duration
	Value      float64
	Labels     map[string]string
	HasContext bool
}

// NewMetricsCollectorSpy creates a new MetricsCollectorSpy.
// Set recordCalls to true to capture all metric calls for inspection in tests.
func NewMetricsCollectorSpy(recordCalls bool) *MetricsCollectorSpy {
	return &MetricsCollectorSpy{recordCalls: recordCalls}
}

// RecordDuration implements MetricsCollector.
func (s *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	s.append(&s.durations, SpyMetricRecord{Metric: metric, Duration: duration, Labels: labels})
}

// IncrementCounter implements MetricsCollector.
func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	s.append(&s.counters, SpyMetricRecord{Metric: metric, Labels: labels})
}

// RecordValue implements MetricsCollector.
func (s *MetricsCollectorSpy) RecordValue(metric string, value float64, labels map[string]string) {
	s.append(&s.values, SpyMetricRecord{Metric: metric, Value: value, Labels: labels})
}

// RecordDurationContext implements ContextualMetricsCollector.
func (s *MetricsCollectorSpy) RecordDurationContext(_ context.Context, metric string, duration time.Duration, labels map[string]string) {
	s.append(&s.durations, SpyMetricRecord{Metric: metric, Duration: duration, Labels: labels, HasContext: true})
}

// IncrementCounterContext implements ContextualMetricsCollector.
func (s *MetricsCollectorSpy) IncrementCounterContext(_ context.Context, metric string, labels map[string]string) {
	s.append(&s.counters, SpyMetricRecord{Metric: metric, Labels: labels, HasContext: true})
}

// RecordValueContext implements ContextualMetricsCollector.
func (s *MetricsCollectorSpy) RecordValueContext(_ context.Context, metric string, value float64, labels map[string]string) {
	s.append(&s.values, SpyMetricRecord{Metric: metric, Value: value, Labels: labels, HasContext: true})
}

func (s *MetricsCollectorSpy) append(into *[]SpyMetricRecord, record SpyMetricRecord) {
	if !s.recordCalls {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// copy, callers may reuse their label maps
	record.Labels = maps.Clone(record.Labels)
	*into = append(*into, record)
}

// DurationRecords returns a copy of all captured duration records.
func (s *MetricsCollectorSpy) DurationRecords() []SpyMetricRecord {
	return s.snapshot(&s.durations)
}

// CounterRecords returns a copy of all captured counter records.
func (s *MetricsCollectorSpy) CounterRecords() []SpyMetricRecord {
	return s.snapshot(&s.counters)
}

// ValueRecords returns a copy of all captured value records.
func (s *MetricsCollectorSpy) ValueRecords() []SpyMetricRecord {
	return s.snapshot(&s.values)
}

func (s *MetricsCollectorSpy) snapshot(from *[]SpyMetricRecord) []SpyMetricRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]SpyMetricRecord, len(*from))
	copy(records, *from)

	return records
}

// CountCounterRecordsForMetric counts the captured counter increments of metric.
func (s *MetricsCollectorSpy) CountCounterRecordsForMetric(metric string) int {
	count := 0

	for _, record := range s.CounterRecords() {
		if record.Metric == metric {
			count++
		}
	}

	return count
}

// Reset clears all captured records.
func (s *MetricsCollectorSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.durations, s.counters, s.values = nil, nil, nil
}

// MetricRecordMatcher provides a fluent interface for checking captured metric records.
type MetricRecordMatcher struct {
	candidates []SpyMetricRecord
}

// HasDurationRecordForMetric starts a fluent chain over the duration records of metric.
func (s *MetricsCollectorSpy) HasDurationRecordForMetric(metric string) *MetricRecordMatcher {
	return matcherFor(s.DurationRecords(), metric)
}

// HasCounterRecordForMetric starts a fluent chain over the counter records of metric.
func (s *MetricsCollectorSpy) HasCounterRecordForMetric(metric string) *MetricRecordMatcher {
	return matcherFor(s.CounterRecords(), metric)
}

// HasValueRecordForMetric starts a fluent chain over the value records of metric.
func (s *MetricsCollectorSpy) HasValueRecordForMetric(metric string) *MetricRecordMatcher {
	return matcherFor(s.ValueRecords(), metric)
}

func matcherFor(records []SpyMetricRecord, metric string) *MetricRecordMatcher {
	m := &MetricRecordMatcher{}

	for _, record := range records {
		if record.Metric == metric {
			m.candidates = append(m.candidates, record)
		}
	}

	return m
}

// WithLabel keeps the records carrying the label with the given value.
func (m *MetricRecordMatcher) WithLabel(key, value string) *MetricRecordMatcher {
	kept := m.candidates[:0:0]

	for _, record := range m.candidates {
		if record.Labels[key] == value {
			kept = append(kept, record)
		}
	}

	m.candidates = kept

	return m
}

// WithOperation keeps the records with the operation label.
func (m *MetricRecordMatcher) WithOperation(operation string) *MetricRecordMatcher {
	return m.WithLabel("operation", operation)
}

// WithStatus keeps the records with the status label.
func (m *MetricRecordMatcher) WithStatus(status string) *MetricRecordMatcher {
	return m.WithLabel("status", status)
}

// WithValue keeps the value records holding value.
func (m *MetricRecordMatcher) WithValue(value float64) *MetricRecordMatcher {
	kept := m.candidates[:0:0]

	for _, record := range m.candidates {
		if record.Value == value {
			kept = append(kept, record)
		}
	}

	m.candidates = kept

	return m
}

// Assert returns true if at least one record met all conditions in the chain.
func (m *MetricRecordMatcher) Assert() bool {
	return len(m.candidates) > 0
}
