package oteladapters_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AntonStoeckl/borrowing-ledger-go/ledger/oteladapters"
)

func Test_MetricsCollector_IncrementCounter_Accumulates_PerLabelSet(t *testing.T) {
	// arrange
	reader, collector := newMetricsCollector()
	labels := map[string]string{"operation": "borrow", "status": "success"}

	// act
	collector.IncrementCounter("borrowing_operation_calls_total", labels)
	collector.IncrementCounterContext(context.Background(), "borrowing_operation_calls_total", labels)

	// assert
	sum, ok := collectMetric(t, reader, "borrowing_operation_calls_total").Data.(metricdata.Sum[int64])
	require.True(t, ok, "counter should be exported as an int64 sum")
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)

	value, found := sum.DataPoints[0].Attributes.Value(attribute.Key("operation"))
	assert.True(t, found)
	assert.Equal(t, "borrow", value.AsString())
}

func Test_MetricsCollector_RecordDuration_RecordsSeconds(t *testing.T) {
	// arrange
	reader, collector := newMetricsCollector()

	// act
	collector.RecordDuration("borrowing_operation_duration_seconds", 1500*time.Millisecond, nil)

	// assert
	metric := collectMetric(t, reader, "borrowing_operation_duration_seconds")
	histogram, ok := metric.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "duration should be exported as a float64 histogram")
	require.Len(t, histogram.DataPoints, 1)
	assert.Equal(t, uint64(1), histogram.DataPoints[0].Count)
	assert.InDelta(t, 1.5, histogram.DataPoints[0].Sum, 0.0001)
	assert.Equal(t, "s", metric.Unit)
}

func Test_MetricsCollector_RecordValue_RecordsTheDistribution(t *testing.T) {
	// arrange
	reader, collector := newMetricsCollector()
	labels := map[string]string{"record_status": "overdue"}

	// act
	collector.RecordValue("borrowing_late_fee_minor_units", 5000, labels)
	collector.RecordValueContext(context.Background(), "borrowing_late_fee_minor_units", 15000, labels)

	// assert
	histogram, ok := collectMetric(t, reader, "borrowing_late_fee_minor_units").Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, histogram.DataPoints, 1)
	assert.Equal(t, uint64(2), histogram.DataPoints[0].Count)
	assert.Equal(t, 20000.0, histogram.DataPoints[0].Sum)
}

func newMetricsCollector() (*sdkmetric.ManualReader, *oteladapters.MetricsCollector) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return reader, oteladapters.NewMetricsCollector(provider.Meter("borrowing-ledger-test"))
}

func collectMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Metrics {
	t.Helper()

	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &resourceMetrics), "collecting metrics should not fail")

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, metric := range scopeMetrics.Metrics {
			if metric.Name == name {
				return metric
			}
		}
	}

	t.Fatalf("metric %q was not exported", name)

	return metricdata.Metrics{}
}
