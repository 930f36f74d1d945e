package oteladapters_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
	. "github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore/oteladapters"
	"github.com/AntonStoeckl/snapshotting-entitystore-go/testutil/helper"
)

func newCollector() (*MetricsCollector, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return NewMetricsCollector(provider.Meter("test")), reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &resourceMetrics))

	return resourceMetrics
}

func findMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) metricdata.Aggregation {
	t.Helper()

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				return m.Data
			}
		}
	}

	t.Fatalf("metric %s not found", name)

	return nil
}

func findDescription(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) string {
	t.Helper()

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				return m.Description
			}
		}
	}

	t.Fatalf("metric %s not found", name)

	return ""
}

func Test_MetricsCollector_Describes_Instruments_By_Their_Name(t *testing.T) {
	// setup
	collector, reader := newCollector()

	// act
	collector.RecordDuration("workload_retry_delay_seconds", time.Millisecond, nil)
	collector.IncrementCounter("workload_units_abandoned_total", nil)
	collector.RecordValue("harness_units_per_second", 12.5, nil)

	// assert
	resourceMetrics := collect(t, reader)
	assert.Equal(t, "workload retry delay", findDescription(t, resourceMetrics, "workload_retry_delay_seconds"))
	assert.Equal(t, "workload units abandoned", findDescription(t, resourceMetrics, "workload_units_abandoned_total"))
	assert.Equal(t, "harness units per second", findDescription(t, resourceMetrics, "harness_units_per_second"))
}

func Test_MetricsCollector_RecordDuration(t *testing.T) {
	// setup
	collector, reader := newCollector()

	// act
	collector.RecordDuration("entitystore_operation_duration_seconds", 150*time.Millisecond, map[string]string{
		"operation": "get_entity",
		"status":    "success",
	})

	// assert
	histogram, ok := findMetric(t, collect(t, reader), "entitystore_operation_duration_seconds").(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, histogram.DataPoints, 1)

	dataPoint := histogram.DataPoints[0]
	expectedAttrs := attribute.NewSet(
		attribute.String("operation", "get_entity"),
		attribute.String("status", "success"),
	)

	assert.Equal(t, uint64(1), dataPoint.Count)
	assert.InDelta(t, 0.15, dataPoint.Sum, 0.001)
	assert.True(t, dataPoint.Attributes.Equals(&expectedAttrs))
}

func Test_MetricsCollector_IncrementCounter_From_Many_Goroutines(t *testing.T) {
	// setup
	collector, reader := newCollector()
	labels := map[string]string{"operation": "update_entity"}

	// act
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				collector.IncrementCounterContext(context.Background(), "entitystore_snapshots_appended_total", labels)
			}
		}()
	}
	wg.Wait()

	// assert
	counter, ok := findMetric(t, collect(t, reader), "entitystore_snapshots_appended_total").(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, counter.DataPoints, 1)
	assert.Equal(t, int64(100), counter.DataPoints[0].Value)
}

func Test_MetricsCollector_RecordValue_Keeps_The_Last_Value(t *testing.T) {
	// setup
	collector, reader := newCollector()
	labels := map[string]string{"run_id": "r1"}

	// act
	collector.RecordValue("harness_session_throughput_units_per_second", 10, labels)
	collector.RecordValue("harness_session_throughput_units_per_second", 42.5, labels)

	// assert
	gauge, ok := findMetric(t, collect(t, reader), "harness_session_throughput_units_per_second").(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.InDelta(t, 42.5, gauge.DataPoints[0].Value, 1e-9)
}

func Test_MetricsCollector_Receives_Store_Metrics(t *testing.T) {
	// setup
	ctx := context.Background()
	collector, reader := newCollector()
	store, err := entitystore.NewStore(
		helper.OpenBoltEngine(t, 1),
		entitystore.WithSnapshotInterval(2),
		entitystore.WithMetrics(collector),
	)
	require.NoError(t, err)

	// act
	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, store.UpdateEntity(ctx, tx, 1, entitystore.Fields{"name": "a"}))
	require.NoError(t, store.UpdateEntity(ctx, tx, 1, entitystore.Fields{"name": "b"}))
	require.NoError(t, store.Commit(ctx, tx))

	// assert
	resourceMetrics := collect(t, reader)

	histogram, ok := findMetric(t, resourceMetrics, "entitystore_operation_duration_seconds").(metricdata.Histogram[float64])
	require.True(t, ok)

	updates := attribute.NewSet(attribute.String("operation", "update_entity"), attribute.String("status", "success"))
	var updateCount uint64
	for _, dataPoint := range histogram.DataPoints {
		if dataPoint.Attributes.Equals(&updates) {
			updateCount = dataPoint.Count
		}
	}
	assert.Equal(t, uint64(2), updateCount)

	snapshots, ok := findMetric(t, resourceMetrics, "entitystore_snapshots_appended_total").(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, snapshots.DataPoints, 1)
	assert.Equal(t, int64(1), snapshots.DataPoints[0].Value)
}
