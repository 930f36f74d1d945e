package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
	"github.com/AntonStoeckl/snapshotting-entitystore-go/harness"
)

const resultFormat = "%-8d %-8d %-8d %-10d %-10d %-10d %-12.1f %-10.3f %-10.3f %-10.3f\n"

func printHeader(out io.Writer) {
	_, _ = fmt.Fprintf(out, "%-8s %-8s %-8s %-10s %-10s %-10s %-12s %-10s %-10s %-10s\n",
		"session", "workers", "units", "committed", "abandoned", "violations", "units/s", "mean_ms", "p99_ms", "max_ms")
}

func printResult(out io.Writer, result harness.Result) {
	_, _ = fmt.Fprintf(out, resultFormat,
		result.Session,
		result.Workers,
		result.Totals.Units,
		result.Totals.Committed,
		result.Totals.Abandoned,
		result.Totals.Violations,
		result.Throughput(),
		entitystore.ToMilliseconds(result.Latency.Mean),
		entitystore.ToMilliseconds(result.Latency.P99),
		entitystore.ToMilliseconds(result.Latency.Max),
	)
}

// logCollectedMetrics logs the cumulative counters and histograms collected so far at debug level.
func logCollectedMetrics(ctx context.Context, reader *sdkmetric.ManualReader, logger *slog.Logger) {
	var resourceMetrics metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &resourceMetrics); err != nil {
		logger.Warn("collecting metrics failed", "error", err.Error())
		return
	}

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				var total int64
				for _, dataPoint := range data.DataPoints {
					total += dataPoint.Value
				}

				logger.Debug("metric", "name", m.Name, "total", total)

			case metricdata.Histogram[float64]:
				var count uint64
				var sum float64
				for _, dataPoint := range data.DataPoints {
					count += dataPoint.Count
					sum += dataPoint.Sum
				}

				logger.Debug("metric", "name", m.Name, "count", count, "sum_seconds", sum)
			}
		}
	}
}
