// Package oteladapters bridges the entitystore observability interfaces to OpenTelemetry.
//
// The Store, the workload Driver and the Harness all accept an entitystore.MetricsCollector.
// MetricsCollector implements it, including the context-aware variant, on top of an
// OpenTelemetry metric.Meter:
//
//	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
//	collector := oteladapters.NewMetricsCollector(provider.Meter("entitystore"))
//	store, err := entitystore.NewStore(engine, entitystore.WithMetrics(collector))
package oteladapters
