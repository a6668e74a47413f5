// Package oteladapters provides OpenTelemetry implementations of the ledger observability interfaces.
//
//   - SlogBridgeLogger and OTelLogger implement ledger.ContextualLogger
//   - MetricsCollector implements ledger.ContextualMetricsCollector
//   - TracingCollector implements ledger.TracingCollector
//
// All adapters use the providers they are given, config.InitObservability wires them to the
// global OpenTelemetry providers of the service.
package oteladapters
