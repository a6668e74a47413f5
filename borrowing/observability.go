package borrowing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/AntonStoeckl/borrowing-ledger-go/ledger"
)

const (
	// MetricOperationDuration tracks coordinator operation duration (OpenTelemetry-compatible).
	MetricOperationDuration = "borrowing_operation_duration_seconds"
	// MetricOperationCalls counts coordinator operations by outcome.
	MetricOperationCalls = "borrowing_operation_calls_total"
	// MetricRetries counts retried attempts after a concurrency conflict.
	MetricRetries = "borrowing_retries_total"
	// MetricRetryDelay tracks the backoff before each retried attempt.
	MetricRetryDelay = "borrowing_retry_delay_seconds"
	// MetricMaxRetriesReached counts operations that gave up after the last attempt.
	MetricMaxRetriesReached = "borrowing_max_retries_reached_total"
	// MetricLateFee records the fee of every overdue return in currency minor units.
	MetricLateFee = "borrowing_late_fee_minor_units"

	// StatusSuccess marks a completed operation.
	StatusSuccess = "success"
	// StatusRejected marks an operation refused for a domain reason (not found, out of stock, already returned).
	StatusRejected = "rejected"
	// StatusError marks a failed operation.
	StatusError = "error"

	LogMsgOperationCompleted = "borrowing operation completed"
	LogMsgOperationRejected  = "borrowing operation rejected"
	LogMsgOperationFailed    = "borrowing operation failed"

	LogAttrOperation        = "operation"
	LogAttrStatus           = "status"
	LogAttrErrorKind        = "error_kind"
	LogAttrError            = "error"
	LogAttrDurationMS       = "duration_ms"
	LogAttrAttempts         = "attempts"
	LogAttrRetryDelayMS     = "retry_delay_ms"
	LogAttrRetriesExhausted = "retries_exhausted"
	LogAttrTitleID          = "title_id"
	LogAttrBorrowerID       = "borrower_id"
	LogAttrRecordID         = "record_id"
	LogAttrLateFee          = "late_fee"
	LogAttrRecordCount      = "record_count"

	labelAttemptNumber  = "attempt_number"
	labelErrorType      = "error_type"
	labelFinalErrorType = "final_error_type"
	labelBorrowStatus   = "record_status"

	spanNamePrefix = "borrowing."
)

// statusOf maps an operation result to the status label.
func statusOf(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case ledger.IsDomainError(err):
		return StatusRejected
	default:
		return StatusError
	}
}

// ToMilliseconds converts a time.Duration to float64 milliseconds.
func ToMilliseconds(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

// observe records logs, metrics and the span outcome of one coordinator operation.
func (c Coordinator) observe(
	ctx context.Context,
	tracer *operationTracer,
	operation string,
	duration time.Duration,
	retryMetrics RetryMetrics,
	err error,
	args ...any,
) {
	status := statusOf(err)

	c.recordOperationMetrics(ctx, operation, status, duration)

	logArgs := []any{
		LogAttrOperation, operation,
		LogAttrStatus, status,
		LogAttrDurationMS, ToMilliseconds(duration),
		LogAttrAttempts, retryMetrics.Attempts,
	}

	if retryMetrics.TotalDelay > 0 {
		logArgs = append(logArgs, LogAttrRetryDelayMS, ToMilliseconds(retryMetrics.TotalDelay))
	}

	if retryMetrics.RetriesExhausted {
		logArgs = append(logArgs, LogAttrRetriesExhausted, true)
	}

	switch status {
	case StatusSuccess:
		c.logInfo(ctx, LogMsgOperationCompleted, append(logArgs, args...)...)
		tracer.finish(StatusSuccess, retryMetrics, "")

	case StatusRejected:
		kind := ledger.Kind(err)
		logArgs = append(logArgs, LogAttrErrorKind, kind, LogAttrError, err.Error())
		c.logInfo(ctx, LogMsgOperationRejected, append(logArgs, args...)...)
		tracer.finish(StatusSuccess, retryMetrics, kind)

	default:
		kind := ledger.Kind(err)
		logArgs = append(logArgs, LogAttrErrorKind, kind, LogAttrError, err.Error())
		c.logError(ctx, LogMsgOperationFailed, append(logArgs, args...)...)
		tracer.finish(StatusError, retryMetrics, kind)
	}
}

func (c Coordinator) logInfo(ctx context.Context, msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}

	if c.contextualLogger != nil {
		c.contextualLogger.InfoContext(ctx, msg, args...)
	}
}

func (c Coordinator) logError(ctx context.Context, msg string, args ...any) {
	if c.logger != nil {
		c.logger.Error(msg, args...)
	}

	if c.contextualLogger != nil {
		c.contextualLogger.ErrorContext(ctx, msg, args...)
	}
}

func (c Coordinator) recordOperationMetrics(ctx context.Context, operation, status string, duration time.Duration) {
	if c.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		LogAttrOperation: operation,
		LogAttrStatus:    status,
	}

	if contextual, ok := c.metricsCollector.(ledger.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, MetricOperationDuration, duration, labels)
		contextual.IncrementCounterContext(ctx, MetricOperationCalls, labels)
		return
	}

	c.metricsCollector.RecordDuration(MetricOperationDuration, duration, labels)
	c.metricsCollector.IncrementCounter(MetricOperationCalls, labels)
}

// recordLateFee records the fee of an overdue return. On-time returns are not recorded.
func (c Coordinator) recordLateFee(ctx context.Context, record ledger.BorrowingRecord) {
	if c.metricsCollector == nil || record.LateFee == 0 {
		return
	}

	labels := map[string]string{labelBorrowStatus: strings.ToLower(string(record.Status))}

	if contextual, ok := c.metricsCollector.(ledger.ContextualMetricsCollector); ok {
		contextual.RecordValueContext(ctx, MetricLateFee, float64(record.LateFee), labels)
		return
	}

	c.metricsCollector.RecordValue(MetricLateFee, float64(record.LateFee), labels)
}

// operationTracer encapsulates the span of one operation. Without a tracing collector it does nothing.
type operationTracer struct {
	collector ledger.TracingCollector
	span      ledger.SpanContext
}

func (c Coordinator) startTracing(ctx context.Context, operation string, attrs map[string]string) (*operationTracer, context.Context) {
	if c.tracingCollector == nil {
		return &operationTracer{}, ctx
	}

	attrs[LogAttrOperation] = operation
	newCtx, span := c.tracingCollector.StartSpan(ctx, spanNamePrefix+operation, attrs)

	return &operationTracer{collector: c.tracingCollector, span: span}, newCtx
}

func (t *operationTracer) finish(status string, retryMetrics RetryMetrics, errorKind string) {
	if t.collector == nil || t.span == nil {
		return
	}

	attrs := map[string]string{
		LogAttrAttempts: fmt.Sprintf("%d", retryMetrics.Attempts),
	}

	if errorKind != "" {
		attrs[LogAttrErrorKind] = errorKind
	}

	if retryMetrics.RetriesExhausted {
		attrs[LogAttrRetriesExhausted] = "true"
	}

	t.collector.FinishSpan(t.span, status, attrs)
}
