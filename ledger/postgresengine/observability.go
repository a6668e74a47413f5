package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/AntonStoeckl/borrowing-ledger-go/ledger"
)

const (
	metricTransactionDuration = "ledger_transaction_duration_seconds"
	metricQueryDuration       = "ledger_query_duration_seconds"
	metricDatabaseErrors      = "ledger_database_errors_total"
	metricConcurrencyConflict = "ledger_concurrency_conflicts_total"

	spanNameTransact = "ledger.transact"
	spanNameQuery    = "ledger.query"

	spanAttrOperation  = "operation"
	spanAttrErrorType  = "error_type"
	spanAttrDurationMS = "duration_ms"
	spanAttrRowCount   = "row_count"

	labelStatus = "status"

	operationTransact = "transact"

	statusSuccess = "success"
	statusError   = "error"
)

// === Logging ===

// logQueryWithDuration logs SQL statements with execution time at debug level.
func (s Store) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	if s.logger != nil {
		s.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level.
func (s Store) logOperation(ctx context.Context, action string, args ...any) {
	if s.logger != nil {
		s.logger.Info(logMsgOperation+action, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, logMsgOperation+action, args...)
	}
}

func (s Store) logWarn(ctx context.Context, message string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(message, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.WarnContext(ctx, message, args...)
	}
}

// logError logs error information at error level.
func (s Store) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if s.logger != nil {
		s.logger.Error(message, allArgs...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, message, allArgs...)
	}
}

func (s Store) buildQueryFailed(ctx context.Context, err error, args ...any) error {
	s.logError(ctx, logMsgBuildQueryFailed, err, args...)

	return errors.Join(ledger.ErrBuildingQueryFailed, err)
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.2f", toMilliseconds(d))
}

// === Metrics ===

func (s Store) recordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if s.metricsCollector == nil {
		return
	}

	if contextual, ok := s.metricsCollector.(ledger.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	s.metricsCollector.RecordDuration(metric, duration, labels)
}

func (s Store) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if s.metricsCollector == nil {
		return
	}

	if contextual, ok := s.metricsCollector.(ledger.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
		return
	}

	s.metricsCollector.IncrementCounter(metric, labels)
}

// observeQuery records the duration of a read-only query and counts database errors.
func (s Store) observeQuery(ctx context.Context, action string, duration time.Duration, err error) {
	status := statusSuccess
	if err != nil && !ledger.IsDomainError(err) {
		status = statusError
		s.incrementCounter(ctx, metricDatabaseErrors, map[string]string{
			spanAttrOperation: action,
			spanAttrErrorType: errorTypeOf(err),
		})
	}

	s.recordDuration(ctx, metricQueryDuration, duration, map[string]string{
		spanAttrOperation: action,
		labelStatus:       status,
	})
}

// transactMetricsObserver encapsulates the metrics collection for units of work.
type transactMetricsObserver struct {
	s   Store
	ctx context.Context
}

func (s Store) startTransactMetrics(ctx context.Context) *transactMetricsObserver {
	return &transactMetricsObserver{s: s, ctx: ctx}
}

func (o *transactMetricsObserver) recordSuccess(duration time.Duration) {
	o.s.recordDuration(o.ctx, metricTransactionDuration, duration, map[string]string{
		spanAttrOperation: operationTransact,
		labelStatus:       statusSuccess,
	})
}

// recordError records the duration of a rolled back unit of work. Domain outcomes are
// not database errors and are only visible in the status label.
func (o *transactMetricsObserver) recordError(errorType string, duration time.Duration) {
	o.s.recordDuration(o.ctx, metricTransactionDuration, duration, map[string]string{
		spanAttrOperation: operationTransact,
		labelStatus:       statusError,
	})

	if errorType == errorTypeDatabase {
		o.s.incrementCounter(o.ctx, metricDatabaseErrors, map[string]string{
			spanAttrOperation: operationTransact,
			spanAttrErrorType: errorType,
		})
	}
}

func (o *transactMetricsObserver) recordConcurrencyConflict() {
	o.s.incrementCounter(o.ctx, metricConcurrencyConflict, map[string]string{
		spanAttrOperation: operationTransact,
	})
}

// === Tracing ===

// tracingObserver encapsulates the span lifecycle of one operation. A nil span is a no-op.
type tracingObserver struct {
	s    Store
	span ledger.SpanContext
}

func (s Store) startTraceSpan(ctx context.Context, name string, attrs map[string]string) (*tracingObserver, context.Context) {
	if s.tracingCollector == nil {
		return &tracingObserver{s: s}, ctx
	}

	newCtx, span := s.tracingCollector.StartSpan(ctx, name, attrs)

	return &tracingObserver{s: s, span: span}, newCtx
}

func (s Store) startTransactTracing(ctx context.Context) (*tracingObserver, context.Context) {
	return s.startTraceSpan(ctx, spanNameTransact, map[string]string{spanAttrOperation: operationTransact})
}

func (s Store) startQueryTracing(ctx context.Context, action string) (*tracingObserver, context.Context) {
	return s.startTraceSpan(ctx, spanNameQuery, map[string]string{spanAttrOperation: action})
}

func (o *tracingObserver) finishSuccess(rowCount int, duration time.Duration) {
	if o.span == nil {
		return
	}

	attrs := map[string]string{spanAttrDurationMS: formatDuration(duration)}
	if rowCount >= 0 {
		attrs[spanAttrRowCount] = fmt.Sprintf("%d", rowCount)
	}

	o.s.tracingCollector.FinishSpan(o.span, statusSuccess, attrs)
}

func (o *tracingObserver) finishError(errorType string, duration time.Duration) {
	if o.span == nil {
		return
	}

	o.s.tracingCollector.FinishSpan(o.span, statusError, map[string]string{
		spanAttrErrorType:  errorType,
		spanAttrDurationMS: formatDuration(duration),
	})
}
