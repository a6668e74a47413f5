package postgresengine

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/AntonStoeckl/borrowing-ledger-go/ledger"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
	sqlStateUniqueViolation      = "23505"

	errorTypeConcurrencyConflict = "concurrency_conflict"
	errorTypeCanceled            = "canceled"
	errorTypeDatabase            = "database_error"
)

// classify maps a driver error to the ledger's error vocabulary.
// Context errors pass through unchanged, everything unknown is joined with sentinel.
func classify(sentinel error, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err

	case isConcurrencyFailure(err):
		return errors.Join(ledger.ErrConcurrencyConflict, err)

	case sqlStateOf(err) == sqlStateUniqueViolation:
		return errors.Join(ledger.ErrAlreadyRegistered, err)

	default:
		return errors.Join(sentinel, err)
	}
}

func isConcurrencyFailure(err error) bool {
	switch sqlStateOf(err) {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
		return true
	default:
		return false
	}
}

// sqlStateOf extracts the SQLSTATE from a pgx or lib/pq error.
func sqlStateOf(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}

	return ""
}

// errorTypeOf returns a low-cardinality label for metrics and spans.
func errorTypeOf(err error) string {
	switch {
	case errors.Is(err, ledger.ErrConcurrencyConflict):
		return errorTypeConcurrencyConflict

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errorTypeCanceled

	case ledger.IsDomainError(err):
		return strings.ToLower(ledger.Kind(err))

	default:
		return errorTypeDatabase
	}
}
