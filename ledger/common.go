package ledger

import (
	"errors"
	"fmt"
)

// Error kinds reported to callers of the borrow/return operations.
const (
	KindNotFound           = "NOT_FOUND"
	KindOutOfStock         = "OUT_OF_STOCK"
	KindAlreadyReturned    = "ALREADY_RETURNED"
	KindTransactionFailure = "TRANSACTION_FAILURE"
)

var (
	// ErrNotFound is the root of all "entity does not resolve" errors.
	ErrNotFound = errors.New("not found")

	// ErrOutOfStock is returned when a reserve is attempted with zero available copies.
	ErrOutOfStock = errors.New("title is out of stock")

	// ErrAlreadyReturned is returned when a return is attempted on a record that is no longer ACTIVE.
	ErrAlreadyReturned = errors.New("borrowing record is already returned")

	// ErrTransactionFailure marks infrastructure failures; every effect of the unit of work was rolled back.
	ErrTransactionFailure = errors.New("transaction failure")

	// ErrConcurrencyConflict is returned when a row was modified concurrently (version mismatch,
	// serialization failure or deadlock). It is the only error that is retried.
	ErrConcurrencyConflict = errors.New("concurrency conflict, the row was modified concurrently")

	ErrTitleNotFound           = fmt.Errorf("title %w", ErrNotFound)
	ErrBorrowerNotFound        = fmt.Errorf("borrower %w", ErrNotFound)
	ErrBorrowingRecordNotFound = fmt.Errorf("borrowing record %w", ErrNotFound)
	ErrStockRecordNotFound     = fmt.Errorf("stock record %w", ErrNotFound)

	// ErrStockUnderflow is returned when a release would drive the borrowed quantity below zero.
	ErrStockUnderflow = errors.New("stock release would make the borrowed quantity negative")

	// ErrInvalidStockLogEntry is returned when an audit entry does not describe a valid stock mutation.
	ErrInvalidStockLogEntry = errors.New("stock log entry is not valid")

	// ErrInvalidQuantity is returned when a title is registered with a negative quantity.
	ErrInvalidQuantity = errors.New("quantity must not be negative")

	// ErrAlreadyRegistered is returned when a title or borrower id is registered twice.
	ErrAlreadyRegistered = errors.New("already registered")

	ErrNilDatabaseConnection = errors.New("database connection must not be nil")
	ErrBuildingQueryFailed   = errors.New("building query failed")
	ErrQueryingFailed        = errors.New("querying the database failed")
	ErrScanningDBRowFailed   = errors.New("scanning db row failed")
	ErrExecutingFailed       = errors.New("executing the statement failed")
	ErrBeginTxFailed         = errors.New("beginning the transaction failed")
	ErrCommitFailed          = errors.New("committing the transaction failed")
)

// Kind maps an error to one of the error kinds reported to callers.
// It returns an empty string for nil.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrOutOfStock):
		return KindOutOfStock
	case errors.Is(err, ErrAlreadyReturned):
		return KindAlreadyReturned
	default:
		return KindTransactionFailure
	}
}

// IsDomainError reports whether err is a validation outcome (as opposed to an infrastructure failure).
func IsDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrOutOfStock) ||
		errors.Is(err, ErrAlreadyReturned)
}
