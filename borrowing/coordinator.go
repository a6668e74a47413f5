package borrowing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/borrowing-ledger-go/ledger"
)

const (
	OperationBorrow         = "borrow"
	OperationReturn         = "return"
	OperationListBorrowings = "list_borrowings"
)

var (
	// ErrNilStore is returned when the Coordinator is created without a store.
	ErrNilStore = errors.New("store must not be nil")

	// ErrInvalidStatusFilter is returned when ListBorrowings is asked for an unknown status.
	ErrInvalidStatusFilter = errors.New("status filter must be ACTIVE, RETURNED or OVERDUE")
)

// Store is what the Coordinator needs from a persistence engine.
type Store interface {
	ledger.UnitOfWork
	ledger.Reader
}

// Coordinator executes borrow and return requests as atomic units of work.
// It is safe for concurrent use.
type Coordinator struct {
	store        Store
	stockLedger  ledger.StockLedger
	recordStore  ledger.BorrowingRecordStore
	auditLog     ledger.AuditLogWriter
	clock        Clock
	retryOptions []RetryOption

	logger           ledger.Logger
	contextualLogger ledger.ContextualLogger
	metricsCollector ledger.MetricsCollector
	tracingCollector ledger.TracingCollector
}

// NewCoordinator creates a Coordinator on top of store with optional configuration.
func NewCoordinator(store Store, options ...Option) (Coordinator, error) {
	if store == nil {
		return Coordinator{}, ErrNilStore
	}

	c := Coordinator{
		store:       store,
		stockLedger: ledger.NewStockLedger(),
		recordStore: ledger.NewBorrowingRecordStore(ledger.DefaultFeePolicy()),
		auditLog:    ledger.NewAuditLogWriter(),
		clock:       SystemClock(),
	}

	for _, option := range options {
		if err := option(&c); err != nil {
			return Coordinator{}, err
		}
	}

	return c, nil
}

// Borrow lends one copy of the title to the borrower.
//
// On success the title has one copy less available and one more borrowed, a new ACTIVE
// BorrowingRecord exists and is appended to the borrower's history, and a BORROW entry with
// delta -1 is in the audit log. On any error none of this happened.
//
// Errors: ledger.ErrNotFound (title, borrower or stock record), ledger.ErrOutOfStock,
// ledger.ErrTransactionFailure, or the context error if ctx ended.
func (c Coordinator) Borrow(ctx context.Context, titleID uuid.UUID, borrowerID uuid.UUID) (ledger.BorrowingRecord, error) {
	start := time.Now()
	tracer, ctx := c.startTracing(ctx, OperationBorrow, map[string]string{
		LogAttrTitleID:    titleID.String(),
		LogAttrBorrowerID: borrowerID.String(),
	})

	var record ledger.BorrowingRecord

	retryMetrics, err := RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		var execErr error
		record, execErr = c.borrowOnce(ctx, titleID, borrowerID)

		return execErr
	}, c.retryOptionsFor(OperationBorrow)...)

	err = toCallerError(err)
	c.observe(ctx, tracer, OperationBorrow, time.Since(start), retryMetrics, err,
		LogAttrTitleID, titleID.String(),
		LogAttrBorrowerID, borrowerID.String(),
		LogAttrRecordID, record.ID.String(),
	)

	if err != nil {
		return ledger.BorrowingRecord{}, err
	}

	return record, nil
}

func (c Coordinator) borrowOnce(ctx context.Context, titleID uuid.UUID, borrowerID uuid.UUID) (ledger.BorrowingRecord, error) {
	now := ledger.ToLedgerTime(c.clock.Now())
	metadata := buildEntryMetadata(ctx)

	var record ledger.BorrowingRecord

	err := c.store.Transact(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if err := requireTitle(ctx, tx, titleID); err != nil {
			return err
		}

		if err := requireBorrower(ctx, tx, borrowerID); err != nil {
			return err
		}

		stock, err := c.stockLedger.Reserve(ctx, tx, titleID)
		if err != nil {
			return err
		}

		opened, err := c.recordStore.Open(ctx, tx, titleID, borrowerID, now)
		if err != nil {
			return err
		}

		if err := tx.AppendBorrowHistory(ctx, borrowerID, opened.ID); err != nil {
			return err
		}

		if err := c.auditLog.Append(ctx, tx, ledger.BuildBorrowEntry(stock, opened, now, metadata)); err != nil {
			return err
		}

		record = opened

		return nil
	})
	if err != nil {
		return ledger.BorrowingRecord{}, err
	}

	return record, nil
}

// Return closes the borrowing record at now and puts the copy back into stock.
//
// The record becomes RETURNED with no fee, or OVERDUE with a fee of 5000 (by default) per whole
// day past the due date. A RETURN entry with delta +1 is written to the audit log.
//
// Errors: ledger.ErrNotFound, ledger.ErrAlreadyReturned if the record is no longer ACTIVE,
// ledger.ErrTransactionFailure, or the context error if ctx ended.
func (c Coordinator) Return(ctx context.Context, recordID uuid.UUID, now time.Time) (ledger.BorrowingRecord, error) {
	start := time.Now()
	tracer, ctx := c.startTracing(ctx, OperationReturn, map[string]string{
		LogAttrRecordID: recordID.String(),
	})

	var record ledger.BorrowingRecord

	retryMetrics, err := RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		var execErr error
		record, execErr = c.returnOnce(ctx, recordID, now)

		return execErr
	}, c.retryOptionsFor(OperationReturn)...)

	err = toCallerError(err)
	c.observe(ctx, tracer, OperationReturn, time.Since(start), retryMetrics, err,
		LogAttrRecordID, recordID.String(),
		LogAttrStatus, string(record.Status),
		LogAttrLateFee, record.LateFee,
	)

	if err != nil {
		return ledger.BorrowingRecord{}, err
	}

	c.recordLateFee(ctx, record)

	return record, nil
}

// ReturnNow is Return at the coordinator's clock.
func (c Coordinator) ReturnNow(ctx context.Context, recordID uuid.UUID) (ledger.BorrowingRecord, error) {
	return c.Return(ctx, recordID, c.clock.Now())
}

func (c Coordinator) returnOnce(ctx context.Context, recordID uuid.UUID, now time.Time) (ledger.BorrowingRecord, error) {
	now = ledger.ToLedgerTime(now)
	metadata := buildEntryMetadata(ctx)

	var record ledger.BorrowingRecord

	err := c.store.Transact(ctx, func(ctx context.Context, tx ledger.Tx) error {
		closed, err := c.recordStore.Close(ctx, tx, recordID, now)
		if err != nil {
			return err
		}

		stock, err := c.stockLedger.Release(ctx, tx, closed.TitleID)
		if err != nil {
			return err
		}

		if err := c.auditLog.Append(ctx, tx, ledger.BuildReturnEntry(stock, closed, now, metadata)); err != nil {
			return err
		}

		record = closed

		return nil
	})
	if err != nil {
		return ledger.BorrowingRecord{}, err
	}

	return record, nil
}

// ListBorrowings returns the borrowing records matching filter, ordered by borrow date.
// Zero-valued filter fields match everything.
func (c Coordinator) ListBorrowings(ctx context.Context, filter ledger.BorrowingFilter) ([]ledger.BorrowingRecord, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, ErrInvalidStatusFilter
	}

	start := time.Now()
	tracer, ctx := c.startTracing(ctx, OperationListBorrowings, map[string]string{
		LogAttrStatus: string(filter.Status),
	})

	records, err := c.store.FindBorrowingRecords(ctx, filter)
	err = toCallerError(err)

	c.observe(ctx, tracer, OperationListBorrowings, time.Since(start), RetryMetrics{Attempts: 1}, err,
		LogAttrRecordCount, len(records),
	)

	if err != nil {
		return nil, err
	}

	return records, nil
}

// StockRecordOf returns the current counters of the title.
func (c Coordinator) StockRecordOf(ctx context.Context, titleID uuid.UUID) (ledger.StockRecord, error) {
	record, err := c.store.FindStockRecord(ctx, titleID)
	if err != nil {
		return ledger.StockRecord{}, toCallerError(err)
	}

	return record, nil
}

// StockLogOf returns the audit entries of the title in the order they were written.
func (c Coordinator) StockLogOf(ctx context.Context, titleID uuid.UUID) ([]ledger.StockLogEntry, error) {
	entries, err := c.store.FindStockLog(ctx, titleID)
	if err != nil {
		return nil, toCallerError(err)
	}

	return entries, nil
}

// BorrowerByID returns the borrower with their borrow history.
func (c Coordinator) BorrowerByID(ctx context.Context, borrowerID uuid.UUID) (ledger.Borrower, error) {
	borrower, err := c.store.FindBorrower(ctx, borrowerID)
	if err != nil {
		return ledger.Borrower{}, toCallerError(err)
	}

	return borrower, nil
}

func (c Coordinator) retryOptionsFor(operation string) []RetryOption {
	options := make([]RetryOption, 0, len(c.retryOptions)+1)
	options = append(options, c.retryOptions...)

	if c.metricsCollector != nil {
		options = append(options, withRetryMetrics(c.metricsCollector, operation))
	}

	return options
}

func requireTitle(ctx context.Context, tx ledger.TitleRows, titleID uuid.UUID) error {
	exists, err := tx.TitleExists(ctx, titleID)
	if err != nil {
		return err
	}

	if !exists {
		return ledger.ErrTitleNotFound
	}

	return nil
}

func requireBorrower(ctx context.Context, tx ledger.BorrowerRows, borrowerID uuid.UUID) error {
	exists, err := tx.BorrowerExists(ctx, borrowerID)
	if err != nil {
		return err
	}

	if !exists {
		return ledger.ErrBorrowerNotFound
	}

	return nil
}

// toCallerError keeps domain outcomes and context errors as they are and marks everything
// else, including exhausted concurrency conflicts, as a transaction failure.
func toCallerError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case ledger.IsDomainError(err), errors.Is(err, ErrInvalidStatusFilter):
		return err
	case errors.Is(err, ledger.ErrTransactionFailure):
		return err
	default:
		return errors.Join(ledger.ErrTransactionFailure, err)
	}
}
