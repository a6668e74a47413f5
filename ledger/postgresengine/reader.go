package postgresengine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/borrowing-ledger-go/ledger"
	"github.com/AntonStoeckl/borrowing-ledger-go/ledger/postgresengine/internal/adapters"
)

const (
	actionFindBorrowingRecords = "find borrowing records"
	actionFindStockRecord      = "find stock record"
	actionFindStockLog         = "find stock log"
	actionFindBorrower         = "find borrower"
	actionFindBorrowHistory    = "find borrow history"
)

// FindBorrowingRecords returns the records matching filter, ordered by borrow date.
// With ledger.WithEventualConsistency the query may be served by the replica.
func (s Store) FindBorrowingRecords(ctx context.Context, filter ledger.BorrowingFilter) ([]ledger.BorrowingRecord, error) {
	start := time.Now()
	tracer, ctx := s.startQueryTracing(ctx, actionFindBorrowingRecords)

	sqlQuery, buildErr := buildSelectBorrowingRecordsQuery(filter)
	if buildErr != nil {
		tracer.finishError(errorTypeDatabase, time.Since(start))
		return nil, s.buildQueryFailed(ctx, buildErr, logAttrTable, tableBorrowingRecords)
	}

	records := make([]ledger.BorrowingRecord, 0)

	_, err := s.queryRows(ctx, s.db, sqlQuery, actionFindBorrowingRecords, func(rows adapters.DBRows) error {
		var record ledger.BorrowingRecord
		if scanErr := scanBorrowingRecord(rows, &record); scanErr != nil {
			return scanErr
		}

		records = append(records, record)

		return nil
	})

	duration := time.Since(start)
	s.observeQuery(ctx, actionFindBorrowingRecords, duration, err)

	if err != nil {
		tracer.finishError(errorTypeOf(err), duration)
		return nil, err
	}

	tracer.finishSuccess(len(records), duration)
	s.logOperation(ctx, logMsgQueryCompleted, logAttrRowCount, len(records), logAttrDurationMS, toMilliseconds(duration))

	return records, nil
}

// FindStockRecord returns the stock record of the title.
func (s Store) FindStockRecord(ctx context.Context, titleID uuid.UUID) (ledger.StockRecord, error) {
	start := time.Now()

	sqlQuery, buildErr := buildSelectStockRecordQuery(titleID)
	if buildErr != nil {
		return ledger.StockRecord{}, s.buildQueryFailed(ctx, buildErr, logAttrTable, tableStockRecords)
	}

	var record ledger.StockRecord

	err := s.queryOne(ctx, s.db, sqlQuery, actionFindStockRecord, ledger.ErrStockRecordNotFound,
		func(rows adapters.DBRows) error {
			return scanStockRecord(rows, &record)
		})

	s.observeQuery(ctx, actionFindStockRecord, time.Since(start), err)

	if err != nil {
		return ledger.StockRecord{}, err
	}

	return record, nil
}

// FindStockLog returns the audit entries of the title in sequence order.
func (s Store) FindStockLog(ctx context.Context, titleID uuid.UUID) ([]ledger.StockLogEntry, error) {
	start := time.Now()

	sqlQuery, buildErr := buildSelectStockLogQuery(titleID)
	if buildErr != nil {
		return nil, s.buildQueryFailed(ctx, buildErr, logAttrTable, tableStockLog)
	}

	entries := make([]ledger.StockLogEntry, 0)

	_, err := s.queryRows(ctx, s.db, sqlQuery, actionFindStockLog, func(rows adapters.DBRows) error {
		var entry ledger.StockLogEntry
		if scanErr := scanStockLogEntry(rows, &entry); scanErr != nil {
			return scanErr
		}

		entries = append(entries, entry)

		return nil
	})

	s.observeQuery(ctx, actionFindStockLog, time.Since(start), err)

	if err != nil {
		return nil, err
	}

	return entries, nil
}

// FindBorrower returns the borrower with the ids of all borrowing records opened for them, oldest first.
func (s Store) FindBorrower(ctx context.Context, borrowerID uuid.UUID) (ledger.Borrower, error) {
	start := time.Now()

	borrowerQuery, buildErr := buildSelectBorrowerQuery(borrowerID)
	if buildErr != nil {
		return ledger.Borrower{}, s.buildQueryFailed(ctx, buildErr, logAttrTable, tableBorrowers)
	}

	var borrower ledger.Borrower

	err := s.queryOne(ctx, s.db, borrowerQuery, actionFindBorrower, ledger.ErrBorrowerNotFound,
		func(rows adapters.DBRows) error {
			return rows.Scan(&borrower.ID, &borrower.MembershipID, &borrower.Name)
		})
	if err != nil {
		s.observeQuery(ctx, actionFindBorrower, time.Since(start), err)
		return ledger.Borrower{}, err
	}

	historyQuery, buildErr := buildSelectBorrowHistoryQuery(borrowerID)
	if buildErr != nil {
		return ledger.Borrower{}, s.buildQueryFailed(ctx, buildErr, logAttrTable, tableBorrowHistory)
	}

	borrower.BorrowHistory = make([]uuid.UUID, 0)

	_, err = s.queryRows(ctx, s.db, historyQuery, actionFindBorrowHistory, func(rows adapters.DBRows) error {
		var recordID uuid.UUID
		if scanErr := scanUUID(rows, &recordID); scanErr != nil {
			return scanErr
		}

		borrower.BorrowHistory = append(borrower.BorrowHistory, recordID)

		return nil
	})

	s.observeQuery(ctx, actionFindBorrower, time.Since(start), err)

	if err != nil {
		return ledger.Borrower{}, err
	}

	return borrower, nil
}
