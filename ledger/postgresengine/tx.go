package postgresengine

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/borrowing-ledger-go/ledger"
	"github.com/AntonStoeckl/borrowing-ledger-go/ledger/postgresengine/internal/adapters"
)

const (
	actionTitleExists           = "title exists"
	actionBorrowerExists        = "borrower exists"
	actionAppendBorrowHistory   = "append borrow history"
	actionLockStockRecord       = "lock stock record"
	actionUpdateStockRecord     = "update stock record"
	actionInsertBorrowingRecord = "insert borrowing record"
	actionLockBorrowingRecord   = "lock borrowing record"
	actionCloseBorrowingRecord  = "close borrowing record"
	actionInsertStockLogEntry   = "insert stock log entry"
)

// pgTx implements ledger.Tx on top of a running database transaction.
type pgTx struct {
	store Store
	tx    adapters.DBTx
}

func (t *pgTx) TitleExists(ctx context.Context, titleID uuid.UUID) (bool, error) {
	return t.exists(ctx, tableTitles, titleID, actionTitleExists)
}

func (t *pgTx) BorrowerExists(ctx context.Context, borrowerID uuid.UUID) (bool, error) {
	return t.exists(ctx, tableBorrowers, borrowerID, actionBorrowerExists)
}

func (t *pgTx) exists(ctx context.Context, table string, id uuid.UUID, action string) (bool, error) {
	sqlQuery, buildErr := buildExistsQuery(table, id)
	if buildErr != nil {
		return false, t.store.buildQueryFailed(ctx, buildErr, logAttrTable, table)
	}

	count, err := t.store.queryRows(ctx, t.tx, sqlQuery, action, func(adapters.DBRows) error { return nil })
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func (t *pgTx) AppendBorrowHistory(ctx context.Context, borrowerID uuid.UUID, recordID uuid.UUID) error {
	sqlQuery, buildErr := buildInsertBorrowHistoryQuery(borrowerID, recordID)
	if buildErr != nil {
		return t.store.buildQueryFailed(ctx, buildErr, logAttrTable, tableBorrowHistory)
	}

	_, err := t.store.exec(ctx, t.tx, sqlQuery, actionAppendBorrowHistory)

	return err
}

func (t *pgTx) LockStockRecord(ctx context.Context, titleID uuid.UUID) (ledger.StockRecord, error) {
	sqlQuery, buildErr := buildLockStockRecordQuery(titleID)
	if buildErr != nil {
		return ledger.StockRecord{}, t.store.buildQueryFailed(ctx, buildErr, logAttrTable, tableStockRecords)
	}

	var record ledger.StockRecord

	err := t.store.queryOne(ctx, t.tx, sqlQuery, actionLockStockRecord, ledger.ErrStockRecordNotFound,
		func(rows adapters.DBRows) error {
			return scanStockRecord(rows, &record)
		})
	if err != nil {
		return ledger.StockRecord{}, err
	}

	return record, nil
}

func (t *pgTx) UpdateStockRecord(ctx context.Context, record ledger.StockRecord) error {
	sqlQuery, buildErr := buildUpdateStockRecordQuery(record)
	if buildErr != nil {
		return t.store.buildQueryFailed(ctx, buildErr, logAttrTable, tableStockRecords)
	}

	rowsAffected, err := t.store.exec(ctx, t.tx, sqlQuery, actionUpdateStockRecord)
	if err != nil {
		return err
	}

	if rowsAffected != 1 {
		return ledger.ErrConcurrencyConflict
	}

	return nil
}

func (t *pgTx) InsertBorrowingRecord(ctx context.Context, record ledger.BorrowingRecord) error {
	sqlQuery, buildErr := buildInsertBorrowingRecordQuery(record)
	if buildErr != nil {
		return t.store.buildQueryFailed(ctx, buildErr, logAttrTable, tableBorrowingRecords)
	}

	_, err := t.store.exec(ctx, t.tx, sqlQuery, actionInsertBorrowingRecord)

	return err
}

func (t *pgTx) LockBorrowingRecord(ctx context.Context, recordID uuid.UUID) (ledger.BorrowingRecord, error) {
	sqlQuery, buildErr := buildLockBorrowingRecordQuery(recordID)
	if buildErr != nil {
		return ledger.BorrowingRecord{}, t.store.buildQueryFailed(ctx, buildErr, logAttrTable, tableBorrowingRecords)
	}

	var record ledger.BorrowingRecord

	err := t.store.queryOne(ctx, t.tx, sqlQuery, actionLockBorrowingRecord, ledger.ErrBorrowingRecordNotFound,
		func(rows adapters.DBRows) error {
			return scanBorrowingRecord(rows, &record)
		})
	if err != nil {
		return ledger.BorrowingRecord{}, err
	}

	return record, nil
}

func (t *pgTx) UpdateBorrowingRecord(ctx context.Context, record ledger.BorrowingRecord) error {
	sqlQuery, buildErr := buildCloseBorrowingRecordQuery(record)
	if buildErr != nil {
		return t.store.buildQueryFailed(ctx, buildErr, logAttrTable, tableBorrowingRecords)
	}

	rowsAffected, err := t.store.exec(ctx, t.tx, sqlQuery, actionCloseBorrowingRecord)
	if err != nil {
		return err
	}

	if rowsAffected != 1 {
		return ledger.ErrConcurrencyConflict
	}

	return nil
}

func (t *pgTx) InsertStockLogEntry(ctx context.Context, entry ledger.StockLogEntry) error {
	metadataJSON, marshalErr := json.Marshal(entry.Metadata)
	if marshalErr != nil {
		return errors.Join(ledger.ErrInvalidStockLogEntry, marshalErr)
	}

	sqlQuery, buildErr := buildInsertStockLogEntryQuery(entry, metadataJSON)
	if buildErr != nil {
		return t.store.buildQueryFailed(ctx, buildErr, logAttrTable, tableStockLog)
	}

	_, err := t.store.exec(ctx, t.tx, sqlQuery, actionInsertStockLogEntry)

	return err
}
