package ledger_test

import (
	"context"

	"github.com/google/uuid"

	. "github.com/AntonStoeckl/borrowing-ledger-go/ledger"
)

// fakeRows is a minimal single-threaded Tx for exercising the components in isolation.
type fakeRows struct {
	stock    map[uuid.UUID]StockRecord
	records  map[uuid.UUID]BorrowingRecord
	stockLog []StockLogEntry

	failUpdateStock error
	failInsertLog   error
}

func newFakeRows() *fakeRows {
	return &fakeRows{
		stock:   make(map[uuid.UUID]StockRecord),
		records: make(map[uuid.UUID]BorrowingRecord),
	}
}

func (f *fakeRows) givenStock(titleID uuid.UUID, available, borrowed int) StockRecord {
	record := StockRecord{
		ID:                uuid.New(),
		TitleID:           titleID,
		AvailableQuantity: available,
		BorrowedQuantity:  borrowed,
		Version:           1,
	}
	f.stock[titleID] = record

	return record
}

func (f *fakeRows) LockStockRecord(_ context.Context, titleID uuid.UUID) (StockRecord, error) {
	record, ok := f.stock[titleID]
	if !ok {
		return StockRecord{}, ErrStockRecordNotFound
	}

	return record, nil
}

func (f *fakeRows) UpdateStockRecord(_ context.Context, record StockRecord) error {
	if f.failUpdateStock != nil {
		return f.failUpdateStock
	}

	if f.stock[record.TitleID].Version != record.Version {
		return ErrConcurrencyConflict
	}

	record.Version++
	f.stock[record.TitleID] = record

	return nil
}

func (f *fakeRows) InsertBorrowingRecord(_ context.Context, record BorrowingRecord) error {
	f.records[record.ID] = record
	return nil
}

func (f *fakeRows) LockBorrowingRecord(_ context.Context, recordID uuid.UUID) (BorrowingRecord, error) {
	record, ok := f.records[recordID]
	if !ok {
		return BorrowingRecord{}, ErrBorrowingRecordNotFound
	}

	return record, nil
}

func (f *fakeRows) UpdateBorrowingRecord(_ context.Context, record BorrowingRecord) error {
	f.records[record.ID] = record
	return nil
}

func (f *fakeRows) InsertStockLogEntry(_ context.Context, entry StockLogEntry) error {
	if f.failInsertLog != nil {
		return f.failInsertLog
	}

	f.stockLog = append(f.stockLog, entry)

	return nil
}
