package ledger

import (
	"context"

	"github.com/google/uuid"
)

// StockRecord holds the per-title counters. AvailableQuantity + BorrowedQuantity is the total
// number of physical copies, which only changes through stock adjustments outside this package.
type StockRecord struct {
	ID                uuid.UUID `json:"id"`
	TitleID           uuid.UUID `json:"titleId"`
	AvailableQuantity int       `json:"availableQuantity"`
	BorrowedQuantity  int       `json:"borrowedQuantity"`
	Version           int64     `json:"version"`
}

// Total returns the number of physical copies of the title.
func (s StockRecord) Total() int {
	return s.AvailableQuantity + s.BorrowedQuantity
}

func (s StockRecord) reserve() (StockRecord, error) {
	if s.AvailableQuantity < 1 {
		return StockRecord{}, ErrOutOfStock
	}

	s.AvailableQuantity--
	s.BorrowedQuantity++

	return s, nil
}

func (s StockRecord) release() (StockRecord, error) {
	if s.BorrowedQuantity < 1 {
		return StockRecord{}, ErrStockUnderflow
	}

	s.AvailableQuantity++
	s.BorrowedQuantity--

	return s, nil
}

// StockLedger reserves and releases copies of a title.
// It only operates on the StockRows of a running unit of work.
type StockLedger struct{}

// NewStockLedger creates a StockLedger.
func NewStockLedger() StockLedger {
	return StockLedger{}
}

// Reserve locks the title's StockRecord and moves one copy from available to borrowed.
// Returns ErrOutOfStock if no copy is available and ErrStockRecordNotFound if the title has no stock.
func (l StockLedger) Reserve(ctx context.Context, tx StockRows, titleID uuid.UUID) (StockRecord, error) {
	current, err := tx.LockStockRecord(ctx, titleID)
	if err != nil {
		return StockRecord{}, err
	}

	reserved, err := current.reserve()
	if err != nil {
		return StockRecord{}, err
	}

	return l.save(ctx, tx, reserved)
}

// Release locks the title's StockRecord and moves one copy from borrowed back to available.
func (l StockLedger) Release(ctx context.Context, tx StockRows, titleID uuid.UUID) (StockRecord, error) {
	current, err := tx.LockStockRecord(ctx, titleID)
	if err != nil {
		return StockRecord{}, err
	}

	released, err := current.release()
	if err != nil {
		return StockRecord{}, err
	}

	return l.save(ctx, tx, released)
}

// save writes the record guarded by the version it was read with.
func (l StockLedger) save(ctx context.Context, tx StockRows, record StockRecord) (StockRecord, error) {
	if err := tx.UpdateStockRecord(ctx, record); err != nil {
		return StockRecord{}, err
	}

	record.Version++

	return record, nil
}
