package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BorrowingRecordStore opens and closes loans inside a running unit of work.
type BorrowingRecordStore struct {
	policy FeePolicy
}

// NewBorrowingRecordStore creates a BorrowingRecordStore using the given fee policy.
func NewBorrowingRecordStore(policy FeePolicy) BorrowingRecordStore {
	return BorrowingRecordStore{policy: policy}
}

// Open stages a new ACTIVE record for the title and borrower, due one loan period after now.
func (s BorrowingRecordStore) Open(
	ctx context.Context,
	tx BorrowingRows,
	titleID uuid.UUID,
	borrowerID uuid.UUID,
	now time.Time,
) (BorrowingRecord, error) {
	borrowDate := ToLedgerTime(now)

	record := BorrowingRecord{
		ID:         uuid.New(),
		TitleID:    titleID,
		BorrowerID: borrowerID,
		BorrowDate: borrowDate,
		DueDate:    s.policy.DueDate(borrowDate),
		Status:     StatusActive,
		LateFee:    0,
	}

	if err := tx.InsertBorrowingRecord(ctx, record); err != nil {
		return BorrowingRecord{}, err
	}

	return record, nil
}

// Close locks the record and assesses it at now.
// Returns ErrAlreadyReturned if the record is not ACTIVE and ErrBorrowingRecordNotFound if it does not exist.
func (s BorrowingRecordStore) Close(
	ctx context.Context,
	tx BorrowingRows,
	recordID uuid.UUID,
	now time.Time,
) (BorrowingRecord, error) {
	record, err := tx.LockBorrowingRecord(ctx, recordID)
	if err != nil {
		return BorrowingRecord{}, err
	}

	if record.IsClosed() {
		return BorrowingRecord{}, ErrAlreadyReturned
	}

	returnDate := ToLedgerTime(now)
	record.Status, record.LateFee = s.policy.Assess(record.DueDate, returnDate)
	record.ReturnDate = &returnDate

	if err := tx.UpdateBorrowingRecord(ctx, record); err != nil {
		return BorrowingRecord{}, err
	}

	return record, nil
}
