package ledger

import (
	"context"

	"github.com/google/uuid"
)

// TitleRows resolves titles inside a unit of work.
type TitleRows interface {
	TitleExists(ctx context.Context, titleID uuid.UUID) (bool, error)
}

// BorrowerRows resolves borrowers and maintains their borrow history inside a unit of work.
type BorrowerRows interface {
	BorrowerExists(ctx context.Context, borrowerID uuid.UUID) (bool, error)
	AppendBorrowHistory(ctx context.Context, borrowerID uuid.UUID, recordID uuid.UUID) error
}

// StockRows gives locked access to stock records.
//
// LockStockRecord holds an exclusive lock on the title's stock record until the unit of work ends.
// UpdateStockRecord writes the record guarded by its Version and returns ErrConcurrencyConflict
// if the stored version differs.
type StockRows interface {
	LockStockRecord(ctx context.Context, titleID uuid.UUID) (StockRecord, error)
	UpdateStockRecord(ctx context.Context, record StockRecord) error
}

// BorrowingRows gives locked access to borrowing records.
//
// UpdateBorrowingRecord only succeeds for a record that is still ACTIVE in storage,
// otherwise it returns ErrConcurrencyConflict.
type BorrowingRows interface {
	InsertBorrowingRecord(ctx context.Context, record BorrowingRecord) error
	LockBorrowingRecord(ctx context.Context, recordID uuid.UUID) (BorrowingRecord, error)
	UpdateBorrowingRecord(ctx context.Context, record BorrowingRecord) error
}

// StockLogRows appends audit entries. Entries are never updated or deleted.
type StockLogRows interface {
	InsertStockLogEntry(ctx context.Context, entry StockLogEntry) error
}

// Tx is the handle of a running unit of work. All writes staged through it become visible
// together on commit or not at all.
type Tx interface {
	TitleRows
	BorrowerRows
	StockRows
	BorrowingRows
	StockLogRows
}

// TxFunc is the body of a unit of work.
type TxFunc func(ctx context.Context, tx Tx) error

// UnitOfWork runs fn inside one database transaction.
// The transaction commits if fn returns nil and rolls back otherwise. It is always released.
type UnitOfWork interface {
	Transact(ctx context.Context, fn TxFunc) error
}

// Reader serves read-only queries outside of a unit of work.
type Reader interface {
	FindBorrowingRecords(ctx context.Context, filter BorrowingFilter) ([]BorrowingRecord, error)
	FindStockRecord(ctx context.Context, titleID uuid.UUID) (StockRecord, error)
	FindStockLog(ctx context.Context, titleID uuid.UUID) ([]StockLogEntry, error)
	FindBorrower(ctx context.Context, borrowerID uuid.UUID) (Borrower, error)
}

// Catalog registers titles and borrowers.
type Catalog interface {
	RegisterTitle(ctx context.Context, title Title, quantity int) (StockRecord, error)
	RegisterBorrower(ctx context.Context, borrower Borrower) (Borrower, error)
}

// Store is the full persistence provider as implemented by the engines.
type Store interface {
	UnitOfWork
	Reader
	Catalog
}
