package postgresengine

import (
	"context"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/borrowing-ledger-go/ledger"
	"github.com/AntonStoeckl/borrowing-ledger-go/ledger/postgresengine/internal/adapters"
)

const (
	actionInsertTitle       = "insert title"
	actionInsertStockRecord = "insert stock record"
	actionInsertBorrower    = "insert borrower"
)

// RegisterTitle creates the title together with its stock record holding quantity available copies.
// A title without id gets a new one. Registering the same id twice returns ledger.ErrAlreadyRegistered.
func (s Store) RegisterTitle(ctx context.Context, title ledger.Title, quantity int) (ledger.StockRecord, error) {
	if quantity < 0 {
		return ledger.StockRecord{}, ledger.ErrInvalidQuantity
	}

	if title.ID == uuid.Nil {
		title.ID = uuid.New()
	}

	record := ledger.StockRecord{
		ID:                uuid.New(),
		TitleID:           title.ID,
		AvailableQuantity: quantity,
		BorrowedQuantity:  0,
		Version:           1,
	}

	titleQuery, buildErr := buildInsertTitleQuery(title)
	if buildErr != nil {
		return ledger.StockRecord{}, s.buildQueryFailed(ctx, buildErr, logAttrTable, tableTitles)
	}

	stockQuery, buildErr := buildInsertStockRecordQuery(record)
	if buildErr != nil {
		return ledger.StockRecord{}, s.buildQueryFailed(ctx, buildErr, logAttrTable, tableStockRecords)
	}

	err := s.withTx(ctx, func(ctx context.Context, dbTx adapters.DBTx) error {
		if _, err := s.exec(ctx, dbTx, titleQuery, actionInsertTitle); err != nil {
			return err
		}

		_, err := s.exec(ctx, dbTx, stockQuery, actionInsertStockRecord)

		return err
	})
	if err != nil {
		return ledger.StockRecord{}, err
	}

	return record, nil
}

// RegisterBorrower stores a new borrower with an empty borrow history.
// A borrower without id gets a new one.
func (s Store) RegisterBorrower(ctx context.Context, borrower ledger.Borrower) (ledger.Borrower, error) {
	if borrower.ID == uuid.Nil {
		borrower.ID = uuid.New()
	}

	sqlQuery, buildErr := buildInsertBorrowerQuery(borrower)
	if buildErr != nil {
		return ledger.Borrower{}, s.buildQueryFailed(ctx, buildErr, logAttrTable, tableBorrowers)
	}

	if _, err := s.exec(ctx, s.db, sqlQuery, actionInsertBorrower); err != nil {
		return ledger.Borrower{}, err
	}

	borrower.BorrowHistory = []uuid.UUID{}

	return borrower, nil
}
