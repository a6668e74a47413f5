package postgresengine

import (
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/borrowing-ledger-go/ledger"
)

const (
	dialectPostgres = "postgres"

	tableTitles           = "titles"
	tableBorrowers        = "borrowers"
	tableBorrowHistory    = "borrow_history"
	tableStockRecords     = "stock_records"
	tableBorrowingRecords = "borrowing_records"
	tableStockLog         = "stock_log"

	colID                = "id"
	colName              = "name"
	colMembershipID      = "membership_id"
	colSeq               = "seq"
	colBorrowerID        = "borrower_id"
	colBorrowingRecordID = "borrowing_record_id"
	colTitleID           = "title_id"
	colAvailableQuantity = "available_quantity"
	colBorrowedQuantity  = "borrowed_quantity"
	colVersion           = "version"
	colBorrowDate        = "borrow_date"
	colDueDate           = "due_date"
	colReturnDate        = "return_date"
	colStatus            = "status"
	colLateFee           = "late_fee"
	colSequenceNumber    = "sequence_number"
	colStockRecordID     = "stock_record_id"
	colAction            = "action"
	colQuantityDelta     = "quantity_delta"
	colReason            = "reason"
	colReferenceID       = "reference_id"
	colOccurredAt        = "occurred_at"
	colMetadata          = "metadata"

	castJsonb = "?::jsonb"
)

var (
	stockRecordColumns = []any{colID, colTitleID, colAvailableQuantity, colBorrowedQuantity, colVersion}

	borrowingRecordColumns = []any{
		colID, colTitleID, colBorrowerID, colBorrowDate, colDueDate, colReturnDate, colStatus, colLateFee,
	}

	stockLogColumns = []any{
		colSequenceNumber, colTitleID, colStockRecordID, colBorrowingRecordID, colAction,
		colQuantityDelta, colReason, colReferenceID, colOccurredAt, colMetadata,
	}
)

func builder() goqu.DialectWrapper {
	return goqu.Dialect(dialectPostgres)
}

func toSQL(ds interface {
	ToSQL() (string, []any, error)
}) (string, error) {
	sqlQuery, _, err := ds.ToSQL()
	if err != nil {
		return "", err
	}

	return sqlQuery, nil
}

func buildExistsQuery(table string, id uuid.UUID) (string, error) {
	return toSQL(builder().
		From(table).
		Select(goqu.L("1")).
		Where(goqu.C(colID).Eq(id.String())).
		Limit(1))
}

func buildLockStockRecordQuery(titleID uuid.UUID) (string, error) {
	return toSQL(builder().
		From(tableStockRecords).
		Select(stockRecordColumns...).
		Where(goqu.C(colTitleID).Eq(titleID.String())).
		ForUpdate(exp.Wait))
}

func buildSelectStockRecordQuery(titleID uuid.UUID) (string, error) {
	return toSQL(builder().
		From(tableStockRecords).
		Select(stockRecordColumns...).
		Where(goqu.C(colTitleID).Eq(titleID.String())))
}

// buildUpdateStockRecordQuery only matches the row if it still has the version the record was read with.
func buildUpdateStockRecordQuery(record ledger.StockRecord) (string, error) {
	return toSQL(builder().
		Update(tableStockRecords).
		Set(goqu.Record{
			colAvailableQuantity: record.AvailableQuantity,
			colBorrowedQuantity:  record.BorrowedQuantity,
			colVersion:           record.Version + 1,
		}).
		Where(
			goqu.C(colID).Eq(record.ID.String()),
			goqu.C(colVersion).Eq(record.Version),
		))
}

func buildInsertStockRecordQuery(record ledger.StockRecord) (string, error) {
	return toSQL(builder().
		Insert(tableStockRecords).
		Rows(goqu.Record{
			colID:                record.ID.String(),
			colTitleID:           record.TitleID.String(),
			colAvailableQuantity: record.AvailableQuantity,
			colBorrowedQuantity:  record.BorrowedQuantity,
			colVersion:           record.Version,
		}))
}

func buildInsertTitleQuery(title ledger.Title) (string, error) {
	return toSQL(builder().
		Insert(tableTitles).
		Rows(goqu.Record{colID: title.ID.String(), colName: title.Name}))
}

func buildInsertBorrowerQuery(borrower ledger.Borrower) (string, error) {
	return toSQL(builder().
		Insert(tableBorrowers).
		Rows(goqu.Record{
			colID:           borrower.ID.String(),
			colMembershipID: borrower.MembershipID,
			colName:         borrower.Name,
		}))
}

func buildSelectBorrowerQuery(borrowerID uuid.UUID) (string, error) {
	return toSQL(builder().
		From(tableBorrowers).
		Select(colID, colMembershipID, colName).
		Where(goqu.C(colID).Eq(borrowerID.String())))
}

func buildSelectBorrowHistoryQuery(borrowerID uuid.UUID) (string, error) {
	return toSQL(builder().
		From(tableBorrowHistory).
		Select(colBorrowingRecordID).
		Where(goqu.C(colBorrowerID).Eq(borrowerID.String())).
		Order(goqu.C(colSeq).Asc()))
}

func buildInsertBorrowHistoryQuery(borrowerID uuid.UUID, recordID uuid.UUID) (string, error) {
	return toSQL(builder().
		Insert(tableBorrowHistory).
		Rows(goqu.Record{
			colBorrowerID:        borrowerID.String(),
			colBorrowingRecordID: recordID.String(),
		}))
}

func buildInsertBorrowingRecordQuery(record ledger.BorrowingRecord) (string, error) {
	return toSQL(builder().
		Insert(tableBorrowingRecords).
		Rows(borrowingRecordRow(record)))
}

func buildLockBorrowingRecordQuery(recordID uuid.UUID) (string, error) {
	return toSQL(builder().
		From(tableBorrowingRecords).
		Select(borrowingRecordColumns...).
		Where(goqu.C(colID).Eq(recordID.String())).
		ForUpdate(exp.Wait))
}

// buildCloseBorrowingRecordQuery only matches the row while it is still ACTIVE.
func buildCloseBorrowingRecordQuery(record ledger.BorrowingRecord) (string, error) {
	return toSQL(builder().
		Update(tableBorrowingRecords).
		Set(goqu.Record{
			colReturnDate: record.ReturnDate,
			colStatus:     string(record.Status),
			colLateFee:    record.LateFee,
		}).
		Where(
			goqu.C(colID).Eq(record.ID.String()),
			goqu.C(colStatus).Eq(string(ledger.StatusActive)),
		))
}

func buildSelectBorrowingRecordsQuery(filter ledger.BorrowingFilter) (string, error) {
	where := make([]exp.Expression, 0, 3)

	if filter.Status != "" {
		where = append(where, goqu.C(colStatus).Eq(string(filter.Status)))
	}

	if filter.TitleID != uuid.Nil {
		where = append(where, goqu.C(colTitleID).Eq(filter.TitleID.String()))
	}

	if filter.BorrowerID != uuid.Nil {
		where = append(where, goqu.C(colBorrowerID).Eq(filter.BorrowerID.String()))
	}

	return toSQL(builder().
		From(tableBorrowingRecords).
		Select(borrowingRecordColumns...).
		Where(where...).
		Order(goqu.C(colBorrowDate).Asc(), goqu.C(colID).Asc()))
}

func buildInsertStockLogEntryQuery(entry ledger.StockLogEntry, metadataJSON []byte) (string, error) {
	return toSQL(builder().
		Insert(tableStockLog).
		Rows(goqu.Record{
			colTitleID:           entry.TitleID.String(),
			colStockRecordID:     entry.StockRecordID.String(),
			colBorrowingRecordID: entry.BorrowingRecordID.String(),
			colAction:            string(entry.Action),
			colQuantityDelta:     entry.QuantityDelta,
			colReason:            entry.Reason,
			colReferenceID:       entry.ReferenceID.String(),
			colOccurredAt:        entry.OccurredAt,
			colMetadata:          goqu.L(castJsonb, string(metadataJSON)),
		}))
}

func buildSelectStockLogQuery(titleID uuid.UUID) (string, error) {
	return toSQL(builder().
		From(tableStockLog).
		Select(stockLogColumns...).
		Where(goqu.C(colTitleID).Eq(titleID.String())).
		Order(goqu.C(colSequenceNumber).Asc()))
}

func borrowingRecordRow(record ledger.BorrowingRecord) goqu.Record {
	return goqu.Record{
		colID:         record.ID.String(),
		colTitleID:    record.TitleID.String(),
		colBorrowerID: record.BorrowerID.String(),
		colBorrowDate: record.BorrowDate,
		colDueDate:    record.DueDate,
		colReturnDate: record.ReturnDate,
		colStatus:     string(record.Status),
		colLateFee:    record.LateFee,
	}
}
