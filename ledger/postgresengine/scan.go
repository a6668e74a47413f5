package postgresengine

import (
	"database/sql"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/borrowing-ledger-go/ledger"
	"github.com/AntonStoeckl/borrowing-ledger-go/ledger/postgresengine/internal/adapters"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func scanStockRecord(rows adapters.DBRows, record *ledger.StockRecord) error {
	return rows.Scan(
		&record.ID,
		&record.TitleID,
		&record.AvailableQuantity,
		&record.BorrowedQuantity,
		&record.Version,
	)
}

func scanBorrowingRecord(rows adapters.DBRows, record *ledger.BorrowingRecord) error {
	var returnDate sql.NullTime
	var status string

	err := rows.Scan(
		&record.ID,
		&record.TitleID,
		&record.BorrowerID,
		&record.BorrowDate,
		&record.DueDate,
		&returnDate,
		&status,
		&record.LateFee,
	)
	if err != nil {
		return err
	}

	record.BorrowDate = ledger.ToLedgerTime(record.BorrowDate)
	record.DueDate = ledger.ToLedgerTime(record.DueDate)
	record.Status = ledger.Status(status)
	record.ReturnDate = nil

	if returnDate.Valid {
		t := ledger.ToLedgerTime(returnDate.Time)
		record.ReturnDate = &t
	}

	return nil
}

func scanStockLogEntry(rows adapters.DBRows, entry *ledger.StockLogEntry) error {
	var sequenceNumber int64
	var action string
	var metadataJSON []byte

	err := rows.Scan(
		&sequenceNumber,
		&entry.TitleID,
		&entry.StockRecordID,
		&entry.BorrowingRecordID,
		&action,
		&entry.QuantityDelta,
		&entry.Reason,
		&entry.ReferenceID,
		&entry.OccurredAt,
		&metadataJSON,
	)
	if err != nil {
		return err
	}

	entry.SequenceNumber = uint(sequenceNumber)
	entry.Action = ledger.StockAction(action)
	entry.OccurredAt = ledger.ToLedgerTime(entry.OccurredAt)
	entry.Metadata = ledger.EntryMetadata{}

	if len(metadataJSON) > 0 {
		return json.Unmarshal(metadataJSON, &entry.Metadata)
	}

	return nil
}

func scanUUID(rows adapters.DBRows, id *uuid.UUID) error {
	return rows.Scan(id)
}
