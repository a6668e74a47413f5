package ledger

import (
	"context"
	"time"
)

const (
	ReasonBorrow = "For study"
	ReasonReturn = "Finish reading"
)

// AuditLogWriter appends stock log entries inside a running unit of work.
// A failing append fails the unit of work, so the log never diverges from the counters.
type AuditLogWriter struct{}

// NewAuditLogWriter creates an AuditLogWriter.
func NewAuditLogWriter() AuditLogWriter {
	return AuditLogWriter{}
}

// Append validates and stages the entry.
func (w AuditLogWriter) Append(ctx context.Context, tx StockLogRows, entry StockLogEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	return tx.InsertStockLogEntry(ctx, entry)
}

// Validate checks that the action and the quantity delta agree.
func (e StockLogEntry) Validate() error {
	switch e.Action {
	case ActionBorrow:
		if e.QuantityDelta != -1 {
			return ErrInvalidStockLogEntry
		}
	case ActionReturn:
		if e.QuantityDelta != 1 {
			return ErrInvalidStockLogEntry
		}
	default:
		return ErrInvalidStockLogEntry
	}

	return nil
}

// BuildBorrowEntry creates the audit entry for a reserve.
func BuildBorrowEntry(stock StockRecord, record BorrowingRecord, occurredAt time.Time, metadata EntryMetadata) StockLogEntry {
	return buildEntry(stock, record, ActionBorrow, -1, ReasonBorrow, occurredAt, metadata)
}

// BuildReturnEntry creates the audit entry for a release.
func BuildReturnEntry(stock StockRecord, record BorrowingRecord, occurredAt time.Time, metadata EntryMetadata) StockLogEntry {
	return buildEntry(stock, record, ActionReturn, 1, ReasonReturn, occurredAt, metadata)
}

func buildEntry(
	stock StockRecord,
	record BorrowingRecord,
	action StockAction,
	delta int,
	reason string,
	occurredAt time.Time,
	metadata EntryMetadata,
) StockLogEntry {
	return StockLogEntry{
		TitleID:           stock.TitleID,
		StockRecordID:     stock.ID,
		BorrowingRecordID: record.ID,
		Action:            action,
		QuantityDelta:     delta,
		Reason:            reason,
		ReferenceID:       stock.ID,
		OccurredAt:        ToLedgerTime(occurredAt),
		Metadata:          metadata,
	}
}
