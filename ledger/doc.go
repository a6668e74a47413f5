// Package ledger provides the core types and components of the borrowing ledger
// for book circulation in a public library.
//
// It owns the three stock-affecting components that are orchestrated by the
// borrow/return coordinator:
//   - StockLedger: per-title counters (available, borrowed) with reserve/release
//   - BorrowingRecordStore: the lifecycle of each loan and the late-fee assessment
//   - AuditLogWriter: the append-only log of every stock mutation
//
// None of the components open transactions themselves. Each mutating method takes
// the Tx of an already running unit of work, so a counter change can never be
// persisted without its paired borrowing record and audit entry.
//
// Persistence is provided by an engine implementing UnitOfWork, Reader and Catalog:
//   - postgresengine: PostgreSQL via pgx.Pool, sql.DB or sqlx.DB
//   - memengine: in-process storage with the same locking and rollback semantics
//
// Common usage pattern (inside a unit of work):
//
//	err := uow.Transact(ctx, func(ctx context.Context, tx ledger.Tx) error {
//		stock, err := stockLedger.Reserve(ctx, tx, titleID)
//		if err != nil {
//			return err
//		}
//		record, err := recordStore.Open(ctx, tx, titleID, borrowerID, now)
//		...
//		return auditLog.Append(ctx, tx, ledger.BuildBorrowEntry(stock, record, now, metadata))
//	})
package ledger
