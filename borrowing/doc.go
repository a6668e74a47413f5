// Package borrowing provides the borrow/return transaction coordinator of the ledger.
//
// The Coordinator runs every borrow and every return as one unit of work that touches the
// stock counters, the borrowing record, the borrower's history and the audit log together.
// Either all of these changes commit or none of them do.
//
// Concurrent requests for the last copy of a title are serialized by the row lock on the
// title's stock record, so the stock can never be oversold. Lost races that show up as
// ledger.ErrConcurrencyConflict are retried with exponential backoff a bounded number of times.
//
// Callers classify failures with errors.Is or ledger.Kind:
//
//	record, err := coordinator.Borrow(ctx, titleID, borrowerID)
//	switch ledger.Kind(err) {
//	case ledger.KindOutOfStock:
//		// tell the borrower to come back later
//	case ledger.KindTransactionFailure:
//		// nothing was changed, the request may be repeated
//	}
package borrowing
