package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a BorrowingRecord.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusReturned Status = "RETURNED"
	StatusOverdue  Status = "OVERDUE"
)

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusReturned, StatusOverdue:
		return true
	default:
		return false
	}
}

// StockAction is the kind of stock mutation recorded in a StockLogEntry.
type StockAction string

const (
	ActionBorrow StockAction = "BORROW"
	ActionReturn StockAction = "RETURN"
)

// Title is the catalog identity of a book. Only its id matters to the ledger.
type Title struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"title"`
}

// Borrower is a library member. BorrowHistory holds the ids of all borrowing records
// opened for this borrower, oldest first.
type Borrower struct {
	ID            uuid.UUID   `json:"id"`
	MembershipID  string      `json:"membershipId"`
	Name          string      `json:"name"`
	BorrowHistory []uuid.UUID `json:"borrowHistory"`
}

// BorrowingRecord is one loan instance. It is created ACTIVE on borrow and mutated exactly once on return.
type BorrowingRecord struct {
	ID         uuid.UUID  `json:"id"`
	TitleID    uuid.UUID  `json:"titleId"`
	BorrowerID uuid.UUID  `json:"borrowerId"`
	BorrowDate time.Time  `json:"borrowDate"`
	DueDate    time.Time  `json:"dueDate"`
	ReturnDate *time.Time `json:"returnDate"`
	Status     Status     `json:"status"`
	LateFee    int64      `json:"lateFee"`
}

// IsClosed reports whether the record has reached a terminal status.
func (r BorrowingRecord) IsClosed() bool {
	return r.Status != StatusActive
}

// EntryMetadata correlates an audit entry with the request that caused it.
type EntryMetadata struct {
	MessageID     string `json:"messageId"`
	CausationID   string `json:"causationId"`
	CorrelationID string `json:"correlationId"`
}

// StockLogEntry is an immutable audit record of one stock mutation.
// SequenceNumber is assigned by the storage on insert.
type StockLogEntry struct {
	SequenceNumber    uint          `json:"sequenceNumber"`
	TitleID           uuid.UUID     `json:"titleId"`
	StockRecordID     uuid.UUID     `json:"stockRecordId"`
	BorrowingRecordID uuid.UUID     `json:"borrowingRecordId"`
	Action            StockAction   `json:"action"`
	QuantityDelta     int           `json:"quantityDelta"`
	Reason            string        `json:"reason"`
	ReferenceID       uuid.UUID     `json:"referenceId"`
	OccurredAt        time.Time     `json:"occurredAt"`
	Metadata          EntryMetadata `json:"metadata"`
}

// BorrowingFilter narrows ListBorrowings. Zero values mean "any".
type BorrowingFilter struct {
	Status     Status
	TitleID    uuid.UUID
	BorrowerID uuid.UUID
}

// ToLedgerTime normalizes a time to UTC with microsecond precision, the precision PostgreSQL stores.
func ToLedgerTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
