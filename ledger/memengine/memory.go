// Package memengine provides an in-process implementation of the ledger persistence contracts.
//
// It gives the same guarantees as the PostgreSQL engine: rows locked by a unit of work stay
// locked until it commits or rolls back, writes are staged and become visible together on
// commit, and a rolled back unit of work leaves no trace. It is used by unit tests and for
// running the service without a database.
package memengine

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/borrowing-ledger-go/ledger"
)

// Store holds all committed state in memory.
type Store struct {
	mu        sync.Mutex
	titles    map[uuid.UUID]ledger.Title
	borrowers map[uuid.UUID]ledger.Borrower
	stock     map[uuid.UUID]ledger.StockRecord // by title id
	records   map[uuid.UUID]ledger.BorrowingRecord
	stockLog  []ledger.StockLogEntry
	locks     map[string]chan struct{}
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		titles:    make(map[uuid.UUID]ledger.Title),
		borrowers: make(map[uuid.UUID]ledger.Borrower),
		stock:     make(map[uuid.UUID]ledger.StockRecord),
		records:   make(map[uuid.UUID]ledger.BorrowingRecord),
		locks:     make(map[string]chan struct{}),
	}
}

// Transact runs fn inside a unit of work. Staged writes are applied if fn returns nil and
// discarded otherwise. Row locks taken by fn are released in both cases.
func (s *Store) Transact(ctx context.Context, fn ledger.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := newTx(s)
	defer tx.releaseLocks()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	tx.commit()

	return nil
}

// RegisterTitle creates the title together with its stock record holding quantity available copies.
func (s *Store) RegisterTitle(_ context.Context, title ledger.Title, quantity int) (ledger.StockRecord, error) {
	if quantity < 0 {
		return ledger.StockRecord{}, ledger.ErrInvalidQuantity
	}

	if title.ID == uuid.Nil {
		title.ID = uuid.New()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.titles[title.ID]; exists {
		return ledger.StockRecord{}, ledger.ErrAlreadyRegistered
	}

	record := ledger.StockRecord{
		ID:                uuid.New(),
		TitleID:           title.ID,
		AvailableQuantity: quantity,
		BorrowedQuantity:  0,
		Version:           1,
	}

	s.titles[title.ID] = title
	s.stock[title.ID] = record

	return record, nil
}

// RegisterBorrower stores a new borrower with an empty borrow history.
// A borrower without id gets a new one.
func (s *Store) RegisterBorrower(_ context.Context, borrower ledger.Borrower) (ledger.Borrower, error) {
	if borrower.ID == uuid.Nil {
		borrower.ID = uuid.New()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.borrowers[borrower.ID]; exists {
		return ledger.Borrower{}, ledger.ErrAlreadyRegistered
	}

	borrower.BorrowHistory = []uuid.UUID{}
	s.borrowers[borrower.ID] = borrower

	return borrower, nil
}

// FindBorrowingRecords returns the committed records matching filter, ordered by borrow date.
func (s *Store) FindBorrowingRecords(ctx context.Context, filter ledger.BorrowingFilter) ([]ledger.BorrowingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	found := make([]ledger.BorrowingRecord, 0)

	for _, record := range s.records {
		if matches(filter, record) {
			found = append(found, detached(record))
		}
	}

	slices.SortFunc(found, func(a, b ledger.BorrowingRecord) int {
		if c := a.BorrowDate.Compare(b.BorrowDate); c != 0 {
			return c
		}

		return slices.Compare(a.ID[:], b.ID[:])
	})

	return found, nil
}

// FindStockRecord returns the committed stock record of the title.
func (s *Store) FindStockRecord(ctx context.Context, titleID uuid.UUID) (ledger.StockRecord, error) {
	if err := ctx.Err(); err != nil {
		return ledger.StockRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.stock[titleID]
	if !ok {
		return ledger.StockRecord{}, ledger.ErrStockRecordNotFound
	}

	return record, nil
}

// FindStockLog returns the committed audit entries of the title in sequence order.
func (s *Store) FindStockLog(ctx context.Context, titleID uuid.UUID) ([]ledger.StockLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]ledger.StockLogEntry, 0)

	for _, entry := range s.stockLog {
		if entry.TitleID == titleID {
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

// FindBorrower returns the committed borrower.
func (s *Store) FindBorrower(ctx context.Context, borrowerID uuid.UUID) (ledger.Borrower, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Borrower{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	borrower, ok := s.borrowers[borrowerID]
	if !ok {
		return ledger.Borrower{}, ledger.ErrBorrowerNotFound
	}

	borrower.BorrowHistory = slices.Clone(borrower.BorrowHistory)

	return borrower, nil
}

// detached copies the record so callers cannot write through ReturnDate into committed state.
func detached(record ledger.BorrowingRecord) ledger.BorrowingRecord {
	if record.ReturnDate != nil {
		returnDate := *record.ReturnDate
		record.ReturnDate = &returnDate
	}

	return record
}

func matches(filter ledger.BorrowingFilter, record ledger.BorrowingRecord) bool {
	if filter.Status != "" && filter.Status != record.Status {
		return false
	}

	if filter.TitleID != uuid.Nil && filter.TitleID != record.TitleID {
		return false
	}

	if filter.BorrowerID != uuid.Nil && filter.BorrowerID != record.BorrowerID {
		return false
	}

	return true
}

// acquire blocks until the row lock for key is free or ctx is done.
func (s *Store) acquire(ctx context.Context, key string) error {
	for {
		s.mu.Lock()
		held, locked := s.locks[key]
		if !locked {
			s.locks[key] = make(chan struct{})
			s.mu.Unlock()

			return nil
		}
		s.mu.Unlock()

		select {
		case <-held:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Store) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if held, locked := s.locks[key]; locked {
		close(held)
		delete(s.locks, key)
	}
}
