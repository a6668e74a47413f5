package memengine

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/borrowing-ledger-go/ledger"
)

const (
	lockPrefixStock     = "stock:"
	lockPrefixBorrowing = "borrowing:"
)

// tx stages all writes of one unit of work until commit.
type tx struct {
	store     *Store
	held      []string
	stock     map[uuid.UUID]ledger.StockRecord
	records   map[uuid.UUID]ledger.BorrowingRecord
	histories map[uuid.UUID][]uuid.UUID
	stockLog  []ledger.StockLogEntry
}

func newTx(store *Store) *tx {
	return &tx{
		store:     store,
		stock:     make(map[uuid.UUID]ledger.StockRecord),
		records:   make(map[uuid.UUID]ledger.BorrowingRecord),
		histories: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (t *tx) lock(ctx context.Context, key string) error {
	if slices.Contains(t.held, key) {
		return nil
	}

	if err := t.store.acquire(ctx, key); err != nil {
		return err
	}

	t.held = append(t.held, key)

	return nil
}

func (t *tx) releaseLocks() {
	for _, key := range t.held {
		t.store.release(key)
	}

	t.held = nil
}

func (t *tx) TitleExists(_ context.Context, titleID uuid.UUID) (bool, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	_, exists := t.store.titles[titleID]

	return exists, nil
}

func (t *tx) BorrowerExists(_ context.Context, borrowerID uuid.UUID) (bool, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	_, exists := t.store.borrowers[borrowerID]

	return exists, nil
}

func (t *tx) AppendBorrowHistory(_ context.Context, borrowerID uuid.UUID, recordID uuid.UUID) error {
	t.store.mu.Lock()
	_, exists := t.store.borrowers[borrowerID]
	t.store.mu.Unlock()

	if !exists {
		return ledger.ErrBorrowerNotFound
	}

	t.histories[borrowerID] = append(t.histories[borrowerID], recordID)

	return nil
}

func (t *tx) LockStockRecord(ctx context.Context, titleID uuid.UUID) (ledger.StockRecord, error) {
	if err := t.lock(ctx, lockPrefixStock+titleID.String()); err != nil {
		return ledger.StockRecord{}, err
	}

	if staged, ok := t.stock[titleID]; ok {
		return staged, nil
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	record, ok := t.store.stock[titleID]
	if !ok {
		return ledger.StockRecord{}, ledger.ErrStockRecordNotFound
	}

	return record, nil
}

func (t *tx) UpdateStockRecord(_ context.Context, record ledger.StockRecord) error {
	current, ok := t.stock[record.TitleID]
	if !ok {
		t.store.mu.Lock()
		current, ok = t.store.stock[record.TitleID]
		t.store.mu.Unlock()
	}

	if !ok {
		return ledger.ErrStockRecordNotFound
	}

	if current.Version != record.Version {
		return ledger.ErrConcurrencyConflict
	}

	record.Version++
	t.stock[record.TitleID] = record

	return nil
}

func (t *tx) InsertBorrowingRecord(_ context.Context, record ledger.BorrowingRecord) error {
	t.records[record.ID] = record

	return nil
}

func (t *tx) LockBorrowingRecord(ctx context.Context, recordID uuid.UUID) (ledger.BorrowingRecord, error) {
	if err := t.lock(ctx, lockPrefixBorrowing+recordID.String()); err != nil {
		return ledger.BorrowingRecord{}, err
	}

	if staged, ok := t.records[recordID]; ok {
		return staged, nil
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	record, ok := t.store.records[recordID]
	if !ok {
		return ledger.BorrowingRecord{}, ledger.ErrBorrowingRecordNotFound
	}

	return record, nil
}

func (t *tx) UpdateBorrowingRecord(_ context.Context, record ledger.BorrowingRecord) error {
	current, ok := t.records[record.ID]
	if !ok {
		t.store.mu.Lock()
		current, ok = t.store.records[record.ID]
		t.store.mu.Unlock()
	}

	if !ok {
		return ledger.ErrBorrowingRecordNotFound
	}

	if current.IsClosed() {
		return ledger.ErrConcurrencyConflict
	}

	t.records[record.ID] = record

	return nil
}

func (t *tx) InsertStockLogEntry(_ context.Context, entry ledger.StockLogEntry) error {
	t.stockLog = append(t.stockLog, entry)

	return nil
}

// commit applies all staged writes at once.
func (t *tx) commit() {
	s := t.store

	s.mu.Lock()
	defer s.mu.Unlock()

	for titleID, record := range t.stock {
		s.stock[titleID] = record
	}

	for id, record := range t.records {
		s.records[id] = record
	}

	for borrowerID, recordIDs := range t.histories {
		borrower := s.borrowers[borrowerID]
		borrower.BorrowHistory = append(slices.Clone(borrower.BorrowHistory), recordIDs...)
		s.borrowers[borrowerID] = borrower
	}

	for _, entry := range t.stockLog {
		entry.SequenceNumber = uint(len(s.stockLog) + 1)
		s.stockLog = append(s.stockLog, entry)
	}
}
