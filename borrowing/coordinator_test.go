package borrowing_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/AntonStoeckl/borrowing-ledger-go/borrowing"
	"github.com/AntonStoeckl/borrowing-ledger-go/ledger"
	"github.com/AntonStoeckl/borrowing-ledger-go/ledger/memengine"
	"github.com/AntonStoeckl/borrowing-ledger-go/testutil/observability/testdoubles"
)

var borrowedAt = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

func Test_Borrow_Succeeds_And_WritesAllEffects(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memengine.NewStore()
	coordinator := GivenCoordinator(t, store, WithClock(FixedClock(borrowedAt)))
	titleID := GivenTitleWithStock(t, store, 2)
	borrowerID := GivenBorrower(t, store)

	// act
	record, err := coordinator.Borrow(ctx, titleID, borrowerID)

	// assert
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusActive, record.Status)
	assert.Equal(t, borrowedAt, record.BorrowDate)
	assert.Equal(t, borrowedAt.Add(5*24*time.Hour), record.DueDate)
	assert.Nil(t, record.ReturnDate)
	assert.Equal(t, int64(0), record.LateFee)

	stock := ThenStock(t, coordinator, titleID)
	assert.Equal(t, 1, stock.AvailableQuantity)
	assert.Equal(t, 1, stock.BorrowedQuantity)

	borrower, err := coordinator.BorrowerByID(ctx, borrowerID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{record.ID}, borrower.BorrowHistory)

	entries := ThenStockLog(t, coordinator, titleID)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.ActionBorrow, entries[0].Action)
	assert.Equal(t, -1, entries[0].QuantityDelta)
	assert.Equal(t, stock.ID, entries[0].ReferenceID)
	assert.Equal(t, record.ID, entries[0].BorrowingRecordID)
	assert.Equal(t, borrowedAt, entries[0].OccurredAt)
}

func Test_Borrow_Fails_WithNotFound_For_UnknownTitleOrBorrower(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memengine.NewStore()
	coordinator := GivenCoordinator(t, store)
	titleID := GivenTitleWithStock(t, store, 1)
	borrowerID := GivenBorrower(t, store)

	// act
	_, errUnknownTitle := coordinator.Borrow(ctx, uuid.New(), borrowerID)
	_, errUnknownBorrower := coordinator.Borrow(ctx, titleID, uuid.New())

	// assert
	assert.ErrorIs(t, errUnknownTitle, ledger.ErrTitleNotFound)
	assert.Equal(t, ledger.KindNotFound, ledger.Kind(errUnknownTitle))
	assert.ErrorIs(t, errUnknownBorrower, ledger.ErrBorrowerNotFound)
	assert.Equal(t, ledger.KindNotFound, ledger.Kind(errUnknownBorrower))

	stock := ThenStock(t, coordinator, titleID)
	assert.Equal(t, 1, stock.AvailableQuantity)
	assert.Empty(t, ThenStockLog(t, coordinator, titleID))
}

func Test_Borrow_Fails_WithOutOfStock_When_NoCopyIsLeft(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memengine.NewStore()
	coordinator := GivenCoordinator(t, store)
	titleID := GivenTitleWithStock(t, store, 1)
	borrowerID := GivenBorrower(t, store)
	_, err := coordinator.Borrow(ctx, titleID, borrowerID)
	require.NoError(t, err)

	// act
	_, err = coordinator.Borrow(ctx, titleID, borrowerID)

	// assert
	assert.ErrorIs(t, err, ledger.ErrOutOfStock)
	assert.Equal(t, ledger.KindOutOfStock, ledger.Kind(err))

	stock := ThenStock(t, coordinator, titleID)
	assert.Equal(t, 0, stock.AvailableQuantity)
	assert.Equal(t, 1, stock.BorrowedQuantity)
	assert.Len(t, ThenStockLog(t, coordinator, titleID), 1)
}

func Test_Borrow_NeverOversells_UnderConcurrency(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memengine.NewStore()
	coordinator := GivenCoordinator(t, store)
	copies := 3
	titleID := GivenTitleWithStock(t, store, copies)

	borrowerIDs := make([]uuid.UUID, 25)
	for i := range borrowerIDs {
		borrowerIDs[i] = GivenBorrower(t, store)
	}

	// act
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		succeeded  int
		outOfStock int
		otherErrs  []error
	)

	for _, borrowerID := range borrowerIDs {
		wg.Add(1)

		go func(borrowerID uuid.UUID) {
			defer wg.Done()

			_, err := coordinator.Borrow(ctx, titleID, borrowerID)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ledger.ErrOutOfStock):
				outOfStock++
			default:
				otherErrs = append(otherErrs, err)
			}
		}(borrowerID)
	}

	wg.Wait()

	// assert
	assert.Empty(t, otherErrs)
	assert.Equal(t, copies, succeeded)
	assert.Equal(t, len(borrowerIDs)-copies, outOfStock)

	stock := ThenStock(t, coordinator, titleID)
	assert.Equal(t, 0, stock.AvailableQuantity)
	assert.Equal(t, copies, stock.BorrowedQuantity)

	active, err := coordinator.ListBorrowings(ctx, ledger.BorrowingFilter{Status: ledger.StatusActive, TitleID: titleID})
	require.NoError(t, err)
	assert.Len(t, active, copies)
	assert.Len(t, ThenStockLog(t, coordinator, titleID), copies)
}

func Test_Borrow_IsAtomic_When_TheAuditWriteFails(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memengine.NewStore()
	failing := FailingAuditStore{Store: store, err: errors.New("audit storage unavailable")}
	coordinator := GivenCoordinator(t, failing)
	titleID := GivenTitleWithStock(t, store, 1)
	borrowerID := GivenBorrower(t, store)

	// act
	_, err := coordinator.Borrow(ctx, titleID, borrowerID)

	// assert
	assert.ErrorIs(t, err, ledger.ErrTransactionFailure)
	assert.Equal(t, ledger.KindTransactionFailure, ledger.Kind(err))

	stock := ThenStock(t, coordinator, titleID)
	assert.Equal(t, 1, stock.AvailableQuantity)
	assert.Equal(t, 0, stock.BorrowedQuantity)

	records, err := coordinator.ListBorrowings(ctx, ledger.BorrowingFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)

	borrower, err := coordinator.BorrowerByID(ctx, borrowerID)
	require.NoError(t, err)
	assert.Empty(t, borrower.BorrowHistory)
}

func Test_Borrow_Fails_WithTransactionFailure_When_ConflictsPersist(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memengine.NewStore()
	conflicting := &ConflictingStore{Store: store, conflicts: 100}
	metrics := testdoubles.NewMetricsCollectorSpy(true)
	coordinator := GivenCoordinator(t, conflicting,
		WithRetryOptions(WithMaxAttempts(3), WithBaseDelay(time.Millisecond)),
		WithMetrics(metrics),
	)
	titleID := GivenTitleWithStock(t, store, 1)
	borrowerID := GivenBorrower(t, store)

	// act
	_, err := coordinator.Borrow(ctx, titleID, borrowerID)

	// assert
	assert.ErrorIs(t, err, ledger.ErrTransactionFailure)
	assert.ErrorIs(t, err, ledger.ErrConcurrencyConflict)
	assert.Equal(t, 3, conflicting.calls)
	assert.Equal(t, 2, metrics.CountCounterRecordsForMetric(MetricRetries))
	assert.True(t, metrics.HasCounterRecordForMetric(MetricMaxRetriesReached).WithOperation(OperationBorrow).Assert())
	assert.True(t, metrics.HasCounterRecordForMetric(MetricOperationCalls).WithStatus(StatusError).Assert())
}

func Test_Borrow_Succeeds_After_TransientConflicts(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memengine.NewStore()
	conflicting := &ConflictingStore{Store: store, conflicts: 2}
	coordinator := GivenCoordinator(t, conflicting, WithRetryOptions(WithBaseDelay(time.Millisecond)))
	titleID := GivenTitleWithStock(t, store, 1)
	borrowerID := GivenBorrower(t, store)

	// act
	_, err := coordinator.Borrow(ctx, titleID, borrowerID)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 3, conflicting.calls)
	assert.Equal(t, 0, ThenStock(t, coordinator, titleID).AvailableQuantity)
}

func Test_Return_Succeeds_And_RestoresStock(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memengine.NewStore()
	coordinator := GivenCoordinator(t, store, WithClock(FixedClock(borrowedAt)))
	titleID := GivenTitleWithStock(t, store, 1)
	borrowed := GivenBorrowedCopy(t, coordinator, titleID, GivenBorrower(t, store))
	returnedAt := borrowedAt.Add(3 * 24 * time.Hour)

	// act
	record, err := coordinator.Return(ctx, borrowed.ID, returnedAt)

	// assert
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusReturned, record.Status)
	assert.Equal(t, int64(0), record.LateFee)
	require.NotNil(t, record.ReturnDate)
	assert.Equal(t, returnedAt, *record.ReturnDate)

	stock := ThenStock(t, coordinator, titleID)
	assert.Equal(t, 1, stock.AvailableQuantity)
	assert.Equal(t, 0, stock.BorrowedQuantity)

	entries := ThenStockLog(t, coordinator, titleID)
	require.Len(t, entries, 2)
	assert.Equal(t, ledger.ActionBorrow, entries[0].Action)
	assert.Equal(t, ledger.ActionReturn, entries[1].Action)
	assert.Equal(t, 1, entries[1].QuantityDelta)
	assert.Equal(t, ledger.ReasonReturn, entries[1].Reason)
	assert.Less(t, entries[0].SequenceNumber, entries[1].SequenceNumber)
}

func Test_Return_ChargesLateFee_PerWholeOverdueDay(t *testing.T) {
	dueDate := borrowedAt.Add(5 * 24 * time.Hour)

	testCases := []struct {
		description    string
		returnedAt     time.Time
		expectedStatus ledger.Status
		expectedFee    int64
	}{
		{"exactly at due date", dueDate, ledger.StatusReturned, 0},
		{"less than a day late", dueDate.Add(23 * time.Hour), ledger.StatusReturned, 0},
		{"exactly one day late", dueDate.Add(24 * time.Hour), ledger.StatusOverdue, 5000},
		{"one day and one second late", dueDate.Add(24*time.Hour + time.Second), ledger.StatusOverdue, 5000},
		{"two and a half days late", dueDate.Add(60 * time.Hour), ledger.StatusOverdue, 10000},
		{"exactly three days late", dueDate.Add(72 * time.Hour), ledger.StatusOverdue, 15000},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			// setup
			ctx := context.Background()
			store := memengine.NewStore()
			metrics := testdoubles.NewMetricsCollectorSpy(true)
			coordinator := GivenCoordinator(t, store, WithClock(FixedClock(borrowedAt)), WithMetrics(metrics))
			titleID := GivenTitleWithStock(t, store, 1)
			borrowed := GivenBorrowedCopy(t, coordinator, titleID, GivenBorrower(t, store))

			// act
			record, err := coordinator.Return(ctx, borrowed.ID, tc.returnedAt)

			// assert
			require.NoError(t, err)
			assert.Equal(t, tc.expectedStatus, record.Status)
			assert.Equal(t, tc.expectedFee, record.LateFee)
			assert.Equal(t, tc.expectedFee > 0, metrics.HasValueRecordForMetric(MetricLateFee).WithValue(float64(tc.expectedFee)).Assert())
		})
	}
}

func Test_Return_Twice_Fails_WithAlreadyReturned(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memengine.NewStore()
	coordinator := GivenCoordinator(t, store)
	titleID := GivenTitleWithStock(t, store, 1)
	borrowed := GivenBorrowedCopy(t, coordinator, titleID, GivenBorrower(t, store))
	_, err := coordinator.ReturnNow(ctx, borrowed.ID)
	require.NoError(t, err)

	// act
	_, err = coordinator.ReturnNow(ctx, borrowed.ID)

	// assert
	assert.ErrorIs(t, err, ledger.ErrAlreadyReturned)
	assert.Equal(t, ledger.KindAlreadyReturned, ledger.Kind(err))

	stock := ThenStock(t, coordinator, titleID)
	assert.Equal(t, 1, stock.AvailableQuantity)
	assert.Equal(t, 0, stock.BorrowedQuantity)
	assert.Len(t, ThenStockLog(t, coordinator, titleID), 2)
}

func Test_Return_ConcurrentReturns_OfTheSameRecord_SucceedOnce(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memengine.NewStore()
	coordinator := GivenCoordinator(t, store)
	titleID := GivenTitleWithStock(t, store, 1)
	borrowed := GivenBorrowedCopy(t, coordinator, titleID, GivenBorrower(t, store))

	// act
	results := make(chan error, 10)
	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := coordinator.ReturnNow(ctx, borrowed.ID)
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	// assert
	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}

		assert.ErrorIs(t, err, ledger.ErrAlreadyReturned)
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, ThenStock(t, coordinator, titleID).AvailableQuantity)
}

func Test_Return_Fails_WithNotFound_ForUnknownRecord(t *testing.T) {
	coordinator := GivenCoordinator(t, memengine.NewStore())

	_, err := coordinator.ReturnNow(context.Background(), uuid.New())

	assert.ErrorIs(t, err, ledger.ErrBorrowingRecordNotFound)
	assert.Equal(t, ledger.KindNotFound, ledger.Kind(err))
}

func Test_Borrow_Propagates_TheCorrelationID_IntoTheAuditLog(t *testing.T) {
	// setup
	store := memengine.NewStore()
	coordinator := GivenCoordinator(t, store)
	titleID := GivenTitleWithStock(t, store, 1)
	ctx := WithCorrelationID(context.Background(), "request-42")

	// act
	_, err := coordinator.Borrow(ctx, titleID, GivenBorrower(t, store))

	// assert
	require.NoError(t, err)

	entries := ThenStockLog(t, coordinator, titleID)
	require.Len(t, entries, 1)
	assert.Equal(t, "request-42", entries[0].Metadata.CorrelationID)
	assert.Equal(t, "request-42", entries[0].Metadata.CausationID)
	assert.NotEmpty(t, entries[0].Metadata.MessageID)
}

func Test_ListBorrowings_Filters_ByStatusAndBorrower(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memengine.NewStore()
	coordinator := GivenCoordinator(t, store)
	titleID := GivenTitleWithStock(t, store, 5)
	alice, bob := GivenBorrower(t, store), GivenBorrower(t, store)
	first := GivenBorrowedCopy(t, coordinator, titleID, alice)
	GivenBorrowedCopy(t, coordinator, titleID, alice)
	GivenBorrowedCopy(t, coordinator, titleID, bob)
	_, err := coordinator.ReturnNow(ctx, first.ID)
	require.NoError(t, err)

	// act
	all, errAll := coordinator.ListBorrowings(ctx, ledger.BorrowingFilter{})
	active, errActive := coordinator.ListBorrowings(ctx, ledger.BorrowingFilter{Status: ledger.StatusActive})
	alicesActive, errAlice := coordinator.ListBorrowings(ctx, ledger.BorrowingFilter{Status: ledger.StatusActive, BorrowerID: alice})
	returned, errReturned := coordinator.ListBorrowings(ctx, ledger.BorrowingFilter{Status: ledger.StatusReturned})

	// assert
	require.NoError(t, errors.Join(errAll, errActive, errAlice, errReturned))
	assert.Len(t, all, 3)
	assert.Len(t, active, 2)
	assert.Len(t, alicesActive, 1)
	require.Len(t, returned, 1)
	assert.Equal(t, first.ID, returned[0].ID)
}

func Test_ListBorrowings_Rejects_UnknownStatus(t *testing.T) {
	coordinator := GivenCoordinator(t, memengine.NewStore())

	_, err := coordinator.ListBorrowings(context.Background(), ledger.BorrowingFilter{Status: "LOST"})

	assert.ErrorIs(t, err, ErrInvalidStatusFilter)
}

func Test_Coordinator_Logs_And_Traces_Operations(t *testing.T) {
	// setup
	ctx := context.Background()
	store := memengine.NewStore()
	logHandler := testdoubles.NewLogHandlerSpy(false)
	tracing := testdoubles.NewTracingCollectorSpy(true)
	coordinator := GivenCoordinator(t, store,
		WithLogger(slog.New(logHandler)),
		WithTracing(tracing),
	)
	titleID := GivenTitleWithStock(t, store, 1)
	borrowerID := GivenBorrower(t, store)

	// act
	_, errFirst := coordinator.Borrow(ctx, titleID, borrowerID)
	_, errSecond := coordinator.Borrow(ctx, titleID, borrowerID)

	// assert
	require.NoError(t, errFirst)
	require.ErrorIs(t, errSecond, ledger.ErrOutOfStock)

	assert.True(t, logHandler.HasInfoLog(LogMsgOperationCompleted).
		WithAttr(LogAttrOperation, OperationBorrow).
		WithAttr(LogAttrTitleID, titleID.String()).
		WithDurationMS().
		Assert())
	assert.True(t, logHandler.HasInfoLog(LogMsgOperationRejected).
		WithAttr(LogAttrErrorKind, ledger.KindOutOfStock).
		Assert())

	span, found := tracing.FinishedSpan("borrowing." + OperationBorrow)
	require.True(t, found)
	assert.Equal(t, StatusSuccess, span.Status)
	assert.Equal(t, titleID.String(), span.StartAttributes[LogAttrTitleID])
}

func Test_NewCoordinator_Rejects_InvalidConfiguration(t *testing.T) {
	_, err := NewCoordinator(nil)
	assert.ErrorIs(t, err, ErrNilStore)

	_, err = NewCoordinator(memengine.NewStore(), WithClock(nil))
	assert.ErrorIs(t, err, ErrNilClock)

	_, err = NewCoordinator(memengine.NewStore(), WithRetryOptions(WithMaxAttempts(0)))
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)

	_, err = NewCoordinator(memengine.NewStore(), WithRetryOptions(WithBaseDelay(-time.Millisecond)))
	assert.ErrorIs(t, err, ErrNegativeBaseDelay)

	_, err = NewCoordinator(memengine.NewStore(), WithRetryOptions(WithJitterFactor(1.5)))
	assert.ErrorIs(t, err, ErrInvalidJitterFactor)
}

// FailingAuditStore lets every audit write of a unit of work fail.
type FailingAuditStore struct {
	*memengine.Store
	err error
}

func (s FailingAuditStore) Transact(ctx context.Context, fn ledger.TxFunc) error {
	return s.Store.Transact(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return fn(ctx, failingAuditTx{Tx: tx, err: s.err})
	})
}

type failingAuditTx struct {
	ledger.Tx
	err error
}

func (tx failingAuditTx) InsertStockLogEntry(_ context.Context, _ ledger.StockLogEntry) error {
	return tx.err
}

// ConflictingStore fails the first units of work with a concurrency conflict.
type ConflictingStore struct {
	*memengine.Store
	mu        sync.Mutex
	conflicts int
	calls     int
}

func (s *ConflictingStore) Transact(ctx context.Context, fn ledger.TxFunc) error {
	s.mu.Lock()
	s.calls++
	conflict := s.calls <= s.conflicts
	s.mu.Unlock()

	if conflict {
		return errors.Join(ledger.ErrConcurrencyConflict, errors.New("could not serialize access"))
	}

	return s.Store.Transact(ctx, fn)
}

func FixedClock(now time.Time) Clock {
	return ClockFunc(func() time.Time { return now })
}

func GivenCoordinator(t *testing.T, store Store, options ...Option) Coordinator {
	t.Helper()

	coordinator, err := NewCoordinator(store, options...)
	require.NoError(t, err, "creating the coordinator should not fail")

	return coordinator
}

func GivenTitleWithStock(t *testing.T, store *memengine.Store, quantity int) uuid.UUID {
	t.Helper()

	stock, err := store.RegisterTitle(context.Background(), ledger.Title{ID: uuid.New(), Name: "Designing Data-Intensive Applications"}, quantity)
	require.NoError(t, err, "registering the title should not fail")

	return stock.TitleID
}

func GivenBorrower(t *testing.T, store *memengine.Store) uuid.UUID {
	t.Helper()

	borrower, err := store.RegisterBorrower(context.Background(), ledger.Borrower{MembershipID: uuid.NewString(), Name: "Grace"})
	require.NoError(t, err, "registering the borrower should not fail")

	return borrower.ID
}

func GivenBorrowedCopy(t *testing.T, coordinator Coordinator, titleID, borrowerID uuid.UUID) ledger.BorrowingRecord {
	t.Helper()

	record, err := coordinator.Borrow(context.Background(), titleID, borrowerID)
	require.NoError(t, err, "borrowing should not fail")

	return record
}

func ThenStock(t *testing.T, coordinator Coordinator, titleID uuid.UUID) ledger.StockRecord {
	t.Helper()

	stock, err := coordinator.StockRecordOf(context.Background(), titleID)
	require.NoError(t, err, "reading the stock record should not fail")
	assert.GreaterOrEqual(t, stock.AvailableQuantity, 0)
	assert.GreaterOrEqual(t, stock.BorrowedQuantity, 0)

	return stock
}

func ThenStockLog(t *testing.T, coordinator Coordinator, titleID uuid.UUID) []ledger.StockLogEntry {
	t.Helper()

	entries, err := coordinator.StockLogOf(context.Background(), titleID)
	require.NoError(t, err, "reading the stock log should not fail")

	return entries
}
