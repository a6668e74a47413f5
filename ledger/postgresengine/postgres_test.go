package postgresengine_test

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

	"github.com/AntonStoeckl/borrowing-ledger-go/borrowing"
	"github.com/AntonStoeckl/borrowing-ledger-go/ledger"
	. "github.com/AntonStoeckl/borrowing-ledger-go/ledger/postgresengine"              //nolint:revive
	"github.com/AntonStoeckl/borrowing-ledger-go/testutil/observability/testdoubles"
	. "github.com/AntonStoeckl/borrowing-ledger-go/testutil/postgresengine/pgtesthelpers" //nolint:revive
)

var borrowedAt = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

func Test_Borrow_And_Return_RoundTrip_PersistsAllEffects(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	store := wrapper.Store()
	coordinator := GivenCoordinator(t, store)

	// arrange
	titleID := GivenTitleWithStock(t, store, 2)
	borrowerID := GivenBorrower(t, store)
	correlatedCtx := borrowing.WithCorrelationID(ctx, "req-4711")

	// act
	borrowed, borrowErr := coordinator.Borrow(correlatedCtx, titleID, borrowerID)
	returned, returnErr := coordinator.Return(correlatedCtx, borrowed.ID, borrowed.DueDate.Add(49*time.Hour))

	// assert
	require.NoError(t, borrowErr)
	require.NoError(t, returnErr)

	assert.Equal(t, ledger.StatusOverdue, returned.Status)
	assert.Equal(t, int64(10000), returned.LateFee)

	records, err := store.FindBorrowingRecords(ctx, ledger.BorrowingFilter{BorrowerID: borrowerID})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, ledger.StatusOverdue, records[0].Status)
	assert.True(t, borrowedAt.Equal(records[0].BorrowDate))
	require.NotNil(t, records[0].ReturnDate)
	assert.True(t, returned.ReturnDate.Equal(*records[0].ReturnDate))

	stock, err := store.FindStockRecord(ctx, titleID)
	require.NoError(t, err)
	assert.Equal(t, 2, stock.AvailableQuantity)
	assert.Equal(t, 0, stock.BorrowedQuantity)
	assert.Equal(t, int64(3), stock.Version)

	entries, err := store.FindStockLog(ctx, titleID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ledger.ActionBorrow, entries[0].Action)
	assert.Equal(t, ledger.ActionReturn, entries[1].Action)
	assert.Less(t, entries[0].SequenceNumber, entries[1].SequenceNumber)
	assert.Equal(t, "req-4711", entries[1].Metadata.CorrelationID)

	borrower, err := store.FindBorrower(ctx, borrowerID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{borrowed.ID}, borrower.BorrowHistory)
}

func Test_Borrow_NeverOversells_UnderConcurrency(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	store := wrapper.Store()
	coordinator := GivenCoordinator(t, store)

	const copies = 3
	const borrowers = 20

	// arrange
	titleID := GivenTitleWithStock(t, store, copies)
	borrowerIDs := make([]uuid.UUID, borrowers)
	for i := range borrowerIDs {
		borrowerIDs[i] = GivenBorrower(t, store)
	}

	// act
	var wg sync.WaitGroup
	results := make(chan error, borrowers)

	for _, borrowerID := range borrowerIDs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := coordinator.Borrow(ctx, titleID, borrowerID)
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	// assert
	succeeded, outOfStock := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ledger.ErrOutOfStock):
			outOfStock++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, copies, succeeded)
	assert.Equal(t, borrowers-copies, outOfStock)

	stock, err := store.FindStockRecord(ctx, titleID)
	require.NoError(t, err)
	assert.Equal(t, 0, stock.AvailableQuantity)
	assert.Equal(t, copies, stock.BorrowedQuantity)
	assert.Equal(t, copies, CountRowsOf(t, wrapper, "stock_log"))
	assert.Equal(t, copies, CountRowsOf(t, wrapper, "borrowing_records"))
}

func Test_Return_ConcurrentReturns_OfTheSameRecord_SucceedOnce(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	store := wrapper.Store()
	coordinator := GivenCoordinator(t, store)

	// arrange
	titleID := GivenTitleWithStock(t, store, 1)
	borrowerID := GivenBorrower(t, store)
	record, err := coordinator.Borrow(ctx, titleID, borrowerID)
	require.NoError(t, err, "error in arranging test data")

	// act
	const returners = 8

	var wg sync.WaitGroup
	results := make(chan error, returners)

	for range returners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := coordinator.Return(ctx, record.ID, record.DueDate)
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	// assert
	succeeded, alreadyReturned := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ledger.ErrAlreadyReturned):
			alreadyReturned++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, returners-1, alreadyReturned)

	stock, err := store.FindStockRecord(ctx, titleID)
	require.NoError(t, err)
	assert.Equal(t, 1, stock.AvailableQuantity)
	assert.Equal(t, 0, stock.BorrowedQuantity)
}

func Test_Transact_RollsBack_AllWrites_When_TheBodyFails(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	store := wrapper.Store()

	// arrange
	titleID := GivenTitleWithStock(t, store, 1)
	borrowerID := GivenBorrower(t, store)
	errBoom := errors.New("boom")

	// act
	err := store.Transact(ctx, func(ctx context.Context, tx ledger.Tx) error {
		stock, lockErr := tx.LockStockRecord(ctx, titleID)
		if lockErr != nil {
			return lockErr
		}

		stock.AvailableQuantity--
		stock.BorrowedQuantity++
		if updateErr := tx.UpdateStockRecord(ctx, stock); updateErr != nil {
			return updateErr
		}

		record := ledger.BorrowingRecord{
			ID:         uuid.New(),
			TitleID:    titleID,
			BorrowerID: borrowerID,
			BorrowDate: borrowedAt,
			DueDate:    borrowedAt.Add(ledger.DefaultLoanPeriod),
			Status:     ledger.StatusActive,
		}
		if insertErr := tx.InsertBorrowingRecord(ctx, record); insertErr != nil {
			return insertErr
		}

		return errBoom
	})

	// assert
	assert.ErrorIs(t, err, errBoom)

	stock, findErr := store.FindStockRecord(ctx, titleID)
	require.NoError(t, findErr)
	assert.Equal(t, 1, stock.AvailableQuantity)
	assert.Equal(t, 0, stock.BorrowedQuantity)
	assert.Equal(t, 0, CountRowsOf(t, wrapper, "borrowing_records"))
}

func Test_UpdateStockRecord_WithStaleVersion_Fails_WithConcurrencyConflict(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	store := wrapper.Store()

	// arrange
	titleID := GivenTitleWithStock(t, store, 1)

	// act
	err := store.Transact(ctx, func(ctx context.Context, tx ledger.Tx) error {
		stock, lockErr := tx.LockStockRecord(ctx, titleID)
		if lockErr != nil {
			return lockErr
		}

		stock.Version--

		return tx.UpdateStockRecord(ctx, stock)
	})

	// assert
	assert.ErrorIs(t, err, ledger.ErrConcurrencyConflict)
}

func Test_LockRecords_Fail_WithNotFound_ForUnknownIDs(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	store := wrapper.Store()

	// act
	stockErr := store.Transact(ctx, func(ctx context.Context, tx ledger.Tx) error {
		_, err := tx.LockStockRecord(ctx, uuid.New())
		return err
	})

	recordErr := store.Transact(ctx, func(ctx context.Context, tx ledger.Tx) error {
		_, err := tx.LockBorrowingRecord(ctx, uuid.New())
		return err
	})

	// assert
	assert.ErrorIs(t, stockErr, ledger.ErrStockRecordNotFound)
	assert.ErrorIs(t, recordErr, ledger.ErrBorrowingRecordNotFound)
}

func Test_Catalog_Rejects_DuplicateAndInvalidRegistrations(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	store := wrapper.Store()

	// arrange
	titleID := GivenTitleWithStock(t, store, 1)
	borrowerID := GivenBorrower(t, store)

	// act
	_, duplicateTitleErr := store.RegisterTitle(ctx, ledger.Title{ID: titleID, Name: "again"}, 1)
	_, duplicateBorrowerErr := store.RegisterBorrower(ctx, ledger.Borrower{ID: borrowerID, Name: "again"})
	_, negativeQuantityErr := store.RegisterTitle(ctx, ledger.Title{Name: "negative"}, -1)

	// assert
	assert.ErrorIs(t, duplicateTitleErr, ledger.ErrAlreadyRegistered)
	assert.ErrorIs(t, duplicateBorrowerErr, ledger.ErrAlreadyRegistered)
	assert.ErrorIs(t, negativeQuantityErr, ledger.ErrInvalidQuantity)
	assert.Equal(t, 1, CountRowsOf(t, wrapper, "titles"))
}

func Test_FindBorrowingRecords_Filters_ByStatusTitleAndBorrower(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wrapper := CreateWrapperWithTestConfig(t)
	store := wrapper.Store()
	coordinator := GivenCoordinator(t, store)

	// arrange
	titleA := GivenTitleWithStock(t, store, 2)
	titleB := GivenTitleWithStock(t, store, 2)
	alice := GivenBorrower(t, store)
	bob := GivenBorrower(t, store)

	returnedRecord := GivenBorrowedCopy(t, coordinator, titleA, alice)
	_, err := coordinator.Return(ctx, returnedRecord.ID, returnedRecord.DueDate)
	require.NoError(t, err, "error in arranging test data")

	GivenBorrowedCopy(t, coordinator, titleB, alice)
	GivenBorrowedCopy(t, coordinator, titleA, bob)

	// act
	active, activeErr := store.FindBorrowingRecords(ctx, ledger.BorrowingFilter{Status: ledger.StatusActive})
	returned, returnedErr := store.FindBorrowingRecords(ctx, ledger.BorrowingFilter{Status: ledger.StatusReturned})
	ofAliceForA, aliceErr := store.FindBorrowingRecords(ctx, ledger.BorrowingFilter{TitleID: titleA, BorrowerID: alice})
	all, allErr := store.FindBorrowingRecords(ctx, ledger.BorrowingFilter{})

	// assert
	require.NoError(t, activeErr)
	require.NoError(t, returnedErr)
	require.NoError(t, aliceErr)
	require.NoError(t, allErr)

	assert.Len(t, active, 2)
	require.Len(t, returned, 1)
	assert.Equal(t, returnedRecord.ID, returned[0].ID)
	require.Len(t, ofAliceForA, 1)
	assert.Equal(t, returnedRecord.ID, ofAliceForA[0].ID)
	assert.Len(t, all, 3)
}

func Test_Reads_WithEventualConsistency_AreServed_ByTheReplica(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wrapper := CreateReplicatedWrapperWithTestConfig(t)
	store := wrapper.Store()

	// arrange
	titleID := GivenTitleWithStock(t, store, 4)

	// act
	stock, err := store.FindStockRecord(ledger.WithEventualConsistency(ctx), titleID)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 4, stock.AvailableQuantity)
}

func Test_NewStore_Fails_WithNilDatabaseConnection(t *testing.T) {
	testCases := []struct {
		name        string
		factoryFunc func() (Store, error)
	}{
		{name: "NewStoreFromPGXPool", factoryFunc: func() (Store, error) { return NewStoreFromPGXPool(nil) }},
		{name: "NewStoreFromPGXPoolAndReplica", factoryFunc: func() (Store, error) { return NewStoreFromPGXPoolAndReplica(nil, nil) }},
		{name: "NewStoreFromSQLDB", factoryFunc: func() (Store, error) { return NewStoreFromSQLDB(nil) }},
		{name: "NewStoreFromSQLDBAndReplica", factoryFunc: func() (Store, error) { return NewStoreFromSQLDBAndReplica(nil, nil) }},
		{name: "NewStoreFromSQLX", factoryFunc: func() (Store, error) { return NewStoreFromSQLX(nil) }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			_, err := tc.factoryFunc()

			// assert
			assert.ErrorIs(t, err, ledger.ErrNilDatabaseConnection)
		})
	}
}

func Test_TryCreateStore_Panics_WithUnsupportedAdapterType(t *testing.T) {
	// setup
	t.Setenv("ADAPTER_TYPE", "unsupported")

	// act & assert
	assert.Panics(t, func() {
		_ = TryCreateStore()
	})
}

func Test_Transact_Logs_Measures_And_Traces_TheUnitOfWork(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logHandler := testdoubles.NewLogHandlerSpy(false)
	metricsCollector := testdoubles.NewMetricsCollectorSpy(true)
	tracingCollector := testdoubles.NewTracingCollectorSpy(true)

	wrapper := CreateWrapperWithTestConfig(
		t,
		WithLogger(slog.New(logHandler)),
		WithMetrics(metricsCollector),
		WithTracing(tracingCollector),
	)
	store := wrapper.Store()

	// arrange
	titleID := GivenTitleWithStock(t, store, 1)
	logHandler.Reset()

	// act
	err := store.Transact(ctx, func(ctx context.Context, tx ledger.Tx) error {
		_, lockErr := tx.LockStockRecord(ctx, titleID)
		return lockErr
	})

	// assert
	require.NoError(t, err)

	assert.True(t, logHandler.HasInfoLog("ledger operation: transaction committed").WithDurationMS().Assert())
	assert.True(t, logHandler.HasDebugLog("executed sql for: lock stock record").WithAttrKey("query").Assert())

	assert.True(t, metricsCollector.
		HasDurationRecordForMetric("ledger_transaction_duration_seconds").
		WithOperation("transact").
		WithStatus("success").
		Assert())

	span, finished := tracingCollector.FinishedSpan("ledger.transact")
	require.True(t, finished)
	assert.Equal(t, "success", span.Status)
}

func GivenCoordinator(t *testing.T, store Store) borrowing.Coordinator {
	t.Helper()

	coordinator, err := borrowing.NewCoordinator(
		store,
		borrowing.WithClock(borrowing.ClockFunc(func() time.Time { return borrowedAt })),
	)
	require.NoError(t, err, "error in arranging test data")

	return coordinator
}

func GivenTitleWithStock(t *testing.T, store Store, quantity int) uuid.UUID {
	t.Helper()

	stock, err := store.RegisterTitle(context.Background(), ledger.Title{Name: "Learning Domain-Driven Design"}, quantity)
	require.NoError(t, err, "error in arranging test data")

	return stock.TitleID
}

func GivenBorrower(t *testing.T, store Store) uuid.UUID {
	t.Helper()

	borrower, err := store.RegisterBorrower(context.Background(), ledger.Borrower{Name: "Reader", MembershipID: uuid.NewString()})
	require.NoError(t, err, "error in arranging test data")

	return borrower.ID
}

func GivenBorrowedCopy(t *testing.T, coordinator borrowing.Coordinator, titleID, borrowerID uuid.UUID) ledger.BorrowingRecord {
	t.Helper()

	record, err := coordinator.Borrow(context.Background(), titleID, borrowerID)
	require.NoError(t, err, "error in arranging test data")

	return record
}
