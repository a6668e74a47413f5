package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/AntonStoeckl/borrowing-ledger-go/ledger"
)

func Test_StockLedger_Reserve_MovesOneCopy_FromAvailableToBorrowed(t *testing.T) {
	// arrange
	rows := newFakeRows()
	titleID := uuid.New()
	before := rows.givenStock(titleID, 3, 1)

	// act
	after, err := NewStockLedger().Reserve(context.Background(), rows, titleID)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 2, after.AvailableQuantity)
	assert.Equal(t, 2, after.BorrowedQuantity)
	assert.Equal(t, before.Total(), after.Total())
	assert.Equal(t, before.Version+1, after.Version)
	assert.Equal(t, after, rows.stock[titleID])
}

func Test_StockLedger_Reserve_Fails_When_NoCopyIsAvailable(t *testing.T) {
	// arrange
	rows := newFakeRows()
	titleID := uuid.New()
	before := rows.givenStock(titleID, 0, 2)

	// act
	_, err := NewStockLedger().Reserve(context.Background(), rows, titleID)

	// assert
	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.Equal(t, KindOutOfStock, Kind(err))
	assert.Equal(t, before, rows.stock[titleID], "stock must be unchanged")
}

func Test_StockLedger_Reserve_Fails_When_TitleHasNoStockRecord(t *testing.T) {
	_, err := NewStockLedger().Reserve(context.Background(), newFakeRows(), uuid.New())

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, KindNotFound, Kind(err))
}

func Test_StockLedger_Release_MovesOneCopy_BackToAvailable(t *testing.T) {
	// arrange
	rows := newFakeRows()
	titleID := uuid.New()
	rows.givenStock(titleID, 0, 1)

	// act
	after, err := NewStockLedger().Release(context.Background(), rows, titleID)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 1, after.AvailableQuantity)
	assert.Equal(t, 0, after.BorrowedQuantity)
}

func Test_StockLedger_Release_NeverDrivesBorrowedBelowZero(t *testing.T) {
	// arrange
	rows := newFakeRows()
	titleID := uuid.New()
	rows.givenStock(titleID, 2, 0)

	// act
	_, err := NewStockLedger().Release(context.Background(), rows, titleID)

	// assert
	assert.ErrorIs(t, err, ErrStockUnderflow)
	assert.Equal(t, KindTransactionFailure, Kind(err))
}

func Test_StockLedger_Reserve_PassesThrough_StorageErrors(t *testing.T) {
	// arrange
	rows := newFakeRows()
	titleID := uuid.New()
	rows.givenStock(titleID, 1, 0)
	rows.failUpdateStock = errors.New("disk on fire")

	// act
	_, err := NewStockLedger().Reserve(context.Background(), rows, titleID)

	// assert
	assert.EqualError(t, err, "disk on fire")
}
