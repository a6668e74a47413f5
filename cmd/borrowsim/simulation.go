package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/borrowing-ledger-go/ledger"
)

var (
	// ErrStockDrift is returned by Verify when a title's counters disagree with its copies or its active loans.
	ErrStockDrift = errors.New("stock record drifted")
)

// Borrowings is what the simulation drives.
type Borrowings interface {
	Borrow(ctx context.Context, titleID uuid.UUID, borrowerID uuid.UUID) (ledger.BorrowingRecord, error)
	ReturnNow(ctx context.Context, recordID uuid.UUID) (ledger.BorrowingRecord, error)
	ListBorrowings(ctx context.Context, filter ledger.BorrowingFilter) ([]ledger.BorrowingRecord, error)
	StockRecordOf(ctx context.Context, titleID uuid.UUID) (ledger.StockRecord, error)
}

// SimulationConfig shapes the simulated population and behavior.
type SimulationConfig struct {
	Titles            int
	CopiesPerTitle    int
	Readers           int
	Duration          time.Duration
	ThinkTime         time.Duration
	ReturnProbability float64
}

// Report summarizes one simulation run.
type Report struct {
	Borrowed      int64
	OutOfStock    int64
	Returned      int64
	Overdue       int64
	LateFees      int64
	Failures      int64
	Operations    int
	P50           time.Duration
	P99           time.Duration
	Elapsed       time.Duration
	OpsPerSecond  float64
	CopiesOnLoan  int
	ActiveRecords int
}

// Simulation lets a population of readers borrow and return copies concurrently.
type Simulation struct {
	borrowings Borrowings
	catalog    ledger.Catalog
	cfg        SimulationConfig
	logger     ledger.Logger

	titleIDs  []uuid.UUID
	readerIDs []uuid.UUID
	latencies LatencyRecorder

	borrowed   atomic.Int64
	outOfStock atomic.Int64
	returned   atomic.Int64
	overdue    atomic.Int64
	lateFees   atomic.Int64
	failures   atomic.Int64
}

// NewSimulation creates a Simulation.
func NewSimulation(borrowings Borrowings, catalog ledger.Catalog, cfg SimulationConfig, logger ledger.Logger) *Simulation {
	return &Simulation{
		borrowings: borrowings,
		catalog:    catalog,
		cfg:        cfg,
		logger:     logger,
	}
}

// Seed registers the titles with their copies and the readers.
func (s *Simulation) Seed(ctx context.Context) error {
	for i := range s.cfg.Titles {
		stock, err := s.catalog.RegisterTitle(ctx, ledger.Title{Name: fmt.Sprintf("Title %03d", i+1)}, s.cfg.CopiesPerTitle)
		if err != nil {
			return err
		}

		s.titleIDs = append(s.titleIDs, stock.TitleID)
	}

	for i := range s.cfg.Readers {
		borrower, err := s.catalog.RegisterBorrower(ctx, ledger.Borrower{
			MembershipID: fmt.Sprintf("SIM-%05d", i+1),
			Name:         fmt.Sprintf("Reader %05d", i+1),
		})
		if err != nil {
			return err
		}

		s.readerIDs = append(s.readerIDs, borrower.ID)
	}

	s.logger.Info("simulation seeded", "titles", len(s.titleIDs), "readers", len(s.readerIDs))

	return nil
}

// Run drives all readers until cfg.Duration elapsed or ctx is done.
func (s *Simulation) Run(ctx context.Context) Report {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Duration)
	defer cancel()

	start := time.Now()

	var wg sync.WaitGroup
	for _, readerID := range s.readerIDs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.actAsReader(runCtx, readerID)
		}()
	}

	wg.Wait()

	elapsed := time.Since(start)
	operations := s.latencies.Count()

	return Report{
		Borrowed:     s.borrowed.Load(),
		OutOfStock:   s.outOfStock.Load(),
		Returned:     s.returned.Load(),
		Overdue:      s.overdue.Load(),
		LateFees:     s.lateFees.Load(),
		Failures:     s.failures.Load(),
		Operations:   operations,
		P50:          s.latencies.Percentile(0.50),
		P99:          s.latencies.Percentile(0.99),
		Elapsed:      elapsed,
		OpsPerSecond: float64(operations) / elapsed.Seconds(),
	}
}

// Verify checks every title: available plus borrowed equals the registered copies and borrowed
// equals the number of ACTIVE records. It adds the totals to report.
func (s *Simulation) Verify(ctx context.Context, report *Report) error {
	var drifted []error

	for _, titleID := range s.titleIDs {
		stock, err := s.borrowings.StockRecordOf(ctx, titleID)
		if err != nil {
			return err
		}

		active, err := s.borrowings.ListBorrowings(ctx, ledger.BorrowingFilter{Status: ledger.StatusActive, TitleID: titleID})
		if err != nil {
			return err
		}

		if stock.AvailableQuantity+stock.BorrowedQuantity != s.cfg.CopiesPerTitle || stock.BorrowedQuantity != len(active) {
			drifted = append(drifted, fmt.Errorf(
				"%w: title %s available=%d borrowed=%d active=%d",
				ErrStockDrift, titleID, stock.AvailableQuantity, stock.BorrowedQuantity, len(active),
			))
		}

		report.CopiesOnLoan += stock.BorrowedQuantity
		report.ActiveRecords += len(active)
	}

	return errors.Join(drifted...)
}

func (s *Simulation) actAsReader(ctx context.Context, readerID uuid.UUID) {
	var onLoan []uuid.UUID

	for ctx.Err() == nil {
		if len(onLoan) > 0 && rand.Float64() < s.cfg.ReturnProbability {
			i := rand.IntN(len(onLoan))
			if s.returnCopy(ctx, onLoan[i]) {
				onLoan = append(onLoan[:i], onLoan[i+1:]...)
			}
		} else if recordID, ok := s.borrowCopy(ctx, readerID); ok {
			onLoan = append(onLoan, recordID)
		}

		select {
		case <-ctx.Done():
		case <-time.After(s.cfg.ThinkTime):
		}
	}
}

func (s *Simulation) borrowCopy(ctx context.Context, readerID uuid.UUID) (uuid.UUID, bool) {
	titleID := s.titleIDs[rand.IntN(len(s.titleIDs))]

	start := time.Now()
	record, err := s.borrowings.Borrow(ctx, titleID, readerID)

	switch {
	case err == nil:
		s.latencies.Record(time.Since(start))
		s.borrowed.Add(1)
		return record.ID, true

	case errors.Is(err, ledger.ErrOutOfStock):
		s.latencies.Record(time.Since(start))
		s.outOfStock.Add(1)

	case !isShutdown(err):
		s.failures.Add(1)
		s.logger.Warn("borrow failed", "title_id", titleID.String(), "error", err)
	}

	return uuid.Nil, false
}

// returnCopy reports whether the record is settled, which includes ALREADY_RETURNED.
func (s *Simulation) returnCopy(ctx context.Context, recordID uuid.UUID) bool {
	start := time.Now()
	record, err := s.borrowings.ReturnNow(ctx, recordID)

	switch {
	case err == nil:
		s.latencies.Record(time.Since(start))

		if record.Status == ledger.StatusOverdue {
			s.overdue.Add(1)
			s.lateFees.Add(record.LateFee)
		} else {
			s.returned.Add(1)
		}

		return true

	case errors.Is(err, ledger.ErrAlreadyReturned):
		return true

	case !isShutdown(err):
		s.failures.Add(1)
		s.logger.Warn("return failed", "record_id", recordID.String(), "error", err)
	}

	return false
}

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
