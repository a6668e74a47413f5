// Command borrowsim drives the borrowing coordinator with a population of concurrent readers
// and checks afterwards that no title was oversold.
//
// Storage and logging are configured like borrowingd (see package config), the population by flags:
//
//	borrowsim -titles 20 -copies 3 -readers 200 -duration 30s -timelapse 12h
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AntonStoeckl/borrowing-ledger-go/borrowing"
	"github.com/AntonStoeckl/borrowing-ledger-go/config"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("borrowsim: %v", err)
	}
}

func parseFlags() (SimulationConfig, time.Duration) {
	var (
		titles      = flag.Int("titles", 20, "Number of titles to register")
		copies      = flag.Int("copies", 3, "Copies per title")
		readers     = flag.Int("readers", 100, "Number of concurrent readers")
		duration    = flag.Duration("duration", 30*time.Second, "How long the simulation runs")
		thinkTime   = flag.Duration("think", 20*time.Millisecond, "Pause of a reader between two operations")
		returnShare = flag.Float64("return-probability", 0.5, "Chance that a reader holding copies returns one")
		timeLapse   = flag.Duration("timelapse", 12*time.Hour, "Simulated time that passes per real second")
	)

	flag.Parse()

	return SimulationConfig{
		Titles:            *titles,
		CopiesPerTitle:    *copies,
		Readers:           *readers,
		Duration:          *duration,
		ThinkTime:         *thinkTime,
		ReturnProbability: *returnShare,
	}, *timeLapse
}

func run() error {
	simCfg, timeLapse := parseFlags()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.LogMode)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, closeStore, err := config.OpenStore(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	policy, err := cfg.FeePolicy()
	if err != nil {
		return err
	}

	clock := newTimeLapseClock(time.Now().UTC(), timeLapse, time.Now)

	coordinator, err := borrowing.NewCoordinator(
		store,
		borrowing.WithClock(clock),
		borrowing.WithFeePolicy(policy),
		borrowing.WithRetryOptions(
			borrowing.WithMaxAttempts(cfg.RetryMaxAttempts),
			borrowing.WithBaseDelay(cfg.RetryBaseDelay),
		),
	)
	if err != nil {
		return err
	}

	simulation := NewSimulation(coordinator, store, simCfg, logger)
	if err := simulation.Seed(ctx); err != nil {
		return err
	}

	logger.Info("simulation started",
		"readers", simCfg.Readers,
		"duration", simCfg.Duration.String(),
		"timelapse_per_second", timeLapse.String(),
		"db_adapter", cfg.DBAdapter,
	)

	report := simulation.Run(ctx)
	verifyErr := simulation.Verify(context.WithoutCancel(ctx), &report)

	logger.Info("simulation finished",
		"operations", report.Operations,
		"ops_per_second", report.OpsPerSecond,
		"p50_ms", borrowing.ToMilliseconds(report.P50),
		"p99_ms", borrowing.ToMilliseconds(report.P99),
		"borrowed", report.Borrowed,
		"out_of_stock", report.OutOfStock,
		"returned", report.Returned,
		"overdue", report.Overdue,
		"late_fees", report.LateFees,
		"failures", report.Failures,
		"copies_on_loan", report.CopiesOnLoan,
		"active_records", report.ActiveRecords,
	)

	if verifyErr != nil {
		logger.Error("stock verification failed", "error", verifyErr)
		return verifyErr
	}

	return nil
}
