// Package postgresengine provides the PostgreSQL implementation of the ledger persistence contracts.
//
// Every unit of work runs in one READ COMMITTED transaction. Stock records and borrowing
// records are locked with SELECT ... FOR UPDATE before they are changed, and stock updates
// are additionally guarded by a version column. Serialization failures, deadlocks and
// version mismatches are reported as ledger.ErrConcurrencyConflict so callers can retry.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX)
//   - Optional replica for read-only queries with eventual consistency
//   - Idempotent schema bootstrap with Migrate
//   - Optional logging, metrics and tracing through dependency-free interfaces
//
// Usage examples:
//
//	db, _ := pgxpool.New(context.Background(), dsn)
//	store, _ := postgresengine.NewStoreFromPGXPool(db)
//	_ = store.Migrate(ctx)
//
//	// With operational logging and metrics
//	store, _ := postgresengine.NewStoreFromPGXPool(
//		db,
//		postgresengine.WithLogger(slogLogger),
//		postgresengine.WithMetrics(metricsCollector),
//	)
//
//	err := store.Transact(ctx, func(ctx context.Context, tx ledger.Tx) error {
//		_, err := stockLedger.Reserve(ctx, tx, titleID)
//		return err
//	})
package postgresengine
