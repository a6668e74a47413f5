package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/borrowing-ledger-go/ledger"
	"github.com/AntonStoeckl/borrowing-ledger-go/ledger/postgresengine/internal/adapters"
)

const (
	logMsgBuildQueryFailed     = "failed to build query"
	logMsgDBQueryFailed        = "database query execution failed"
	logMsgDBExecFailed         = "database execution failed"
	logMsgCloseRowsFailed      = "failed to close database rows"
	logMsgScanRowFailed        = "failed to scan database row"
	logMsgBeginTxFailed        = "failed to begin transaction"
	logMsgCommitFailed         = "failed to commit transaction"
	logMsgRollbackFailed       = "failed to roll back transaction"
	logMsgRowsAffectedFailed   = "failed to get rows affected count"
	logMsgConcurrencyConflict  = "concurrency conflict detected"
	logMsgTransactionCommitted = "transaction committed"
	logMsgTransactionAborted   = "transaction rolled back"
	logMsgQueryCompleted       = "query completed"
	logMsgSchemaMigrated       = "schema migrated"
	logMsgSQLExecuted          = "executed sql for: "
	logMsgOperation            = "ledger operation: "
	logAttrError               = "error"
	logAttrQuery               = "query"
	logAttrDurationMS          = "duration_ms"
	logAttrRowCount            = "row_count"
	logAttrTable               = "table"
	logAttrRowsAffected        = "rows_affected"
)

// Store is the PostgreSQL persistence provider. It implements ledger.Store.
type Store struct {
	db               adapters.DBAdapter
	logger           ledger.Logger
	contextualLogger ledger.ContextualLogger
	metricsCollector ledger.MetricsCollector
	tracingCollector ledger.TracingCollector
}

// NewStoreFromPGXPool creates a new Store using a pgx Pool with optional configuration.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, ledger.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(db), options...)
}

// NewStoreFromPGXPoolAndReplica creates a new Store using a pgx Pool for the primary and another
// for read-only queries that run with ledger.WithEventualConsistency.
func NewStoreFromPGXPoolAndReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (Store, error) {
	if db == nil || replica == nil {
		return Store{}, ledger.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapterWithReplica(db, replica), options...)
}

// NewStoreFromSQLDB creates a new Store using a sql.DB with optional configuration.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, ledger.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options...)
}

// NewStoreFromSQLDBAndReplica creates a new Store using a sql.DB for the primary and another
// for read-only queries that run with ledger.WithEventualConsistency.
func NewStoreFromSQLDBAndReplica(db *sql.DB, replica *sql.DB, options ...Option) (Store, error) {
	if db == nil || replica == nil {
		return Store{}, ledger.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapterWithReplica(db, replica), options...)
}

// NewStoreFromSQLX creates a new Store using a sqlx.DB with optional configuration.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, ledger.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options...)
}

func newStore(db adapters.DBAdapter, options ...Option) (Store, error) {
	s := Store{db: db}

	for _, option := range options {
		if err := option(&s); err != nil {
			return Store{}, err
		}
	}

	return s, nil
}

// Transact runs fn inside one READ COMMITTED transaction.
// It commits when fn returns nil and rolls back otherwise, the transaction is released on every path.
func (s Store) Transact(ctx context.Context, fn ledger.TxFunc) error {
	start := time.Now()
	tracer, ctx := s.startTransactTracing(ctx)
	metrics := s.startTransactMetrics(ctx)

	err := s.withTx(ctx, func(ctx context.Context, dbTx adapters.DBTx) error {
		return fn(ctx, &pgTx{store: s, tx: dbTx})
	})

	duration := time.Since(start)

	if err != nil {
		errorType := errorTypeOf(err)
		tracer.finishError(errorType, duration)
		metrics.recordError(errorType, duration)

		if errors.Is(err, ledger.ErrConcurrencyConflict) {
			metrics.recordConcurrencyConflict()
			s.logOperation(ctx, logMsgConcurrencyConflict, logAttrError, err.Error())
		} else {
			s.logOperation(ctx, logMsgTransactionAborted, logAttrError, err.Error())
		}

		return err
	}

	tracer.finishSuccess(-1, duration)
	metrics.recordSuccess(duration)
	s.logOperation(ctx, logMsgTransactionCommitted, logAttrDurationMS, toMilliseconds(duration))

	return nil
}

// withTx begins a transaction, runs fn and commits, rolling back on every error path.
func (s Store) withTx(ctx context.Context, fn func(ctx context.Context, dbTx adapters.DBTx) error) error {
	dbTx, beginErr := s.db.BeginTx(ctx)
	if beginErr != nil {
		s.logError(ctx, logMsgBeginTxFailed, beginErr)
		return classify(ledger.ErrBeginTxFailed, beginErr)
	}

	defer func() {
		if rollbackErr := dbTx.Rollback(context.WithoutCancel(ctx)); rollbackErr != nil {
			s.logWarn(ctx, logMsgRollbackFailed, logAttrError, rollbackErr.Error())
		}
	}()

	if err := fn(ctx, dbTx); err != nil {
		return err
	}

	if commitErr := dbTx.Commit(ctx); commitErr != nil {
		s.logError(ctx, logMsgCommitFailed, commitErr)
		return classify(ledger.ErrCommitFailed, commitErr)
	}

	return nil
}

// query runs a select on q and logs it with its duration.
func (s Store) query(ctx context.Context, q adapters.Queryer, sqlQuery string, action string) (adapters.DBRows, error) {
	start := time.Now()
	rows, queryErr := q.Query(ctx, sqlQuery)
	s.logQueryWithDuration(ctx, sqlQuery, action, time.Since(start))

	if queryErr != nil {
		s.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		return nil, classify(ledger.ErrQueryingFailed, queryErr)
	}

	return rows, nil
}

// exec runs a statement on q and returns the number of affected rows.
func (s Store) exec(ctx context.Context, q adapters.Queryer, sqlQuery string, action string) (int64, error) {
	start := time.Now()
	result, execErr := q.Exec(ctx, sqlQuery)
	s.logQueryWithDuration(ctx, sqlQuery, action, time.Since(start))

	if execErr != nil {
		s.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		return 0, classify(ledger.ErrExecutingFailed, execErr)
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		s.logError(ctx, logMsgRowsAffectedFailed, rowsAffectedErr)
		return 0, classify(ledger.ErrExecutingFailed, rowsAffectedErr)
	}

	return rowsAffected, nil
}

// queryRows runs sqlQuery and calls scan once per row.
func (s Store) queryRows(
	ctx context.Context,
	q adapters.Queryer,
	sqlQuery string,
	action string,
	scan func(rows adapters.DBRows) error,
) (int, error) {
	rows, err := s.query(ctx, q, sqlQuery, action)
	if err != nil {
		return 0, err
	}
	defer s.closeRows(ctx, rows)

	count := 0

	for rows.Next() {
		if scanErr := scan(rows); scanErr != nil {
			s.logError(ctx, logMsgScanRowFailed, scanErr)
			return 0, errors.Join(ledger.ErrScanningDBRowFailed, scanErr)
		}

		count++
	}

	if iterErr := rows.Err(); iterErr != nil {
		s.logError(ctx, logMsgDBQueryFailed, iterErr, logAttrQuery, sqlQuery)
		return 0, classify(ledger.ErrQueryingFailed, iterErr)
	}

	return count, nil
}

// queryOne runs sqlQuery, scans the first row and returns notFound if there is none.
func (s Store) queryOne(
	ctx context.Context,
	q adapters.Queryer,
	sqlQuery string,
	action string,
	notFound error,
	scan func(rows adapters.DBRows) error,
) error {
	scanned := false

	_, err := s.queryRows(ctx, q, sqlQuery, action, func(rows adapters.DBRows) error {
		if scanned {
			return nil
		}

		scanned = true

		return scan(rows)
	})
	if err != nil {
		return err
	}

	if !scanned {
		return notFound
	}

	return nil
}

func (s Store) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		s.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}
