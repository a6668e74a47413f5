package pgtesthelpers

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/borrowing-ledger-go/ledger/postgresengine"
	"github.com/AntonStoeckl/borrowing-ledger-go/testutil/postgresengine/config"
)

// Adapter type constants
const (
	TypePGXPool = "pgx.pool"
	TypeSQLDB   = "sql.db"
	TypeSQLXDB  = "sqlx.db"
)

const pingTimeout = 2 * time.Second

// truncateAll empties all ledger tables in one statement so foreign keys don't get in the way.
const truncateAll = `TRUNCATE TABLE stock_log, borrow_history, borrowing_records, stock_records, borrowers, titles RESTART IDENTITY`

// Wrapper abstracts over the different adapter types.
type Wrapper interface {
	Store() postgresengine.Store
	Exec(ctx context.Context, query string) error
	CountRows(ctx context.Context, query string) (int, error)
	Close()
}

// PGXPoolWrapper wraps pgxpool-based testing.
type PGXPoolWrapper struct {
	pool    *pgxpool.Pool
	replica *pgxpool.Pool
	store   postgresengine.Store
}

func (w *PGXPoolWrapper) Store() postgresengine.Store {
	return w.store
}

func (w *PGXPoolWrapper) Exec(ctx context.Context, query string) error {
	_, err := w.pool.Exec(ctx, query)
	return err
}

func (w *PGXPoolWrapper) CountRows(ctx context.Context, query string) (int, error) {
	var cnt int
	err := w.pool.QueryRow(ctx, query).Scan(&cnt)

	return cnt, err
}

func (w *PGXPoolWrapper) Close() {
	if w.replica != nil {
		w.replica.Close()
	}

	w.pool.Close()
}

// SQLDBWrapper wraps sql.DB-based testing.
type SQLDBWrapper struct {
	db    *sql.DB
	store postgresengine.Store
}

func (w *SQLDBWrapper) Store() postgresengine.Store {
	return w.store
}

func (w *SQLDBWrapper) Exec(ctx context.Context, query string) error {
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *SQLDBWrapper) CountRows(ctx context.Context, query string) (int, error) {
	var cnt int
	err := w.db.QueryRowContext(ctx, query).Scan(&cnt)

	return cnt, err
}

func (w *SQLDBWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// SQLXWrapper wraps sqlx.DB-based testing.
type SQLXWrapper struct {
	db    *sqlx.DB
	store postgresengine.Store
}

func (w *SQLXWrapper) Store() postgresengine.Store {
	return w.store
}

func (w *SQLXWrapper) Exec(ctx context.Context, query string) error {
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *SQLXWrapper) CountRows(ctx context.Context, query string) (int, error) {
	var cnt int
	err := w.db.GetContext(ctx, &cnt, query)

	return cnt, err
}

func (w *SQLXWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// AdapterTypeFromEnv returns the adapter type selected by ADAPTER_TYPE.
func AdapterTypeFromEnv() string {
	adapterType := strings.ToLower(os.Getenv("ADAPTER_TYPE"))
	if adapterType == "" {
		return TypePGXPool
	}

	return adapterType
}

// CreateWrapperWithTestConfig creates the wrapper for the adapter selected by ADAPTER_TYPE,
// migrates the schema and empties all tables. It panics for an unknown adapter type.
func CreateWrapperWithTestConfig(t testing.TB, options ...postgresengine.Option) Wrapper {
	t.Helper()

	var wrapper Wrapper

	switch adapterType := AdapterTypeFromEnv(); adapterType {
	case TypePGXPool:
		wrapper = createPGXPoolWrapper(t, false, options...)

	case TypeSQLDB:
		db, err := config.PostgresSQLDBTestConfig()
		require.NoError(t, err, "error opening the DB in test setup")
		t.Cleanup(func() { _ = db.Close() })
		skipIfUnreachable(t, db.PingContext)

		store, err := postgresengine.NewStoreFromSQLDB(db, options...)
		require.NoError(t, err, "error creating the store")

		wrapper = &SQLDBWrapper{db: db, store: store}

	case TypeSQLXDB:
		db, err := config.PostgresSQLXTestConfig()
		require.NoError(t, err, "error opening the DB in test setup")
		t.Cleanup(func() { _ = db.Close() })
		skipIfUnreachable(t, db.PingContext)

		store, err := postgresengine.NewStoreFromSQLX(db, options...)
		require.NoError(t, err, "error creating the store")

		wrapper = &SQLXWrapper{db: db, store: store}

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", adapterType))
	}

	prepare(t, wrapper)

	return wrapper
}

// CreateReplicatedWrapperWithTestConfig creates a pgx.Pool wrapper whose store reads eventually
// consistent queries from the replica test database.
func CreateReplicatedWrapperWithTestConfig(t testing.TB, options ...postgresengine.Option) Wrapper {
	t.Helper()

	wrapper := createPGXPoolWrapper(t, true, options...)
	prepare(t, wrapper)

	return wrapper
}

func createPGXPoolWrapper(t testing.TB, withReplica bool, options ...postgresengine.Option) *PGXPoolWrapper {
	t.Helper()

	poolConfig, err := config.PostgresPGXPoolTestConfig()
	require.NoError(t, err, "error parsing the DSN in test setup")

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	require.NoError(t, err, "error connecting to DB pool in test setup")
	t.Cleanup(pool.Close)
	skipIfUnreachable(t, pool.Ping)

	if !withReplica {
		store, err := postgresengine.NewStoreFromPGXPool(pool, options...)
		require.NoError(t, err, "error creating the store")

		return &PGXPoolWrapper{pool: pool, store: store}
	}

	replicaConfig, err := config.PostgresPGXPoolReplicaTestConfig()
	require.NoError(t, err, "error parsing the replica DSN in test setup")

	replica, err := pgxpool.NewWithConfig(context.Background(), replicaConfig)
	require.NoError(t, err, "error connecting to replica DB pool in test setup")
	t.Cleanup(replica.Close)
	skipIfUnreachable(t, replica.Ping)

	store, err := postgresengine.NewStoreFromPGXPoolAndReplica(pool, replica, options...)
	require.NoError(t, err, "error creating the store")

	return &PGXPoolWrapper{pool: pool, replica: replica, store: store}
}

// TryCreateStore creates a store for the adapter selected by ADAPTER_TYPE without touching the
// database and returns the constructor's error. It panics for an unknown adapter type.
func TryCreateStore(options ...postgresengine.Option) error {
	switch adapterType := AdapterTypeFromEnv(); adapterType {
	case TypePGXPool:
		poolConfig, err := config.PostgresPGXPoolTestConfig()
		if err != nil {
			return err
		}

		pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
		if err != nil {
			return err
		}
		defer pool.Close()

		_, err = postgresengine.NewStoreFromPGXPool(pool, options...)
		return err

	case TypeSQLDB:
		db, err := config.PostgresSQLDBTestConfig()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		_, err = postgresengine.NewStoreFromSQLDB(db, options...)
		return err

	case TypeSQLXDB:
		db, err := config.PostgresSQLXTestConfig()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		_, err = postgresengine.NewStoreFromSQLX(db, options...)
		return err

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", adapterType))
	}
}

// CleanUp empties all ledger tables.
func CleanUp(t testing.TB, wrapper Wrapper) {
	t.Helper()

	err := wrapper.Exec(context.Background(), truncateAll)
	assert.NoError(t, err, "error cleaning up the ledger tables")
}

// CountRowsOf returns the number of rows of table.
func CountRowsOf(t testing.TB, wrapper Wrapper, table string) int {
	t.Helper()

	cnt, err := wrapper.CountRows(context.Background(), "SELECT count(*) FROM "+table)
	assert.NoError(t, err, "error counting rows of %s", table)

	return cnt
}

func prepare(t testing.TB, wrapper Wrapper) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, wrapper.Store().Migrate(ctx), "error migrating the schema")
	CleanUp(t, wrapper)
}

func skipIfUnreachable(t testing.TB, ping func(ctx context.Context) error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := ping(ctx); err != nil {
		t.Skipf("postgres test database is not reachable: %v", err)
	}
}
