package config

import (
	"context"
	"fmt"

	"github.com/AntonStoeckl/borrowing-ledger-go/ledger"
	"github.com/AntonStoeckl/borrowing-ledger-go/ledger/memengine"
	"github.com/AntonStoeckl/borrowing-ledger-go/ledger/postgresengine"
)

// OpenStore connects the persistence engine selected by cfg.DBAdapter and migrates the schema
// when cfg.MigrateOnStart is set. The returned func releases all connections.
func OpenStore(ctx context.Context, cfg Config, logger ledger.Logger, options ...postgresengine.Option) (ledger.Store, func(), error) {
	if cfg.DBAdapter == AdapterMemory {
		if logger != nil {
			logger.Warn("running on the in-memory engine, state is lost on exit")
		}

		return memengine.NewStore(), func() {}, nil
	}

	if logger != nil {
		options = append([]postgresengine.Option{postgresengine.WithLogger(logger)}, options...)
	}

	var (
		store     postgresengine.Store
		closeFunc func()
		err       error
	)

	switch cfg.DBAdapter {
	case AdapterPGXPool:
		store, closeFunc, err = openPGXStore(ctx, cfg, options)
	case AdapterSQLDB:
		store, closeFunc, err = openSQLDBStore(ctx, cfg, options)
	case AdapterSQLXDB:
		store, closeFunc, err = openSQLXStore(ctx, cfg, options)
	default:
		err = fmt.Errorf("%w: unknown db adapter %q", ErrInvalidConfig, cfg.DBAdapter)
	}

	if err != nil {
		return nil, nil, err
	}

	if cfg.MigrateOnStart {
		if err := store.Migrate(ctx); err != nil {
			closeFunc()
			return nil, nil, err
		}
	}

	return store, closeFunc, nil
}

func openPGXStore(ctx context.Context, cfg Config, options []postgresengine.Option) (postgresengine.Store, func(), error) {
	pool, err := NewPGXPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return postgresengine.Store{}, nil, err
	}

	if cfg.PostgresReplicaDSN == "" {
		store, err := postgresengine.NewStoreFromPGXPool(pool, options...)
		if err != nil {
			pool.Close()
			return postgresengine.Store{}, nil, err
		}

		return store, pool.Close, nil
	}

	replica, err := NewPGXPool(ctx, cfg.PostgresReplicaDSN)
	if err != nil {
		pool.Close()
		return postgresengine.Store{}, nil, err
	}

	closeBoth := func() {
		replica.Close()
		pool.Close()
	}

	store, err := postgresengine.NewStoreFromPGXPoolAndReplica(pool, replica, options...)
	if err != nil {
		closeBoth()
		return postgresengine.Store{}, nil, err
	}

	return store, closeBoth, nil
}

func openSQLDBStore(ctx context.Context, cfg Config, options []postgresengine.Option) (postgresengine.Store, func(), error) {
	db, err := NewSQLDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return postgresengine.Store{}, nil, err
	}

	closeDB := func() { _ = db.Close() }

	if cfg.PostgresReplicaDSN == "" {
		store, err := postgresengine.NewStoreFromSQLDB(db, options...)
		if err != nil {
			closeDB()
			return postgresengine.Store{}, nil, err
		}

		return store, closeDB, nil
	}

	replica, err := NewSQLDB(ctx, cfg.PostgresReplicaDSN)
	if err != nil {
		closeDB()
		return postgresengine.Store{}, nil, err
	}

	closeBoth := func() {
		_ = replica.Close()
		closeDB()
	}

	store, err := postgresengine.NewStoreFromSQLDBAndReplica(db, replica, options...)
	if err != nil {
		closeBoth()
		return postgresengine.Store{}, nil, err
	}

	return store, closeBoth, nil
}

// openSQLXStore has no replica variant, the sqlx adapter serves all reads from the primary.
func openSQLXStore(ctx context.Context, cfg Config, options []postgresengine.Option) (postgresengine.Store, func(), error) {
	db, err := NewSQLXDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return postgresengine.Store{}, nil, err
	}

	closeDB := func() { _ = db.Close() }

	store, err := postgresengine.NewStoreFromSQLX(db, options...)
	if err != nil {
		closeDB()
		return postgresengine.Store{}, nil, err
	}

	return store, closeDB, nil
}
