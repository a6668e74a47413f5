package adapters

import "context"

// Queryer runs interpolated SQL. Both DBAdapter and DBTx implement it.
type Queryer interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
}

// DBAdapter defines the interface for database operations needed by the ledger engine.
type DBAdapter interface {
	Queryer
	BeginTx(ctx context.Context) (DBTx, error)
}

// DBTx is a running transaction. Rollback after a successful Commit is a no-op.
type DBTx interface {
	Queryer
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
}
