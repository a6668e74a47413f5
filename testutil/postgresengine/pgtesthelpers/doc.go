// Package pgtesthelpers runs the ledger's PostgreSQL integration tests against every supported adapter.
//
// The adapter is selected with the ADAPTER_TYPE environment variable (pgx.pool, sql.db, sqlx.db),
// an empty value selects pgx.pool. Tests are skipped when the test database is not reachable.
//
// Usage:
//
//	wrapper := CreateWrapperWithTestConfig(t)
//	store := wrapper.Store()
//
// The wrapper migrates the schema and empties all ledger tables. Its connections are closed by t.Cleanup.
package pgtesthelpers
