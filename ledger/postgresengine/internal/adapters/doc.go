// Package adapters provide transactional database adapters for the PostgreSQL ledger engine.
//
// Three PostgreSQL libraries are supported: pgx.Pool, sql.DB, and sqlx.DB. All adapters
// present the same DBAdapter and DBTx interfaces, so the engine builds its SQL once and runs
// it on any of them. Transactions always use the READ COMMITTED isolation level, row
// locking is done explicitly with SELECT ... FOR UPDATE.
//
// Read-only queries go to a replica when one is configured and the context asks for
// eventual consistency.
package adapters
