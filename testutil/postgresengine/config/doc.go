// Package config provides PostgreSQL connections for the ledger's integration tests.
//
// Connections are built for all supported adapters (pgx.Pool, sql.DB, sqlx.DB) against the test
// database. TEST_POSTGRES_DSN and TEST_POSTGRES_REPLICA_DSN override the default DSNs, without a
// replica DSN the primary doubles as replica.
package config
