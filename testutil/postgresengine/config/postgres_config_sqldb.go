package config

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq" // postgres driver
)

// PostgresSQLDBTestConfig opens a *sql.DB for the test database. It does not connect yet.
func PostgresSQLDBTestConfig() (*sql.DB, error) {
	return openSQLDB(PostgresTestDSN())
}

// PostgresSQLDBReplicaTestConfig opens a *sql.DB for the replica test database.
func PostgresSQLDBReplicaTestConfig() (*sql.DB, error) {
	return openSQLDB(PostgresReplicaTestDSN())
}

func openSQLDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(testMaxConnections)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	return db, nil
}
