package config

import (
	"github.com/jmoiron/sqlx"
)

// PostgresSQLXTestConfig opens a *sqlx.DB for the test database. It does not connect yet.
func PostgresSQLXTestConfig() (*sqlx.DB, error) {
	db, err := openSQLDB(PostgresTestDSN())
	if err != nil {
		return nil, err
	}

	return sqlx.NewDb(db, "postgres"), nil
}
