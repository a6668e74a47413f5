package config

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/AntonStoeckl/borrowing-ledger-go/config"
)

const (
	testMaxConnections = 30
	testConnectTimeout = 2 * time.Second
)

// PostgresPGXPoolTestConfig creates a pgxpool.Config for the test database.
func PostgresPGXPoolTestConfig() (*pgxpool.Config, error) {
	return pgxPoolTestConfig(PostgresTestDSN())
}

// PostgresPGXPoolReplicaTestConfig creates a pgxpool.Config for the replica test database.
func PostgresPGXPoolReplicaTestConfig() (*pgxpool.Config, error) {
	return pgxPoolTestConfig(PostgresReplicaTestDSN())
}

func pgxPoolTestConfig(dsn string) (*pgxpool.Config, error) {
	dbConfig, err := appconfig.PostgresPGXPoolConfig(dsn)
	if err != nil {
		return nil, err
	}

	dbConfig.MaxConns = testMaxConnections
	dbConfig.MinConns = 0
	dbConfig.ConnConfig.ConnectTimeout = testConnectTimeout

	return dbConfig, nil
}
