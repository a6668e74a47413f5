package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/AntonStoeckl/borrowing-ledger-go/ledger"
)

// Storage adapter types. The three postgres types select the DB adapter of the postgres engine.
const (
	AdapterMemory   = "memory"
	AdapterPGXPool  = "pgx.pool"
	AdapterSQLDB    = "sql.db"
	AdapterSQLXDB   = "sqlx.db"
	defaultHTTPAddr = ":8080"
)

var (
	// ErrInvalidConfig is returned when an environment variable holds a value that cannot be used.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMissingDSN is returned when a postgres adapter is selected without BORROWING_POSTGRES_DSN.
	ErrMissingDSN = errors.New("BORROWING_POSTGRES_DSN must be set for a postgres adapter")
)

// Config holds all settings of the service.
type Config struct {
	HTTPAddr     string
	AllowOrigins []string
	LogMode      string

	DBAdapter          string
	PostgresDSN        string
	PostgresReplicaDSN string
	MigrateOnStart     bool

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	LoanPeriod       time.Duration
	DailyLateFee     int64

	OTel OTelConfig
}

// OTelConfig controls the OpenTelemetry bootstrap.
type OTelConfig struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	ServiceName string
	Version     string
	SampleRatio float64
}

// FeePolicy builds the fee policy from LoanPeriod and DailyLateFee.
func (c Config) FeePolicy() (ledger.FeePolicy, error) {
	return ledger.BuildFeePolicy(c.LoanPeriod, c.DailyLateFee)
}

// LoadDotEnv loads the given .env files (".env" if none) into the process environment.
// Missing files are ignored, variables already set are kept.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}

	return nil
}

// FromEnv reads the configuration from the environment after loading a .env file if present.
func FromEnv() (Config, error) {
	if err := LoadDotEnv(); err != nil {
		return Config{}, err
	}

	var errs []error

	cfg := Config{
		HTTPAddr:           getenv("BORROWING_HTTP_ADDR", defaultHTTPAddr),
		AllowOrigins:       splitList(getenv("BORROWING_CORS_ALLOW_ORIGINS", "")),
		LogMode:            getenv("BORROWING_LOG_MODE", "production"),
		DBAdapter:          getenv("BORROWING_DB_ADAPTER", ""),
		PostgresDSN:        getenv("BORROWING_POSTGRES_DSN", ""),
		PostgresReplicaDSN: getenv("BORROWING_POSTGRES_REPLICA_DSN", ""),
		MigrateOnStart:     parseBool(getenv("BORROWING_MIGRATE", "true")),
		RetryMaxAttempts:   parseInt(&errs, "BORROWING_RETRY_MAX_ATTEMPTS", 4),
		RetryBaseDelay:     parseDuration(&errs, "BORROWING_RETRY_BASE_DELAY", 10*time.Millisecond),
		LoanPeriod:         parseDuration(&errs, "BORROWING_LOAN_PERIOD", ledger.DefaultLoanPeriod),
		DailyLateFee:       int64(parseInt(&errs, "BORROWING_DAILY_LATE_FEE", int(ledger.DefaultDailyLateFee))),
		OTel: OTelConfig{
			Enabled:     parseBool(getenv("OTEL_ENABLED", "")),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Insecure:    parseBool(getenv("OTEL_EXPORTER_OTLP_INSECURE", "")),
			ServiceName: getenv("OTEL_SERVICE_NAME", "borrowing-ledger"),
			Version:     getenv("OTEL_SERVICE_VERSION", "dev"),
			SampleRatio: parseRatio(&errs, "OTEL_SAMPLER_RATIO", 1.0),
		},
	}

	if cfg.RetryMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("%w: BORROWING_RETRY_MAX_ATTEMPTS must be positive, got %d",
			ErrInvalidConfig, cfg.RetryMaxAttempts))
	}

	if cfg.RetryBaseDelay < 0 {
		errs = append(errs, fmt.Errorf("%w: BORROWING_RETRY_BASE_DELAY must not be negative, got %s",
			ErrInvalidConfig, cfg.RetryBaseDelay))
	}

	if cfg.DBAdapter == "" {
		cfg.DBAdapter = AdapterMemory
		if cfg.PostgresDSN != "" {
			cfg.DBAdapter = AdapterPGXPool
		}
	}

	switch cfg.DBAdapter {
	case AdapterMemory:
	case AdapterPGXPool, AdapterSQLDB, AdapterSQLXDB:
		if cfg.PostgresDSN == "" {
			errs = append(errs, ErrMissingDSN)
		}
	default:
		errs = append(errs, fmt.Errorf("%w: BORROWING_DB_ADAPTER %q is not one of memory, pgx.pool, sql.db, sqlx.db",
			ErrInvalidConfig, cfg.DBAdapter))
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}

	return def
}

func parseBool(raw string) bool {
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt(errs *[]error, key string, def int) int {
	raw := getenv(key, "")
	if raw == "" {
		return def
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err))
		return def
	}

	return v
}

func parseDuration(errs *[]error, key string, def time.Duration) time.Duration {
	raw := getenv(key, "")
	if raw == "" {
		return def
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err))
		return def
	}

	return v
}

func parseRatio(errs *[]error, key string, def float64) float64 {
	raw := getenv(key, "")
	if raw == "" {
		return def
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 1 {
		*errs = append(*errs, fmt.Errorf("%w: %s must be a number between 0 and 1", ErrInvalidConfig, key))
		return def
	}

	return v
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	return items
}
