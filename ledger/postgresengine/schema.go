package postgresengine

import (
	"context"
)

const actionMigrate = "migrate"

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS titles (
		id   uuid PRIMARY KEY,
		name text NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS borrowers (
		id            uuid PRIMARY KEY,
		membership_id text NOT NULL DEFAULT '',
		name          text NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS stock_records (
		id                 uuid PRIMARY KEY,
		title_id           uuid NOT NULL UNIQUE REFERENCES titles (id),
		available_quantity integer NOT NULL CHECK (available_quantity >= 0),
		borrowed_quantity  integer NOT NULL CHECK (borrowed_quantity >= 0),
		version            bigint NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS borrowing_records (
		id          uuid PRIMARY KEY,
		title_id    uuid NOT NULL REFERENCES titles (id),
		borrower_id uuid NOT NULL REFERENCES borrowers (id),
		borrow_date timestamptz NOT NULL,
		due_date    timestamptz NOT NULL,
		return_date timestamptz NULL,
		status      text NOT NULL CHECK (status IN ('ACTIVE', 'RETURNED', 'OVERDUE')),
		late_fee    bigint NOT NULL DEFAULT 0 CHECK (late_fee >= 0)
	)`,
	`CREATE INDEX IF NOT EXISTS borrowing_records_status_idx ON borrowing_records (status)`,
	`CREATE INDEX IF NOT EXISTS borrowing_records_borrower_idx ON borrowing_records (borrower_id)`,
	`CREATE TABLE IF NOT EXISTS borrow_history (
		seq                 bigserial PRIMARY KEY,
		borrower_id         uuid NOT NULL REFERENCES borrowers (id),
		borrowing_record_id uuid NOT NULL REFERENCES borrowing_records (id)
	)`,
	`CREATE INDEX IF NOT EXISTS borrow_history_borrower_idx ON borrow_history (borrower_id)`,
	`CREATE TABLE IF NOT EXISTS stock_log (
		sequence_number     bigserial PRIMARY KEY,
		title_id            uuid NOT NULL REFERENCES titles (id),
		stock_record_id     uuid NOT NULL REFERENCES stock_records (id),
		borrowing_record_id uuid NOT NULL REFERENCES borrowing_records (id),
		action              text NOT NULL CHECK (action IN ('BORROW', 'RETURN')),
		quantity_delta      integer NOT NULL CHECK (quantity_delta IN (-1, 1)),
		reason              text NOT NULL,
		reference_id        uuid NOT NULL,
		occurred_at         timestamptz NOT NULL,
		metadata            jsonb NOT NULL DEFAULT '{}'::jsonb
	)`,
	`CREATE INDEX IF NOT EXISTS stock_log_title_idx ON stock_log (title_id)`,
}

// Migrate creates the ledger tables and indexes if they do not exist yet.
func (s Store) Migrate(ctx context.Context) error {
	for _, statement := range schemaStatements {
		if _, err := s.exec(ctx, s.db, statement, actionMigrate); err != nil {
			return err
		}
	}

	s.logOperation(ctx, logMsgSchemaMigrated)

	return nil
}
