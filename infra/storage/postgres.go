package storage

import (
	"context"
	"fmt"

	"github.com/mstgnz/paybox/infra/conn"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id BIGSERIAL PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	phone TEXT,
	balance DOUBLE PRECISION NOT NULL DEFAULT 0,
	card_token TEXT,
	card_id TEXT,
	card_last4 TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	account_id BIGINT NOT NULL,
	payment_id TEXT NOT NULL DEFAULT '',
	amount DOUBLE PRECISION NOT NULL,
	currency TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_orders_account ON orders(account_id);

CREATE TABLE IF NOT EXISTS applied_callbacks (
	claim_key TEXT PRIMARY KEY,
	payment_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS payment_events (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	provider TEXT NOT NULL,
	operation_id TEXT NOT NULL DEFAULT '',
	payment_id TEXT NOT NULL DEFAULT '',
	account_id BIGINT NOT NULL DEFAULT 0,
	amount DOUBLE PRECISION NOT NULL DEFAULT 0,
	currency TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	processing_ms BIGINT NOT NULL DEFAULT 0,
	params JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_payment_events_operation ON payment_events(operation_id, created_at DESC);
`

// OpenPostgres connects with retries and applies the schema
func OpenPostgres(ctx context.Context, dsn string) (*Storage, error) {
	db, err := conn.ConnectPostgres(ctx, dsn, 5)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return New(db, conn.DriverPostgres), nil
}
