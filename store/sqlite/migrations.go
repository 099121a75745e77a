package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Reckon store.
var Migrations = migrate.NewGroup("reckon")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_reckon_events",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS reckon_events (
    event_id     TEXT PRIMARY KEY,
    type         TEXT NOT NULL DEFAULT '',
    payload      TEXT NOT NULL DEFAULT '{}',
    received_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    outcome      TEXT NOT NULL DEFAULT '',
    error        TEXT NOT NULL DEFAULT '',
    processed_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_reckon_events_outcome ON reckon_events (outcome);
CREATE INDEX IF NOT EXISTS idx_reckon_events_received ON reckon_events (received_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS reckon_events`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_reckon_subscriptions",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS reckon_subscriptions (
    id                   TEXT PRIMARY KEY,
    provider_id          TEXT NOT NULL DEFAULT '',
    customer_id          TEXT NOT NULL DEFAULT '',
    plan_id              TEXT NOT NULL DEFAULT '',
    monthly_credits      INTEGER NOT NULL DEFAULT 0,
    state                TEXT NOT NULL DEFAULT 'incomplete',
    current_period_start TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    current_period_end   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    cancel_at_period_end INTEGER NOT NULL DEFAULT 0,
    trial_end            TIMESTAMP,
    canceled_at          TIMESTAMP,
    last_applied_version INTEGER NOT NULL DEFAULT 0,
    created_at           TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at           TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_reckon_subs_provider ON reckon_subscriptions (provider_id);
CREATE INDEX IF NOT EXISTS idx_reckon_subs_customer ON reckon_subscriptions (customer_id);
CREATE INDEX IF NOT EXISTS idx_reckon_subs_state ON reckon_subscriptions (customer_id, state);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS reckon_subscriptions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_reckon_invoice_refs",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS reckon_invoice_refs (
    invoice_id      TEXT PRIMARY KEY,
    subscription_id TEXT NOT NULL DEFAULT '',
    customer_id     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_reckon_invoice_refs_sub ON reckon_invoice_refs (subscription_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS reckon_invoice_refs`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_reckon_ledger_entries",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS reckon_ledger_entries (
    id           TEXT PRIMARY KEY,
    customer_id  TEXT NOT NULL DEFAULT '',
    delta        INTEGER NOT NULL DEFAULT 0,
    reason       TEXT NOT NULL DEFAULT '',
    external_ref TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_reckon_ledger_customer ON reckon_ledger_entries (customer_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_reckon_ledger_idempotency ON reckon_ledger_entries (customer_id, reason, external_ref);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS reckon_ledger_entries`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_reckon_usage_records",
			Version: "20240101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS reckon_usage_records (
    id                   TEXT PRIMARY KEY,
    subscription_item_id TEXT NOT NULL DEFAULT '',
    quantity             INTEGER NOT NULL DEFAULT 0,
    timestamp            TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    period_bucket        TEXT NOT NULL DEFAULT '',
    idempotency_token    TEXT NOT NULL DEFAULT '',
    created_at           TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_reckon_usage_idempotency ON reckon_usage_records (subscription_item_id, idempotency_token);
CREATE INDEX IF NOT EXISTS idx_reckon_usage_bucket ON reckon_usage_records (subscription_item_id, period_bucket);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS reckon_usage_records`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_reckon_closed_periods",
			Version: "20240101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS reckon_closed_periods (
    subscription_item_id TEXT NOT NULL,
    period_bucket        TEXT NOT NULL,
    closed_at            TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (subscription_item_id, period_bucket)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS reckon_closed_periods`)
				return err
			},
		},
	)
}
