// pkg/db/schema.go
package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaStatements creates the tables the commitment service needs. Every statement is
// idempotent so EnsureSchema can run on each start.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id             TEXT PRIMARY KEY,
		kind           TEXT NOT NULL CHECK (kind IN ('INVESTMENT', 'TAKAFUL')),
		name           TEXT NOT NULL,
		minimum_amount NUMERIC(20, 4),
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS commitments (
		id                    TEXT PRIMARY KEY,
		kind                  TEXT NOT NULL CHECK (kind IN ('INVESTMENT', 'TAKAFUL', 'ZAKAT')),
		owner_id              TEXT NOT NULL,
		reference_id          TEXT,
		period_start          TIMESTAMPTZ,
		period_end            TIMESTAMPTZ,
		status                TEXT NOT NULL,
		zakat_year            INTEGER,
		total_assessed_amount NUMERIC(20, 4),
		amount_due            NUMERIC(20, 4),
		remaining_amount      NUMERIC(20, 4) CHECK (remaining_amount >= 0),
		created_at            TIMESTAMPTZ NOT NULL,
		updated_at            TIMESTAMPTZ NOT NULL,
		deleted_at            TIMESTAMPTZ,
		CHECK (period_end IS NULL OR period_end > period_start),
		CHECK (remaining_amount IS NULL OR remaining_amount <= amount_due)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_commitments_owner ON commitments(owner_id, created_at DESC)`,
	// Investment and takaful have a single active subscription per product and owner.
	// Zakat obligations deliberately have no uniqueness rule.
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_commitments_active_subscription
		ON commitments(owner_id, kind, reference_id)
		WHERE kind <> 'ZAKAT' AND deleted_at IS NULL AND status IN ('PENDING', 'ACTIVE')`,

	// No foreign key: deleting an obligation must not remove settlements already recorded.
	`CREATE TABLE IF NOT EXISTS settlements (
		id                    TEXT PRIMARY KEY,
		commitment_id         TEXT NOT NULL,
		amount                NUMERIC(20, 4) NOT NULL CHECK (amount > 0),
		wallet_transaction_id TEXT NOT NULL,
		occurred_at           TIMESTAMPTZ NOT NULL,
		next_due_at           TIMESTAMPTZ,
		created_at            TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_settlements_commitment ON settlements(commitment_id, occurred_at)`,
}

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
