package audit

import (
	"context"
	"fmt"
)

const schemaDDL = `
CREATE SCHEMA IF NOT EXISTS taa;

CREATE TABLE IF NOT EXISTS taa.runs (
	run_id       TEXT PRIMARY KEY,
	strategy_id  TEXT NOT NULL,
	config_hash  TEXT NOT NULL,
	as_of        DATE NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL,
	decisions    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS runs_strategy_generated_idx
	ON taa.runs (strategy_id, generated_at DESC);

CREATE TABLE IF NOT EXISTS taa.decisions (
	run_id      TEXT NOT NULL REFERENCES taa.runs (run_id) ON DELETE CASCADE,
	month       DATE NOT NULL,
	label       TEXT NOT NULL,
	regime      TEXT NOT NULL,
	positions   JSONB NOT NULL,
	tiers       JSONB NOT NULL,
	cash        DOUBLE PRECISION NOT NULL DEFAULT 0,
	cash_symbol TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, month)
);

CREATE TABLE IF NOT EXISTS taa.config_snapshots (
	config_hash TEXT PRIMARY KEY,
	strategy_id TEXT NOT NULL,
	version     TEXT NOT NULL,
	config_yaml TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates the taa schema and tables if they are missing
func (r *DecisionRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to ensure taa schema: %w", err)
	}
	return nil
}
