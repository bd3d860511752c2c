package database

import (
	"context"
	"fmt"
)

const probabilitiesSchema = `
CREATE TABLE IF NOT EXISTS shin_implied_probabilities (
	id          UUID PRIMARY KEY,
	race_id     UUID NOT NULL,
	runner_id   UUID NOT NULL,
	price       DOUBLE PRECISION NOT NULL,
	probability DOUBLE PRECISION NOT NULL,
	z           DOUBLE PRECISION NOT NULL,
	delta       DOUBLE PRECISION NOT NULL,
	iterations  INTEGER NOT NULL,
	overround   DOUBLE PRECISION NOT NULL,
	odds_time   TIMESTAMPTZ NOT NULL,
	computed_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_shin_implied_probabilities_race
	ON shin_implied_probabilities (race_id, computed_at DESC);
`

// Initialize makes sure the tables this service writes exist.
// odds_snapshots is owned by the ingestion pipeline and must already be present.
func Initialize(ctx context.Context, db *DB) error {
	var exists bool
	err := db.pool.QueryRow(ctx, "SELECT to_regclass('odds_snapshots') IS NOT NULL").Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check odds_snapshots table: %w", err)
	}
	if !exists {
		return fmt.Errorf("odds_snapshots table not found; run the ingestion migrations first")
	}

	if _, err := db.pool.Exec(ctx, probabilitiesSchema); err != nil {
		return fmt.Errorf("failed to create shin_implied_probabilities table: %w", err)
	}

	return nil
}
