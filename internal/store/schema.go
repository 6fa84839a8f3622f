package store

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS masssave_tract (
		census_tract_geoid CHAR(11) PRIMARY KEY,
		town TEXT NOT NULL,
		electric_participation_rate_avg DOUBLE PRECISION NOT NULL,
		gas_participation_rate_avg DOUBLE PRECISION NOT NULL,
		block_group_count INTEGER NOT NULL,
		loaded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS mapping_run (
		run_id UUID PRIMARY KEY,
		source TEXT NOT NULL,
		missing_count INTEGER NOT NULL,
		mapped_count INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS tract_mapping (
		run_id UUID NOT NULL REFERENCES mapping_run(run_id) ON DELETE CASCADE,
		missing_geoid CHAR(11) NOT NULL,
		matched_geoid CHAR(11),
		strategy TEXT NOT NULL,
		confidence INTEGER NOT NULL,
		group_index INTEGER NOT NULL,
		PRIMARY KEY (run_id, missing_geoid)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tract_mapping_matched ON tract_mapping(matched_geoid)`,
}

// Migrate creates the tables if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i+1, err)
		}
	}
	return nil
}
