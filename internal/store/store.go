package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/opendatama/rejtracts/internal/etl"
	"github.com/opendatama/rejtracts/internal/match"
)

// Store persists tract aggregates and reconciliation runs in Postgres
type Store struct {
	db *sql.DB
}

// New creates a store on an open database
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// SaveTracts upserts tract aggregates in a single transaction
func (s *Store) SaveTracts(ctx context.Context, tracts []etl.TractAggregate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range tracts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO masssave_tract (
				census_tract_geoid, town, electric_participation_rate_avg,
				gas_participation_rate_avg, block_group_count
			) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (census_tract_geoid) DO UPDATE SET
				town = EXCLUDED.town,
				electric_participation_rate_avg = EXCLUDED.electric_participation_rate_avg,
				gas_participation_rate_avg = EXCLUDED.gas_participation_rate_avg,
				block_group_count = EXCLUDED.block_group_count,
				loaded_at = NOW()
		`, t.TractGeoID, t.Town, t.ElectricRateAvg, t.GasRateAvg, t.BlockGroupCount)
		if err != nil {
			return fmt.Errorf("failed to upsert tract %s: %w", t.TractGeoID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// MappingRow is one missing GeoID and its resolution
type MappingRow struct {
	MissingGeoID string
	MatchedGeoID string // empty when unmatched
	Strategy     string
	Confidence   int
	GroupIndex   int
}

// RowsFromReport flattens a reconciliation report, one row per missing GeoID
func RowsFromReport(report *match.Report) []MappingRow {
	var rows []MappingRow
	for i, g := range report.Groups {
		for _, id := range g.Group.GeoIDs {
			rows = append(rows, MappingRow{
				MissingGeoID: id,
				MatchedGeoID: g.Match.GeoID,
				Strategy:     g.Match.Strategy,
				Confidence:   g.Match.Confidence,
				GroupIndex:   i + 1,
			})
		}
	}
	return rows
}

// RowsFromMappings converts a mapping file, which carries no strategy
// detail, into rows sorted by missing GeoID
func RowsFromMappings(mappings map[string]string) []MappingRow {
	ids := make([]string, 0, len(mappings))
	for id := range mappings {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([]MappingRow, len(ids))
	for i, id := range ids {
		strategy := "mapping_file"
		if mappings[id] == "" {
			strategy = match.NoMatchFound
		}
		rows[i] = MappingRow{MissingGeoID: id, MatchedGeoID: mappings[id], Strategy: strategy}
	}
	return rows
}

// SaveMappingRun records a run and its mapping rows under a new run id
func (s *Store) SaveMappingRun(ctx context.Context, source string, rows []MappingRow) (uuid.UUID, error) {
	runID := uuid.New()

	mapped := 0
	for _, r := range rows {
		if r.MatchedGeoID != "" {
			mapped++
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO mapping_run (run_id, source, missing_count, mapped_count)
		VALUES ($1, $2, $3, $4)
	`, runID.String(), source, len(rows), mapped)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert mapping run: %w", err)
	}

	for _, r := range rows {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tract_mapping (
				run_id, missing_geoid, matched_geoid, strategy, confidence, group_index
			) VALUES ($1, $2, $3, $4, $5, $6)
		`, runID.String(), r.MissingGeoID, nullable(r.MatchedGeoID), r.Strategy, r.Confidence, r.GroupIndex)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert mapping %s: %w", r.MissingGeoID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return runID, nil
}

// LatestMappings returns the mappings of the most recent run
func (s *Store) LatestMappings(ctx context.Context) (uuid.UUID, map[string]string, error) {
	var runID string
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id FROM mapping_run ORDER BY created_at DESC LIMIT 1
	`).Scan(&runID)
	if err == sql.ErrNoRows {
		return uuid.Nil, nil, fmt.Errorf("no mapping runs recorded")
	}
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to find latest run: %w", err)
	}

	id, err := uuid.Parse(runID)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("invalid run id %q: %w", runID, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT missing_geoid, matched_geoid FROM tract_mapping WHERE run_id = $1
	`, runID)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to query mappings: %w", err)
	}
	defer rows.Close()

	mappings := make(map[string]string)
	for rows.Next() {
		var missing string
		var matched sql.NullString
		if err := rows.Scan(&missing, &matched); err != nil {
			return uuid.Nil, nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		mappings[missing] = matched.String
	}
	if err := rows.Err(); err != nil {
		return uuid.Nil, nil, fmt.Errorf("failed to read mappings: %w", err)
	}
	return id, mappings, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
