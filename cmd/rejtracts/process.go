package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/opendatama/rejtracts/internal/etl"
	"github.com/opendatama/rejtracts/internal/match"
	"github.com/opendatama/rejtracts/internal/output"
	"github.com/opendatama/rejtracts/internal/rej"
)

func createProcessCmd(a *app) *cobra.Command {
	var applyMapping bool

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Aggregate KML block groups to tracts and join them onto the REJ dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg

			pipeline := etl.NewPipeline(cfg.ParticipationLayers, a.logger)
			blockGroups, stats, err := pipeline.ProcessDir(cfg.KMLDir)
			if err != nil {
				return err
			}
			if err := etl.WriteBlockGroupsCSV(cfg.BlockGroupsCSV, blockGroups); err != nil {
				return err
			}
			a.logger.Info().Str("path", cfg.BlockGroupsCSV).Int("block_groups", len(blockGroups)).Msg("Saved block group data")

			tracts := etl.Aggregate(blockGroups)
			if err := etl.WriteTractsCSV(cfg.TractGroupsCSV, tracts); err != nil {
				return err
			}
			a.logger.Info().Str("path", cfg.TractGroupsCSV).Int("tracts", len(tracts)).Msg("Saved tract data")

			var mappings map[string]string
			if applyMapping {
				if mappings, err = match.ReadMappingFile(cfg.MappingFile); err != nil {
					return err
				}
				a.logger.Info().Str("path", cfg.MappingFile).Int("mappings", len(mappings)).Msg("Loaded tract mapping")
			}

			if _, err := os.Stat(cfg.REJGeoJSON); err != nil {
				a.logger.Warn().Str("path", cfg.REJGeoJSON).Msg("REJ GeoJSON not found, skipping join")
				return writeProcessSummary(a, cmd, stats, len(tracts), nil)
			}

			ds, err := rej.Load(cfg.REJGeoJSON, cfg.Reconcile.ReferenceIDField)
			if err != nil {
				return err
			}
			joinStats, err := ds.Join(tracts, mappings)
			if err != nil {
				return err
			}
			if err := ds.WriteGeoJSON(cfg.JoinedGeoJSON); err != nil {
				return err
			}
			if err := ds.WriteTableCSV(cfg.JoinedCSV); err != nil {
				return err
			}
			a.logger.Info().
				Str("geojson", cfg.JoinedGeoJSON).
				Str("csv", cfg.JoinedCSV).
				Msg("Saved joined REJ data")

			return writeProcessSummary(a, cmd, stats, len(tracts), &joinStats)
		},
	}

	cmd.Flags().BoolVar(&applyMapping, "apply-mapping", false, "fill REJ tracts without data from the reconciliation mapping file")
	return cmd
}

func writeProcessSummary(a *app, cmd *cobra.Command, stats etl.ProcessStats, tracts int, join *rej.JoinStats) error {
	tables := []output.Data{{
		Title:   "KML processing",
		Headers: []string{"files", "failed files", "placemarks", "block groups", "tracts"},
		Rows: [][]string{{
			itoa(stats.Files), itoa(stats.FailedFiles), itoa(stats.Placemarks),
			itoa(stats.BlockGroups), itoa(tracts),
		}},
	}}
	if join != nil {
		tables = append(tables, output.Data{
			Title:   "REJ join",
			Headers: []string{"features", "matched", "filled from mapping", "without data"},
			Rows:    [][]string{{itoa(join.Features), itoa(join.Matched), itoa(join.Filled), itoa(join.Missing)}},
		})
	}
	return output.Write(cmd.OutOrStdout(), a.format, tables...)
}
