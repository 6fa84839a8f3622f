package main

import (
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opendatama/rejtracts/internal/db"
	"github.com/opendatama/rejtracts/internal/etl"
	"github.com/opendatama/rejtracts/internal/match"
	"github.com/opendatama/rejtracts/internal/output"
	"github.com/opendatama/rejtracts/internal/rej"
	"github.com/opendatama/rejtracts/internal/store"
)

func createReconcileCmd(a *app) *cobra.Command {
	var showGroups, saveDB bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Map REJ census tracts missing from the MassSave aggregate to the closest aggregate tract",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg

			ds, err := rej.Load(cfg.REJGeoJSON, cfg.Reconcile.ReferenceIDField)
			if err != nil {
				return err
			}
			regions, err := ds.Regions(cfg.Reconcile.RegionField)
			if err != nil {
				return err
			}
			aggregate, err := etl.ReadGeoIDs(cfg.Reconcile.AggregateSource, cfg.Reconcile.AggregateIDColumn)
			if err != nil {
				return err
			}
			a.logger.Info().
				Int("reference", len(regions)).
				Int("aggregate", len(aggregate)).
				Msg("Loaded GeoIDs")

			report, err := match.NewEngine(a.logger).Reconcile(match.Input{Regions: regions, Aggregate: aggregate})
			if err != nil {
				return err
			}

			if err := match.WriteMappingFile(cfg.MappingFile, report.Mappings); err != nil {
				return err
			}
			a.logger.Info().Str("path", cfg.MappingFile).Msg("Saved mapping")

			if saveDB {
				conn, err := db.NewConnection(cmd.Context(), cfg.Database.URL, cfg.Database.MaxConnections)
				if err != nil {
					return err
				}
				defer conn.Close()

				runID, err := store.New(conn.DB).SaveMappingRun(cmd.Context(), "reconcile", store.RowsFromReport(report))
				if err != nil {
					return err
				}
				a.logger.Info().Str("run_id", runID.String()).Msg("Recorded mapping run")
			}

			return output.Write(cmd.OutOrStdout(), a.format, reconcileTables(report, showGroups)...)
		},
	}

	cmd.Flags().BoolVar(&showGroups, "groups", false, "list every group and its match")
	cmd.Flags().BoolVar(&saveDB, "save-db", false, "record the run in Postgres")
	return cmd
}

func reconcileTables(report *match.Report, showGroups bool) []output.Data {
	summary := output.Data{
		Title:   "Reconciliation summary",
		Headers: []string{"missing", "groups", "mapped", "unmapped", "mapped %"},
		Rows: [][]string{{
			itoa(len(report.Missing)), itoa(len(report.Groups)),
			itoa(report.Mapped), itoa(report.Unmapped), output.Percent(report.MappedPercent()),
		}},
	}

	strategies := make([]string, 0, len(report.StrategyHits))
	for s := range report.StrategyHits {
		strategies = append(strategies, s)
	}
	sort.Strings(strategies)
	hits := output.Data{Title: "Groups per strategy", Headers: []string{"strategy", "groups"}}
	for _, s := range strategies {
		hits.Rows = append(hits.Rows, []string{s, itoa(report.StrategyHits[s])})
	}

	tables := []output.Data{summary, hits}
	if showGroups {
		groups := output.Data{
			Title:   "Groups",
			Headers: []string{"#", "region", "geoids", "match", "confidence", "strategy"},
		}
		for i, g := range report.Groups {
			matched := "None"
			if g.Match.Found() {
				matched = g.Match.GeoID
			}
			groups.Rows = append(groups.Rows, []string{
				itoa(i + 1), g.Group.Region, strings.Join(g.Group.GeoIDs, " "),
				matched, itoa(g.Match.Confidence), g.Match.Strategy,
			})
		}
		tables = append(tables, groups)
	}
	return tables
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
