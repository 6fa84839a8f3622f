package main

import (
	"github.com/spf13/cobra"

	"github.com/opendatama/rejtracts/internal/output"
	"github.com/opendatama/rejtracts/internal/towns"
)

func createTownsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "towns",
		Short: "Report municipalities and tracts missing from the processed outputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			src, err := towns.Load(towns.Paths{
				TownsFile:      cfg.TownsFile,
				BlockGroupsCSV: cfg.BlockGroupsCSV,
				TractGroupsCSV: cfg.TractGroupsCSV,
				JoinedCSV:      cfg.JoinedCSV,
				REJGeoJSON:     cfg.REJGeoJSON,
				REJIDField:     cfg.Reconcile.ReferenceIDField,
			})
			if err != nil {
				return err
			}

			report := towns.Compare(src)
			a.logger.Info().
				Int("expected", report.Expected).
				Int("tract_towns", report.TractTownCount).
				Msg("Compared town coverage")

			return output.Write(cmd.OutOrStdout(), a.format, output.Data{
				Title:   "Town coverage",
				Headers: []string{"check", "count", "items"},
				Rows: [][]string{
					{"expected towns missing from block groups", itoa(len(report.MissingFromBlocks)), output.List(report.MissingFromBlocks)},
					{"expected towns missing from tracts", itoa(len(report.MissingFromTracts)), output.List(report.MissingFromTracts)},
					{"tract towns missing from REJ table", itoa(len(report.MissingFromREJ)), output.List(report.MissingFromREJ)},
					{"tract GeoIDs missing from REJ", itoa(len(report.TractGeoIDsNotInREJ)), output.List(report.TractGeoIDsNotInREJ)},
				},
			})
		},
	}
}
