package main

import (
	"github.com/spf13/cobra"

	"github.com/opendatama/rejtracts/internal/etl"
	"github.com/opendatama/rejtracts/internal/output"
	"github.com/opendatama/rejtracts/internal/stats"
)

func createAnalyzeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Compare participation rates of REJ and non-REJ tracts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			table, err := etl.ReadTable(cfg.JoinedCSV)
			if err != nil {
				return err
			}

			result, err := stats.Analyze(table, stats.Columns{
				REJFlag:    cfg.Analysis.REJFlagColumn,
				Electric:   cfg.Analysis.ElectricColumn,
				Gas:        cfg.Analysis.GasColumn,
				Population: cfg.Analysis.PopulationColumn,
				Flags:      cfg.Analysis.FlagColumns,
			})
			if err != nil {
				return err
			}
			if result.ElectricErr != nil {
				a.logger.Warn().Err(result.ElectricErr).Str("rate", "electric").Msg("t-test skipped")
			}
			if result.GasErr != nil {
				a.logger.Warn().Err(result.GasErr).Str("rate", "gas").Msg("t-test skipped")
			}

			ttests := output.Data{
				Title:   "T-test results (REJ vs non-REJ)",
				Headers: []string{"rate", "t-statistic", "p-value", "REJ n", "non-REJ n", "REJ mean", "non-REJ mean"},
			}
			for _, row := range []struct {
				name string
				res  stats.TTestResult
			}{{"electric", result.Electric}, {"gas", result.Gas}} {
				ttests.Rows = append(ttests.Rows, []string{
					row.name, output.Float(row.res.T), output.Float(row.res.P),
					itoa(row.res.N1), itoa(row.res.N2),
					output.Float(row.res.Mean1), output.Float(row.res.Mean2),
				})
			}

			flags := output.Data{
				Title:   "Mean participation rates for specific flags",
				Headers: []string{"flag", "electric", "gas"},
			}
			for _, fm := range result.FlagMeans {
				flags.Rows = append(flags.Rows, []string{fm.Flag, output.Float(fm.Electric), output.Float(fm.Gas)})
			}

			overall := output.Data{
				Title:   "Across all tracts",
				Headers: []string{"tracts", "mean electric", "mean gas", "mean population"},
				Rows: [][]string{{
					itoa(result.Rows), output.Float(result.MeanElectric),
					output.Float(result.MeanGas), output.Float(result.MeanPopulation),
				}},
			}

			return output.Write(cmd.OutOrStdout(), a.format, ttests, flags, overall)
		},
	}
}
