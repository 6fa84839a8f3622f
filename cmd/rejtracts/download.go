package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/opendatama/rejtracts/internal/output"
	"github.com/opendatama/rejtracts/internal/scrape"
)

func createDownloadCmd(a *app) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download one KMZ per municipality and unzip its KML",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := scrape.NewClient(a.cfg.MassSaveURL, timeout)
			if err != nil {
				return err
			}

			d := scrape.NewDownloader(client, a.cfg.KMZDir, a.cfg.KMLDir, a.cfg.DownloadInterval, a.logger)
			stats, err := d.DownloadAll(cmd.Context())
			if err != nil {
				return err
			}

			return output.Write(cmd.OutOrStdout(), a.format, output.Data{
				Title:   "Download summary",
				Headers: []string{"municipalities", "downloaded", "skipped", "extracted", "failed"},
				Rows: [][]string{{
					itoa(stats.Municipalities), itoa(stats.Downloaded), itoa(stats.Skipped),
					itoa(stats.Extracted), itoa(stats.Failed),
				}},
			})
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "per-request HTTP timeout")
	return cmd
}
