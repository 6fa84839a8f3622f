package main

import (
	"github.com/spf13/cobra"

	"github.com/opendatama/rejtracts/internal/rej"
	"github.com/opendatama/rejtracts/internal/web"
)

func createPreviewCmd(a *app) *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Serve a browser table over the joined REJ dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := rej.Load(a.cfg.JoinedGeoJSON, a.cfg.Reconcile.ReferenceIDField)
			if err != nil {
				return err
			}

			webConfig := web.NewConfig(a.cfg.Web)
			if cmd.Flags().Changed("host") {
				webConfig.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				webConfig.Server.Port = port
			}

			return web.NewServer(webConfig, ds, a.logger).Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&host, "host", "localhost", "listen host")
	cmd.Flags().IntVar(&port, "port", 8050, "listen port")
	return cmd
}
