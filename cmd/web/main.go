package main

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/opendatama/rejtracts/internal/config"
	"github.com/opendatama/rejtracts/internal/logging"
	"github.com/opendatama/rejtracts/internal/rej"
	"github.com/opendatama/rejtracts/internal/web"
)

func main() {
	cfg, err := config.Load(viper.New(), os.Getenv("REJ_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	fmt.Println("=== REJ × MassSave Participation Preview ===")

	ds, err := rej.Load(cfg.JoinedGeoJSON, cfg.Reconcile.ReferenceIDField)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load joined dataset")
	}

	webConfig := web.NewConfig(cfg.Web)
	fmt.Printf("Server: http://%s:%d\n", webConfig.Server.Host, webConfig.Server.Port)
	fmt.Printf("Dataset: %s (%d tracts)\n", cfg.JoinedGeoJSON, len(ds.Features))
	fmt.Println("\nFeatures enabled:")
	fmt.Printf("  • Export: %v\n", webConfig.Features.ExportEnabled)
	fmt.Printf("  • API key: %v\n", webConfig.Auth.APIKey != "")
	fmt.Println()

	server := web.NewServer(webConfig, ds, logger)
	if err := server.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}
