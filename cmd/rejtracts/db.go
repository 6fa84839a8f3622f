package main

import (
	"github.com/spf13/cobra"

	"github.com/opendatama/rejtracts/internal/db"
	"github.com/opendatama/rejtracts/internal/etl"
	"github.com/opendatama/rejtracts/internal/match"
	"github.com/opendatama/rejtracts/internal/store"
)

func createDBCmd(a *app) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Postgres sink for tract aggregates and mapping runs",
	}

	dbCmd.AddCommand(createMigrateCmd(a))
	dbCmd.AddCommand(createLoadTractsCmd(a))
	dbCmd.AddCommand(createLoadMappingsCmd(a))
	dbCmd.AddCommand(createExportMappingsCmd(a))

	return dbCmd
}

func openStore(cmd *cobra.Command, a *app) (*store.Store, func() error, error) {
	conn, err := db.NewConnection(cmd.Context(), a.cfg.Database.URL, a.cfg.Database.MaxConnections)
	if err != nil {
		return nil, nil, err
	}
	return store.New(conn.DB), conn.Close, nil
}

func createMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeDB, err := openStore(cmd, a)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := s.Migrate(cmd.Context()); err != nil {
				return err
			}
			a.logger.Info().Msg("Database schema is up to date")
			return nil
		},
	}
}

func createLoadTractsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load-tracts [file]",
		Short: "Upsert the tract aggregate CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.TractGroupsCSV
			if len(args) == 1 {
				path = args[0]
			}
			tracts, err := etl.ReadTracts(path)
			if err != nil {
				return err
			}

			s, closeDB, err := openStore(cmd, a)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := s.SaveTracts(cmd.Context(), tracts); err != nil {
				return err
			}
			a.logger.Info().Str("path", path).Int("tracts", len(tracts)).Msg("Loaded tracts")
			return nil
		},
	}
}

func createLoadMappingsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load-mappings [file]",
		Short: "Record a mapping file as a new mapping run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.MappingFile
			if len(args) == 1 {
				path = args[0]
			}
			mappings, err := match.ReadMappingFile(path)
			if err != nil {
				return err
			}

			s, closeDB, err := openStore(cmd, a)
			if err != nil {
				return err
			}
			defer closeDB()

			runID, err := s.SaveMappingRun(cmd.Context(), path, store.RowsFromMappings(mappings))
			if err != nil {
				return err
			}
			a.logger.Info().Str("run_id", runID.String()).Int("mappings", len(mappings)).Msg("Recorded mapping run")
			return nil
		},
	}
}

func createExportMappingsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export-mappings [file]",
		Short: "Write the latest mapping run as a mapping file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.MappingFile
			if len(args) == 1 {
				path = args[0]
			}

			s, closeDB, err := openStore(cmd, a)
			if err != nil {
				return err
			}
			defer closeDB()

			runID, mappings, err := s.LatestMappings(cmd.Context())
			if err != nil {
				return err
			}
			if err := match.WriteMappingFile(path, mappings); err != nil {
				return err
			}
			a.logger.Info().Str("run_id", runID.String()).Str("path", path).Msg("Exported mapping run")
			return nil
		},
	}
}
