package main

import (
	"fmt"

	"github.com/phrazzld/cadence-api/internal/config"
	"github.com/phrazzld/cadence-api/internal/platform/postgres"
	"github.com/spf13/cobra"
)

func newMigrateCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [up|down|reset|status|version]",
		Short: "Apply or inspect the PostgreSQL schema migrations",
		Args:  cobra.MaximumNArgs(1),
		ValidArgs: []string{
			postgres.MigrateUp, postgres.MigrateDown, postgres.MigrateReset,
			postgres.MigrateStatus, postgres.MigrateVersion,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := postgres.MigrateUp
			if len(args) == 1 {
				command = args[0]
			}

			cfg, log, err := state.load()
			if err != nil {
				return err
			}
			if cfg.Database.Driver != config.DriverPostgres {
				return fmt.Errorf("migrations require database.driver=%s", config.DriverPostgres)
			}

			db, err := postgres.Open(cmd.Context(), cfg.Database.URL, postgres.DefaultPoolOptions(), log)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			return postgres.Migrate(cmd.Context(), db.DB, command, log)
		},
	}
}
