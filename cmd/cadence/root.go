package main

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/cadence-api/internal/config"
	"github.com/phrazzld/cadence-api/internal/platform/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cliState carries what the root command resolved to its subcommands.
type cliState struct {
	configPath string
	v          *viper.Viper
}

func newRootCmd() *cobra.Command {
	state := &cliState{}

	root := &cobra.Command{
		Use:   "cadence",
		Short: "Multi-tenant task backend with recurring task automation",
		Long: `cadence serves the task API and runs the event processors that react to
task events: generating the next instance of completed recurring tasks,
keeping an audit trail and delivering reminders.

Configuration is read from config.yaml (or --config), then CADENCE_*
environment variables, then command-line flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v, err := config.NewViper(state.configPath)
			if err != nil {
				return err
			}
			if err := v.BindPFlag("server.log_level", cmd.Root().PersistentFlags().Lookup("log-level")); err != nil {
				return fmt.Errorf("failed to bind log-level flag: %w", err)
			}
			state.v = v
			return nil
		},
	}

	root.PersistentFlags().StringVar(&state.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newServerCmd(state),
		newProcessorCmd(state),
		newMigrateCmd(state),
		newSubscriptionsCmd(state),
		newTokenCmd(state),
	)
	return root
}

// load builds and validates the configuration and sets up the logger.
func (s *cliState) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.FromViper(s.v)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(logger.LoggerConfig{Level: cfg.Server.LogLevel})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return cfg, log, nil
}

// bindFlag binds a command flag to a config key, overriding file and env.
func (s *cliState) bindFlag(cmd *cobra.Command, key, flag string) error {
	if err := s.v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		return fmt.Errorf("failed to bind %s flag: %w", flag, err)
	}
	return nil
}
