package main

import (
	"github.com/Sternrassler/user-service/internal/config"
	"github.com/Sternrassler/user-service/pkg/logging"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
	pretty     bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:          "user-service",
		Short:        "User management REST API",
		Long:         "Serve the /api/v1/users REST API backed by PostgreSQL, with a Redis cache and rate limiter.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags)
		},
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&flags.pretty, "pretty", false, "human-readable console logs")

	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newMigrateCmd(flags))

	return root
}

// loadConfig reads the configuration and applies flag overrides, then sets
// up logging.
func loadConfig(cmd *cobra.Command, flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if cmd.Flags().Changed("pretty") {
		cfg.Log.Pretty = flags.pretty
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: cmd.ErrOrStderr(),
	})
	return cfg, nil
}
