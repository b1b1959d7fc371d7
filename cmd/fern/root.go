package main

import (
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/config"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "fern",
		Short:        "Migrate the movie catalogue from SQLite to PostgreSQL",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("sqlite-path", "", "path to the source SQLite file (DB_SQLITE_NAME)")
	root.PersistentFlags().Int("chunk-size", 0, "rows read per chunk (CHUNK_SIZE)")
	root.PersistentFlags().String("schema", "", "destination schema (DB_SCHEMA)")
	root.PersistentFlags().StringSlice("tables", nil, "tables to process, in migration order (TABLES)")
	root.PersistentFlags().String("log-level", "", "debug, info, warn or error (LOG_LEVEL)")
	root.PersistentFlags().Int("metrics-port", 0, "serve health, metrics and the run report on this port (METRICS_PORT)")

	root.AddCommand(migrateCommand(), verifyCommand(), versionCommand())
	return root
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "fern", version)
		},
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(cmd.Flags())
}

func newLogger(cfg *config.Config) (ectologger.Logger, func(), error) {
	zapConfig := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapConfig = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zapConfig.Level = level

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return zapadapter.NewZapEctoLogger(zapLogger, nil), func() { _ = zapLogger.Sync() }, nil
}
