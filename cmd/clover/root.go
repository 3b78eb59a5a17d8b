package main

import (
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
)

// app is what every subcommand shares once the root has run
type app struct {
	cfg    *config.Config
	rules  models.DedupConfig
	logger ectologger.Logger
	sync   func() error
}

func newRootCommand() *cobra.Command {
	a := &app{}
	var rulesFile string

	cmd := &cobra.Command{
		Use:           "clover",
		Short:         "Find, merge and unmerge duplicate records",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if rulesFile != "" {
				cfg.RulesFile = rulesFile
			}
			a.cfg = cfg

			rules, err := config.LoadRules(cfg.RulesFile)
			if err != nil {
				return err
			}
			a.rules = rules

			zapLogger, err := newZapLogger(cfg)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			a.logger = zapadapter.NewZapEctoLogger(zapLogger, nil)
			a.sync = zapLogger.Sync
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.sync != nil {
				_ = a.sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&rulesFile, "rules", "", "dedup rules YAML file (overrides RULES_FILE)")

	cmd.AddCommand(newServeCommand(a))
	cmd.AddCommand(newScanCommand(a))
	cmd.AddCommand(newMigrateCommand(a))
	return cmd
}

func newZapLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.PrettyLogs {
		return zap.NewDevelopment()
	}
	zcfg := zap.NewProductionConfig()
	if level, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zcfg.Level = level
	}
	return zcfg.Build()
}

func (a *app) databaseConfig() database.Config {
	return database.Config{
		Driver:          a.cfg.DatabaseDriver,
		Host:            a.cfg.DatabaseHost,
		Port:            a.cfg.DatabasePort,
		User:            a.cfg.DatabaseUserName,
		Password:        a.cfg.DatabasePassword,
		Name:            a.cfg.DatabaseName,
		SSLMode:         a.cfg.DatabaseSSLMode,
		MaxOpenConns:    a.cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    a.cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: a.cfg.DatabaseConnMaxLifetime,
	}
}

func (a *app) migrationConfig() *database.MigrationConfig {
	return &database.MigrationConfig{
		MigrationFolderPath: a.cfg.DatabaseMigrationFolderPath,
		Version:             uint(a.cfg.DatabaseMigrationVersion),
		Force:               a.cfg.DatabaseMigrationForce,
		AutoRollback:        a.cfg.DatabaseMigrationAutoRollback,
	}
}
