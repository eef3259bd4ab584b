package main

import (
	"fmt"

	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/pkg/database"
)

func databaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		Username:        cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			conn, err := database.Connect(cmd.Context(), databaseConfig(cfg), logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			driver, err := postgres.WithInstance(conn.DB, &postgres.Config{})
			if err != nil {
				return fmt.Errorf("creating migration driver: %w", err)
			}

			migrations := database.NewMigrationService(logger, &database.MigrationConfig{
				MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
				Version:             uint(cfg.DatabaseMigrationVersion),
				AutoRollback:        cfg.DatabaseMigrationAutoRollback,
			})
			return migrations.Migrate(cfg.DatabaseName, driver)
		},
	}
}
