package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/internal/container"
	ctxmiddleware "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
)

func newRunBatchCmd() *cobra.Command {
	var (
		file     string
		batchID  string
		tenantID string
		offline  bool
	)

	cmd := &cobra.Command{
		Use:   "run-batch",
		Short: "Match a file of extracted claims against the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading claims file: %w", err)
			}
			var claims []models.ClaimRecord
			if err := json.Unmarshal(data, &claims); err != nil {
				return fmt.Errorf("parsing claims file: %w", err)
			}
			if len(claims) == 0 {
				return fmt.Errorf("no claims in %s", file)
			}

			conn, err := database.Connect(ctx, databaseConfig(cfg), logger)
			if err != nil {
				return err
			}
			defer conn.Close()
			db := database.NewDatabaseInstance(conn, logger)

			var redisClient *redis.Client
			if offline {
				cfg.KafkaBrokers = nil
			} else {
				redisClient, err = redis.NewClient(redis.Config{
					Host:     cfg.RedisHost,
					Port:     cfg.RedisPort,
					Password: cfg.RedisPassword,
					DB:       cfg.RedisDB,
				}, logger)
				if err != nil {
					return err
				}
				defer redisClient.Close()
			}

			deps := container.Build(cfg, logger, db, redisClient)

			if tenantID != "" {
				ctx = ctxmiddleware.SetTenantID(ctx, tenantID)
			}

			if _, err := deps.Manager.Rebuild(ctx); err != nil {
				return err
			}

			report, err := deps.Processor.ProcessBatch(ctx, batchID, claims)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path to a JSON array of claim records")
	cmd.Flags().StringVar(&batchID, "batch-id", "", "batch id (generated when empty)")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id stamped on audit rows and events")
	cmd.Flags().BoolVar(&offline, "offline", false, "skip Redis and Kafka; no rebuild lock, deduplication, or events")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
