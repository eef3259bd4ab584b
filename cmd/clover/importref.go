package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/internal/reference"
	"github.com/Ramsey-B/clover/internal/repositories/lineitems"
	"github.com/Ramsey-B/clover/internal/repositories/orders"
	"github.com/Ramsey-B/clover/pkg/database"
)

func newImportReferenceCmd() *cobra.Command {
	var (
		ordersPath    string
		lineItemsPath string
		fromS3        bool
	)

	cmd := &cobra.Command{
		Use:   "import-reference",
		Short: "Import ledger snapshots into the reference tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			conn, err := database.Connect(ctx, databaseConfig(cfg), logger)
			if err != nil {
				return err
			}
			defer conn.Close()
			db := database.NewDatabaseInstance(conn, logger)

			importer := reference.NewImporter(
				orders.NewRepository(db, logger),
				lineitems.NewRepository(db, logger),
				logger,
			)

			var summary *reference.Summary
			if fromS3 {
				if cfg.ReferenceS3Bucket == "" {
					return fmt.Errorf("REFERENCE_S3_BUCKET is not configured")
				}
				downloader, err := reference.NewS3Downloader(ctx, cfg.ReferenceS3Bucket, cfg.ReferenceS3Region)
				if err != nil {
					return err
				}
				summary, err = importer.ImportFromS3(ctx, downloader, cfg.ReferenceOrdersKey, cfg.ReferenceLineItemsKey)
				if err != nil {
					return err
				}
			} else {
				if ordersPath == "" || lineItemsPath == "" {
					return fmt.Errorf("--orders and --line-items are required unless --from-s3 is set")
				}
				summary, err = importer.ImportFromFiles(ctx, ordersPath, lineItemsPath)
				if err != nil {
					return err
				}
			}

			out, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&ordersPath, "orders", "", "path to the orders parquet snapshot")
	cmd.Flags().StringVar(&lineItemsPath, "line-items", "", "path to the line items parquet snapshot")
	cmd.Flags().BoolVar(&fromS3, "from-s3", false, "download snapshots from the configured S3 bucket")

	return cmd
}
