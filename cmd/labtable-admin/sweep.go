package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"labtable/internal/repository/postgres"
	"labtable/internal/service"
	s3storage "labtable/internal/storage/s3"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired artifacts and their blobs once",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck

		storage, err := s3storage.NewStore(cmd.Context(), &cfg.S3, cfg.Extraction.MaxImageBytes)
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}

		w := service.NewRetentionWorker(postgres.NewArtifactRepo(db), storage, service.RetentionConfig{
			Bucket:    cfg.S3.Bucket,
			BatchSize: cfg.Retention.BatchSize,
		})
		n, err := w.Sweep(cmd.Context())
		fmt.Fprintf(os.Stdout, "deleted %d expired artifacts\n", n)
		return err
	},
}
