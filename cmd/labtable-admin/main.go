package main

import (
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"labtable/internal/config"
	"labtable/internal/repository/postgres"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "labtable-admin",
	Short: "Operator tools for the labtable service",
	Long:  "Generates redeem codes, creates accounts, runs migrations and retention sweeps, and reconciles extraction charges against stored artifacts.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(genCodesCmd, createAccountCmd, reconcileCmd, sweepCmd, migrateCmd)
}

func openDB() (*sqlx.DB, error) {
	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
