package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|steps N|version]",
	Short:     "Apply or inspect database migrations",
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: []string{"up", "down", "steps", "version"},
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		m, err := migrate.New("file://"+dir, cfg.DB.DSN())
		if err != nil {
			return fmt.Errorf("create migrate instance: %w", err)
		}
		defer m.Close() //nolint:errcheck

		switch args[0] {
		case "up":
			if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("migration up: %w", err)
			}
			zap.L().Info("migrations applied")
		case "down":
			if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("migration down: %w", err)
			}
			zap.L().Info("migrations reverted")
		case "steps":
			if len(args) < 2 {
				return errors.New("steps requires a number argument")
			}
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid steps argument: %w", err)
			}
			if err := m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("migration steps: %w", err)
			}
			zap.L().Info("migration steps applied", zap.Int("steps", n))
		case "version":
			version, dirty, err := m.Version()
			if err != nil {
				return fmt.Errorf("get version: %w", err)
			}
			fmt.Fprintf(os.Stdout, "version: %d, dirty: %v\n", version, dirty)
		default:
			return fmt.Errorf("unknown migrate command %q", args[0])
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().String("dir", "db/migrations", "directory holding the migration files")
}
