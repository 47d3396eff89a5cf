package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taurimind/server/db"
	"github.com/taurimind/server/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Applies pending database migrations and exits. The server runs
migrations on startup as well; this command exists for deploy pipelines
that migrate before rolling out.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.UsePostgres() {
		return errors.New("no database configured (set postgres_host or DATABASE_URL)")
	}

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	fmt.Println("migrations applied")
	return nil
}
