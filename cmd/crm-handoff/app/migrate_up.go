package app

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/apphive/crm-handoff/database"
	"github.com/apphive/crm-handoff/internal/config"
)

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending database migrations",
	Long: `Apply pending database migrations to bring the schema up to date.
This command reads the database connection parameters from the config file
and applies all migrations that haven't been run yet.`,
	RunE: runMigrateUp,
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	m, numSteps, err := setupMigration(cmd, "About to apply migrations to the database. Continue?")
	if err != nil || m == nil {
		return err
	}

	if numSteps == 0 {
		slog.Info("Applying all pending migrations")
		err = m.Up()
	} else {
		slog.Info("Applying migrations", "steps", numSteps)
		if numSteps > math.MaxInt {
			return fmt.Errorf("number of steps exceeds maximum allowed value")
		}
		err = m.Steps(int(numSteps)) // #nosec G115 -- overflow checked above
	}

	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("No migrations to apply, database is up to date")
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("Migration completed successfully")
	displayMigrationVersion(m, 1)
	return nil
}

// setupMigration loads the config, confirms with the user and builds the
// migrator. A nil migrator with nil error means the user declined.
func setupMigration(cmd *cobra.Command, prompt string) (database.Migrator, uint, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get config flag: %w", err)
	}
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get yes flag: %w", err)
	}
	numSteps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get num-steps flag: %w", err)
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database == nil {
		return nil, 0, fmt.Errorf("database configuration is required")
	}

	if !yes && !confirm(prompt) {
		slog.Info("Migration cancelled by user")
		return nil, 0, nil
	}

	connString, err := cfg.Database.GetConnectionString()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build connection string: %w", err)
	}

	m, err := database.NewFromConnectionString(connString)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, numSteps, nil
}
