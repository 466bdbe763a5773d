package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify CRM connectivity",
	Long: `Acquire a bearer token from the CRM's identity server using the
configured credentials. Succeeds silently when the connection works.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	if err := checkCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
		os.Exit(1)
	}
}

func runCheck(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	logger := slog.Default()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}

	d, err := buildDeps(ctx, configPath, logger)
	if err != nil {
		return err
	}
	defer d.close()

	if _, err := d.tokens.Token(ctx); err != nil {
		return fmt.Errorf("connection check failed: %w", err)
	}

	logger.Info("Connection check succeeded", "integration", d.cfg.Integration.Name)
	return nil
}
