package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/apphive/crm-handoff/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export <candidate-id>",
	Short: "Export one candidate to the CRM",
	Long: `Export a single locally stored candidate to the CRM and print the
step-by-step report as JSON. Exit status is non-zero when the export fails.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	exportCmd.Flags().Bool("link-to-job", false, "Link the candidate to the configured job")

	if err := exportCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
		os.Exit(1)
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logger := slog.Default()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	linkToJob, err := cmd.Flags().GetBool("link-to-job")
	if err != nil {
		return fmt.Errorf("failed to get link-to-job flag: %w", err)
	}

	d, err := buildDeps(ctx, configPath, logger)
	if err != nil {
		return err
	}
	defer d.close()

	report, exportErr := d.orchestrator.ExportCandidate(ctx, args[0], export.Options{LinkToJob: linkToJob})

	output, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format report: %w", err)
	}
	fmt.Println(string(output))

	if exportErr != nil {
		return fmt.Errorf("export failed: %w", exportErr)
	}
	return nil
}
