package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"go-fontdb-pipeline/internal/models"
	"go-fontdb-pipeline/internal/validator"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the emitted artifacts before release",
	Long: `Runs the release gate over the artifact directory: file presence,
database structure, index consistency, preview integrity, gzip
round-trip and checksum verification. Exits non-zero when any error is
found; the verdict is also written to validation-report.json.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(globalConfig, globalConfig.OutputPath)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// runValidate executes the validation stage against dir, failing the
// command when the artifacts are not releasable.
func runValidate(cfg models.Config, dir string) error {
	report, err := validator.New(cfg, dir).Run()
	if err != nil {
		return err
	}
	if !report.Passed() {
		return fmt.Errorf("validation failed with %d errors (see %s)",
			len(report.Errors), models.ValidationReportFile)
	}
	return nil
}
