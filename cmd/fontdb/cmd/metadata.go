package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/gosuri/uilive"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-fontdb-pipeline/internal/extractor"
	"go-fontdb-pipeline/internal/helpers"
	"go-fontdb-pipeline/internal/models"
)

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Extract per-family metadata from the font corpus",
	Long: `Walks the configured source checkout, parses every font file and
builds the working font-database.json plus an extraction report. Files
that cannot be parsed are recorded and skipped, never fatal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMetadata(globalConfig, globalConfig.OutputPath)
	},
}

func init() {
	rootCmd.AddCommand(metadataCmd)
}

// runMetadata executes the extraction stage into dir. Shared with
// 'fontdb all', which points dir at a staging directory.
func runMetadata(cfg models.Config, dir string) error {
	if err := ensureOutputDir(dir); err != nil {
		return err
	}

	e := extractor.New(cfg)

	writer := uilive.New()
	writer.Start()
	e.OnProgress = func(done, total int) {
		fmt.Fprintf(writer, "Extracting metadata: %d/%d files\n", done, total)
	}

	db, report, err := e.Run()
	writer.Stop()
	if err != nil {
		return err
	}

	if err := helpers.WriteJSONFile(filepath.Join(dir, models.DatabaseFile), db, true); err != nil {
		return err
	}
	if err := helpers.WriteJSONFile(filepath.Join(dir, models.ExtractionReportFile), report, true); err != nil {
		return err
	}

	log.Infof("Extracted %d families from %d files (%d failed, %d duplicates)",
		report.TotalFamilies, report.ScannedFiles, report.FailedFiles, report.DuplicateVariants)
	return nil
}
