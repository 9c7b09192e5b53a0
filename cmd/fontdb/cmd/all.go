package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-fontdb-pipeline/internal/models"
)

var (
	skipArchiveFlag bool
	skipSearchFlag  bool
)

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Run the full pipeline and publish atomically",
	Long: `Runs metadata, previews, optimize, stats and changelog into a
staging directory, validates the result and only then moves the
artifacts into the output directory. A failed stage or a failed
validation leaves the previously published artifacts untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAll(globalConfig)
	},
}

func init() {
	allCmd.Flags().BoolVar(&skipArchiveFlag, "skip-archive", false, "Do not archive the release after publishing")
	allCmd.Flags().BoolVar(&skipSearchFlag, "skip-search", false, "Do not rebuild the search index after publishing")
	rootCmd.AddCommand(allCmd)
}

// publishedArtifacts are moved from staging into the output directory,
// in this order, after validation passes.
var publishedArtifacts = []string{
	models.DatabaseFile,
	models.DatabaseGzipFile,
	models.DatabaseOptimizedFile,
	models.FamiliesIndexFile,
	models.CategoriesIndexFile,
	models.PopularIndexFile,
	models.StatsFile,
	models.ExtractionReportFile,
	models.ChangelogFile,
	models.ReleaseChangelogFile,
	models.ChecksumsFile,
	models.ValidationReportFile,
}

func runAll(cfg models.Config) error {
	if err := ensureOutputDir(cfg.OutputPath); err != nil {
		return err
	}

	// Diff against the currently published database unless a previous
	// release was configured explicitly.
	if cfg.Changelog.PreviousPath == "" && cfg.Changelog.PreviousURL == "" {
		cfg.Changelog.PreviousPath = filepath.Join(cfg.OutputPath, models.DatabaseFile)
	}

	staging, err := os.MkdirTemp(cfg.OutputPath, ".staging-")
	if err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(staging); rmErr != nil {
			log.WithError(rmErr).Warnf("Could not remove staging directory %s", staging)
		}
	}()
	log.Debugf("Staging pipeline run in %s", staging)

	stages := []struct {
		name string
		run  func(models.Config, string) error
	}{
		{"metadata", runMetadata},
		{"previews", runPreviews},
		{"optimize", runOptimize},
		{"stats", runStats},
		{"changelog", runChangelog},
		{"validate", runValidate},
	}
	for _, stage := range stages {
		log.Infof("Running stage: %s", stage.name)
		if err := stage.run(cfg, staging); err != nil {
			return fmt.Errorf("stage %s failed: %w", stage.name, err)
		}
	}

	if err := promote(staging, cfg.OutputPath); err != nil {
		return err
	}
	log.Infof("Published artifacts to %s", cfg.OutputPath)

	if !skipArchiveFlag {
		if err := runArchiveSave(cfg, cfg.OutputPath); err != nil {
			return fmt.Errorf("archiving release: %w", err)
		}
	}
	if !skipSearchFlag {
		if err := runSearchIndex(cfg, cfg.OutputPath); err != nil {
			return fmt.Errorf("rebuilding search index: %w", err)
		}
	}
	return nil
}

// promote moves the validated artifacts from staging into dir. Staging
// lives inside the output directory, so a plain rename applies each
// file in one step.
func promote(staging, dir string) error {
	for _, name := range publishedArtifacts {
		src := filepath.Join(staging, name)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		dst := filepath.Join(dir, name)
		if err := os.Rename(src, dst); err != nil {
			if copyErr := copyFile(src, dst); copyErr != nil {
				return fmt.Errorf("promoting %s: %w", name, copyErr)
			}
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
