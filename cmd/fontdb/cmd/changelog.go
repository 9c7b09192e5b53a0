package cmd

import (
	"github.com/spf13/cobra"

	"go-fontdb-pipeline/internal/assembler"
	"go-fontdb-pipeline/internal/changelog"
	"go-fontdb-pipeline/internal/models"
)

var changelogPreviousFlag string

var changelogCmd = &cobra.Command{
	Use:   "changelog",
	Short: "Generate the changelog against the previous release",
	Long: `Compares the working database with the previously published one,
loaded from a local file or fetched from the configured URL, and writes
CHANGELOG.md plus the short release-changelog.md. A missing previous
release produces a first-release changelog.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := globalConfig
		if changelogPreviousFlag != "" {
			cfg.Changelog.PreviousPath = changelogPreviousFlag
		}
		return runChangelog(cfg, cfg.OutputPath)
	},
}

func init() {
	changelogCmd.Flags().StringVar(&changelogPreviousFlag, "previous", "", "Path to the previous font-database.json (overrides config)")
	rootCmd.AddCommand(changelogCmd)
}

// runChangelog executes the changelog stage against the database in dir.
func runChangelog(cfg models.Config, dir string) error {
	db, err := loadDatabase(dir)
	if err != nil {
		return err
	}

	if _, err := changelog.New(cfg).Run(db, dir); err != nil {
		return err
	}
	return assembler.WriteChecksums(dir)
}
