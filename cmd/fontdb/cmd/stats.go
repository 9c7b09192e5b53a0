package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-fontdb-pipeline/internal/assembler"
	"go-fontdb-pipeline/internal/models"
	"go-fontdb-pipeline/internal/stats"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Compute and publish database statistics",
	Long: `Derives the stats.json report from the working database and the
extraction report, then refreshes the checksum manifest so the new
artifact is covered.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStats(globalConfig, globalConfig.OutputPath)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

// runStats executes the statistics stage against the database in dir.
func runStats(cfg models.Config, dir string) error {
	db, err := loadDatabase(dir)
	if err != nil {
		return err
	}

	s, err := stats.New(cfg).Write(db, dir)
	if err != nil {
		return err
	}
	log.Info(s.Summary())

	return assembler.WriteChecksums(dir)
}
