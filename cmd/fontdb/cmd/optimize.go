package cmd

import (
	"github.com/spf13/cobra"

	"go-fontdb-pipeline/internal/assembler"
	"go-fontdb-pipeline/internal/models"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Optimize the database and emit the distribution artifacts",
	Long: `Collapses redundant per-variant data, deduplicates download URLs,
re-compresses previews and writes the distribution set: the compact
database, its gzip variant, the three index views and the checksum
manifest.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOptimize(globalConfig, globalConfig.OutputPath)
	},
}

func init() {
	rootCmd.AddCommand(optimizeCmd)
}

// runOptimize executes the optimization stage against the database in dir.
func runOptimize(cfg models.Config, dir string) error {
	db, err := loadDatabase(dir)
	if err != nil {
		return err
	}

	o := assembler.New(cfg)
	o.Optimize(db)
	return o.WriteArtifacts(dir, db)
}
