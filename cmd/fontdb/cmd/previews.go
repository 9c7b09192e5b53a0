package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/gosuri/uilive"
	"github.com/spf13/cobra"

	"go-fontdb-pipeline/internal/helpers"
	"go-fontdb-pipeline/internal/models"
	"go-fontdb-pipeline/internal/preview"
)

var previewsCmd = &cobra.Command{
	Use:   "previews",
	Short: "Render compressed SVG previews for every family",
	Long: `Reads the working database, renders an SVG preview from one
representative variant per family and stores the gzip+base64 blob back
into the database. Families whose fonts cannot be rendered keep no
preview and are counted in the result.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPreviews(globalConfig, globalConfig.OutputPath)
	},
}

func init() {
	rootCmd.AddCommand(previewsCmd)
}

// runPreviews executes the preview stage against the database in dir.
func runPreviews(cfg models.Config, dir string) error {
	db, err := loadDatabase(dir)
	if err != nil {
		return err
	}

	g := preview.New(cfg)

	writer := uilive.New()
	writer.Start()
	g.OnProgress = func(done, total int) {
		fmt.Fprintf(writer, "Rendering previews: %d/%d families\n", done, total)
	}

	result, err := g.Run(db)
	writer.Stop()
	if err != nil {
		return err
	}
	if result.Generated == 0 && len(db.Fonts) > 0 {
		return fmt.Errorf("no previews could be generated for %d families", len(db.Fonts))
	}

	return helpers.WriteJSONFile(filepath.Join(dir, models.DatabaseFile), db, true)
}
