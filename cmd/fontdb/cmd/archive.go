package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-fontdb-pipeline/internal/archive"
	"go-fontdb-pipeline/internal/helpers"
	"go-fontdb-pipeline/internal/models"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Manage the local history of published releases",
}

var archiveSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Archive the current database under its version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runArchiveSave(globalConfig, globalConfig.OutputPath)
	},
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived release versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := archive.Open(globalConfig.Archive.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		versions, err := store.Versions()
		if err != nil {
			return err
		}
		if len(versions) == 0 {
			fmt.Println("Archive is empty")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tARCHIVED\tFAMILIES\tSIZE")
		for _, version := range versions {
			entry, err := store.Entry(version)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				entry.Version, entry.Archived, entry.TotalFamilies,
				helpers.BytesToSize(uint64(len(entry.Data))))
		}
		return w.Flush()
	},
}

var archiveExportPath string

var archiveExportCmd = &cobra.Command{
	Use:   "export <version>",
	Short: "Export an archived database back to JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := archive.Open(globalConfig.Archive.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		db, err := store.Load(args[0])
		if err != nil {
			return err
		}

		out := archiveExportPath
		if out == "" {
			out = fmt.Sprintf("font-database-%s.json", args[0])
		}
		if err := helpers.WriteJSONFile(out, db, true); err != nil {
			return err
		}
		log.Infof("Exported release %s to %s", args[0], out)
		return nil
	},
}

func init() {
	archiveExportCmd.Flags().StringVar(&archiveExportPath, "out", "", "Destination file (default font-database-<version>.json)")
	archiveCmd.AddCommand(archiveSaveCmd)
	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveExportCmd)
	rootCmd.AddCommand(archiveCmd)
}

// runArchiveSave stores the database from dir under its version.
func runArchiveSave(cfg models.Config, dir string) error {
	db, err := loadDatabase(dir)
	if err != nil {
		return err
	}

	store, err := archive.Open(cfg.Archive.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	if store.Has(db.Version) {
		log.Warnf("Replacing archived release %s", db.Version)
	}
	return store.Save(db)
}
