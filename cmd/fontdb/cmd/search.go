package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-fontdb-pipeline/internal/models"
	"go-fontdb-pipeline/internal/search"
)

var searchLimitFlag int

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the font database",
}

var searchIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the search index from the current database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSearchIndex(globalConfig, globalConfig.OutputPath)
	},
}

var searchQueryCmd = &cobra.Command{
	Use:   "query <terms>",
	Short: "Query the search index",
	Long: `Runs a query-string search over the indexed families. Field
queries like 'category:serif' or 'license:OFL' are supported alongside
plain name terms.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := search.Open(globalConfig.Search.IndexPath)
		if err != nil {
			return err
		}
		defer idx.Close()

		q := args[0]
		for _, arg := range args[1:] {
			q += " " + arg
		}

		hits, err := idx.Query(q, searchLimitFlag)
		if err != nil {
			return err
		}
		if len(hits) == 0 {
			fmt.Println("No matches")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FAMILY\tCATEGORY\tLICENSE\tSCORE")
		for _, hit := range hits {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.3f\n", hit.Name, hit.Category, hit.License, hit.Score)
		}
		return w.Flush()
	},
}

func init() {
	searchQueryCmd.Flags().IntVar(&searchLimitFlag, "limit", 20, "Maximum number of results")
	searchCmd.AddCommand(searchIndexCmd)
	searchCmd.AddCommand(searchQueryCmd)
	rootCmd.AddCommand(searchCmd)
}

// runSearchIndex rebuilds the search index from the database in dir.
func runSearchIndex(cfg models.Config, dir string) error {
	db, err := loadDatabase(dir)
	if err != nil {
		return err
	}

	idx, err := search.Rebuild(cfg.Search.IndexPath, db)
	if err != nil {
		return err
	}
	defer idx.Close()

	count, err := idx.Count()
	if err != nil {
		return err
	}
	log.Infof("Search index rebuilt with %d families at %s", count, cfg.Search.IndexPath)
	return nil
}
