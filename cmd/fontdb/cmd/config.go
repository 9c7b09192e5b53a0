package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-fontdb-pipeline/internal/config"
)

var configForceFlag bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the fontdb configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config.toml with the default settings",
	// Skip the root config loading: this command runs before any
	// config exists.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFilePath
		if cfgFile != "" {
			path = cfgFile
		}
		if err := config.WriteDefault(path, configForceFlag); err != nil {
			return err
		}
		log.Infof("Wrote default configuration to %s", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForceFlag, "force", false, "Replace an existing config file")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
