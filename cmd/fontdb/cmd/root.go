package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go-fontdb-pipeline/internal/config"
	"go-fontdb-pipeline/internal/helpers"
	"go-fontdb-pipeline/internal/models"
)

// cfgFile holds the path to the config file specified by the user
var cfgFile string

// logLevel holds the value of the --log-level flag
var logLevel string

// logFormat holds the value of the --log-format flag
var logFormat string

// sourceFlag holds the value of the --source flag
var sourceFlag string

// outputFlag holds the value of the --output flag
var outputFlag string

// globalConfig holds the loaded configuration
var globalConfig models.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fontdb",
	Short: "Build and publish the font metadata database",
	Long: `fontdb turns a local checkout of a font corpus into a versioned set
of JSON artifacts: per-family metadata, SVG previews, index views,
statistics and a changelog. Stages can run individually or as one
pipeline with 'fontdb all'.`,
	PersistentPreRunE: loadGlobalConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	viper.SetConfigName("config")
	viper.SetConfigType("toml")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Configuration file path (default is ./config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Logging format (text, json)")
	rootCmd.PersistentFlags().StringVar(&sourceFlag, "source", "", "Font corpus checkout directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&outputFlag, "output", "", "Artifact output directory (overrides config)")

	_ = viper.BindPFlag("loglevel", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logformat", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("sourcepath", rootCmd.PersistentFlags().Lookup("source"))
	_ = viper.BindPFlag("outputpath", rootCmd.PersistentFlags().Lookup("output"))

	config.SetViperDefaults(viper.GetViper())
}

// loadGlobalConfig reads the config file, applies environment and flag
// overrides and initializes logging before any command runs.
func loadGlobalConfig(cmd *cobra.Command, args []string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "fontdb"))
		}
	}

	viper.SetEnvPrefix("FONTDB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Debug("No config file found, using defaults and flags")
		} else {
			return fmt.Errorf("reading config file: %w", err)
		}
	} else {
		log.Debugf("Using config file: %s", viper.ConfigFileUsed())
	}

	globalConfig = config.Defaults()
	if err := viper.Unmarshal(&globalConfig); err != nil {
		return fmt.Errorf("unmarshalling config: %w", err)
	}
	applyFlagOverrides()
	if err := config.Normalize(&globalConfig); err != nil {
		return err
	}

	initLogging()
	return nil
}

// applyFlagOverrides carries bound viper values into the typed config.
// Viper's Unmarshal does not map the lowercase flag keys onto the TOML
// field names, so the handful of top-level overrides are copied by hand.
func applyFlagOverrides() {
	if v := viper.GetString("sourcepath"); v != "" {
		globalConfig.SourcePath = v
	}
	if v := viper.GetString("outputpath"); v != "" {
		globalConfig.OutputPath = v
	}
	if v := viper.GetString("loglevel"); v != "" {
		globalConfig.LogLevel = v
	}
	if v := viper.GetString("logformat"); v != "" {
		globalConfig.LogFormat = v
	}
}

func initLogging() {
	level, err := log.ParseLevel(globalConfig.LogLevel)
	if err != nil {
		log.Warnf("Invalid log level %q, falling back to info", globalConfig.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if globalConfig.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// loadDatabase reads and sanity checks the working database from dir.
func loadDatabase(dir string) (*models.Database, error) {
	path := filepath.Join(dir, models.DatabaseFile)
	var db models.Database
	if err := helpers.ReadJSONFile(path, &db); err != nil {
		return nil, fmt.Errorf("loading database (run 'fontdb metadata' first?): %w", err)
	}
	if err := db.Validate(); err != nil {
		return nil, fmt.Errorf("database at %s is malformed: %w", path, err)
	}
	return &db, nil
}

// ensureOutputDir creates the artifact directory if needed.
func ensureOutputDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", dir, err)
	}
	return nil
}
