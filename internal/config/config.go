package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"go-fontdb-pipeline/internal/models"
)

// Default values for configuration
const (
	DefaultSourcePath      = "google-fonts-source"
	DefaultOutputPath      = "."
	DefaultBaseURL         = "https://raw.githubusercontent.com/google/fonts/main"
	DefaultCategory        = models.CategorySansSerif
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultConfigFilePath  = "config.toml"

	// Preview stage defaults
	DefaultPreviewFontSize   = 48
	DefaultPreviewWidth      = 200
	DefaultPreviewHeight     = 60
	DefaultPreviewMaxTextLen = 12

	// Optimize stage defaults
	DefaultPopularLimit  = 100
	DefaultSizeTolerance = 0.1

	// Changelog defaults
	DefaultChangelogTimeoutSec = 30

	// Archive / search defaults (relative to OutputPath when not absolute)
	DefaultArchivePath     = "fontdb-archive"
	DefaultSearchIndexPath = "fontdb.bleve"

	// Torrent defaults
	DefaultTorrentOutputDir = "torrents"
)

// DefaultWeights is the style-token to numeric-weight table applied when
// a face carries no usable weight information of its own. Upstream
// naming conventions vary, so the table is configuration, not code: the
// [Weights] section of config.toml replaces it wholesale when present.
func DefaultWeights() map[string]int {
	return map[string]int{
		"thin":       100,
		"hairline":   100,
		"extralight": 200,
		"ultralight": 200,
		"light":      300,
		"regular":    400,
		"normal":     400,
		"book":       400,
		"medium":     500,
		"semibold":   600,
		"demibold":   600,
		"bold":       700,
		"extrabold":  800,
		"ultrabold":  800,
		"black":      900,
		"heavy":      900,
	}
}

// DefaultCategoryKeywords returns the name fragments that route a family
// into each non-default category during classification.
func DefaultCategoryKeywords() map[string][]string {
	return map[string][]string{
		models.CategorySerif: {
			"serif", "times", "georgia", "playfair", "lora", "merriweather",
			"crimson", "libre", "spectral", "vollkorn", "bitter",
		},
		models.CategoryDisplay: {
			"display", "fancy", "decorative", "title", "headline",
			"lobster", "pacifico", "righteous", "fredoka",
		},
		models.CategoryHandwriting: {
			"handwriting", "script", "cursive", "hand", "dancing",
			"satisfy", "allura", "greatvibes", "caveat",
		},
		models.CategoryMonospace: {
			"mono", "code", "inconsolata", "jetbrains", "fira",
		},
	}
}

// DefaultFontExtensions lists the file extensions treated as font files.
func DefaultFontExtensions() []string {
	return []string{".ttf", ".otf"}
}

// SetViperDefaults configures Viper with the application's default values.
func SetViperDefaults(v *viper.Viper) {
	v.SetDefault("sourcepath", DefaultSourcePath)
	v.SetDefault("outputpath", DefaultOutputPath)
	v.SetDefault("baseurl", DefaultBaseURL)
	v.SetDefault("defaultcategory", DefaultCategory)
	v.SetDefault("loglevel", DefaultLogLevel)
	v.SetDefault("logformat", DefaultLogFormat)

	v.SetDefault("metadata.extensions", DefaultFontExtensions())

	v.SetDefault("preview.fontsize", DefaultPreviewFontSize)
	v.SetDefault("preview.width", DefaultPreviewWidth)
	v.SetDefault("preview.height", DefaultPreviewHeight)
	v.SetDefault("preview.maxtextlen", DefaultPreviewMaxTextLen)

	v.SetDefault("optimize.popularlimit", DefaultPopularLimit)
	v.SetDefault("optimize.sizetolerance", DefaultSizeTolerance)

	v.SetDefault("changelog.previousurl", "")
	v.SetDefault("changelog.previouspath", "")
	v.SetDefault("changelog.timeoutsec", DefaultChangelogTimeoutSec)

	v.SetDefault("archive.path", DefaultArchivePath)
	v.SetDefault("search.indexpath", DefaultSearchIndexPath)

	v.SetDefault("torrent.outputdir", DefaultTorrentOutputDir)
	v.SetDefault("torrent.trackers", []string{})
	v.SetDefault("torrent.overwrite", false)
	v.SetDefault("torrent.magnetlinks", false)

	v.SetDefault("weights", DefaultWeights())
	v.SetDefault("categorykeywords", DefaultCategoryKeywords())
}

// Normalize fills in derived paths and validates the loaded config.
// Relative archive/search paths are anchored under OutputPath so a
// single OutputPath flag relocates the whole working set.
func Normalize(cfg *models.Config) error {
	if cfg.SourcePath == "" {
		return fmt.Errorf("SourcePath cannot be empty (set via --source flag or SourcePath in config)")
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = DefaultOutputPath
	}
	if !models.ValidCategory(cfg.DefaultCategory) {
		log.Warnf("Invalid DefaultCategory '%s' from config, using '%s'", cfg.DefaultCategory, DefaultCategory)
		cfg.DefaultCategory = DefaultCategory
	}
	if len(cfg.Weights) == 0 {
		cfg.Weights = DefaultWeights()
	}
	if len(cfg.CategoryKeywords) == 0 {
		cfg.CategoryKeywords = DefaultCategoryKeywords()
	}
	if len(cfg.Metadata.Extensions) == 0 {
		cfg.Metadata.Extensions = DefaultFontExtensions()
	}
	if cfg.Archive.Path != "" && !filepath.IsAbs(cfg.Archive.Path) {
		cfg.Archive.Path = filepath.Join(cfg.OutputPath, cfg.Archive.Path)
	}
	if cfg.Search.IndexPath != "" && !filepath.IsAbs(cfg.Search.IndexPath) {
		cfg.Search.IndexPath = filepath.Join(cfg.OutputPath, cfg.Search.IndexPath)
	}
	return nil
}

// Defaults returns a fully populated default configuration, the same
// values Viper would produce with no config file and no flags.
func Defaults() models.Config {
	return models.Config{
		SourcePath:      DefaultSourcePath,
		OutputPath:      DefaultOutputPath,
		BaseURL:         DefaultBaseURL,
		DefaultCategory: DefaultCategory,
		LogLevel:        DefaultLogLevel,
		LogFormat:       DefaultLogFormat,
		Metadata: models.MetadataConfig{
			Extensions: DefaultFontExtensions(),
		},
		Preview: models.PreviewConfig{
			FontSize:   DefaultPreviewFontSize,
			Width:      DefaultPreviewWidth,
			Height:     DefaultPreviewHeight,
			MaxTextLen: DefaultPreviewMaxTextLen,
		},
		Optimize: models.OptimizeConfig{
			PopularLimit:  DefaultPopularLimit,
			SizeTolerance: DefaultSizeTolerance,
		},
		Changelog: models.ChangelogConfig{
			TimeoutSec: DefaultChangelogTimeoutSec,
		},
		Archive: models.ArchiveConfig{Path: DefaultArchivePath},
		Search:  models.SearchConfig{IndexPath: DefaultSearchIndexPath},
		Torrent: models.TorrentConfig{
			OutputDir: DefaultTorrentOutputDir,
		},
		Weights:          DefaultWeights(),
		CategoryKeywords: DefaultCategoryKeywords(),
	}
}

// WriteDefault writes the default configuration to path as TOML.
// Used by 'fontdb config init' to bootstrap a config file.
func WriteDefault(path string, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("config file %s already exists (use --force to replace)", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config file %s: %w", path, err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	enc.Indent = ""
	if err := enc.Encode(Defaults()); err != nil {
		return fmt.Errorf("encoding default config: %w", err)
	}
	log.Infof("Wrote default configuration to %s", path)
	return nil
}
