package models

import (
	"fmt"
	"sort"
)

// Valid font categories. Every family in the published database carries
// exactly one of these.
const (
	CategorySerif       = "serif"
	CategorySansSerif   = "sans-serif"
	CategoryDisplay     = "display"
	CategoryHandwriting = "handwriting"
	CategoryMonospace   = "monospace"
)

// Categories lists the fixed category enumeration in canonical order.
var Categories = []string{
	CategorySerif,
	CategorySansSerif,
	CategoryDisplay,
	CategoryHandwriting,
	CategoryMonospace,
}

// ValidCategory reports whether c is one of the fixed categories.
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Variant styles. The upstream corpus occasionally ships oblique faces;
// the validator treats those as warning-grade rather than rejecting them.
const (
	StyleNormal  = "normal"
	StyleItalic  = "italic"
	StyleOblique = "oblique"
)

type (
	// Config holds the application's configuration settings.
	Config struct {
		SourcePath      string          `toml:"SourcePath" json:"SourcePath"`
		OutputPath      string          `toml:"OutputPath" json:"OutputPath"`
		BaseURL         string          `toml:"BaseURL" json:"BaseURL"`
		DefaultCategory string          `toml:"DefaultCategory" json:"DefaultCategory"`
		LogLevel        string          `toml:"LogLevel" json:"LogLevel"`
		LogFormat       string          `toml:"LogFormat" json:"LogFormat"`
		Metadata        MetadataConfig  `toml:"Metadata" json:"Metadata"`
		Preview         PreviewConfig   `toml:"Preview" json:"Preview"`
		Optimize        OptimizeConfig  `toml:"Optimize" json:"Optimize"`
		Changelog       ChangelogConfig `toml:"Changelog" json:"Changelog"`
		Archive         ArchiveConfig   `toml:"Archive" json:"Archive"`
		Search          SearchConfig    `toml:"Search" json:"Search"`
		Torrent         TorrentConfig   `toml:"Torrent" json:"Torrent"`
		// Weights maps lowercase style-name tokens (e.g. "bold") to
		// numeric weights. The longest matching token wins so that
		// "extrabold" is never read as "bold".
		Weights map[string]int `toml:"Weights" json:"Weights"`
		// CategoryKeywords maps a category to the lowercase name
		// fragments that select it during classification.
		CategoryKeywords map[string][]string `toml:"CategoryKeywords" json:"CategoryKeywords"`
	}

	// MetadataConfig holds settings specific to the 'metadata' stage.
	MetadataConfig struct {
		Extensions []string `toml:"Extensions"`
	}

	// PreviewConfig holds settings specific to the 'previews' stage.
	PreviewConfig struct {
		FontSize   int `toml:"FontSize"`
		Width      int `toml:"Width"`
		Height     int `toml:"Height"`
		MaxTextLen int `toml:"MaxTextLen"`
	}

	// OptimizeConfig holds settings specific to the 'optimize' stage.
	OptimizeConfig struct {
		PopularLimit int `toml:"PopularLimit"`
		// SizeTolerance is the relative spread below which per-variant
		// file sizes collapse into a single avg_file_size field.
		SizeTolerance float64 `toml:"SizeTolerance"`
	}

	// ChangelogConfig holds settings specific to the 'changelog' stage.
	ChangelogConfig struct {
		PreviousURL  string `toml:"PreviousURL"`
		PreviousPath string `toml:"PreviousPath"`
		TimeoutSec   int    `toml:"TimeoutSec"`
	}

	// ArchiveConfig holds settings for the version archive store.
	ArchiveConfig struct {
		Path string `toml:"Path"`
	}

	// SearchConfig holds settings for the bleve search index.
	SearchConfig struct {
		IndexPath string `toml:"IndexPath"`
	}

	// TorrentConfig holds settings specific to the 'torrent' command.
	TorrentConfig struct {
		OutputDir   string   `toml:"OutputDir"`
		Trackers    []string `toml:"Trackers"`
		Overwrite   bool     `toml:"Overwrite"`
		MagnetLinks bool     `toml:"MagnetLinks"`
	}
)

// License describes the license a family is distributed under.
type License struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Variant is one weight/style rendering of a family. After URL
// deduplication a variant carries Filename (resolved against the
// family's BaseURL) instead of a full DownloadURL.
type Variant struct {
	Weight      int    `json:"weight"`
	Style       string `json:"style"`
	FileSize    int64  `json:"file_size,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	Filename    string `json:"filename,omitempty"`
}

// Preview is a compressed SVG rendering of sample glyphs. Derived data,
// regenerated wholesale on every pipeline run.
type Preview struct {
	SVGCompressed  string `json:"svg_compressed"`
	CompressedSize int    `json:"compressed_size"`
	PreviewText    string `json:"preview_text"`
}

// FontFamily groups the variants of one named design.
type FontFamily struct {
	Category    string    `json:"category"`
	License     License   `json:"license"`
	Variants    []Variant `json:"variants"`
	Preview     *Preview  `json:"preview,omitempty"`
	AvgFileSize int64     `json:"avg_file_size,omitempty"`
	BaseURL     string    `json:"base_url,omitempty"`
}

// SortVariants orders the family's variants by (weight, style).
func (f *FontFamily) SortVariants() {
	sort.SliceStable(f.Variants, func(i, j int) bool {
		if f.Variants[i].Weight != f.Variants[j].Weight {
			return f.Variants[i].Weight < f.Variants[j].Weight
		}
		return f.Variants[i].Style < f.Variants[j].Style
	})
}

// PreviewStats summarises preview coverage across the database.
type PreviewStats struct {
	TotalPreviews       int     `json:"total_previews"`
	TotalCompressedSize int     `json:"total_compressed_size"`
	AverageSize         float64 `json:"average_size"`
}

// Database is the top-level container written to font-database.json.
type Database struct {
	Version       string                 `json:"version"`
	Updated       string                 `json:"updated"`
	TotalFamilies int                    `json:"total_families"`
	Fonts         map[string]*FontFamily `json:"fonts"`
	Optimized     bool                   `json:"optimized,omitempty"`
	PreviewStats  *PreviewStats          `json:"preview_stats,omitempty"`
}

// FamilyNames returns the family names in sorted order.
func (d *Database) FamilyNames() []string {
	names := make([]string, 0, len(d.Fonts))
	for name := range d.Fonts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate performs the construction-time checks shared by every stage
// that reads the database back from disk, so malformed intermediate data
// is rejected before it can propagate downstream.
func (d *Database) Validate() error {
	if d.Version == "" {
		return fmt.Errorf("database missing version")
	}
	if d.Updated == "" {
		return fmt.Errorf("database missing updated timestamp")
	}
	if d.Fonts == nil {
		return fmt.Errorf("database missing fonts map")
	}
	if d.TotalFamilies != len(d.Fonts) {
		return fmt.Errorf("total_families is %d but fonts map holds %d entries", d.TotalFamilies, len(d.Fonts))
	}
	return nil
}

// FamilyIndex is the name-only projection used for autocomplete.
type FamilyIndex struct {
	Families []string `json:"families"`
	Count    int      `json:"count"`
	Version  string   `json:"version"`
	Updated  string   `json:"updated"`
}

// CategoryIndex groups family names by category.
type CategoryIndex struct {
	Categories map[string][]string `json:"categories"`
	Version    string              `json:"version"`
	Updated    string              `json:"updated"`
}

// PopularEntry is one row of the popularity ranking.
type PopularEntry struct {
	Family   string `json:"family"`
	Variants int    `json:"variants"`
}

// PopularIndex ranks families by variant count, capped at a fixed size.
type PopularIndex struct {
	Popular []PopularEntry `json:"popular"`
	Version string         `json:"version"`
	Updated string         `json:"updated"`
}

// Hashes holds the content digests recorded per artifact in
// checksums.json. Both digests must match on validation.
type Hashes struct {
	SHA256 string `json:"sha256"`
	BLAKE3 string `json:"blake3"`
}

// Output artifact file names. These are part of the consumer contract
// and are never configurable.
const (
	DatabaseFile          = "font-database.json"
	DatabaseGzipFile      = "font-database.json.gz"
	DatabaseOptimizedFile = "font-database-optimized.json"
	FamiliesIndexFile     = "font-families-index.json"
	CategoriesIndexFile   = "font-categories-index.json"
	PopularIndexFile      = "font-popular-index.json"
	StatsFile             = "stats.json"
	ChecksumsFile         = "checksums.json"
	ExtractionReportFile  = "extraction-report.json"
	ValidationReportFile  = "validation-report.json"
	ChangelogFile         = "CHANGELOG.md"
	ReleaseChangelogFile  = "release-changelog.md"
)
