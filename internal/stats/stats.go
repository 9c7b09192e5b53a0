// Package stats derives the summary report published as stats.json.
// Everything here is recomputed from the database on each run; nothing
// is accumulated across runs.
package stats

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"go-fontdb-pipeline/internal/extractor"
	"go-fontdb-pipeline/internal/helpers"
	"go-fontdb-pipeline/internal/models"
)

// Basic counts the database's primary dimensions.
type Basic struct {
	TotalFamilies      int            `json:"total_families"`
	TotalVariants      int            `json:"total_variants"`
	AverageVariants    float64        `json:"average_variants_per_family"`
	FamiliesByCategory map[string]int `json:"families_by_category"`
}

// FileSizes summarises the variant file sizes still recorded after
// optimization, plus the family-level averages.
type FileSizes struct {
	TotalBytes     int64  `json:"total_bytes"`
	TotalReadable  string `json:"total_readable"`
	LargestFamily  string `json:"largest_family,omitempty"`
	LargestBytes   int64  `json:"largest_bytes,omitempty"`
	SmallestFamily string `json:"smallest_family,omitempty"`
	SmallestBytes  int64  `json:"smallest_bytes,omitempty"`
}

// Previews summarises preview coverage.
type Previews struct {
	WithPreview    int     `json:"with_preview"`
	WithoutPreview int     `json:"without_preview"`
	CoveragePct    float64 `json:"coverage_pct"`
	CompressedSize int     `json:"compressed_size"`
	AverageSize    float64 `json:"average_size"`
}

// Quality carries the counters a release manager watches between runs.
type Quality struct {
	ScannedFiles      int `json:"scanned_files"`
	ProcessedFiles    int `json:"processed_files"`
	FailedFiles       int `json:"failed_files"`
	DuplicateVariants int `json:"duplicate_variants"`
	MissingPreviews   int `json:"missing_previews"`
	MissingLicenses   int `json:"missing_licenses"`
}

// DatabaseInfo echoes the database's own metadata into the report.
type DatabaseInfo struct {
	Version   string `json:"version"`
	Updated   string `json:"updated"`
	Optimized bool   `json:"optimized"`
}

// Stats is the full report written to stats.json.
type Stats struct {
	Basic       Basic                 `json:"basic"`
	FileSizes   FileSizes             `json:"file_sizes"`
	Previews    Previews              `json:"previews"`
	Licenses    map[string]int        `json:"licenses"`
	Popular     []models.PopularEntry `json:"popular"`
	Quality     Quality               `json:"quality"`
	Database    DatabaseInfo          `json:"database"`
	GeneratedAt string                `json:"generated_at"`
}

// Collector computes a Stats report for one artifact directory.
type Collector struct {
	// PopularTop bounds the popular excerpt embedded in the report.
	PopularTop int

	// Now is the report clock, injectable for tests.
	Now func() time.Time
}

// New builds a Collector from the loaded configuration.
func New(cfg models.Config) *Collector {
	top := cfg.Optimize.PopularLimit
	if top > 10 {
		top = 10
	}
	return &Collector{PopularTop: top, Now: time.Now}
}

// Collect computes the report for db. The extraction report is read
// from dir when present; its absence zeroes the pipeline counters
// rather than failing the stage.
func (c *Collector) Collect(db *models.Database, dir string) *Stats {
	s := &Stats{
		Licenses: map[string]int{},
		Database: DatabaseInfo{
			Version:   db.Version,
			Updated:   db.Updated,
			Optimized: db.Optimized,
		},
		GeneratedAt: c.Now().UTC().Format(time.RFC3339),
	}

	s.Basic.FamiliesByCategory = map[string]int{}
	for _, cat := range models.Categories {
		s.Basic.FamiliesByCategory[cat] = 0
	}

	var popular []models.PopularEntry
	for _, name := range db.FamilyNames() {
		family := db.Fonts[name]

		s.Basic.TotalFamilies++
		s.Basic.TotalVariants += len(family.Variants)
		s.Basic.FamiliesByCategory[family.Category]++

		familyBytes := familySize(family)
		s.FileSizes.TotalBytes += familyBytes
		if familyBytes > 0 {
			if s.FileSizes.LargestFamily == "" || familyBytes > s.FileSizes.LargestBytes {
				s.FileSizes.LargestFamily = name
				s.FileSizes.LargestBytes = familyBytes
			}
			if s.FileSizes.SmallestFamily == "" || familyBytes < s.FileSizes.SmallestBytes {
				s.FileSizes.SmallestFamily = name
				s.FileSizes.SmallestBytes = familyBytes
			}
		}

		if family.Preview != nil {
			s.Previews.WithPreview++
			s.Previews.CompressedSize += family.Preview.CompressedSize
		} else {
			s.Previews.WithoutPreview++
			s.Quality.MissingPreviews++
		}

		if family.License.Type == "" {
			s.Quality.MissingLicenses++
		} else {
			s.Licenses[family.License.Type]++
		}

		popular = append(popular, models.PopularEntry{Family: name, Variants: len(family.Variants)})
	}

	if s.Basic.TotalFamilies > 0 {
		s.Basic.AverageVariants = float64(s.Basic.TotalVariants) / float64(s.Basic.TotalFamilies)
		s.Previews.CoveragePct = 100 * float64(s.Previews.WithPreview) / float64(s.Basic.TotalFamilies)
	}
	if s.Previews.WithPreview > 0 {
		s.Previews.AverageSize = float64(s.Previews.CompressedSize) / float64(s.Previews.WithPreview)
	}
	s.FileSizes.TotalReadable = helpers.BytesToSize(uint64(s.FileSizes.TotalBytes))

	sortPopular(popular)
	if len(popular) > c.PopularTop {
		popular = popular[:c.PopularTop]
	}
	s.Popular = popular

	c.mergeExtractionReport(dir, s)
	return s
}

// Write computes the report and writes stats.json into dir.
func (c *Collector) Write(db *models.Database, dir string) (*Stats, error) {
	s := c.Collect(db, dir)
	path := filepath.Join(dir, models.StatsFile)
	if err := helpers.WriteJSONFile(path, s, true); err != nil {
		return nil, err
	}
	log.Infof("Wrote statistics for %d families (%d variants) to %s",
		s.Basic.TotalFamilies, s.Basic.TotalVariants, path)
	return s, nil
}

func familySize(family *models.FontFamily) int64 {
	if family.AvgFileSize > 0 {
		return family.AvgFileSize * int64(len(family.Variants))
	}
	var total int64
	for _, v := range family.Variants {
		total += v.FileSize
	}
	return total
}

func sortPopular(entries []models.PopularEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Variants != entries[j].Variants {
			return entries[i].Variants > entries[j].Variants
		}
		return entries[i].Family < entries[j].Family
	})
}

// mergeExtractionReport folds the metadata stage's counters into the
// quality section when the report file is available.
func (c *Collector) mergeExtractionReport(dir string, s *Stats) {
	path := filepath.Join(dir, models.ExtractionReportFile)
	if _, err := os.Stat(path); err != nil {
		log.Debugf("No extraction report at %s, quality counters limited to database-derived values", path)
		return
	}
	var report extractor.Report
	if err := helpers.ReadJSONFile(path, &report); err != nil {
		log.WithError(err).Warnf("Could not read extraction report")
		return
	}
	s.Quality.ScannedFiles = report.ScannedFiles
	s.Quality.ProcessedFiles = report.ProcessedFiles
	s.Quality.FailedFiles = report.FailedFiles
	s.Quality.DuplicateVariants = report.DuplicateVariants
}

// Summary renders a short human readable digest for log output.
func (s *Stats) Summary() string {
	return fmt.Sprintf("%d families, %d variants, %.0f%% preview coverage, %s of font data",
		s.Basic.TotalFamilies, s.Basic.TotalVariants, s.Previews.CoveragePct, s.FileSizes.TotalReadable)
}
