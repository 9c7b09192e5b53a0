// Package assembler merges the per-family records into the final
// database object, prunes redundant fields, derives the index views and
// emits the distribution artifacts.
package assembler

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"go-fontdb-pipeline/internal/helpers"
	"go-fontdb-pipeline/internal/models"
	"go-fontdb-pipeline/internal/preview"
)

// Report counts the optimizations applied to a database.
type Report struct {
	PrunedSizeFields     int `json:"pruned_size_fields"`
	DedupedURLs          int `json:"deduped_urls"`
	RecompressedPreviews int `json:"recompressed_previews"`
}

// Optimizer holds the tunables of the optimization pass.
type Optimizer struct {
	PopularLimit  int
	SizeTolerance float64
}

// New builds an Optimizer from the loaded configuration.
func New(cfg models.Config) *Optimizer {
	return &Optimizer{
		PopularLimit:  cfg.Optimize.PopularLimit,
		SizeTolerance: cfg.Optimize.SizeTolerance,
	}
}

// Optimize rewrites db in place: collapses near-uniform variant file
// sizes into avg_file_size, re-compresses oversized preview blobs and
// deduplicates download URLs sharing a family-level base. The family
// set itself is never changed.
func (o *Optimizer) Optimize(db *models.Database) *Report {
	report := &Report{}
	o.pruneFileSizes(db, report)
	o.recompressPreviews(db, report)
	o.dedupeURLs(db, report)

	db.TotalFamilies = len(db.Fonts)
	db.Optimized = true

	log.Infof("Optimization pass: %d size fields pruned, %d URLs deduplicated, %d previews recompressed",
		report.PrunedSizeFields, report.DedupedURLs, report.RecompressedPreviews)
	return report
}

// pruneFileSizes replaces per-variant sizes with a single family average
// when every variant is within the configured tolerance of that average.
func (o *Optimizer) pruneFileSizes(db *models.Database, report *Report) {
	for _, family := range db.Fonts {
		if len(family.Variants) < 2 {
			continue
		}
		var sum int64
		known := 0
		for _, v := range family.Variants {
			if v.FileSize > 0 {
				sum += v.FileSize
				known++
			}
		}
		if known != len(family.Variants) {
			continue
		}
		avg := float64(sum) / float64(known)

		uniform := true
		for _, v := range family.Variants {
			if spread := (float64(v.FileSize) - avg) / avg; spread > o.SizeTolerance || spread < -o.SizeTolerance {
				uniform = false
				break
			}
		}
		if !uniform {
			continue
		}

		family.AvgFileSize = int64(avg)
		for i := range family.Variants {
			family.Variants[i].FileSize = 0
			report.PrunedSizeFields++
		}
	}
}

// recompressPreviews re-encodes each preview blob at maximum compression
// and keeps the smaller encoding.
func (o *Optimizer) recompressPreviews(db *models.Database, report *Report) {
	for name, family := range db.Fonts {
		if family.Preview == nil || family.Preview.SVGCompressed == "" {
			continue
		}
		svg, err := preview.DecompressSVG(family.Preview.SVGCompressed)
		if err != nil {
			log.WithError(err).Warnf("Could not recompress preview for %q", name)
			continue
		}
		reencoded, err := preview.CompressSVG(svg)
		if err != nil {
			log.WithError(err).Warnf("Could not recompress preview for %q", name)
			continue
		}
		if len(reencoded) < len(family.Preview.SVGCompressed) {
			family.Preview.SVGCompressed = reencoded
			family.Preview.CompressedSize = len(reencoded)
			report.RecompressedPreviews++
		}
	}
}

// dedupeURLs moves the shared URL prefix of a family's variants into a
// family-level base_url, leaving only file names on the variants.
func (o *Optimizer) dedupeURLs(db *models.Database, report *Report) {
	for _, family := range db.Fonts {
		if len(family.Variants) < 2 {
			continue
		}
		base := ""
		shared := true
		for _, v := range family.Variants {
			if v.DownloadURL == "" {
				shared = false
				break
			}
			idx := strings.LastIndex(v.DownloadURL, "/")
			if idx < 0 {
				shared = false
				break
			}
			b := v.DownloadURL[:idx+1]
			if base == "" {
				base = b
			} else if base != b {
				shared = false
				break
			}
		}
		if !shared || base == "" {
			continue
		}

		family.BaseURL = base
		for i := range family.Variants {
			url := family.Variants[i].DownloadURL
			family.Variants[i].Filename = url[strings.LastIndex(url, "/")+1:]
			family.Variants[i].DownloadURL = ""
			report.DedupedURLs++
		}
	}
}

// Check verifies the invariants the optimizer must preserve. A non-empty
// result is a stage-level failure: the artifacts must not be written.
func (o *Optimizer) Check(db *models.Database) []string {
	var issues []string
	if db.TotalFamilies != len(db.Fonts) {
		issues = append(issues, fmt.Sprintf("total_families %d does not match fonts map size %d",
			db.TotalFamilies, len(db.Fonts)))
	}
	for _, name := range db.FamilyNames() {
		family := db.Fonts[name]
		if !models.ValidCategory(family.Category) {
			issues = append(issues, fmt.Sprintf("%s: invalid category %q", name, family.Category))
		}
		if len(family.Variants) == 0 {
			issues = append(issues, fmt.Sprintf("%s: no variants", name))
			continue
		}
		for i, v := range family.Variants {
			if v.Weight == 0 {
				issues = append(issues, fmt.Sprintf("%s variant %d: missing weight", name, i))
			}
			if v.Style == "" {
				issues = append(issues, fmt.Sprintf("%s variant %d: missing style", name, i))
			}
			if v.DownloadURL == "" && !(v.Filename != "" && family.BaseURL != "") {
				issues = append(issues, fmt.Sprintf("%s variant %d: missing download information", name, i))
			}
		}
	}
	return issues
}

// BuildIndexes derives the three read-only projections. They are always
// regenerated together with the database and never patched.
func (o *Optimizer) BuildIndexes(db *models.Database) (models.FamilyIndex, models.CategoryIndex, models.PopularIndex) {
	names := db.FamilyNames()

	familyIndex := models.FamilyIndex{
		Families: names,
		Count:    len(names),
		Version:  db.Version,
		Updated:  db.Updated,
	}

	categories := map[string][]string{}
	for _, name := range names {
		cat := db.Fonts[name].Category
		categories[cat] = append(categories[cat], name)
	}
	categoryIndex := models.CategoryIndex{
		Categories: categories,
		Version:    db.Version,
		Updated:    db.Updated,
	}

	popular := make([]models.PopularEntry, 0, len(names))
	for _, name := range names {
		popular = append(popular, models.PopularEntry{
			Family:   name,
			Variants: len(db.Fonts[name].Variants),
		})
	}
	sort.SliceStable(popular, func(i, j int) bool {
		if popular[i].Variants != popular[j].Variants {
			return popular[i].Variants > popular[j].Variants
		}
		return popular[i].Family < popular[j].Family
	})
	if len(popular) > o.PopularLimit {
		popular = popular[:o.PopularLimit]
	}
	popularIndex := models.PopularIndex{
		Popular: popular,
		Version: db.Version,
		Updated: db.Updated,
	}

	return familyIndex, categoryIndex, popularIndex
}

// WriteArtifacts emits the distribution files into dir: the compact
// database, its optimized copy and gzip variant, the three indexes and
// the checksum manifest. The gzip artifact is produced from the exact
// bytes of font-database.json so decompression round-trips identically.
func (o *Optimizer) WriteArtifacts(dir string, db *models.Database) error {
	if issues := o.Check(db); len(issues) > 0 {
		for _, issue := range issues {
			log.Errorf("Optimization check failed: %s", issue)
		}
		return fmt.Errorf("database failed %d optimization checks", len(issues))
	}

	data, err := json.Marshal(db)
	if err != nil {
		return fmt.Errorf("marshaling database: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, models.DatabaseFile), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", models.DatabaseFile, err)
	}
	if err := os.WriteFile(filepath.Join(dir, models.DatabaseOptimizedFile), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", models.DatabaseOptimizedFile, err)
	}
	if err := writeGzip(filepath.Join(dir, models.DatabaseGzipFile), data); err != nil {
		return err
	}

	familyIndex, categoryIndex, popularIndex := o.BuildIndexes(db)
	if err := helpers.WriteJSONFile(filepath.Join(dir, models.FamiliesIndexFile), familyIndex, false); err != nil {
		return err
	}
	if err := helpers.WriteJSONFile(filepath.Join(dir, models.CategoriesIndexFile), categoryIndex, false); err != nil {
		return err
	}
	if err := helpers.WriteJSONFile(filepath.Join(dir, models.PopularIndexFile), popularIndex, false); err != nil {
		return err
	}

	log.Infof("Wrote database artifacts to %s (%s uncompressed)", dir, helpers.BytesToSize(uint64(len(data))))
	return WriteChecksums(dir)
}

func writeGzip(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	zw, err := gzip.NewWriterLevel(f, gzip.BestCompression)
	if err != nil {
		f.Close()
		return fmt.Errorf("initializing gzip writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalizing %s: %w", path, err)
	}
	return f.Close()
}

// checksummedArtifacts lists the files covered by checksums.json, in
// manifest order. The manifest itself and the validation report are
// excluded.
var checksummedArtifacts = []string{
	models.DatabaseFile,
	models.DatabaseGzipFile,
	models.DatabaseOptimizedFile,
	models.FamiliesIndexFile,
	models.CategoriesIndexFile,
	models.PopularIndexFile,
	models.StatsFile,
	models.ExtractionReportFile,
	models.ChangelogFile,
	models.ReleaseChangelogFile,
}

// WriteChecksums regenerates the checksum manifest over every covered
// artifact present in dir. Stages that emit artifacts after the
// optimizer call this again so the manifest always covers the final set.
func WriteChecksums(dir string) error {
	manifest := map[string]models.Hashes{}
	for _, name := range checksummedArtifacts {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		hashes, err := helpers.HashFile(path)
		if err != nil {
			return err
		}
		manifest[name] = hashes
	}
	if err := helpers.WriteJSONFile(filepath.Join(dir, models.ChecksumsFile), manifest, true); err != nil {
		return err
	}
	log.Infof("Wrote checksums for %d artifacts", len(manifest))
	return nil
}
