// Package validator runs the release gate over a directory of emitted
// artifacts. Errors block publication; warnings and info lines are
// recorded in the validation report for later inspection.
package validator

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"go-fontdb-pipeline/internal/helpers"
	"go-fontdb-pipeline/internal/models"
	"go-fontdb-pipeline/internal/preview"
)

// Statuses recorded in the validation report.
const (
	StatusPassed = "passed"
	StatusFailed = "failed"
)

// Report is the outcome of a validation run, written to
// validation-report.json alongside the artifacts it describes.
type Report struct {
	Status      string   `json:"status"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	Info        []string `json:"info"`
	ValidatedAt string   `json:"validated_at"`
}

// Passed reports whether the artifacts may be published.
func (r *Report) Passed() bool {
	return len(r.Errors) == 0
}

// Validator checks a finished artifact directory before release.
type Validator struct {
	Dir string

	// PopularLimit bounds the popular index; entries beyond it are an
	// error because consumers size their caches to this cap.
	PopularLimit int

	// Now is the report clock, injectable for tests.
	Now func() time.Time
}

// New builds a Validator for dir from the loaded configuration.
func New(cfg models.Config, dir string) *Validator {
	return &Validator{
		Dir:          dir,
		PopularLimit: cfg.Optimize.PopularLimit,
		Now:          time.Now,
	}
}

// requiredFiles must all exist for validation to proceed past the
// presence check.
var requiredFiles = []string{
	models.DatabaseFile,
	models.DatabaseGzipFile,
	models.DatabaseOptimizedFile,
	models.FamiliesIndexFile,
	models.CategoriesIndexFile,
	models.PopularIndexFile,
	models.ChecksumsFile,
}

// Run executes every check and writes the validation report. The
// returned report carries the verdict; Run itself fails only when the
// report cannot be produced at all.
func (v *Validator) Run() (*Report, error) {
	report := &Report{
		Errors:   []string{},
		Warnings: []string{},
		Info:     []string{},
	}

	if missing := v.checkPresence(report); !missing {
		db := v.checkDatabase(report)
		if db != nil {
			v.checkFamilies(db, report)
			v.checkIndexes(db, report)
			v.checkPreviews(db, report)
			v.checkGzip(report)
		}
		v.checkChecksums(report)
	}

	if report.Passed() {
		report.Status = StatusPassed
		log.Infof("Validation passed: %d warnings, %d info", len(report.Warnings), len(report.Info))
	} else {
		report.Status = StatusFailed
		for _, e := range report.Errors {
			log.Errorf("Validation error: %s", e)
		}
	}
	for _, w := range report.Warnings {
		log.Warnf("Validation warning: %s", w)
	}
	report.ValidatedAt = v.Now().UTC().Format(time.RFC3339)

	reportPath := filepath.Join(v.Dir, models.ValidationReportFile)
	if err := helpers.WriteJSONFile(reportPath, report, true); err != nil {
		return nil, err
	}
	return report, nil
}

// checkPresence returns true when required files are missing, which
// makes the structural checks pointless.
func (v *Validator) checkPresence(report *Report) bool {
	missing := false
	for _, name := range requiredFiles {
		if _, err := os.Stat(filepath.Join(v.Dir, name)); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("required file %s is missing", name))
			missing = true
		}
	}
	if !missing {
		report.Info = append(report.Info, fmt.Sprintf("all %d required files present", len(requiredFiles)))
	}
	return missing
}

func (v *Validator) checkDatabase(report *Report) *models.Database {
	var db models.Database
	if err := helpers.ReadJSONFile(filepath.Join(v.Dir, models.DatabaseFile), &db); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", models.DatabaseFile, err))
		return nil
	}
	if err := db.Validate(); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", models.DatabaseFile, err))
		return nil
	}
	if !db.Optimized {
		report.Warnings = append(report.Warnings, "database is not marked optimized")
	}
	report.Info = append(report.Info, fmt.Sprintf("database holds %d families, version %s", db.TotalFamilies, db.Version))
	return &db
}

func (v *Validator) checkFamilies(db *models.Database, report *Report) {
	for _, name := range db.FamilyNames() {
		family := db.Fonts[name]
		if !models.ValidCategory(family.Category) {
			report.Errors = append(report.Errors, fmt.Sprintf("family %q: invalid category %q", name, family.Category))
		}
		if len(family.Variants) == 0 {
			report.Errors = append(report.Errors, fmt.Sprintf("family %q: no variants", name))
			continue
		}
		for i, variant := range family.Variants {
			if variant.Weight < 100 || variant.Weight > 900 {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("family %q variant %d: weight %d outside 100-900", name, i, variant.Weight))
			}
			switch variant.Style {
			case models.StyleNormal, models.StyleItalic:
			case models.StyleOblique:
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("family %q variant %d: oblique style", name, i))
			default:
				report.Errors = append(report.Errors,
					fmt.Sprintf("family %q variant %d: unknown style %q", name, i, variant.Style))
			}
			if variant.DownloadURL == "" && !(variant.Filename != "" && family.BaseURL != "") {
				report.Errors = append(report.Errors,
					fmt.Sprintf("family %q variant %d: no download URL and no base_url/filename pair", name, i))
			}
		}
	}
}

func (v *Validator) checkIndexes(db *models.Database, report *Report) {
	var familyIndex models.FamilyIndex
	if err := helpers.ReadJSONFile(filepath.Join(v.Dir, models.FamiliesIndexFile), &familyIndex); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", models.FamiliesIndexFile, err))
	} else {
		if familyIndex.Count != len(familyIndex.Families) {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: count %d does not match %d listed families",
				models.FamiliesIndexFile, familyIndex.Count, len(familyIndex.Families)))
		}
		for _, name := range familyIndex.Families {
			if _, ok := db.Fonts[name]; !ok {
				report.Errors = append(report.Errors,
					fmt.Sprintf("%s: family %q not present in database", models.FamiliesIndexFile, name))
			}
		}
		if len(familyIndex.Families) != len(db.Fonts) {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: lists %d families, database holds %d",
				models.FamiliesIndexFile, len(familyIndex.Families), len(db.Fonts)))
		}
	}

	var categoryIndex models.CategoryIndex
	if err := helpers.ReadJSONFile(filepath.Join(v.Dir, models.CategoriesIndexFile), &categoryIndex); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", models.CategoriesIndexFile, err))
	} else {
		for category, names := range categoryIndex.Categories {
			if !models.ValidCategory(category) {
				report.Errors = append(report.Errors,
					fmt.Sprintf("%s: unknown category %q", models.CategoriesIndexFile, category))
			}
			for _, name := range names {
				family, ok := db.Fonts[name]
				if !ok {
					report.Errors = append(report.Errors,
						fmt.Sprintf("%s: family %q not present in database", models.CategoriesIndexFile, name))
					continue
				}
				if family.Category != category {
					report.Errors = append(report.Errors,
						fmt.Sprintf("%s: family %q filed under %q but database says %q",
							models.CategoriesIndexFile, name, category, family.Category))
				}
			}
		}
	}

	var popularIndex models.PopularIndex
	if err := helpers.ReadJSONFile(filepath.Join(v.Dir, models.PopularIndexFile), &popularIndex); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", models.PopularIndexFile, err))
	} else {
		if len(popularIndex.Popular) > v.PopularLimit {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %d entries exceed the cap of %d",
				models.PopularIndexFile, len(popularIndex.Popular), v.PopularLimit))
		}
		for _, entry := range popularIndex.Popular {
			family, ok := db.Fonts[entry.Family]
			if !ok {
				report.Errors = append(report.Errors,
					fmt.Sprintf("%s: family %q not present in database", models.PopularIndexFile, entry.Family))
				continue
			}
			if entry.Variants != len(family.Variants) {
				report.Errors = append(report.Errors,
					fmt.Sprintf("%s: family %q claims %d variants, database holds %d",
						models.PopularIndexFile, entry.Family, entry.Variants, len(family.Variants)))
			}
		}
	}
}

// checkPreviews decompresses every stored preview blob and checks it
// looks like an SVG document.
func (v *Validator) checkPreviews(db *models.Database, report *Report) {
	checked := 0
	for _, name := range db.FamilyNames() {
		family := db.Fonts[name]
		if family.Preview == nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("family %q has no preview", name))
			continue
		}
		svg, err := preview.DecompressSVG(family.Preview.SVGCompressed)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("family %q: preview blob is corrupt: %v", name, err))
			continue
		}
		if !strings.HasPrefix(svg, "<svg") || !strings.HasSuffix(svg, "</svg>") {
			report.Errors = append(report.Errors, fmt.Sprintf("family %q: preview is not an SVG document", name))
			continue
		}
		if family.Preview.CompressedSize != len(family.Preview.SVGCompressed) {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("family %q: recorded compressed_size %d does not match blob length %d",
					name, family.Preview.CompressedSize, len(family.Preview.SVGCompressed)))
		}
		checked++
	}
	report.Info = append(report.Info, fmt.Sprintf("%d previews decompressed and verified", checked))
}

// checkGzip inflates the gzip artifact and compares it byte for byte
// against the uncompressed database file.
func (v *Validator) checkGzip(report *Report) {
	plain, err := os.ReadFile(filepath.Join(v.Dir, models.DatabaseFile))
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", models.DatabaseFile, err))
		return
	}
	compressed, err := os.ReadFile(filepath.Join(v.Dir, models.DatabaseGzipFile))
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", models.DatabaseGzipFile, err))
		return
	}
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("%s: not a gzip stream: %v", models.DatabaseGzipFile, err))
		return
	}
	defer zr.Close()
	var inflated bytes.Buffer
	if _, err := inflated.ReadFrom(zr); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("%s: decompression failed: %v", models.DatabaseGzipFile, err))
		return
	}
	if !bytes.Equal(plain, inflated.Bytes()) {
		report.Errors = append(report.Errors,
			fmt.Sprintf("%s does not decompress to the bytes of %s", models.DatabaseGzipFile, models.DatabaseFile))
		return
	}
	report.Info = append(report.Info, fmt.Sprintf("%s round-trips to %s", models.DatabaseGzipFile, models.DatabaseFile))
}

// checkChecksums recomputes both digests for every manifest entry.
func (v *Validator) checkChecksums(report *Report) {
	var manifest map[string]models.Hashes
	if err := helpers.ReadJSONFile(filepath.Join(v.Dir, models.ChecksumsFile), &manifest); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", models.ChecksumsFile, err))
		return
	}
	if len(manifest) == 0 {
		report.Errors = append(report.Errors, fmt.Sprintf("%s: manifest is empty", models.ChecksumsFile))
		return
	}
	for name, expected := range manifest {
		if expected.SHA256 == "" || expected.BLAKE3 == "" {
			report.Errors = append(report.Errors,
				fmt.Sprintf("%s: entry for %s is missing a digest", models.ChecksumsFile, name))
			continue
		}
		if !helpers.CheckHash(filepath.Join(v.Dir, name), expected) {
			report.Errors = append(report.Errors, fmt.Sprintf("checksum mismatch for %s", name))
		}
	}
	report.Info = append(report.Info, fmt.Sprintf("%d checksums recomputed", len(manifest)))
}
