// Package extractor walks a local checkout of the upstream font corpus
// and produces one FontFamily record per distinct family name found in
// the binary font files.
package extractor

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font/sfnt"

	"go-fontdb-pipeline/internal/models"
)

// Failure records one font file that could not be processed.
type Failure struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// Report accumulates per-file outcomes of an extraction run. Parse
// failures are data here, not control flow: a broken font file never
// aborts the run.
type Report struct {
	ScannedFiles      int       `json:"scanned_files"`
	ProcessedFiles    int       `json:"processed_files"`
	FailedFiles       int       `json:"failed_files"`
	DuplicateVariants int       `json:"duplicate_variants"`
	TotalFamilies     int       `json:"total_families"`
	Failures          []Failure `json:"failures,omitempty"`
}

// licenseFiles are probed, in order, in each font's directory.
var licenseFiles = []string{"OFL.txt", "LICENSE.txt", "LICENCE.txt", "UFL.txt"}

// fallbackLicenses maps the corpus' top-level license folders to their
// canonical descriptors, used when no license file sits next to a font.
var fallbackLicenses = map[string]models.License{
	"ofl":    {Type: "OFL", URL: "https://scripts.sil.org/OFL"},
	"apache": {Type: "Apache", URL: "https://www.apache.org/licenses/LICENSE-2.0"},
	"ufl":    {Type: "UFL", URL: "https://www.ubuntu.com/legal/terms-and-policies/font-licence"},
}

// Extractor scans a font corpus directory tree. All fields are fixed at
// construction; Run may be called repeatedly and yields identical
// records for identical inputs.
type Extractor struct {
	SourcePath string
	BaseURL    string
	Extensions []string
	Classifier *Classifier
	Weights    WeightTable

	// Now stamps version/updated on the produced database. Overridable
	// for reproducible runs.
	Now func() time.Time

	// OnProgress, when set, is invoked after each scanned file.
	OnProgress func(done, total int)
}

// New builds an Extractor from the loaded configuration.
func New(cfg models.Config) *Extractor {
	return &Extractor{
		SourcePath: cfg.SourcePath,
		BaseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		Extensions: cfg.Metadata.Extensions,
		Classifier: NewClassifier(cfg.DefaultCategory, cfg.CategoryKeywords),
		Weights:    WeightTable(cfg.Weights),
		Now:        time.Now,
	}
}

// faceInfo is the parse result for a single font file.
type faceInfo struct {
	Family    string
	Subfamily string
	Weight    int
	Style     string
	FileSize  int64
}

// Run walks the source tree and assembles the font database. The
// returned error is reserved for structural failures (unreadable source
// directory); individual font files that fail to parse are recorded in
// the report and skipped.
func (e *Extractor) Run() (*models.Database, *Report, error) {
	fontFiles, err := e.collectFontFiles()
	if err != nil {
		return nil, nil, err
	}
	log.Infof("Found %d font files under %s", len(fontFiles), e.SourcePath)

	now := e.Now()
	db := &models.Database{
		Version: now.Format("2006.01.02"),
		Updated: now.UTC().Format(time.RFC3339),
		Fonts:   map[string]*models.FontFamily{},
	}
	report := &Report{ScannedFiles: len(fontFiles)}

	// (weight, style) pairs already seen, per family
	seen := map[string]map[[2]string]struct{}{}

	for i, relPath := range fontFiles {
		fullPath := filepath.Join(e.SourcePath, relPath)

		face, parseErr := e.parseFontFile(fullPath)
		if parseErr != nil {
			report.FailedFiles++
			report.Failures = append(report.Failures, Failure{File: relPath, Reason: parseErr.Error()})
			log.WithError(parseErr).Warnf("Skipping unparseable font file %s", relPath)
			e.progress(i+1, len(fontFiles))
			continue
		}

		family, ok := db.Fonts[face.Family]
		if !ok {
			family = &models.FontFamily{
				Category: e.Classifier.Classify(relPath),
				License:  e.licenseFor(relPath),
			}
			db.Fonts[face.Family] = family
			seen[face.Family] = map[[2]string]struct{}{}
		}

		key := [2]string{fmt.Sprint(face.Weight), face.Style}
		if _, dup := seen[face.Family][key]; dup {
			report.DuplicateVariants++
			log.Debugf("Duplicate variant (%d, %s) for family %q in %s, keeping first occurrence",
				face.Weight, face.Style, face.Family, relPath)
			e.progress(i+1, len(fontFiles))
			continue
		}
		seen[face.Family][key] = struct{}{}

		family.Variants = append(family.Variants, models.Variant{
			Weight:      face.Weight,
			Style:       face.Style,
			FileSize:    face.FileSize,
			DownloadURL: e.BaseURL + "/" + filepath.ToSlash(relPath),
		})
		report.ProcessedFiles++
		e.progress(i+1, len(fontFiles))
	}

	for _, family := range db.Fonts {
		family.SortVariants()
	}
	db.TotalFamilies = len(db.Fonts)
	report.TotalFamilies = len(db.Fonts)

	log.Infof("Extracted %d families from %d files (%d failed, %d duplicate variants)",
		report.TotalFamilies, report.ScannedFiles, report.FailedFiles, report.DuplicateVariants)
	return db, report, nil
}

func (e *Extractor) progress(done, total int) {
	if e.OnProgress != nil {
		e.OnProgress(done, total)
	}
}

// collectFontFiles returns the corpus-relative paths of all font files,
// in lexical walk order.
func (e *Extractor) collectFontFiles() ([]string, error) {
	info, err := os.Stat(e.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("source directory %s: %w", e.SourcePath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path %s is not a directory", e.SourcePath)
	}

	var files []string
	err = filepath.WalkDir(e.SourcePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !e.isFontFile(path) {
			return nil
		}
		rel, relErr := filepath.Rel(e.SourcePath, path)
		if relErr != nil {
			return relErr
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking source directory %s: %w", e.SourcePath, err)
	}
	return files, nil
}

func (e *Extractor) isFontFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range e.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// parseFontFile opens one binary font file and extracts its identifying
// metadata.
func (e *Extractor) parseFontFile(path string) (*faceInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading font file: %w", err)
	}

	font, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing font file: %w", err)
	}

	var buf sfnt.Buffer
	familyName, err := font.Name(&buf, sfnt.NameIDFamily)
	if err != nil {
		return nil, fmt.Errorf("font has no family name record: %w", err)
	}
	familyName = strings.TrimSpace(familyName)
	if familyName == "" {
		return nil, fmt.Errorf("font has an empty family name")
	}

	// The subfamily record is optional; weight/style inference falls
	// back to the file name alone when it is missing.
	subfamily, err := font.Name(&buf, sfnt.NameIDSubfamily)
	if err != nil {
		subfamily = ""
	}

	fileName := filepath.Base(path)
	return &faceInfo{
		Family:    familyName,
		Subfamily: subfamily,
		Weight:    e.Weights.Infer(subfamily, fileName),
		Style:     InferStyle(subfamily, fileName),
		FileSize:  int64(len(data)),
	}, nil
}

// licenseFor resolves the license descriptor for a font file: a license
// file next to the font wins, then the top-level license folder, then a
// generic open-source marker.
func (e *Extractor) licenseFor(relPath string) models.License {
	fontDir := filepath.Dir(filepath.Join(e.SourcePath, relPath))
	for _, name := range licenseFiles {
		licensePath := filepath.Join(fontDir, name)
		if _, err := os.Stat(licensePath); err == nil {
			rel, relErr := filepath.Rel(e.SourcePath, licensePath)
			if relErr != nil {
				rel = name
			}
			return models.License{
				Type: strings.TrimSuffix(name, filepath.Ext(name)),
				URL:  e.BaseURL + "/" + filepath.ToSlash(rel),
			}
		}
	}

	parts := strings.Split(filepath.ToSlash(relPath), "/")
	if len(parts) > 0 {
		if lic, ok := fallbackLicenses[strings.ToLower(parts[0])]; ok {
			return lic
		}
	}
	return models.License{Type: "Open Source", URL: ""}
}
