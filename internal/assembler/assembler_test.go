package assembler

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-fontdb-pipeline/internal/helpers"
	"go-fontdb-pipeline/internal/models"
)

func testOptimizer() *Optimizer {
	return &Optimizer{PopularLimit: 100, SizeTolerance: 0.1}
}

func testDatabase(fonts map[string]*models.FontFamily) *models.Database {
	return &models.Database{
		Version:       "2025.01.15",
		Updated:       "2025-01-15T12:00:00Z",
		TotalFamilies: len(fonts),
		Fonts:         fonts,
	}
}

func variant(weight int, style, url string, size int64) models.Variant {
	return models.Variant{Weight: weight, Style: style, DownloadURL: url, FileSize: size}
}

func TestOptimizePrunesUniformSizes(t *testing.T) {
	db := testDatabase(map[string]*models.FontFamily{
		"TestSans": {
			Category: models.CategorySansSerif,
			Variants: []models.Variant{
				variant(400, "normal", "https://cdn.example/ofl/testsans/TestSans-Regular.ttf", 100000),
				variant(700, "normal", "https://cdn.example/ofl/testsans/TestSans-Bold.ttf", 104000),
			},
		},
	})

	report := testOptimizer().Optimize(db)
	assert.Equal(t, 2, report.PrunedSizeFields)

	family := db.Fonts["TestSans"]
	assert.Equal(t, int64(102000), family.AvgFileSize)
	for _, v := range family.Variants {
		assert.Zero(t, v.FileSize)
	}
}

func TestOptimizeKeepsDivergentSizes(t *testing.T) {
	db := testDatabase(map[string]*models.FontFamily{
		"TestSans": {
			Category: models.CategorySansSerif,
			Variants: []models.Variant{
				variant(400, "normal", "https://cdn.example/ofl/testsans/TestSans-Regular.ttf", 100000),
				variant(700, "normal", "https://cdn.example/ofl/testsans/TestSans-Bold.ttf", 180000),
			},
		},
	})

	report := testOptimizer().Optimize(db)
	assert.Zero(t, report.PrunedSizeFields)

	family := db.Fonts["TestSans"]
	assert.Zero(t, family.AvgFileSize)
	assert.Equal(t, int64(100000), family.Variants[0].FileSize)
	assert.Equal(t, int64(180000), family.Variants[1].FileSize)
}

func TestOptimizeDeduplicatesURLs(t *testing.T) {
	db := testDatabase(map[string]*models.FontFamily{
		"TestSans": {
			Category: models.CategorySansSerif,
			Variants: []models.Variant{
				variant(400, "normal", "https://cdn.example/ofl/testsans/TestSans-Regular.ttf", 100000),
				variant(700, "normal", "https://cdn.example/ofl/testsans/TestSans-Bold.ttf", 104000),
			},
		},
	})

	report := testOptimizer().Optimize(db)
	assert.Equal(t, 2, report.DedupedURLs)

	family := db.Fonts["TestSans"]
	assert.Equal(t, "https://cdn.example/ofl/testsans/", family.BaseURL)
	assert.Equal(t, "TestSans-Regular.ttf", family.Variants[0].Filename)
	assert.Equal(t, "TestSans-Bold.ttf", family.Variants[1].Filename)
	for _, v := range family.Variants {
		assert.Empty(t, v.DownloadURL)
	}
}

func TestOptimizeLeavesMixedBasesAlone(t *testing.T) {
	db := testDatabase(map[string]*models.FontFamily{
		"TestSans": {
			Category: models.CategorySansSerif,
			Variants: []models.Variant{
				variant(400, "normal", "https://cdn.example/ofl/testsans/TestSans-Regular.ttf", 100000),
				variant(700, "normal", "https://mirror.example/ofl/testsans/TestSans-Bold.ttf", 104000),
			},
		},
	})

	report := testOptimizer().Optimize(db)
	assert.Zero(t, report.DedupedURLs)
	assert.Empty(t, db.Fonts["TestSans"].BaseURL)
	assert.NotEmpty(t, db.Fonts["TestSans"].Variants[0].DownloadURL)
}

func TestBuildIndexes(t *testing.T) {
	fonts := map[string]*models.FontFamily{
		"Alpha": {
			Category: models.CategorySerif,
			Variants: []models.Variant{
				variant(400, "normal", "u", 1),
				variant(700, "normal", "u", 1),
			},
		},
		"Beta": {
			Category: models.CategorySansSerif,
			Variants: []models.Variant{
				variant(400, "normal", "u", 1),
				variant(400, "italic", "u", 1),
				variant(700, "normal", "u", 1),
			},
		},
		"Gamma": {
			Category: models.CategorySerif,
			Variants: []models.Variant{variant(400, "normal", "u", 1)},
		},
	}
	db := testDatabase(fonts)

	familyIndex, categoryIndex, popularIndex := testOptimizer().BuildIndexes(db)

	assert.Equal(t, []string{"Alpha", "Beta", "Gamma"}, familyIndex.Families)
	assert.Equal(t, 3, familyIndex.Count)
	assert.Equal(t, db.Version, familyIndex.Version)

	assert.Equal(t, []string{"Alpha", "Gamma"}, categoryIndex.Categories[models.CategorySerif])
	assert.Equal(t, []string{"Beta"}, categoryIndex.Categories[models.CategorySansSerif])

	// Ranked by variant count descending, name ascending on ties.
	require.Len(t, popularIndex.Popular, 3)
	assert.Equal(t, "Beta", popularIndex.Popular[0].Family)
	assert.Equal(t, 3, popularIndex.Popular[0].Variants)
	assert.Equal(t, "Alpha", popularIndex.Popular[1].Family)
	assert.Equal(t, "Gamma", popularIndex.Popular[2].Family)
}

func TestBuildIndexesPopularCap(t *testing.T) {
	fonts := map[string]*models.FontFamily{}
	for i := 0; i < 10; i++ {
		fonts[fmt.Sprintf("Family%02d", i)] = &models.FontFamily{
			Category: models.CategorySansSerif,
			Variants: []models.Variant{variant(400, "normal", "u", 1)},
		}
	}
	db := testDatabase(fonts)

	o := &Optimizer{PopularLimit: 3, SizeTolerance: 0.1}
	_, _, popularIndex := o.BuildIndexes(db)
	assert.Len(t, popularIndex.Popular, 3)
}

func TestCheckRejectsBrokenDatabase(t *testing.T) {
	db := testDatabase(map[string]*models.FontFamily{
		"Broken": {Category: "futuristic"},
	})

	issues := testOptimizer().Check(db)
	require.NotEmpty(t, issues)
	assert.Contains(t, issues[0], "invalid category")

	dir := t.TempDir()
	err := testOptimizer().WriteArtifacts(dir, db)
	assert.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, models.DatabaseFile))
	assert.True(t, os.IsNotExist(statErr), "artifacts must not be written for a broken database")
}

func TestWriteArtifacts(t *testing.T) {
	db := testDatabase(map[string]*models.FontFamily{
		"TestSans": {
			Category: models.CategorySansSerif,
			License:  models.License{Type: "OFL"},
			Variants: []models.Variant{
				variant(400, "normal", "https://cdn.example/ofl/testsans/TestSans-Regular.ttf", 100000),
				variant(700, "normal", "https://cdn.example/ofl/testsans/TestSans-Bold.ttf", 104000),
			},
		},
	})

	o := testOptimizer()
	o.Optimize(db)

	dir := t.TempDir()
	require.NoError(t, o.WriteArtifacts(dir, db))

	// The main database parses back with the same shape.
	var decoded models.Database
	require.NoError(t, helpers.ReadJSONFile(filepath.Join(dir, models.DatabaseFile), &decoded))
	require.NoError(t, decoded.Validate())
	assert.Equal(t, 1, decoded.TotalFamilies)
	assert.True(t, decoded.Optimized)
	require.Contains(t, decoded.Fonts, "TestSans")
	assert.Len(t, decoded.Fonts["TestSans"].Variants, 2)

	// Optimized copy is byte-identical to the main database.
	mainBytes, err := os.ReadFile(filepath.Join(dir, models.DatabaseFile))
	require.NoError(t, err)
	optBytes, err := os.ReadFile(filepath.Join(dir, models.DatabaseOptimizedFile))
	require.NoError(t, err)
	assert.Equal(t, mainBytes, optBytes)

	// The gzip artifact decompresses to exactly the file bytes.
	gzBytes, err := os.ReadFile(filepath.Join(dir, models.DatabaseGzipFile))
	require.NoError(t, err)
	zr, err := gzip.NewReader(bytes.NewReader(gzBytes))
	require.NoError(t, err)
	var inflated bytes.Buffer
	_, err = inflated.ReadFrom(zr)
	require.NoError(t, err)
	require.NoError(t, zr.Close())
	assert.Equal(t, mainBytes, inflated.Bytes())

	var familyIndex models.FamilyIndex
	require.NoError(t, helpers.ReadJSONFile(filepath.Join(dir, models.FamiliesIndexFile), &familyIndex))
	assert.Equal(t, []string{"TestSans"}, familyIndex.Families)
	assert.Equal(t, 1, familyIndex.Count)

	var categoryIndex models.CategoryIndex
	require.NoError(t, helpers.ReadJSONFile(filepath.Join(dir, models.CategoriesIndexFile), &categoryIndex))
	assert.Equal(t, []string{"TestSans"}, categoryIndex.Categories[models.CategorySansSerif])

	var popularIndex models.PopularIndex
	require.NoError(t, helpers.ReadJSONFile(filepath.Join(dir, models.PopularIndexFile), &popularIndex))
	require.Len(t, popularIndex.Popular, 1)
	assert.Equal(t, "TestSans", popularIndex.Popular[0].Family)
	assert.Equal(t, 2, popularIndex.Popular[0].Variants)

	// Every artifact in the manifest verifies against both digests.
	var manifest map[string]models.Hashes
	require.NoError(t, helpers.ReadJSONFile(filepath.Join(dir, models.ChecksumsFile), &manifest))
	assert.Len(t, manifest, 6)
	for name, hashes := range manifest {
		assert.True(t, helpers.CheckHash(filepath.Join(dir, name), hashes),
			"checksum mismatch for %s", name)
	}
}

func TestWriteChecksumsCoversLateArtifacts(t *testing.T) {
	dir := t.TempDir()
	statsJSON, err := json.Marshal(map[string]int{"total": 1})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, models.StatsFile), statsJSON, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, models.ChangelogFile), []byte("# Changelog\n"), 0o644))

	require.NoError(t, WriteChecksums(dir))

	var manifest map[string]models.Hashes
	require.NoError(t, helpers.ReadJSONFile(filepath.Join(dir, models.ChecksumsFile), &manifest))
	assert.Contains(t, manifest, models.StatsFile)
	assert.Contains(t, manifest, models.ChangelogFile)
	assert.NotContains(t, manifest, models.DatabaseFile)
}
