package changelog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-fontdb-pipeline/internal/helpers"
	"go-fontdb-pipeline/internal/models"
)

func family(category string, variants ...models.Variant) *models.FontFamily {
	return &models.FontFamily{
		Category: category,
		License:  models.License{Type: "OFL"},
		Variants: variants,
	}
}

func database(version string, fonts map[string]*models.FontFamily) *models.Database {
	return &models.Database{
		Version:       version,
		Updated:       version + "T00:00:00Z",
		TotalFamilies: len(fonts),
		Fonts:         fonts,
	}
}

func testGenerator() *Generator {
	return &Generator{
		Client: &http.Client{Timeout: 5 * time.Second},
		Now: func() time.Time {
			return time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
		},
	}
}

func TestCompareFirstRelease(t *testing.T) {
	current := database("2025.01.15", map[string]*models.FontFamily{
		"Alpha": family(models.CategorySerif, models.Variant{Weight: 400, Style: "normal"}),
	})

	diff := Compare(nil, current)
	assert.True(t, diff.FirstRelease)
	assert.Equal(t, []string{"Alpha"}, diff.Added)
	assert.False(t, diff.Empty(), "a first release is never an empty diff")
}

func TestCompareAddedRemovedChanged(t *testing.T) {
	previous := database("2025.01.01", map[string]*models.FontFamily{
		"Stays": family(models.CategorySerif, models.Variant{Weight: 400, Style: "normal"}),
		"Goes":  family(models.CategorySerif, models.Variant{Weight: 400, Style: "normal"}),
		"Grows": family(models.CategorySerif, models.Variant{Weight: 400, Style: "normal"}),
		"Recat": family(models.CategorySerif, models.Variant{Weight: 400, Style: "normal"}),
	})
	current := database("2025.01.15", map[string]*models.FontFamily{
		"Stays": family(models.CategorySerif, models.Variant{Weight: 400, Style: "normal"}),
		"Comes": family(models.CategorySansSerif, models.Variant{Weight: 400, Style: "normal"}),
		"Grows": family(models.CategorySerif,
			models.Variant{Weight: 400, Style: "normal"},
			models.Variant{Weight: 700, Style: "normal"}),
		"Recat": family(models.CategoryDisplay, models.Variant{Weight: 400, Style: "normal"}),
	})

	diff := Compare(previous, current)
	assert.Equal(t, "2025.01.01", diff.PreviousVersion)
	assert.Equal(t, "2025.01.15", diff.CurrentVersion)
	assert.Equal(t, []string{"Comes"}, diff.Added)
	assert.Equal(t, []string{"Goes"}, diff.Removed)

	require.Len(t, diff.Changed, 2)
	assert.Equal(t, "Grows", diff.Changed[0].Family)
	require.Len(t, diff.Changed[0].AddedVariants, 1)
	assert.Equal(t, 700, diff.Changed[0].AddedVariants[0].Weight)
	assert.Equal(t, "Recat", diff.Changed[1].Family)
	assert.True(t, diff.Changed[1].CategoryChanged)
}

func TestCompareIgnoresCosmeticFields(t *testing.T) {
	previous := database("2025.01.01", map[string]*models.FontFamily{
		"Same": family(models.CategorySerif, models.Variant{Weight: 400, Style: "normal", FileSize: 1000}),
	})
	current := database("2025.01.15", map[string]*models.FontFamily{
		"Same": family(models.CategorySerif, models.Variant{Weight: 400, Style: "normal", FileSize: 2000}),
	})

	diff := Compare(previous, current)
	assert.True(t, diff.Empty(), "file size churn must not appear in the changelog")
}

func TestLoadPreviousFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "previous.json")
	previous := database("2025.01.01", map[string]*models.FontFamily{
		"Alpha": family(models.CategorySerif, models.Variant{Weight: 400, Style: "normal"}),
	})
	require.NoError(t, helpers.WriteJSONFile(path, previous, false))

	g := testGenerator()
	g.PreviousPath = path
	loaded, err := g.LoadPrevious()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "2025.01.01", loaded.Version)
}

func TestLoadPreviousMissingPathIsFirstRelease(t *testing.T) {
	g := testGenerator()
	g.PreviousPath = filepath.Join(t.TempDir(), "nope.json")

	loaded, err := g.LoadPrevious()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestLoadPreviousFromURL(t *testing.T) {
	previous := database("2025.01.01", map[string]*models.FontFamily{
		"Alpha": family(models.CategorySerif, models.Variant{Weight: 400, Style: "normal"}),
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(previous))
	}))
	defer srv.Close()

	g := testGenerator()
	g.PreviousURL = srv.URL
	loaded, err := g.LoadPrevious()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "2025.01.01", loaded.Version)
}

func TestLoadPreviousURL404IsFirstRelease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	g := testGenerator()
	g.PreviousURL = srv.URL
	loaded, err := g.LoadPrevious()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRunWritesBothArtifacts(t *testing.T) {
	dir := t.TempDir()
	prevPath := filepath.Join(dir, "previous.json")
	previous := database("2025.01.01", map[string]*models.FontFamily{
		"Alpha": family(models.CategorySerif, models.Variant{Weight: 400, Style: "normal"}),
	})
	require.NoError(t, helpers.WriteJSONFile(prevPath, previous, false))

	current := database("2025.01.15", map[string]*models.FontFamily{
		"Alpha": family(models.CategorySerif, models.Variant{Weight: 400, Style: "normal"}),
		"Beta":  family(models.CategorySansSerif, models.Variant{Weight: 400, Style: "normal"}),
	})

	g := testGenerator()
	g.PreviousPath = prevPath
	diff, err := g.Run(current, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"Beta"}, diff.Added)

	full, err := os.ReadFile(filepath.Join(dir, models.ChangelogFile))
	require.NoError(t, err)
	assert.Contains(t, string(full), "## 2025.01.15")
	assert.Contains(t, string(full), "### Added families (1)")
	assert.Contains(t, string(full), "- Beta")

	release, err := os.ReadFile(filepath.Join(dir, models.ReleaseChangelogFile))
	require.NoError(t, err)
	assert.Contains(t, string(release), "Changes since 2025.01.01")
	assert.Contains(t, string(release), "1 families added")
}

func TestRunFirstRelease(t *testing.T) {
	dir := t.TempDir()
	current := database("2025.01.15", map[string]*models.FontFamily{
		"Alpha": family(models.CategorySerif, models.Variant{Weight: 400, Style: "normal"}),
	})

	diff, err := testGenerator().Run(current, dir)
	require.NoError(t, err)
	assert.True(t, diff.FirstRelease)

	full, err := os.ReadFile(filepath.Join(dir, models.ChangelogFile))
	require.NoError(t, err)
	assert.Contains(t, string(full), "Initial release with 1 font families")
}
