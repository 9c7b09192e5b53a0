package search

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-fontdb-pipeline/internal/models"
)

func testDatabase() *models.Database {
	return &models.Database{
		Version:       "2025.01.15",
		Updated:       "2025-01-15T12:00:00Z",
		TotalFamilies: 3,
		Fonts: map[string]*models.FontFamily{
			"Roboto Mono": {
				Category: models.CategoryMonospace,
				License:  models.License{Type: "Apache-2.0"},
				Variants: []models.Variant{{Weight: 400, Style: "normal", DownloadURL: "u"}},
			},
			"Lora": {
				Category: models.CategorySerif,
				License:  models.License{Type: "OFL"},
				Variants: []models.Variant{{Weight: 400, Style: "normal", DownloadURL: "u"}},
				Preview:  &models.Preview{SVGCompressed: "blob", CompressedSize: 4},
			},
			"Caveat": {
				Category: models.CategoryHandwriting,
				License:  models.License{Type: "OFL"},
				Variants: []models.Variant{{Weight: 400, Style: "normal", DownloadURL: "u"}},
			},
		},
	}
}

func testIndex(t *testing.T) *Index {
	t.Helper()
	s, err := Rebuild(filepath.Join(t.TempDir(), "fontdb.bleve"), testDatabase())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRebuildIndexesAllFamilies(t *testing.T) {
	s := testIndex(t)
	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestQueryByName(t *testing.T) {
	s := testIndex(t)

	hits, err := s.Query("roboto", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Roboto Mono", hits[0].Name)
	assert.Equal(t, models.CategoryMonospace, hits[0].Category)
}

func TestQueryByField(t *testing.T) {
	s := testIndex(t)

	hits, err := s.Query("category:serif", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Lora", hits[0].Name)

	hits, err = s.Query("license:OFL", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestRebuildDropsStaleDocuments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fontdb.bleve")
	s, err := Rebuild(path, testDatabase())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	smaller := testDatabase()
	delete(smaller.Fonts, "Caveat")
	smaller.TotalFamilies = 2

	s, err = Rebuild(path, smaller)
	require.NoError(t, err)
	defer s.Close()

	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestQueryLimit(t *testing.T) {
	s := testIndex(t)
	hits, err := s.Query("license:OFL", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}
