package archive

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-fontdb-pipeline/internal/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "archive"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	s.Now = func() time.Time {
		return time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	}
	return s
}

func testDatabase(version string) *models.Database {
	return &models.Database{
		Version:       version,
		Updated:       "2025-01-15T12:00:00Z",
		TotalFamilies: 1,
		Fonts: map[string]*models.FontFamily{
			"TestSans": {
				Category: models.CategorySansSerif,
				Variants: []models.Variant{
					{Weight: 400, Style: "normal", DownloadURL: "https://cdn.example/TestSans-Regular.ttf"},
				},
			},
		},
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := testStore(t)
	db := testDatabase("2025.01.15")

	require.NoError(t, s.Save(db))
	assert.True(t, s.Has("2025.01.15"))

	loaded, err := s.Load("2025.01.15")
	require.NoError(t, err)
	assert.Equal(t, db, loaded)

	entry, err := s.Entry("2025.01.15")
	require.NoError(t, err)
	assert.Equal(t, "2025.01.15", entry.Version)
	assert.Equal(t, 1, entry.TotalFamilies)
	assert.Equal(t, "2025-01-15T12:00:00Z", entry.Archived)
}

func TestSaveRejectsInvalidDatabase(t *testing.T) {
	s := testStore(t)
	db := testDatabase("2025.01.15")
	db.TotalFamilies = 99

	assert.Error(t, s.Save(db))
	assert.False(t, s.Has("2025.01.15"))
}

func TestSaveReplacesExistingVersion(t *testing.T) {
	s := testStore(t)
	db := testDatabase("2025.01.15")
	require.NoError(t, s.Save(db))

	db.Fonts["Second"] = &models.FontFamily{
		Category: models.CategorySerif,
		Variants: []models.Variant{{Weight: 400, Style: "normal", DownloadURL: "u"}},
	}
	db.TotalFamilies = 2
	require.NoError(t, s.Save(db))

	loaded, err := s.Load("2025.01.15")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.TotalFamilies)
}

func TestVersionsAndLatest(t *testing.T) {
	s := testStore(t)

	latest, err := s.Latest()
	require.NoError(t, err)
	assert.Empty(t, latest)

	require.NoError(t, s.Save(testDatabase("2025.01.15")))
	require.NoError(t, s.Save(testDatabase("2025.01.01")))
	require.NoError(t, s.Save(testDatabase("2024.12.01")))

	versions, err := s.Versions()
	require.NoError(t, err)
	assert.Equal(t, []string{"2024.12.01", "2025.01.01", "2025.01.15"}, versions)

	latest, err = s.Latest()
	require.NoError(t, err)
	assert.Equal(t, "2025.01.15", latest)
}

func TestLoadUnknownVersion(t *testing.T) {
	s := testStore(t)
	_, err := s.Load("1999.01.01")
	assert.Error(t, err)
}
