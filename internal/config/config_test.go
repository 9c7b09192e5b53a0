package config

import (
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-fontdb-pipeline/internal/models"
)

func TestNormalizeAnchorsRelativePaths(t *testing.T) {
	cfg := Defaults()
	cfg.OutputPath = "/srv/fontdb"

	require.NoError(t, Normalize(&cfg))
	assert.Equal(t, filepath.Join("/srv/fontdb", DefaultArchivePath), cfg.Archive.Path)
	assert.Equal(t, filepath.Join("/srv/fontdb", DefaultSearchIndexPath), cfg.Search.IndexPath)
}

func TestNormalizeKeepsAbsolutePaths(t *testing.T) {
	cfg := Defaults()
	cfg.Archive.Path = "/var/lib/fontdb/archive"

	require.NoError(t, Normalize(&cfg))
	assert.Equal(t, "/var/lib/fontdb/archive", cfg.Archive.Path)
}

func TestNormalizeRejectsEmptySource(t *testing.T) {
	cfg := Defaults()
	cfg.SourcePath = ""
	assert.Error(t, Normalize(&cfg))
}

func TestNormalizeFixesInvalidCategory(t *testing.T) {
	cfg := Defaults()
	cfg.DefaultCategory = "futuristic"

	require.NoError(t, Normalize(&cfg))
	assert.Equal(t, DefaultCategory, cfg.DefaultCategory)
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, WriteDefault(path, false))

	var cfg models.Config
	_, err := toml.DecodeFile(path, &cfg)
	require.NoError(t, err)

	assert.Equal(t, DefaultSourcePath, cfg.SourcePath)
	assert.Equal(t, DefaultPreviewFontSize, cfg.Preview.FontSize)
	assert.Equal(t, DefaultPopularLimit, cfg.Optimize.PopularLimit)
	assert.Equal(t, 700, cfg.Weights["bold"])
	assert.Contains(t, cfg.CategoryKeywords[models.CategoryMonospace], "mono")
}

func TestWriteDefaultRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, WriteDefault(path, false))
	assert.Error(t, WriteDefault(path, false))
	assert.NoError(t, WriteDefault(path, true))
}

func TestDefaultWeightsLongestTokenSemantics(t *testing.T) {
	weights := DefaultWeights()
	assert.Equal(t, 800, weights["extrabold"])
	assert.Equal(t, 700, weights["bold"])
	assert.Equal(t, 600, weights["semibold"])
}
