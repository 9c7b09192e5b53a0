package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"go-fontdb-pipeline/internal/archive"
	"go-fontdb-pipeline/internal/config"
	"go-fontdb-pipeline/internal/helpers"
	"go-fontdb-pipeline/internal/models"
	"go-fontdb-pipeline/internal/search"
	"go-fontdb-pipeline/internal/validator"
)

// pipelineConfig builds a config rooted in temp directories with a real
// two-variant corpus.
func pipelineConfig(t *testing.T) models.Config {
	t.Helper()
	root := t.TempDir()

	corpus := filepath.Join(root, "corpus")
	for name, data := range map[string][]byte{
		"ofl/go/Go-Regular.ttf": goregular.TTF,
		"ofl/go/Go-Bold.ttf":    gobold.TTF,
	} {
		path := filepath.Join(corpus, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}

	cfg := config.Defaults()
	cfg.SourcePath = corpus
	cfg.OutputPath = filepath.Join(root, "out")
	cfg.Archive.Path = filepath.Join(root, "archive")
	cfg.Search.IndexPath = filepath.Join(root, "fontdb.bleve")
	return cfg
}

func TestRunAllPublishesValidatedArtifacts(t *testing.T) {
	cfg := pipelineConfig(t)

	require.NoError(t, runAll(cfg))

	for _, name := range publishedArtifacts {
		_, err := os.Stat(filepath.Join(cfg.OutputPath, name))
		assert.NoError(t, err, "expected published artifact %s", name)
	}

	// No staging directories survive the run.
	entries, err := os.ReadDir(cfg.OutputPath)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".staging-"),
			"stray staging directory %s", e.Name())
	}

	var report validator.Report
	require.NoError(t, helpers.ReadJSONFile(filepath.Join(cfg.OutputPath, models.ValidationReportFile), &report))
	assert.Equal(t, validator.StatusPassed, report.Status)

	var db models.Database
	require.NoError(t, helpers.ReadJSONFile(filepath.Join(cfg.OutputPath, models.DatabaseFile), &db))
	require.NoError(t, db.Validate())
	require.Contains(t, db.Fonts, "Go")
	assert.True(t, db.Optimized)
	assert.NotNil(t, db.Fonts["Go"].Preview)

	// The release was archived under its version.
	store, err := archive.Open(cfg.Archive.Path)
	require.NoError(t, err)
	defer store.Close()
	assert.True(t, store.Has(db.Version))

	// The search index covers the published families.
	idx, err := search.Open(cfg.Search.IndexPath)
	require.NoError(t, err)
	defer idx.Close()
	hits, err := idx.Query("go", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}

func TestRunAllSecondRunReportsNoChanges(t *testing.T) {
	cfg := pipelineConfig(t)

	require.NoError(t, runAll(cfg))
	require.NoError(t, runAll(cfg))

	release, err := os.ReadFile(filepath.Join(cfg.OutputPath, models.ReleaseChangelogFile))
	require.NoError(t, err)
	assert.Contains(t, string(release), "no content changes")
}

func TestRunAllFailedStageLeavesOutputUntouched(t *testing.T) {
	cfg := pipelineConfig(t)
	require.NoError(t, runAll(cfg))

	published, err := os.ReadFile(filepath.Join(cfg.OutputPath, models.DatabaseFile))
	require.NoError(t, err)

	// Point the pipeline at a missing corpus: the metadata stage fails
	// and nothing in the output directory may change.
	broken := cfg
	broken.SourcePath = filepath.Join(t.TempDir(), "missing")
	require.Error(t, runAll(broken))

	after, err := os.ReadFile(filepath.Join(cfg.OutputPath, models.DatabaseFile))
	require.NoError(t, err)
	assert.Equal(t, published, after)
}
