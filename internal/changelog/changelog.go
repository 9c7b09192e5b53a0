// Package changelog compares the freshly built database against the
// previously published release and renders the two markdown artifacts:
// the full CHANGELOG.md and the short release-changelog.md used as the
// release body.
package changelog

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"go-fontdb-pipeline/internal/helpers"
	"go-fontdb-pipeline/internal/models"
)

// FamilyChange describes what changed for one family that exists in
// both releases.
type FamilyChange struct {
	Family          string           `json:"family"`
	AddedVariants   []models.Variant `json:"added_variants,omitempty"`
	RemovedVariants []models.Variant `json:"removed_variants,omitempty"`
	CategoryChanged bool             `json:"category_changed,omitempty"`
	LicenseChanged  bool             `json:"license_changed,omitempty"`
}

// Diff is the full comparison between two database releases.
type Diff struct {
	PreviousVersion string         `json:"previous_version"`
	CurrentVersion  string         `json:"current_version"`
	Added           []string       `json:"added"`
	Removed         []string       `json:"removed"`
	Changed         []FamilyChange `json:"changed"`
	FirstRelease    bool           `json:"first_release"`
}

// Empty reports whether nothing changed between the releases.
func (d *Diff) Empty() bool {
	return !d.FirstRelease && len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Generator loads the previous release and renders the changelog files.
type Generator struct {
	PreviousPath string
	PreviousURL  string
	Client       *http.Client

	// Now is the render clock, injectable for tests.
	Now func() time.Time
}

// New builds a Generator from the loaded configuration.
func New(cfg models.Config) *Generator {
	timeout := time.Duration(cfg.Changelog.TimeoutSec) * time.Second
	return &Generator{
		PreviousPath: cfg.Changelog.PreviousPath,
		PreviousURL:  cfg.Changelog.PreviousURL,
		Client:       &http.Client{Timeout: timeout},
		Now:          time.Now,
	}
}

// Run diffs db against the previous release and writes both markdown
// artifacts into dir.
func (g *Generator) Run(db *models.Database, dir string) (*Diff, error) {
	previous, err := g.LoadPrevious()
	if err != nil {
		return nil, err
	}

	diff := Compare(previous, db)
	if err := g.write(dir, diff); err != nil {
		return nil, err
	}
	if diff.FirstRelease {
		log.Info("No previous release found, wrote first-release changelog")
	} else {
		log.Infof("Changelog against %s: %d added, %d removed, %d changed",
			diff.PreviousVersion, len(diff.Added), len(diff.Removed), len(diff.Changed))
	}
	return diff, nil
}

// LoadPrevious fetches the previously published database, preferring a
// local path over the published URL. A missing previous release returns
// (nil, nil): the diff then reports a first release.
func (g *Generator) LoadPrevious() (*models.Database, error) {
	if g.PreviousPath != "" {
		var db models.Database
		if err := helpers.ReadJSONFile(g.PreviousPath, &db); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				log.Debugf("No previous database at %s", g.PreviousPath)
				return nil, nil
			}
			return nil, err
		}
		if err := db.Validate(); err != nil {
			return nil, fmt.Errorf("previous database at %s: %w", g.PreviousPath, err)
		}
		return &db, nil
	}

	if g.PreviousURL == "" {
		return nil, nil
	}

	resp, err := g.Client.Get(g.PreviousURL)
	if err != nil {
		return nil, fmt.Errorf("fetching previous database: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		log.Debugf("Previous database URL %s returned 404", g.PreviousURL)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching previous database: unexpected status %s", resp.Status)
	}

	var db models.Database
	if err := json.NewDecoder(resp.Body).Decode(&db); err != nil {
		return nil, fmt.Errorf("parsing previous database: %w", err)
	}
	if err := db.Validate(); err != nil {
		return nil, fmt.Errorf("previous database from %s: %w", g.PreviousURL, err)
	}
	return &db, nil
}

// Compare diffs two releases. previous may be nil for a first release.
func Compare(previous, current *models.Database) *Diff {
	diff := &Diff{CurrentVersion: current.Version}
	if previous == nil {
		diff.FirstRelease = true
		diff.Added = current.FamilyNames()
		return diff
	}
	diff.PreviousVersion = previous.Version

	for _, name := range current.FamilyNames() {
		prevFamily, existed := previous.Fonts[name]
		if !existed {
			diff.Added = append(diff.Added, name)
			continue
		}
		if change := compareFamily(name, prevFamily, current.Fonts[name]); change != nil {
			diff.Changed = append(diff.Changed, *change)
		}
	}
	for _, name := range previous.FamilyNames() {
		if _, exists := current.Fonts[name]; !exists {
			diff.Removed = append(diff.Removed, name)
		}
	}
	return diff
}

func variantKey(v models.Variant) string {
	return fmt.Sprintf("%d/%s", v.Weight, v.Style)
}

func compareFamily(name string, previous, current *models.FontFamily) *FamilyChange {
	change := &FamilyChange{Family: name}

	prevVariants := map[string]models.Variant{}
	for _, v := range previous.Variants {
		prevVariants[variantKey(v)] = v
	}
	curVariants := map[string]models.Variant{}
	for _, v := range current.Variants {
		curVariants[variantKey(v)] = v
	}

	for _, v := range current.Variants {
		if _, ok := prevVariants[variantKey(v)]; !ok {
			change.AddedVariants = append(change.AddedVariants, v)
		}
	}
	for _, v := range previous.Variants {
		if _, ok := curVariants[variantKey(v)]; !ok {
			change.RemovedVariants = append(change.RemovedVariants, v)
		}
	}
	change.CategoryChanged = previous.Category != current.Category
	change.LicenseChanged = previous.License.Type != current.License.Type

	if len(change.AddedVariants) == 0 && len(change.RemovedVariants) == 0 &&
		!change.CategoryChanged && !change.LicenseChanged {
		return nil
	}
	sort.SliceStable(change.AddedVariants, func(i, j int) bool {
		return variantKey(change.AddedVariants[i]) < variantKey(change.AddedVariants[j])
	})
	sort.SliceStable(change.RemovedVariants, func(i, j int) bool {
		return variantKey(change.RemovedVariants[i]) < variantKey(change.RemovedVariants[j])
	})
	return change
}

// write renders both markdown artifacts.
func (g *Generator) write(dir string, diff *Diff) error {
	full := g.renderFull(diff)
	if err := os.WriteFile(filepath.Join(dir, models.ChangelogFile), []byte(full), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", models.ChangelogFile, err)
	}
	release := g.renderRelease(diff)
	if err := os.WriteFile(filepath.Join(dir, models.ReleaseChangelogFile), []byte(release), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", models.ReleaseChangelogFile, err)
	}
	return nil
}

func (g *Generator) renderFull(diff *Diff) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Font Database Changelog\n\n")
	fmt.Fprintf(&b, "## %s\n\n", diff.CurrentVersion)
	fmt.Fprintf(&b, "Generated %s\n\n", g.Now().UTC().Format("2006-01-02"))

	if diff.FirstRelease {
		fmt.Fprintf(&b, "Initial release with %d font families.\n", len(diff.Added))
		return b.String()
	}
	if diff.Empty() {
		fmt.Fprintf(&b, "No changes since %s.\n", diff.PreviousVersion)
		return b.String()
	}

	if len(diff.Added) > 0 {
		fmt.Fprintf(&b, "### Added families (%d)\n\n", len(diff.Added))
		for _, name := range diff.Added {
			fmt.Fprintf(&b, "- %s\n", name)
		}
		b.WriteString("\n")
	}
	if len(diff.Removed) > 0 {
		fmt.Fprintf(&b, "### Removed families (%d)\n\n", len(diff.Removed))
		for _, name := range diff.Removed {
			fmt.Fprintf(&b, "- %s\n", name)
		}
		b.WriteString("\n")
	}
	if len(diff.Changed) > 0 {
		fmt.Fprintf(&b, "### Updated families (%d)\n\n", len(diff.Changed))
		for _, change := range diff.Changed {
			fmt.Fprintf(&b, "- %s", change.Family)
			var notes []string
			for _, v := range change.AddedVariants {
				notes = append(notes, fmt.Sprintf("new variant %d %s", v.Weight, v.Style))
			}
			for _, v := range change.RemovedVariants {
				notes = append(notes, fmt.Sprintf("removed variant %d %s", v.Weight, v.Style))
			}
			if change.CategoryChanged {
				notes = append(notes, "category changed")
			}
			if change.LicenseChanged {
				notes = append(notes, "license changed")
			}
			fmt.Fprintf(&b, ": %s\n", strings.Join(notes, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (g *Generator) renderRelease(diff *Diff) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Font Database %s\n\n", diff.CurrentVersion)
	if diff.FirstRelease {
		fmt.Fprintf(&b, "Initial release with %d font families.\n", len(diff.Added))
		return b.String()
	}
	if diff.Empty() {
		fmt.Fprintf(&b, "Routine rebuild, no content changes since %s.\n", diff.PreviousVersion)
		return b.String()
	}
	fmt.Fprintf(&b, "Changes since %s:\n\n", diff.PreviousVersion)
	fmt.Fprintf(&b, "- %d families added\n", len(diff.Added))
	fmt.Fprintf(&b, "- %d families removed\n", len(diff.Removed))
	fmt.Fprintf(&b, "- %d families updated\n", len(diff.Changed))
	return b.String()
}
