// Package preview renders compact SVG previews of each font family by
// extracting glyph outlines from one representative variant.
package preview

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"go-fontdb-pipeline/internal/helpers"
	"go-fontdb-pipeline/internal/models"
)

// Failure records one family whose preview could not be generated.
type Failure struct {
	Family string `json:"family"`
	Reason string `json:"reason"`
}

// Result summarises a preview generation run. Families that fail are a
// quality metric, never a fatal error: they are emitted without a
// preview field.
type Result struct {
	Generated           int       `json:"generated_previews"`
	Failed              int       `json:"failed_previews"`
	TotalCompressedSize int       `json:"total_compressed_size"`
	Failures            []Failure `json:"failures,omitempty"`
}

// Generator renders previews for every family in a database.
type Generator struct {
	SourcePath string
	BaseURL    string
	FontSize   int
	Width      int
	Height     int
	MaxTextLen int

	// OnProgress, when set, is invoked after each family.
	OnProgress func(done, total int)
}

// New builds a Generator from the loaded configuration.
func New(cfg models.Config) *Generator {
	return &Generator{
		SourcePath: cfg.SourcePath,
		BaseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		FontSize:   cfg.Preview.FontSize,
		Width:      cfg.Preview.Width,
		Height:     cfg.Preview.Height,
		MaxTextLen: cfg.Preview.MaxTextLen,
	}
}

// Run attaches previews to the families of db, in place. Families are
// processed in name order so repeated runs touch files identically. The
// scratch directory used for uncompressed SVGs is removed before Run
// returns, whether or not every family succeeded.
func (g *Generator) Run(db *models.Database) (*Result, error) {
	workDir, err := os.MkdirTemp("", "fontdb-previews-")
	if err != nil {
		return nil, fmt.Errorf("creating preview scratch directory: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			log.WithError(rmErr).Warnf("Could not remove preview scratch directory %s", workDir)
		}
	}()

	result := &Result{}
	names := db.FamilyNames()
	for i, name := range names {
		family := db.Fonts[name]
		svg, text, genErr := g.renderFamily(name, family)
		if genErr != nil {
			family.Preview = nil
			result.Failed++
			result.Failures = append(result.Failures, Failure{Family: name, Reason: genErr.Error()})
			log.WithError(genErr).Warnf("No preview for family %q", name)
			g.progress(i+1, len(names))
			continue
		}

		// Scratch copy for inspection while the stage runs; the
		// database stores only the compressed blob.
		scratch := filepath.Join(workDir, helpers.ConvertToSlug(name)+".svg")
		if writeErr := os.WriteFile(scratch, []byte(svg), 0o644); writeErr != nil {
			log.WithError(writeErr).Debugf("Could not write scratch SVG for %q", name)
		}

		compressed, compErr := CompressSVG(svg)
		if compErr != nil {
			family.Preview = nil
			result.Failed++
			result.Failures = append(result.Failures, Failure{Family: name, Reason: compErr.Error()})
			g.progress(i+1, len(names))
			continue
		}

		family.Preview = &models.Preview{
			SVGCompressed:  compressed,
			CompressedSize: len(compressed),
			PreviewText:    text,
		}
		result.Generated++
		result.TotalCompressedSize += len(compressed)
		g.progress(i+1, len(names))
	}

	stats := &models.PreviewStats{
		TotalPreviews:       result.Generated,
		TotalCompressedSize: result.TotalCompressedSize,
	}
	if result.Generated > 0 {
		stats.AverageSize = float64(result.TotalCompressedSize) / float64(result.Generated)
	}
	db.PreviewStats = stats

	log.Infof("Generated %d previews (%d failed), %s compressed",
		result.Generated, result.Failed, helpers.BytesToSize(uint64(result.TotalCompressedSize)))
	return result, nil
}

func (g *Generator) progress(done, total int) {
	if g.OnProgress != nil {
		g.OnProgress(done, total)
	}
}

// renderFamily produces the uncompressed SVG preview for one family,
// using the family name itself as sample text.
func (g *Generator) renderFamily(name string, family *models.FontFamily) (svg, text string, err error) {
	variant := representativeVariant(family)
	if variant == nil {
		return "", "", fmt.Errorf("family has no variants")
	}

	fontPath, err := g.localFontPath(variant, family)
	if err != nil {
		return "", "", err
	}

	data, err := os.ReadFile(fontPath)
	if err != nil {
		return "", "", fmt.Errorf("reading font file: %w", err)
	}
	fnt, err := sfnt.Parse(data)
	if err != nil {
		return "", "", fmt.Errorf("parsing font file: %w", err)
	}

	text = name
	if len(text) > g.MaxTextLen {
		text = text[:g.MaxTextLen]
	}

	svg, err = g.renderText(fnt, text)
	if err != nil {
		return "", "", err
	}
	return svg, text, nil
}

// representativeVariant prefers the regular face and falls back to the
// first variant.
func representativeVariant(family *models.FontFamily) *models.Variant {
	for i := range family.Variants {
		v := &family.Variants[i]
		if v.Weight == 400 && v.Style == models.StyleNormal {
			return v
		}
	}
	if len(family.Variants) > 0 {
		return &family.Variants[0]
	}
	return nil
}

// localFontPath maps a variant's download URL back to its path in the
// local corpus checkout.
func (g *Generator) localFontPath(variant *models.Variant, family *models.FontFamily) (string, error) {
	url := variant.DownloadURL
	if url == "" && variant.Filename != "" {
		url = family.BaseURL + variant.Filename
	}
	if url == "" {
		return "", fmt.Errorf("variant has no download URL")
	}
	rel := strings.TrimPrefix(url, g.BaseURL+"/")
	if rel == url {
		return "", fmt.Errorf("download URL %s is outside the configured base URL", url)
	}
	path := filepath.Join(g.SourcePath, filepath.FromSlash(rel))
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("font file missing from source checkout: %w", err)
	}
	return path, nil
}

// renderText extracts the outlines for each rune of text and assembles
// the SVG document. Runes the font cannot map advance the pen by a fixed
// fraction of the font size, like a narrow space.
func (g *Generator) renderText(fnt *sfnt.Font, text string) (string, error) {
	var buf sfnt.Buffer
	ppem := fixed.I(g.FontSize)
	baseline := 0.8 * float64(g.Height)

	var paths []string
	x := 0.0
	for _, r := range text {
		gi, err := fnt.GlyphIndex(&buf, r)
		if err != nil || gi == 0 {
			x += 0.3 * float64(g.FontSize)
			continue
		}

		segments, err := fnt.LoadGlyph(&buf, gi, ppem, nil)
		if err != nil {
			x += 0.3 * float64(g.FontSize)
			continue
		}
		if d := segmentsPath(segments, x, baseline); d != "" {
			paths = append(paths, d)
		}

		advance, err := fnt.GlyphAdvance(&buf, gi, ppem, font.HintingNone)
		if err != nil {
			advance = fixed.I(g.FontSize / 2)
		}
		x += fixedToFloat(advance)
	}

	if len(paths) == 0 {
		return "", fmt.Errorf("no drawable glyphs for preview text %q", text)
	}

	width := x
	if max := float64(g.Width); width > max {
		width = max
	}
	return buildSVG(paths, width, float64(g.Height)), nil
}
