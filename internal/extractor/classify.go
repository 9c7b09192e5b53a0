package extractor

import (
	"path/filepath"
	"strings"

	"go-fontdb-pipeline/internal/models"
)

// Classifier assigns each family to exactly one category from the fixed
// enumeration. It is constructed once from config and never mutated, so
// classification is total and independent of processing order.
type Classifier struct {
	defaultCategory string
	keywords        map[string][]string
}

// NewClassifier builds a classifier from the configured default category
// and keyword table.
func NewClassifier(defaultCategory string, keywords map[string][]string) *Classifier {
	if !models.ValidCategory(defaultCategory) {
		defaultCategory = models.CategorySansSerif
	}
	return &Classifier{
		defaultCategory: defaultCategory,
		keywords:        keywords,
	}
}

// scanOrder fixes the category precedence for keyword matching. A name
// matching keywords of two categories always resolves to the earlier one.
var scanOrder = []string{
	models.CategorySerif,
	models.CategoryDisplay,
	models.CategoryHandwriting,
	models.CategoryMonospace,
}

// Classify determines the category from the font file's path relative to
// the corpus root, e.g. "ofl/robotomono/RobotoMono-Regular.ttf". The
// family directory name and file name are scanned against the keyword
// table; unmatched families get the default category.
func (c *Classifier) Classify(relPath string) string {
	parts := strings.Split(filepath.ToSlash(relPath), "/")

	var dirName string
	if len(parts) >= 2 {
		dirName = parts[len(parts)-2]
	}
	fileName := strings.TrimSuffix(parts[len(parts)-1], filepath.Ext(parts[len(parts)-1]))
	haystack := strings.ToLower(dirName + " " + fileName)

	for _, category := range scanOrder {
		for _, keyword := range c.keywords[category] {
			if strings.Contains(haystack, keyword) {
				return category
			}
		}
	}
	return c.defaultCategory
}
