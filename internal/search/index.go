// Package search maintains a bleve full-text index over the font
// database so families can be found by name, category or license from
// the command line.
package search

import (
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	log "github.com/sirupsen/logrus"

	"go-fontdb-pipeline/internal/models"
)

// FamilyDoc is the indexed projection of one family.
type FamilyDoc struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	License    string `json:"license"`
	Variants   int    `json:"variants"`
	HasPreview bool   `json:"has_preview"`
}

// Hit is one search result row.
type Hit struct {
	Name     string
	Category string
	License  string
	Score    float64
}

// Index wraps the on-disk bleve index.
type Index struct {
	idx bleve.Index
}

// Open opens the index at path, creating it when absent.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, bleve.NewIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("opening search index at %s: %w", path, err)
	}
	return &Index{idx: idx}, nil
}

// Rebuild replaces the index at path with a fresh one built from db.
// Rebuilding from scratch keeps deletions simple: families dropped from
// the database can never linger as stale documents.
func Rebuild(path string, db *models.Database) (*Index, error) {
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("clearing search index at %s: %w", path, err)
	}
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := s.IndexDatabase(db); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the index.
func (s *Index) Close() error {
	return s.idx.Close()
}

// IndexDatabase indexes every family of db in one batch.
func (s *Index) IndexDatabase(db *models.Database) error {
	batch := s.idx.NewBatch()
	for _, name := range db.FamilyNames() {
		family := db.Fonts[name]
		doc := FamilyDoc{
			Name:       name,
			Category:   family.Category,
			License:    family.License.Type,
			Variants:   len(family.Variants),
			HasPreview: family.Preview != nil,
		}
		if err := batch.Index(name, doc); err != nil {
			return fmt.Errorf("indexing family %q: %w", name, err)
		}
	}
	if err := s.idx.Batch(batch); err != nil {
		return fmt.Errorf("writing search batch: %w", err)
	}
	log.Infof("Indexed %d families for search", len(db.Fonts))
	return nil
}

// Count returns the number of indexed families.
func (s *Index) Count() (uint64, error) {
	return s.idx.DocCount()
}

// Query runs a query-string search and returns up to limit hits.
func (s *Index) Query(q string, limit int) ([]Hit, error) {
	query := bleve.NewQueryStringQuery(q)
	req := bleve.NewSearchRequestOptions(query, limit, 0, false)
	req.Fields = []string{"name", "category", "license"}

	res, err := s.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("searching for %q: %w", q, err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{Name: h.ID, Score: h.Score}
		if v, ok := h.Fields["category"].(string); ok {
			hit.Category = v
		}
		if v, ok := h.Fields["license"].(string); ok {
			hit.License = v
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
