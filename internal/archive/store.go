// Package archive keeps a local history of published database releases
// in a bitcask store, keyed by version. Entries hold the compressed
// database so old releases can be diffed or restored without refetching.
package archive

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"git.mills.io/prologic/bitcask"
	log "github.com/sirupsen/logrus"

	"go-fontdb-pipeline/internal/models"
)

// Entry is one archived release.
type Entry struct {
	Version       string `json:"version"`
	Archived      string `json:"archived"`
	TotalFamilies int    `json:"total_families"`
	// Data is the gzipped JSON encoding of the database.
	Data []byte `json:"data"`
}

// Store wraps the on-disk archive.
type Store struct {
	db *bitcask.Bitcask

	// Now stamps new entries, injectable for tests.
	Now func() time.Time
}

// maxEntrySize bounds a stored release. The default bitcask value limit
// is far below a full database with preview blobs.
const maxEntrySize = 256 << 20

// Open opens or creates the archive at path.
func Open(path string) (*Store, error) {
	db, err := bitcask.Open(path, bitcask.WithMaxValueSize(maxEntrySize))
	if err != nil {
		return nil, fmt.Errorf("opening archive at %s: %w", path, err)
	}
	return &Store{db: db, Now: time.Now}, nil
}

// Close releases the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save archives db under its version, replacing any entry already
// stored for that version.
func (s *Store) Save(db *models.Database) error {
	if err := db.Validate(); err != nil {
		return fmt.Errorf("refusing to archive invalid database: %w", err)
	}

	raw, err := json.Marshal(db)
	if err != nil {
		return fmt.Errorf("encoding database for archive: %w", err)
	}
	var compressed bytes.Buffer
	zw, err := gzip.NewWriterLevel(&compressed, gzip.BestCompression)
	if err != nil {
		return fmt.Errorf("initializing archive compression: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		return fmt.Errorf("compressing database for archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing archive compression: %w", err)
	}

	entry := Entry{
		Version:       db.Version,
		Archived:      s.Now().UTC().Format(time.RFC3339),
		TotalFamilies: db.TotalFamilies,
		Data:          compressed.Bytes(),
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding archive entry: %w", err)
	}
	if err := s.db.Put([]byte(db.Version), value); err != nil {
		return fmt.Errorf("storing archive entry %s: %w", db.Version, err)
	}
	log.Infof("Archived release %s (%d families, %d bytes compressed)",
		db.Version, db.TotalFamilies, len(entry.Data))
	return nil
}

// Load returns the database archived under version.
func (s *Store) Load(version string) (*models.Database, error) {
	entry, err := s.Entry(version)
	if err != nil {
		return nil, err
	}
	zr, err := gzip.NewReader(bytes.NewReader(entry.Data))
	if err != nil {
		return nil, fmt.Errorf("opening archived data for %s: %w", version, err)
	}
	defer zr.Close()
	var raw bytes.Buffer
	if _, err := raw.ReadFrom(zr); err != nil {
		return nil, fmt.Errorf("decompressing archived data for %s: %w", version, err)
	}
	var db models.Database
	if err := json.Unmarshal(raw.Bytes(), &db); err != nil {
		return nil, fmt.Errorf("decoding archived database %s: %w", version, err)
	}
	return &db, nil
}

// Entry returns the archive metadata and raw payload for version.
func (s *Store) Entry(version string) (*Entry, error) {
	value, err := s.db.Get([]byte(version))
	if err != nil {
		if err == bitcask.ErrKeyNotFound {
			return nil, fmt.Errorf("no archived release %s", version)
		}
		return nil, fmt.Errorf("reading archive entry %s: %w", version, err)
	}
	var entry Entry
	if err := json.Unmarshal(value, &entry); err != nil {
		return nil, fmt.Errorf("decoding archive entry %s: %w", version, err)
	}
	return &entry, nil
}

// Has reports whether a release is archived under version.
func (s *Store) Has(version string) bool {
	return s.db.Has([]byte(version))
}

// Versions lists the archived release versions in ascending order.
// Version strings are date-shaped, so lexical order is release order.
func (s *Store) Versions() ([]string, error) {
	var versions []string
	err := s.db.Fold(func(key []byte) error {
		versions = append(versions, string(key))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing archive: %w", err)
	}
	sort.Strings(versions)
	return versions, nil
}

// Latest returns the most recent archived release version, or "" when
// the archive is empty.
func (s *Store) Latest() (string, error) {
	versions, err := s.Versions()
	if err != nil {
		return "", err
	}
	if len(versions) == 0 {
		return "", nil
	}
	return versions[len(versions)-1], nil
}
