package helpers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"

	"go-fontdb-pipeline/internal/models"
)

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9 ._:-]`)
	slugSpaces       = regexp.MustCompile(`\s+`)
)

// ConvertToSlug converts a family or artifact name into a filesystem
// friendly slug: lowercase, spaces to underscores, colons to dashes,
// other punctuation dropped.
func ConvertToSlug(name string) string {
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, ":", "-")
	slug = slugInvalidChars.ReplaceAllString(slug, "")
	slug = slugSpaces.ReplaceAllString(slug, "_")
	slug = strings.ReplaceAll(slug, "_-", "-")
	slug = strings.ReplaceAll(slug, "-_", "-")
	return strings.Trim(slug, "_-")
}

// BytesToSize renders a byte count in human readable form.
func BytesToSize(n uint64) string {
	const unit = 1024
	if n == 0 {
		return "0B"
	}
	suffixes := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(n)
	i := 0
	for size >= unit && i < len(suffixes)-1 {
		size /= unit
		i++
	}
	return fmt.Sprintf("%.2f%s", size, suffixes[i])
}

// HashBytes computes the sha256 and blake3 digests of data.
func HashBytes(data []byte) models.Hashes {
	sha := sha256.Sum256(data)
	b3 := blake3.Sum256(data)
	return models.Hashes{
		SHA256: hex.EncodeToString(sha[:]),
		BLAKE3: hex.EncodeToString(b3[:]),
	}
}

// HashFile computes the content digests of the file at path.
func HashFile(path string) (models.Hashes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Hashes{}, fmt.Errorf("reading %s for hashing: %w", path, err)
	}
	return HashBytes(data), nil
}

// CheckHash reports whether the file at path matches the expected
// digests. Empty fields in expected are skipped; at least one populated
// field must match for the check to pass.
func CheckHash(path string, expected models.Hashes) bool {
	actual, err := HashFile(path)
	if err != nil {
		log.WithError(err).Warnf("Could not hash file %s", path)
		return false
	}
	checked := false
	if expected.SHA256 != "" {
		if !strings.EqualFold(expected.SHA256, actual.SHA256) {
			return false
		}
		checked = true
	}
	if expected.BLAKE3 != "" {
		if !strings.EqualFold(expected.BLAKE3, actual.BLAKE3) {
			return false
		}
		checked = true
	}
	return checked
}

// WriteJSONFile marshals v to path. Intermediate artifacts are written
// indented for inspection; distribution artifacts compact.
func WriteJSONFile(path string, v interface{}, indent bool) error {
	var (
		data []byte
		err  error
	)
	if indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ReadJSONFile unmarshals the JSON file at path into v.
func ReadJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
