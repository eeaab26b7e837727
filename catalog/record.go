package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/c360/catalogmatch/errors"
)

// ManifestFile is the conventional manifest name inside a dataset directory.
const ManifestFile = "manifest.json"

// Record is one product row from an ingestion manifest.
type Record struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Attributes map[string]string `json:"attributes,omitempty"`

	// Image is a reference to the product image, resolved through the
	// run's ImageSource. Empty means the product has no image and is
	// indexed on text only.
	Image string `json:"image,omitempty"`
}

// LoadManifest reads a manifest file and returns its records.
func LoadManifest(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: reading manifest %s: %v", errors.ErrInvalidInput, path, err),
			"catalog", "LoadManifest", "manifest read")
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: manifest %s does not decode: %v", errors.ErrInvalidInput, path, err),
			"catalog", "LoadManifest", "manifest decoding")
	}
	return records, nil
}

// ImageSource resolves a record's image reference to raw bytes.
type ImageSource interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}

// DirSource loads images from files under a root directory.
type DirSource struct {
	root string
}

// NewDirSource creates an image source rooted at dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{root: dir}
}

// Load reads the image file at ref, relative to the root. References that
// escape the root are rejected.
func (s *DirSource) Load(_ context.Context, ref string) ([]byte, error) {
	if ref == "" || !filepath.IsLocal(ref) {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: image ref %q escapes the dataset directory", errors.ErrInvalidInput, ref),
			"catalog", "Load", "ref validation")
	}

	data, err := os.ReadFile(filepath.Join(s.root, ref))
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: reading image %s: %v", errors.ErrInvalidInput, ref, err),
			"catalog", "Load", "image read")
	}
	return data, nil
}

// MapSource serves images from memory, keyed by reference. Intended for
// tests.
type MapSource map[string][]byte

// Load returns the bytes registered under ref.
func (s MapSource) Load(_ context.Context, ref string) ([]byte, error) {
	data, ok := s[ref]
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: no image registered for %q", errors.ErrInvalidInput, ref),
			"catalog", "Load", "image lookup")
	}
	return data, nil
}
