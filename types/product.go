// Package types contains shared domain types used across the catalogmatch platform
package types

import (
	"fmt"
	"sort"
	"strings"

	"github.com/c360/catalogmatch/errors"
)

// Product is a catalog product record. It is owned by the document store and
// written only by the ingestion pipeline; the query path treats it as
// read-only.
type Product struct {
	// ID is the stable unique key shared with the vector index entries
	ID string `json:"id"`

	// Title is the human-readable product name
	Title string `json:"title"`

	// Attributes holds free-form product metadata (category, brand, color...)
	Attributes map[string]string `json:"attributes,omitempty"`

	// ImageRef locates the product image (path or URL), never raw bytes.
	// Empty means the product has no image and is searchable by text only.
	ImageRef string `json:"image_ref,omitempty"`
}

// Validate ensures the record can be ingested
func (p Product) Validate() error {
	if p.ID == "" {
		return errors.WrapInvalid(
			errors.ErrInvalidInput,
			"Product",
			"Validate",
			"product id cannot be empty",
		)
	}
	if p.Title == "" {
		return errors.WrapInvalid(
			errors.ErrInvalidInput,
			"Product",
			"Validate",
			fmt.Sprintf("product %s: title cannot be empty", p.ID),
		)
	}
	return nil
}

// SearchText composes the text used for the product's text embedding:
// the title followed by attribute values in key order. Key order keeps the
// composition deterministic so re-ingestion produces identical embeddings.
func (p Product) SearchText() string {
	keys := make([]string, 0, len(p.Attributes))
	for k := range p.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(p.Title)
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(p.Attributes[k])
	}
	return b.String()
}
