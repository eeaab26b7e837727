package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProduct_Validate(t *testing.T) {
	valid := Product{ID: "p1", Title: "Red Sneaker", ImageRef: "images/p1.jpg"}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name    string
		product Product
	}{
		{"missing id", Product{Title: "x", ImageRef: "y"}},
		{"missing title", Product{ID: "p1", ImageRef: "y"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.product.Validate())
		})
	}

	// Image is optional: text-only products are valid.
	assert.NoError(t, Product{ID: "p1", Title: "x"}.Validate())
}

func TestProduct_SearchText(t *testing.T) {
	p := Product{
		ID:    "p1",
		Title: "Red Sneaker",
		Attributes: map[string]string{
			"color":    "red",
			"brand":    "acme",
			"category": "shoes",
		},
		ImageRef: "images/p1.jpg",
	}

	// Attribute values appear in key order for determinism
	assert.Equal(t, "Red Sneaker acme shoes red", p.SearchText())
}

func TestProduct_SearchTextNoAttributes(t *testing.T) {
	p := Product{ID: "p1", Title: "Plain"}
	assert.Equal(t, "Plain", p.SearchText())
}
