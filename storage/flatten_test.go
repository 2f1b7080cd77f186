package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlatten(t *testing.T) {
	payload := map[string]any{
		"url":   "https://www.olx.pl/d/oferta/x.html",
		"price": 1200,
		"offers": map[string]any{
			"price": "1200",
			"areaServed": map[string]any{
				"name": "Warszawa",
			},
		},
		"image": []any{"https://img/1.jpg", "https://img/2.jpg"},
		"tags":  []any{},
	}

	flat := Flatten(payload)

	assert.Equal(t, "https://www.olx.pl/d/oferta/x.html", flat["url"])
	assert.Equal(t, 1200, flat["price"])
	assert.Equal(t, "1200", flat["offers_price"])
	assert.Equal(t, "Warszawa", flat["offers_areaServed_name"])
	assert.Equal(t, "https://img/1.jpg", flat["image"])
	assert.NotContains(t, flat, "tags")
	assert.NotContains(t, flat, "offers")
}

func TestSanitizeColumn(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"offers_price", "offers_price"},
		{"Offers.Price", "offers_price"},
		{"areaServed name", "areaserved_name"},
		{"cena-zł", "cena_z_"},
		{"", "unknown_field"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeColumn(tt.key), "key %q", tt.key)
	}
}

// Distinct key paths can sanitize to the same column name; last write wins
// by design.
func TestSanitizeColumnCollision(t *testing.T) {
	assert.Equal(t, SanitizeColumn("offers.price"), SanitizeColumn("offers_price"))
}
