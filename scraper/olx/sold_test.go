package olx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyListingPageErrorMarker(t *testing.T) {
	html := `<html><body><div data-testid="error-page">404</div></body></html>`
	assert.False(t, classifyListingPage(html))
}

// Structured price data is the authoritative positive signal: it wins even
// when the body happens to contain a sold phrase (e.g. in a footer link).
func TestClassifyListingPageStructuredPriceWins(t *testing.T) {
	html := `
	<html><head><script type="application/ld+json">
	{"@type": "Product", "name": "X", "offers": {"price": "150"}}
	</script></head>
	<body>Zobacz inne oferty. Ogłoszenie nie jest już dostępne? Sprawdź podobne.</body></html>`
	assert.True(t, classifyListingPage(html))
}

func TestClassifyListingPageSoldMarkers(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"ended", "To ogłoszenie zostało zakończone przez sprzedającego.", false},
		{"removed", "Ogłoszenie usunięte przez moderatora", false},
		{"not found mixed case", "NIE ZNALEZIONO strony", false},
		{"live page", "Kup teraz za jedyne 100 zł!", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := "<html><body>" + tt.body + "</body></html>"
			assert.Equal(t, tt.want, classifyListingPage(html))
		})
	}
}

func TestClassifyListingPageNoOfferPriceFallsThrough(t *testing.T) {
	// JSON-LD present but without offers.price: not decisive, and the body
	// carries a sold marker.
	html := `
	<html><head><script type="application/ld+json">
	{"@type": "Product", "name": "X"}
	</script></head>
	<body>Ogłoszenie nie jest już dostępne</body></html>`
	assert.False(t, classifyListingPage(html))
}
