package olx

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"olx-scout/scraper/browser"
)

// soldMarkers is the closed list of phrases OLX renders on sold, ended, or
// removed listings. Keep this list short and reviewable: a false positive
// silently marks a live listing dead.
var soldMarkers = []string{
	"ogłoszenie nie jest już dostępne",
	"ogłoszenie zostało zakończone",
	"ogłoszenie usunięte",
	"nie znaleziono",
}

// IsActive reports whether the listing at url is still live. A failed or
// rejected navigation is decisive (inactive); an unexpected session error is
// returned so the caller can skip the item without marking it.
func (s *Scraper) IsActive(url string) (bool, error) {
	if err := s.session.Navigate(url); err != nil {
		var navErr *browser.NavigationError
		if errors.As(err, &navErr) {
			return false, nil
		}
		return false, err
	}

	html, err := s.session.HTML()
	if err != nil {
		return false, err
	}
	return classifyListingPage(html), nil
}

// classifyListingPage applies the liveness decision order: error-page marker
// beats everything, structured price data is the authoritative positive
// signal, and the text markers are the last-resort fallback.
func classifyListingPage(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}

	if doc.Find(errorPageSelector).Length() > 0 {
		return false
	}

	if hasOfferPrice(doc) {
		return true
	}

	body := strings.ToLower(doc.Find("body").Text())
	for _, marker := range soldMarkers {
		if strings.Contains(body, marker) {
			return false
		}
	}
	return true
}

// hasOfferPrice reports whether the page's JSON-LD block carries a non-null
// offers.price. Live listings keep their structured price data.
func hasOfferPrice(doc *goquery.Document) bool {
	script := doc.Find(jsonLDSelector).First()
	if script.Length() == 0 {
		return false
	}

	var ld map[string]any
	if err := json.Unmarshal([]byte(script.Text()), &ld); err != nil {
		return false
	}
	offers, ok := ld["offers"].(map[string]any)
	if !ok {
		return false
	}
	price, ok := offers["price"]
	return ok && price != nil
}
