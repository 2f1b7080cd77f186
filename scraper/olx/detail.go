package olx

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"olx-scout/models"
)

// ListingDetails loads one listing detail page and extracts a structured
// record from its embedded JSON-LD Product block. Parse failures degrade to
// a partial record; only navigation failures return an error.
func (s *Scraper) ListingDetails(url string) (*models.ListingRecord, error) {
	if err := s.session.Navigate(url); err != nil {
		return nil, err
	}
	html, err := s.session.HTML()
	if err != nil {
		return nil, err
	}
	return s.parseListingDetails(html, url, time.Now()), nil
}

// parseListingDetails never aborts on a bad block: whatever fields were
// obtained are returned together with url and the crawl timestamp.
func (s *Scraper) parseListingDetails(html, url string, crawledAt time.Time) *models.ListingRecord {
	rec := &models.ListingRecord{URL: url, CrawledAt: crawledAt}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		s.log.Error().Err(err).Str("url", url).Msg("Detail page HTML unreadable")
		return rec
	}

	if err := parseProductLD(doc, rec); err != nil {
		s.log.Error().Err(err).Str("url", url).Msg("Error parsing JSON-LD block")
	}
	parseSellerID(doc, rec)

	return rec
}

func parseProductLD(doc *goquery.Document, rec *models.ListingRecord) error {
	script := doc.Find(jsonLDSelector).First()
	if script.Length() == 0 {
		return nil
	}

	var ld map[string]any
	if err := json.Unmarshal([]byte(script.Text()), &ld); err != nil {
		return err
	}

	rec.Name = stringField(ld, "name")
	rec.Description = stringField(ld, "description")
	rec.Category = stringField(ld, "category")
	rec.SKU = stringField(ld, "sku")
	rec.Image = firstImage(ld["image"])

	offers, hasOffers := ld["offers"].(map[string]any)
	if hasOffers {
		if area, ok := offers["areaServed"].(map[string]any); ok {
			rec.City = stringField(area, "name")
		}
		rec.Price = coercePrice(offers["price"])
		rec.Condition = models.ConditionFromSchema(stringValue(offers["itemCondition"]))
	} else {
		rec.Condition = models.ConditionUnknown
	}
	return nil
}

// parseSellerID takes the seller-profile link's path segment at position 3,
// the conventional location of the profile slug in relative hrefs.
func parseSellerID(doc *goquery.Document, rec *models.ListingRecord) {
	href, ok := doc.Find(sellerLinkSelector).First().Attr("href")
	if !ok || href == "" {
		return
	}
	parts := strings.Split(href, "/")
	if len(parts) > 3 && parts[3] != "" {
		id := parts[3]
		rec.SellerID = &id
	}
}

func stringField(m map[string]any, key string) *string {
	if s, ok := m[key].(string); ok && s != "" {
		return &s
	}
	return nil
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func firstImage(v any) *string {
	switch img := v.(type) {
	case []any:
		if len(img) > 0 {
			if s, ok := img[0].(string); ok && s != "" {
				return &s
			}
		}
	case string:
		if img != "" {
			return &img
		}
	}
	return nil
}

// coercePrice accepts the JSON-LD price as a number or numeric string and
// coerces it to an integer.
func coercePrice(v any) *int {
	switch p := v.(type) {
	case float64:
		n := int(p)
		return &n
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(p), 64); err == nil {
			n := int(f)
			return &n
		}
	}
	return nil
}
