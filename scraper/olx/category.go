package olx

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ListingURLs loads one category listing page and returns the candidate
// listing URLs in page-presentation order. When the listing-card marker never
// appears the error wraps browser.ErrExtractionTimeout, which callers treat
// as the end of pagination.
func (s *Scraper) ListingURLs(categoryURL string) ([]string, error) {
	if err := s.session.Navigate(categoryURL); err != nil {
		return nil, err
	}
	s.acceptCookies()

	if err := s.session.WaitVisible(listingCardSelector, 0); err != nil {
		return nil, err
	}

	html, err := s.session.HTML()
	if err != nil {
		return nil, err
	}
	return parseListingURLs(html), nil
}

// parseListingURLs collects the first anchor of every listing card,
// normalizing relative paths against the site origin.
func parseListingURLs(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var urls []string
	doc.Find(listingCardSelector).Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Find("a").First().Attr("href")
		if !ok || href == "" {
			return
		}
		if !strings.HasPrefix(href, "http") {
			href = siteOrigin + href
		}
		urls = append(urls, href)
	})
	return urls
}
