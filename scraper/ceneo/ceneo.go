// Package ceneo probes the Ceneo price-comparison engine for the lowest
// comparable price of a listing. Every scrape failure degrades to "not
// found" so a flaky probe can never stall the enrichment batch.
package ceneo

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"olx-scout/scraper/browser"
)

const (
	searchURLFormat = "https://www.ceneo.pl/;szukaj-%s;0112-1.htm"

	// Any of these markers settles the search outcome: a result list, a
	// single-product price, or an explicit empty result.
	outcomeSelector = ".js_category-list-item, .cat-prod-row, .product-top__price, .product-offers__price, .not-found"

	resultRowSelector    = ".js_category-list-item, .cat-prod-row"
	priceSelector        = ".price-format"
	productPriceSelector = ".product-top__price .price-format, .product-offers__price .price-format"
	notFoundSelector     = ".not-found"

	outcomeWait = 5 * time.Second
)

// Prober queries Ceneo through the shared browser session.
type Prober struct {
	session *browser.Session
	log     zerolog.Logger
}

// New creates a Prober bound to the given browser session.
func New(session *browser.Session, log zerolog.Logger) *Prober {
	return &Prober{
		session: session,
		log:     log.With().Str("component", "ceneo").Logger(),
	}
}

// Probe searches Ceneo for title and returns the minimum parsed price
// strictly greater than ownPrice. The second return value is false when no
// such candidate exists or the search failed in any way.
func (p *Prober) Probe(title string, ownPrice float64) (float64, bool) {
	searchURL := fmt.Sprintf(searchURLFormat, url.PathEscape(title))

	if err := p.session.Navigate(searchURL); err != nil {
		p.log.Warn().Err(err).Str("query", title).Msg("Ceneo search navigation failed")
		return 0, false
	}

	if err := p.session.WaitVisible(outcomeSelector, outcomeWait); err != nil {
		p.log.Debug().Str("query", title).Msg("No results marker appeared")
		return 0, false
	}

	html, err := p.session.HTML()
	if err != nil {
		p.log.Warn().Err(err).Str("query", title).Msg("Could not read results page")
		return 0, false
	}

	prices := parsePrices(html)
	return lowestAbove(prices, ownPrice)
}

// parsePrices collects every parseable price from either the search-result
// rows or, when the search resolved straight to a product page, from the
// product price blocks. An explicit "not found" page yields nothing.
func parsePrices(html string) []float64 {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	if doc.Find(notFoundSelector).Length() > 0 {
		return nil
	}

	var prices []float64
	collect := func(_ int, sel *goquery.Selection) {
		if v, err := parsePriceText(sel.Text()); err == nil {
			prices = append(prices, v)
		}
	}

	rows := doc.Find(resultRowSelector)
	if rows.Length() > 0 {
		rows.Each(func(_ int, row *goquery.Selection) {
			collect(0, row.Find(priceSelector).First())
		})
		return prices
	}

	doc.Find(productPriceSelector).First().Each(collect)
	return prices
}

// parsePriceText normalizes locale-formatted price text: space thousands
// separators, comma decimal separator, currency suffix.
func parsePriceText(raw string) (float64, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.ReplaceAll(clean, "zł", "")
	clean = strings.ReplaceAll(clean, " ", "")
	clean = strings.ReplaceAll(clean, "\u00a0", "")
	clean = strings.ReplaceAll(clean, ",", ".")
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return 0, fmt.Errorf("empty price text")
	}
	return strconv.ParseFloat(clean, 64)
}

// lowestAbove returns the minimum candidate strictly greater than own,
// filtering out prices at or below the listing's own price as self-matches.
func lowestAbove(prices []float64, own float64) (float64, bool) {
	best := 0.0
	found := false
	for _, p := range prices {
		if p <= own {
			continue
		}
		if !found || p < best {
			best = p
			found = true
		}
	}
	return best, found
}
