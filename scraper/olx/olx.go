// Package olx extracts listing data from OLX category and detail pages.
// Fetching goes through the shared browser session; parsing works on the
// rendered HTML so it stays testable without a browser.
package olx

import (
	"time"

	"github.com/rs/zerolog"

	"olx-scout/scraper/browser"
)

const (
	siteOrigin = "https://www.olx.pl"

	listingCardSelector = `[data-cy="l-card"]`
	errorPageSelector   = `[data-testid="error-page"]`
	sellerLinkSelector  = `a[href*="/oferty/uzytkownik/"]`
	jsonLDSelector      = `script[type="application/ld+json"]`

	cookieButtonSelector = "button#onetrust-accept-btn-handler"
)

// Scraper drives category discovery, detail extraction, and liveness checks
// over one serialized browser session.
type Scraper struct {
	session *browser.Session
	log     zerolog.Logger

	cookiesAccepted bool
}

// New creates a Scraper bound to the given browser session.
func New(session *browser.Session, log zerolog.Logger) *Scraper {
	return &Scraper{
		session: session,
		log:     log.With().Str("component", "olx").Logger(),
	}
}

// acceptCookies dismisses the consent banner once per session; later pages
// load without it. Failure is harmless, the banner may simply be absent.
func (s *Scraper) acceptCookies() {
	if s.cookiesAccepted {
		return
	}
	s.cookiesAccepted = true
	if err := s.session.Click(cookieButtonSelector, 5*time.Second); err != nil {
		s.log.Debug().Err(err).Msg("Cookie banner not clicked")
	}
}
