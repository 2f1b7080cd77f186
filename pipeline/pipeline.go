// Package pipeline drives the crawl/re-validation cycle: category discovery,
// detail capture, competitor-price enrichment, and sold-detection batches,
// repeated indefinitely with randomized pacing. One cycle owns the browser
// session exclusively; all work is a single cooperative task stream.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"olx-scout/config"
	"olx-scout/models"
	"olx-scout/scraper/browser"
	"olx-scout/storage"
	"olx-scout/utils"
)

// MarketplaceCrawler is the marketplace-facing surface the pipeline drives:
// discovery, detail capture, and liveness probing over one serialized
// browser session.
type MarketplaceCrawler interface {
	ListingURLs(categoryURL string) ([]string, error)
	ListingDetails(url string) (*models.ListingRecord, error)
	IsActive(url string) (bool, error)
}

// PriceProber looks up the lowest comparable competitor price above the
// listing's own price.
type PriceProber interface {
	Probe(title string, ownPrice float64) (price float64, found bool)
}

// Pipeline is the orchestrator. It holds only transient batches between
// stages; all durable listing state lives in the store.
type Pipeline struct {
	cfg       *config.Config
	log       zerolog.Logger
	store     storage.ListingStore
	crawler   MarketplaceCrawler
	prober    PriceProber
	heartbeat *Heartbeat
}

// New wires a Pipeline from its collaborators.
func New(cfg *config.Config, log zerolog.Logger, store storage.ListingStore, crawler MarketplaceCrawler, prober PriceProber) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		log:       log.With().Str("component", "pipeline").Logger(),
		store:     store,
		crawler:   crawler,
		prober:    prober,
		heartbeat: NewHeartbeat(cfg.HeartbeatFile),
	}
}

// Run executes full cycles until ctx is cancelled. A failed cycle is logged
// as critical and retried after the sleep interval; scraping errors never
// terminate the process.
func (p *Pipeline) Run(ctx context.Context) {
	for {
		p.log.Info().Time("start", time.Now()).Msg("Cycle start")

		if err := p.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.log.Error().Err(err).Msg("CRITICAL: cycle failed")
		}
		if ctx.Err() != nil {
			return
		}

		sleep := utils.Jitter(
			time.Duration(p.cfg.CycleSleepMinSec)*time.Second,
			time.Duration(p.cfg.CycleSleepMaxSec)*time.Second,
		)
		p.log.Info().Dur("sleep", sleep).Msg("Cycle done, sleeping")
		if !p.wait(ctx, sleep) {
			return
		}
	}
}

// RunOnce performs one full pass: discovery and detail capture for every
// configured category, then the price-enrichment batches, then the
// sold-detection batches. A failing category is skipped for this cycle.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	for _, categoryURL := range p.cfg.CategoryURLs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.heartbeat.Update(); err != nil {
			p.log.Warn().Err(err).Msg("Heartbeat write failed")
		}
		if err := p.crawlCategory(ctx, categoryURL); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.log.Error().Err(err).Str("category", categoryURL).Msg("Category failed, skipping for this cycle")
		}
	}

	p.enrichPrices(ctx)
	p.checkSold(ctx)
	return ctx.Err()
}

// crawlCategory walks a category's pagination newest-first, capturing
// details for unseen listings. Pagination stops at an empty or timed-out
// page, or once the duplicate streak shows the rest of the category has
// already been ingested.
func (p *Pipeline) crawlCategory(ctx context.Context, categoryURL string) error {
	streak := 0
	for pageNum := 1; ; pageNum++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		pageURL := categoryPageURL(categoryURL, pageNum)
		p.log.Info().Int("page", pageNum).Str("url", pageURL).Msg("Processing category page")

		urls, err := p.crawler.ListingURLs(pageURL)
		if errors.Is(err, browser.ErrExtractionTimeout) {
			p.log.Info().Int("page", pageNum).Msg("No listing cards, end of pagination")
			return nil
		}
		if err != nil {
			return fmt.Errorf("list page %d: %w", pageNum, err)
		}
		if len(urls) == 0 {
			p.log.Info().Int("page", pageNum).Msg("Empty page, end of pagination")
			return nil
		}
		p.log.Info().Int("count", len(urls)).Msg("Extracted listing urls")

		for _, u := range urls {
			if err := ctx.Err(); err != nil {
				return err
			}

			known, err := p.store.Exists(u)
			if err != nil {
				p.log.Error().Err(err).Str("url", u).Msg("Existence check failed")
				continue
			}
			if known {
				streak++
				if streak >= p.cfg.DuplicateStreakLimit {
					p.log.Info().Int("streak", streak).Msg("Duplicate streak reached, category already ingested")
					return nil
				}
				continue
			}
			streak = 0

			rec, err := p.crawler.ListingDetails(u)
			if err != nil {
				p.log.Warn().Err(err).Str("url", u).Msg("Detail capture failed")
				continue
			}
			if err := p.store.Upsert(rec); err != nil {
				p.log.Error().Err(err).Str("url", u).Msg("Upsert failed")
				continue
			}
			p.log.Info().Str("url", u).Msg("Saved listing")

			p.pause(ctx, p.cfg.DetailDelayMinMs, p.cfg.DetailDelayMaxMs)
		}

		p.pause(ctx, p.cfg.PageDelayMinMs, p.cfg.PageDelayMaxMs)
	}
}

// enrichPrices probes competitor prices in bounded batches. Rows marked
// not-found stay selectable by the store query, so every handled id is
// excluded from the next batch; the pass walks past any not-found backlog to
// younger rows and ends on the first empty batch, probing each listing at
// most once.
func (p *Pipeline) enrichPrices(ctx context.Context) {
	var handled []int64
	for {
		if ctx.Err() != nil {
			return
		}

		batch, err := p.store.ListMissingCompetitorPrice(p.cfg.PriceBatchSize, handled)
		if err != nil {
			p.log.Error().Err(err).Msg("Listing price-enrichment batch failed")
			return
		}
		if len(batch) == 0 {
			return
		}

		for _, cand := range batch {
			if ctx.Err() != nil {
				return
			}
			handled = append(handled, cand.ID)

			if cand.Name == "" {
				p.log.Warn().Int64("id", cand.ID).Msg("No name for listing, marking price not found")
				p.setProbeResult(cand.ID, 0, false)
				continue
			}

			price, found := p.prober.Probe(cand.Name, cand.Price)
			p.setProbeResult(cand.ID, price, found)

			p.pause(ctx, p.cfg.ProbeDelayMinMs, p.cfg.ProbeDelayMaxMs)
		}
	}
}

func (p *Pipeline) setProbeResult(id int64, price float64, found bool) {
	if found {
		if err := p.store.SetCompetitorPrice(id, price); err != nil {
			p.log.Error().Err(err).Int64("id", id).Msg("Storing competitor price failed")
			return
		}
		p.log.Info().Int64("id", id).Float64("price", price).Msg("Competitor price updated")
		return
	}
	if err := p.store.MarkCompetitorPriceNotFound(id); err != nil {
		p.log.Error().Err(err).Int64("id", id).Msg("Marking price not found failed")
		return
	}
	p.log.Info().Int64("id", id).Msg("Competitor price not found")
}

// checkSold re-validates unsold listings in bounded batches, marking sold on
// a negative liveness result. The loop ends on an empty batch or one that
// marked nothing, since still-active rows are returned again by the query.
func (p *Pipeline) checkSold(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		refs, err := p.store.ListUnsold(p.cfg.SoldBatchSize)
		if err != nil {
			p.log.Error().Err(err).Msg("Listing sold-check batch failed")
			return
		}
		if len(refs) == 0 {
			p.log.Info().Msg("No unsold listings to check")
			return
		}
		p.log.Info().Int("count", len(refs)).Msg("Checking sold status")

		marked := 0
		for _, ref := range refs {
			if ctx.Err() != nil {
				return
			}

			active, err := p.crawler.IsActive(ref.URL)
			if err != nil {
				p.log.Error().Err(err).Str("url", ref.URL).Msg("Sold check failed")
				continue
			}
			if !active {
				if err := p.store.MarkSold(ref.ID); err != nil {
					p.log.Error().Err(err).Int64("id", ref.ID).Msg("Marking sold failed")
				} else {
					marked++
					p.log.Info().Str("url", ref.URL).Msg("Marked as sold")
				}
			}

			p.pause(ctx, p.cfg.SoldDelayMinMs, p.cfg.SoldDelayMaxMs)
		}

		if marked == 0 {
			return
		}
	}
}

// categoryPageURL builds the url for page n of a category: page 1 is the
// configured category url itself, later pages replace the query with
// ?page=n.
func categoryPageURL(categoryURL string, page int) string {
	if page <= 1 {
		return categoryURL
	}
	base := categoryURL
	if i := strings.Index(base, "?"); i >= 0 {
		base = base[:i]
	}
	return fmt.Sprintf("%s?page=%d", base, page)
}

// pause sleeps a jittered duration, returning early on cancellation.
func (p *Pipeline) pause(ctx context.Context, minMs, maxMs int) {
	d := utils.JitterMs(minMs, maxMs)
	if d <= 0 {
		return
	}
	p.wait(ctx, d)
}

func (p *Pipeline) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
