package storage

import "olx-scout/models"

// ListingStore is the durable repository the pipeline writes through. Each
// operation is individually transactional; write failures surface to the
// caller so a batch can log and move on instead of aborting.
type ListingStore interface {
	Exists(url string) (bool, error)
	Upsert(rec *models.ListingRecord) error
	ListUnsold(limit int) ([]models.ListingRef, error)
	ListMissingCompetitorPrice(limit int, excludeIDs []int64) ([]models.EnrichmentCandidate, error)
	MarkSold(id int64) error
	SetCompetitorPrice(id int64, price float64) error
	MarkCompetitorPriceNotFound(id int64) error
	Close() error
}
