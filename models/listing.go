package models

import "time"

// Condition is the normalized item condition vocabulary. Detail pages carry
// one of four schema.org URIs; anything else collapses to ConditionUnknown.
type Condition string

const (
	ConditionNew         Condition = "new"
	ConditionUsed        Condition = "used"
	ConditionRefurbished Condition = "refurbished"
	ConditionDamaged     Condition = "damaged"
	ConditionUnknown     Condition = "unknown"
)

// ConditionFromSchema maps a schema.org itemCondition URI to a Condition.
// The mapping is total: unmapped or empty input yields ConditionUnknown.
func ConditionFromSchema(uri string) Condition {
	switch uri {
	case "https://schema.org/NewCondition":
		return ConditionNew
	case "https://schema.org/UsedCondition":
		return ConditionUsed
	case "https://schema.org/RefurbishedCondition":
		return ConditionRefurbished
	case "https://schema.org/DamagedCondition":
		return ConditionDamaged
	default:
		return ConditionUnknown
	}
}

// ListingRecord is the structured result of one detail-page extraction.
// Nil pointer fields mean the source page did not carry that attribute;
// a partial record with only URL and CrawledAt is still valid.
type ListingRecord struct {
	URL       string
	CrawledAt time.Time

	Name        *string
	Description *string
	Category    *string
	Image       *string
	SKU         *string
	City        *string
	SellerID    *string
	Price       *int
	Condition   Condition // empty when no structured data block was parsed
}

// Payload builds the raw map persisted as the full-fidelity blob and
// flattened into queryable columns. Lifecycle fields owned by other pipeline
// stages (sold_at, price_new) are never part of the payload, so re-upserting
// a record cannot reset them.
func (r *ListingRecord) Payload() map[string]any {
	data := map[string]any{
		"url":        r.URL,
		"crawled_at": r.CrawledAt.Format(time.RFC3339),
	}
	putString(data, "name", r.Name)
	putString(data, "description", r.Description)
	putString(data, "category", r.Category)
	putString(data, "image", r.Image)
	putString(data, "sku", r.SKU)
	putString(data, "city", r.City)
	putString(data, "seller_id", r.SellerID)
	if r.Price != nil {
		data["price"] = *r.Price
	}
	if r.Condition != "" {
		data["condition"] = string(r.Condition)
	}
	return data
}

func putString(m map[string]any, key string, v *string) {
	if v != nil {
		m[key] = *v
	}
}

// ListingRef identifies one stored listing for batch re-validation.
type ListingRef struct {
	ID  int64
	URL string
}

// EnrichmentCandidate is one stored listing awaiting a competitor-price
// probe. Name and Price are decoded from the raw payload; Name may be empty
// when the original extraction was partial.
type EnrichmentCandidate struct {
	ID    int64
	Name  string
	Price float64
}
