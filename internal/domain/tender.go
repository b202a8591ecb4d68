package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// PurchaseNumberUnknown replaces a missing upstream purchase number.
	PurchaseNumberUnknown = "N/A"

	// UntitledTender is used when no title can be derived from the upstream record.
	UntitledTender = "Untitled tender"
)

// Tender represents a normalized procurement notice ready for storage.
//
// A Tender is uniquely identified by its ExternalID. Re-ingesting a tender
// with an ExternalID that is already stored is a no-op: sightings are never
// merged into the existing row.
type Tender struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	// ID is assigned by the store on insert.
	ID int64 `json:"id"`

	// ExternalID is the deduplication key. It is the purchase number when
	// upstream provides one, otherwise a deterministic synthesized value.
	ExternalID string `json:"externalId"`

	// PurchaseNumber is the registry number, or PurchaseNumberUnknown.
	PurchaseNumber string `json:"purchaseNumber"`

	// ─────────────────────────────
	// Description
	// ─────────────────────────────

	// Title is never empty.
	Title string `json:"title"`

	CustomerName   *string          `json:"customerName,omitempty"`
	CustomerINN    *string          `json:"customerInn,omitempty"`
	Region         *string          `json:"region,omitempty"`
	MaxPrice       *decimal.Decimal `json:"maxPrice,omitempty"`
	AdditionalInfo *string          `json:"additionalInfo,omitempty"`

	// SourceURL links to the notice on the public procurement portal.
	SourceURL *string `json:"directLinkToSource,omitempty"`

	// ─────────────────────────────
	// Dates (always UTC)
	// ─────────────────────────────

	PublishDate *time.Time `json:"publishDate,omitempty"`

	// Deadline is the end of the application window. Tenders whose deadline
	// is far enough in the past are purged by the retention sweep.
	Deadline *time.Time `json:"applicationDeadline,omitempty"`

	// SavedAt is stamped at insertion time.
	SavedAt time.Time `json:"savedAt"`

	// ─────────────────────────────
	// Provenance
	// ─────────────────────────────

	// QueryID links back to the SavedQuery that found the tender. It is
	// cleared when that query is deleted.
	QueryID *int64 `json:"foundByQueryId,omitempty"`

	// QueryKeyword is filled on read from the referenced query.
	QueryKeyword *string `json:"foundByQueryKeyword,omitempty"`
}

// Expired reports whether the application deadline is at or before now.
// Tenders without a deadline never expire.
func (t *Tender) Expired(now time.Time) bool {
	return t.Deadline != nil && !t.Deadline.After(now)
}

// TenderStats is a point-in-time summary of the stored tenders.
type TenderStats struct {
	Total       int       `json:"totalTenders"`
	Active      int       `json:"activeTenders"`
	Expired     int       `json:"expiredTenders"`
	LastUpdated time.Time `json:"lastUpdated"`
}
