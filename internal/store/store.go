// Package store defines the persistence contracts for tenders and saved
// queries. Backends live in subpackages.
package store

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/tenders/internal/domain"
)

// TenderStore persists tenders deduplicated by ExternalID.
type TenderStore interface {
	// BatchInsert stores every tender whose ExternalID is not yet present
	// and returns how many were added. Existing rows are never updated.
	// SavedAt and ID are assigned on the inserted tenders. All or nothing.
	BatchInsert(ctx context.Context, tenders []*domain.Tender) (int, error)

	ExistsByExternalID(ctx context.Context, externalID string) (bool, error)

	// ListExpired returns tenders with a deadline strictly before cutoff.
	// Tenders without a deadline are never returned.
	ListExpired(ctx context.Context, cutoff time.Time) ([]*domain.Tender, error)

	// DeleteTenders removes the given ids in one transaction and returns
	// the number of rows removed.
	DeleteTenders(ctx context.Context, ids []int64) (int, error)

	GetTender(ctx context.Context, id int64) (*domain.Tender, error)
	ListTenders(ctx context.Context, f domain.TenderFilter) (*domain.TenderPage, error)
	CountTenders(ctx context.Context) (int, error)
	Stats(ctx context.Context, now time.Time) (*domain.TenderStats, error)
}

// QueryCatalog persists saved search queries.
type QueryCatalog interface {
	// ListQueries returns every query, newest first.
	ListQueries(ctx context.Context) ([]*domain.SavedQuery, error)

	// ListActiveQueries returns active queries ordered by keyword.
	ListActiveQueries(ctx context.Context) ([]*domain.SavedQuery, error)

	GetQuery(ctx context.Context, id int64) (*domain.SavedQuery, error)
	CreateQuery(ctx context.Context, q *domain.SavedQuery) (*domain.SavedQuery, error)
	UpdateQuery(ctx context.Context, id int64, patch domain.QueryPatch) (*domain.SavedQuery, error)

	// DeleteQuery removes the query and clears QueryID on the tenders it
	// found. The tenders themselves are kept.
	DeleteQuery(ctx context.Context, id int64) error
}

// Store is a full backend.
type Store interface {
	TenderStore
	QueryCatalog

	Ping(ctx context.Context) error
	Close() error
}
