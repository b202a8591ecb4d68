package domain

import (
	"math"
	"strings"
	"time"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// MaxPage keeps Offset from overflowing int.
	MaxPage = math.MaxInt / MaxPageSize
)

// Sort keys accepted by TenderFilter.SortBy (case-insensitive).
const (
	SortSavedAt     = "savedat"
	SortPublishDate = "publishdate"
	SortTitle       = "title"
	SortDeadline    = "applicationdeadline"
	SortMaxPrice    = "maxprice"
)

// TenderFilter describes a page of tenders for the read API.
type TenderFilter struct {
	Page     int
	PageSize int

	// Search matches title, purchase number, customer name and additional
	// info, case-insensitively.
	Search  string
	QueryID *int64

	// SavedFrom/SavedTo bound SavedAt.
	SavedFrom *time.Time
	SavedTo   *time.Time

	DeadlineFrom *time.Time
	DeadlineTo   *time.Time

	// ShowExpired includes tenders whose deadline is at or before Now.
	ShowExpired bool

	SortBy         string
	SortDescending bool

	// Now is the reference instant for expiry. Zero means time.Now().
	Now time.Time
}

// Normalize clamps paging values and resolves defaults.
func (f TenderFilter) Normalize() TenderFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Page > MaxPage {
		f.Page = MaxPage
	}
	switch {
	case f.PageSize == 0:
		f.PageSize = DefaultPageSize
	case f.PageSize < 1:
		f.PageSize = 1
	case f.PageSize > MaxPageSize:
		f.PageSize = MaxPageSize
	}
	f.SortBy = strings.ToLower(strings.TrimSpace(f.SortBy))
	switch f.SortBy {
	case SortSavedAt, SortPublishDate, SortTitle, SortDeadline, SortMaxPrice:
	default:
		f.SortBy = SortSavedAt
	}
	f.Search = strings.TrimSpace(f.Search)
	if f.Now.IsZero() {
		f.Now = time.Now().UTC()
	}
	return f
}

// Offset is the number of rows to skip for the current page.
func (f TenderFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// TenderPage is one page of filtered tenders.
type TenderPage struct {
	Tenders    []*Tender `json:"tenders"`
	TotalCount int       `json:"totalCount"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalPages int       `json:"totalPages"`
}

// NewTenderPage assembles a page and computes the page count.
func NewTenderPage(tenders []*Tender, total int, f TenderFilter) *TenderPage {
	if tenders == nil {
		tenders = []*Tender{}
	}
	pages := 0
	if f.PageSize > 0 {
		pages = (total + f.PageSize - 1) / f.PageSize
	}
	return &TenderPage{
		Tenders:    tenders,
		TotalCount: total,
		Page:       f.Page,
		PageSize:   f.PageSize,
		TotalPages: pages,
	}
}
