package store

import (
	"sort"
	"strings"
	"time"

	"github.com/MrSnakeDoc/tenders/internal/domain"
)

// MatchTender applies the non-paging parts of f to t. Backends that
// filter in Go rather than in SQL use it, and the SQL backends are tested
// against it.
func MatchTender(t *domain.Tender, f domain.TenderFilter) bool {
	if !f.ShowExpired && t.Expired(f.Now) {
		return false
	}
	if f.QueryID != nil && (t.QueryID == nil || *t.QueryID != *f.QueryID) {
		return false
	}
	if f.SavedFrom != nil && t.SavedAt.Before(*f.SavedFrom) {
		return false
	}
	if f.SavedTo != nil && t.SavedAt.After(*f.SavedTo) {
		return false
	}
	if f.DeadlineFrom != nil && (t.Deadline == nil || t.Deadline.Before(*f.DeadlineFrom)) {
		return false
	}
	if f.DeadlineTo != nil && (t.Deadline == nil || t.Deadline.After(*f.DeadlineTo)) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		fields := []string{t.Title, t.PurchaseNumber, deref(t.CustomerName), deref(t.AdditionalInfo)}
		found := false
		for _, field := range fields {
			if strings.Contains(strings.ToLower(field), needle) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SortTenders orders tenders in place by f.SortBy. Missing values sort
// last in both directions and ties fall back to ascending ID, matching the
// SQL backends.
func SortTenders(tenders []*domain.Tender, f domain.TenderFilter) {
	sort.SliceStable(tenders, func(i, j int) bool {
		a, b := tenders[i], tenders[j]
		c, nulls := compareTenders(a, b, f.SortBy)
		switch {
		case nulls:
			return c < 0
		case c == 0:
			return a.ID < b.ID
		case f.SortDescending:
			return c > 0
		default:
			return c < 0
		}
	})
}

// compareTenders returns -1, 0 or 1. nulls is true when the result was
// decided by a missing value and must not be reversed.
func compareTenders(a, b *domain.Tender, sortBy string) (c int, nulls bool) {
	switch sortBy {
	case domain.SortPublishDate:
		return compareTimes(a.PublishDate, b.PublishDate)
	case domain.SortDeadline:
		return compareTimes(a.Deadline, b.Deadline)
	case domain.SortTitle:
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)), false
	case domain.SortMaxPrice:
		if c, ok := compareNil(a.MaxPrice == nil, b.MaxPrice == nil); ok {
			return c, c != 0
		}
		return a.MaxPrice.Cmp(*b.MaxPrice), false
	default:
		return a.SavedAt.Compare(b.SavedAt), false
	}
}

func compareTimes(a, b *time.Time) (int, bool) {
	if c, ok := compareNil(a == nil, b == nil); ok {
		return c, c != 0
	}
	return a.Compare(*b), false
}

// compareNil orders missing values last. ok is false when both are set.
func compareNil(aNil, bNil bool) (c int, ok bool) {
	switch {
	case aNil && bNil:
		return 0, true
	case aNil:
		return 1, true
	case bNil:
		return -1, true
	}
	return 0, false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
