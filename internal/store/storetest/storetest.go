// Package storetest is a conformance suite run against every store backend.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrSnakeDoc/tenders/internal/clock"
	"github.com/MrSnakeDoc/tenders/internal/domain"
	"github.com/MrSnakeDoc/tenders/internal/store"
)

// Factory returns a fresh, empty store driven by c.
type Factory func(t *testing.T, c clock.Clock) store.Store

// Epoch is the fake clock start used by the suite.
var Epoch = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// Run executes every conformance test against newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store, c *clock.Fake)
	}{
		{"BatchInsertDedup", testBatchInsertDedup},
		{"BatchInsertWithinBatchDuplicates", testBatchInsertWithinBatchDuplicates},
		{"BatchInsertRoundTrip", testBatchInsertRoundTrip},
		{"ListExpiredCutoff", testListExpiredCutoff},
		{"DeleteTenders", testDeleteTenders},
		{"GetTenderNotFound", testGetTenderNotFound},
		{"ListTendersFilters", testListTendersFilters},
		{"ListTendersSortAndPage", testListTendersSortAndPage},
		{"Stats", testStats},
		{"QueryCatalog", testQueryCatalog},
		{"DeleteQueryClearsTenders", testDeleteQueryClearsTenders},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := clock.NewFake(Epoch)
			s := newStore(t, c)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s, c)
		})
	}
}

func ptr[T any](v T) *T { return &v }

// NewTender builds a minimal valid tender.
func NewTender(externalID string) *domain.Tender {
	return &domain.Tender{
		ExternalID:     externalID,
		PurchaseNumber: externalID,
		Title:          "Tender " + externalID,
	}
}

func mustInsert(t *testing.T, s store.Store, tenders ...*domain.Tender) int {
	t.Helper()
	n, err := s.BatchInsert(context.Background(), tenders)
	if err != nil {
		t.Fatalf("BatchInsert() error = %v", err)
	}
	return n
}

func mustQuery(t *testing.T, s store.Store, keyword string, active bool) *domain.SavedQuery {
	t.Helper()
	q, err := s.CreateQuery(context.Background(), &domain.SavedQuery{Keyword: keyword, Active: active})
	if err != nil {
		t.Fatalf("CreateQuery(%q) error = %v", keyword, err)
	}
	return q
}

func testBatchInsertDedup(t *testing.T, s store.Store, _ *clock.Fake) {
	ctx := context.Background()
	batch := func() []*domain.Tender {
		return []*domain.Tender{NewTender("A"), NewTender("B"), NewTender("C")}
	}

	if n := mustInsert(t, s, batch()...); n != 3 {
		t.Errorf("first BatchInsert() = %d, want 3", n)
	}
	if n := mustInsert(t, s, batch()...); n != 0 {
		t.Errorf("second BatchInsert() = %d, want 0", n)
	}
	if n := mustInsert(t, s, NewTender("C"), NewTender("D")); n != 1 {
		t.Errorf("overlapping BatchInsert() = %d, want 1", n)
	}

	count, err := s.CountTenders(ctx)
	if err != nil {
		t.Fatalf("CountTenders() error = %v", err)
	}
	if count != 4 {
		t.Errorf("CountTenders() = %d, want 4", count)
	}

	for _, id := range []string{"A", "D"} {
		ok, err := s.ExistsByExternalID(ctx, id)
		if err != nil || !ok {
			t.Errorf("ExistsByExternalID(%q) = %v, %v, want true", id, ok, err)
		}
	}
	if ok, _ := s.ExistsByExternalID(ctx, "Z"); ok {
		t.Error("ExistsByExternalID(Z) = true, want false")
	}
}

func testBatchInsertWithinBatchDuplicates(t *testing.T, s store.Store, _ *clock.Fake) {
	first := NewTender("dup")
	second := NewTender("dup")
	second.Title = "second sighting"

	if n := mustInsert(t, s, first, second); n != 1 {
		t.Errorf("BatchInsert() = %d, want 1", n)
	}

	page, err := s.ListTenders(context.Background(), domain.TenderFilter{ShowExpired: true})
	if err != nil {
		t.Fatalf("ListTenders() error = %v", err)
	}
	if page.TotalCount != 1 || page.Tenders[0].Title != first.Title {
		t.Errorf("stored = %+v, want only the first sighting", page.Tenders)
	}
}

func testBatchInsertRoundTrip(t *testing.T, s store.Store, c *clock.Fake) {
	ctx := context.Background()
	q := mustQuery(t, s, "construction", true)

	deadline := Epoch.Add(72 * time.Hour)
	published := Epoch.Add(-24 * time.Hour)
	price := decimal.RequireFromString("1500000.50")
	in := &domain.Tender{
		ExternalID:     "0373100000124000001",
		PurchaseNumber: "0373100000124000001",
		Title:          "Bridge repair",
		CustomerName:   ptr("City"),
		CustomerINN:    ptr("7701234567"),
		Region:         ptr("77"),
		MaxPrice:       &price,
		AdditionalInfo: ptr("Region: 77, Tax ID: 7701234567"),
		SourceURL:      ptr("https://example.test/notice"),
		PublishDate:    &published,
		Deadline:       &deadline,
		QueryID:        &q.ID,
	}
	mustInsert(t, s, in)

	if in.ID == 0 {
		t.Fatal("BatchInsert() did not assign ID")
	}
	if !in.SavedAt.Equal(c.Now()) {
		t.Errorf("SavedAt = %v, want %v", in.SavedAt, c.Now())
	}

	got, err := s.GetTender(ctx, in.ID)
	if err != nil {
		t.Fatalf("GetTender() error = %v", err)
	}
	if got.Title != in.Title || got.ExternalID != in.ExternalID {
		t.Errorf("GetTender() = %+v", got)
	}
	if got.MaxPrice == nil || !got.MaxPrice.Equal(price) {
		t.Errorf("MaxPrice = %v, want %v", got.MaxPrice, price)
	}
	if got.Deadline == nil || !got.Deadline.Equal(deadline) {
		t.Errorf("Deadline = %v, want %v", got.Deadline, deadline)
	}
	if got.PublishDate == nil || !got.PublishDate.Equal(published) {
		t.Errorf("PublishDate = %v, want %v", got.PublishDate, published)
	}
	if !got.SavedAt.Equal(Epoch) {
		t.Errorf("SavedAt = %v, want %v", got.SavedAt, Epoch)
	}
	if got.CustomerName == nil || *got.CustomerName != "City" {
		t.Errorf("CustomerName = %v", got.CustomerName)
	}
	if got.QueryID == nil || *got.QueryID != q.ID {
		t.Errorf("QueryID = %v, want %d", got.QueryID, q.ID)
	}
	if got.QueryKeyword == nil || *got.QueryKeyword != "construction" {
		t.Errorf("QueryKeyword = %v, want construction", got.QueryKeyword)
	}
}

func testListExpiredCutoff(t *testing.T, s store.Store, _ *clock.Fake) {
	now := Epoch
	old := NewTender("old")
	old.Deadline = ptr(now.Add(-48 * time.Hour))
	recent := NewTender("recent")
	recent.Deadline = ptr(now.Add(-12 * time.Hour))
	future := NewTender("future")
	future.Deadline = ptr(now.Add(12 * time.Hour))
	open := NewTender("open")
	exact := NewTender("exact")
	exact.Deadline = ptr(now.Add(-24 * time.Hour))
	mustInsert(t, s, old, recent, future, open, exact)

	expired, err := s.ListExpired(context.Background(), now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("ListExpired() error = %v", err)
	}
	if len(expired) != 1 || expired[0].ExternalID != "old" {
		ids := make([]string, 0, len(expired))
		for _, e := range expired {
			ids = append(ids, e.ExternalID)
		}
		t.Errorf("ListExpired() = %v, want [old]", ids)
	}
}

func testDeleteTenders(t *testing.T, s store.Store, _ *clock.Fake) {
	ctx := context.Background()
	a, b, c := NewTender("a"), NewTender("b"), NewTender("c")
	mustInsert(t, s, a, b, c)

	n, err := s.DeleteTenders(ctx, []int64{a.ID, c.ID, 999999})
	if err != nil {
		t.Fatalf("DeleteTenders() error = %v", err)
	}
	if n != 2 {
		t.Errorf("DeleteTenders() = %d, want 2", n)
	}
	if count, _ := s.CountTenders(ctx); count != 1 {
		t.Errorf("CountTenders() = %d, want 1", count)
	}

	// a deleted external id can be ingested again
	if n := mustInsert(t, s, NewTender("a")); n != 1 {
		t.Errorf("re-insert after delete = %d, want 1", n)
	}

	if n, err := s.DeleteTenders(ctx, nil); err != nil || n != 0 {
		t.Errorf("DeleteTenders(nil) = %d, %v, want 0, nil", n, err)
	}
}

func testGetTenderNotFound(t *testing.T, s store.Store, _ *clock.Fake) {
	if _, err := s.GetTender(context.Background(), 424242); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetTender() error = %v, want ErrNotFound", err)
	}
}

func testListTendersFilters(t *testing.T, s store.Store, c *clock.Fake) {
	ctx := context.Background()
	q1 := mustQuery(t, s, "roads", true)
	q2 := mustQuery(t, s, "paper", true)

	road := NewTender("road")
	road.Title = "Road Repair"
	road.QueryID = &q1.ID
	road.Deadline = ptr(Epoch.Add(10 * 24 * time.Hour))

	paper := NewTender("paper")
	paper.Title = "Office supplies"
	paper.CustomerName = ptr("Paper Mill LLC")
	paper.QueryID = &q2.ID
	paper.Deadline = ptr(Epoch.Add(-time.Hour))

	mustInsert(t, s, road, paper)
	c.Advance(48 * time.Hour)
	later := NewTender("later")
	later.AdditionalInfo = ptr("Region: Tver")
	mustInsert(t, s, later)

	now := c.Now()
	tests := []struct {
		name   string
		filter domain.TenderFilter
		want   []string
	}{
		{"default hides expired", domain.TenderFilter{Now: now}, []string{"road", "later"}},
		{"show expired", domain.TenderFilter{Now: now, ShowExpired: true}, []string{"road", "paper", "later"}},
		{"search title case-insensitive", domain.TenderFilter{Now: now, Search: "REPAIR"}, []string{"road"}},
		{"search customer", domain.TenderFilter{Now: now, ShowExpired: true, Search: "mill"}, []string{"paper"}},
		{"search additional info", domain.TenderFilter{Now: now, Search: "tver"}, []string{"later"}},
		{"search purchase number", domain.TenderFilter{Now: now, Search: "later"}, []string{"later"}},
		{"by query", domain.TenderFilter{Now: now, ShowExpired: true, QueryID: &q2.ID}, []string{"paper"}},
		{"saved from", domain.TenderFilter{Now: now, SavedFrom: ptr(Epoch.Add(time.Hour))}, []string{"later"}},
		{"saved to", domain.TenderFilter{Now: now, ShowExpired: true, SavedTo: ptr(Epoch.Add(time.Hour))}, []string{"road", "paper"}},
		{"deadline range", domain.TenderFilter{
			Now: now, ShowExpired: true,
			DeadlineFrom: ptr(Epoch), DeadlineTo: ptr(Epoch.Add(30 * 24 * time.Hour)),
		}, []string{"road"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.filter.SortBy = domain.SortSavedAt
			page, err := s.ListTenders(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListTenders() error = %v", err)
			}
			got := externalIDs(page.Tenders)
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("ListTenders() = %v, want %v", got, tt.want)
			}
			if page.TotalCount != len(tt.want) {
				t.Errorf("TotalCount = %d, want %d", page.TotalCount, len(tt.want))
			}
		})
	}
}

func testListTendersSortAndPage(t *testing.T, s store.Store, c *clock.Fake) {
	ctx := context.Background()
	for i, title := range []string{"delta", "Alpha", "charlie", "bravo", "echo"} {
		td := NewTender(fmt.Sprintf("t%d", i))
		td.Title = title
		if i != 2 {
			td.MaxPrice = ptr(decimal.NewFromInt(int64((i + 1) * 100)))
		}
		mustInsert(t, s, td)
		c.Advance(time.Minute)
	}

	tests := []struct {
		name   string
		filter domain.TenderFilter
		want   []string
		total  int
		pages  int
	}{
		{"title asc", domain.TenderFilter{SortBy: "Title"}, []string{"Alpha", "bravo", "charlie", "delta", "echo"}, 5, 1},
		{"title desc", domain.TenderFilter{SortBy: "title", SortDescending: true}, []string{"echo", "delta", "charlie", "bravo", "Alpha"}, 5, 1},
		{"saved desc", domain.TenderFilter{SortDescending: true}, []string{"echo", "bravo", "charlie", "Alpha", "delta"}, 5, 1},
		{"price asc nulls last", domain.TenderFilter{SortBy: "maxPrice"}, []string{"delta", "Alpha", "bravo", "echo", "charlie"}, 5, 1},
		{"price desc nulls last", domain.TenderFilter{SortBy: "maxprice", SortDescending: true}, []string{"echo", "bravo", "Alpha", "delta", "charlie"}, 5, 1},
		{"page 2 of size 2", domain.TenderFilter{SortBy: "title", Page: 2, PageSize: 2}, []string{"charlie", "delta"}, 5, 3},
		{"page past end", domain.TenderFilter{SortBy: "title", Page: 9, PageSize: 2}, []string{}, 5, 3},
		{"page beyond int range", domain.TenderFilter{SortBy: "title", Page: math.MaxInt, PageSize: domain.MaxPageSize}, []string{}, 5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.filter.Now = c.Now()
			page, err := s.ListTenders(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListTenders() error = %v", err)
			}
			got := make([]string, 0, len(page.Tenders))
			for _, td := range page.Tenders {
				got = append(got, td.Title)
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("order = %v, want %v", got, tt.want)
			}
			if page.TotalCount != tt.total || page.TotalPages != tt.pages {
				t.Errorf("TotalCount/TotalPages = %d/%d, want %d/%d", page.TotalCount, page.TotalPages, tt.total, tt.pages)
			}
		})
	}
}

func testStats(t *testing.T, s store.Store, _ *clock.Fake) {
	expired := NewTender("expired")
	expired.Deadline = ptr(Epoch.Add(-time.Hour))
	edge := NewTender("edge")
	edge.Deadline = ptr(Epoch)
	active := NewTender("active")
	active.Deadline = ptr(Epoch.Add(time.Hour))
	mustInsert(t, s, expired, edge, active, NewTender("open"))

	stats, err := s.Stats(context.Background(), Epoch)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Total != 4 || stats.Expired != 2 || stats.Active != 2 {
		t.Errorf("Stats() = %+v, want total 4, expired 2, active 2", stats)
	}
	if !stats.LastUpdated.Equal(Epoch) {
		t.Errorf("LastUpdated = %v, want %v", stats.LastUpdated, Epoch)
	}
}

func testQueryCatalog(t *testing.T, s store.Store, c *clock.Fake) {
	ctx := context.Background()

	if _, err := s.CreateQuery(ctx, &domain.SavedQuery{Keyword: "   "}); err == nil {
		t.Error("CreateQuery(blank) error = nil, want ValidationError")
	} else {
		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("CreateQuery(blank) error = %T, want *ValidationError", err)
		}
	}

	zeta := mustQuery(t, s, "zeta", true)
	c.Advance(time.Second)
	alpha := mustQuery(t, s, "alpha", true)
	c.Advance(time.Second)
	idle := mustQuery(t, s, "idle", false)

	if !alpha.CreatedAt.Equal(Epoch.Add(time.Second)) {
		t.Errorf("CreatedAt = %v, want %v", alpha.CreatedAt, Epoch.Add(time.Second))
	}

	all, err := s.ListQueries(ctx)
	if err != nil {
		t.Fatalf("ListQueries() error = %v", err)
	}
	if got := keywords(all); fmt.Sprint(got) != "[idle alpha zeta]" {
		t.Errorf("ListQueries() = %v, want newest first", got)
	}

	active, err := s.ListActiveQueries(ctx)
	if err != nil {
		t.Fatalf("ListActiveQueries() error = %v", err)
	}
	if got := keywords(active); fmt.Sprint(got) != "[alpha zeta]" {
		t.Errorf("ListActiveQueries() = %v, want [alpha zeta]", got)
	}

	updated, err := s.UpdateQuery(ctx, zeta.ID, domain.QueryPatch{Active: ptr(false), Category: ptr("roads")})
	if err != nil {
		t.Fatalf("UpdateQuery() error = %v", err)
	}
	if updated.Active || updated.Keyword != "zeta" || updated.Category == nil || *updated.Category != "roads" {
		t.Errorf("UpdateQuery() = %+v", updated)
	}
	got, err := s.GetQuery(ctx, zeta.ID)
	if err != nil {
		t.Fatalf("GetQuery() error = %v", err)
	}
	if got.Active {
		t.Error("GetQuery() after deactivation still active")
	}

	if _, err := s.UpdateQuery(ctx, idle.ID, domain.QueryPatch{Keyword: ptr("")}); err == nil {
		t.Error("UpdateQuery(blank keyword) error = nil")
	}
	if _, err := s.UpdateQuery(ctx, 9999, domain.QueryPatch{Active: ptr(true)}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("UpdateQuery(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetQuery(ctx, 9999); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetQuery(missing) error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteQuery(ctx, 9999); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("DeleteQuery(missing) error = %v, want ErrNotFound", err)
	}
}

func testDeleteQueryClearsTenders(t *testing.T, s store.Store, _ *clock.Fake) {
	ctx := context.Background()
	q := mustQuery(t, s, "roads", true)
	td := NewTender("r1")
	td.QueryID = &q.ID
	mustInsert(t, s, td)

	if err := s.DeleteQuery(ctx, q.ID); err != nil {
		t.Fatalf("DeleteQuery() error = %v", err)
	}

	got, err := s.GetTender(ctx, td.ID)
	if err != nil {
		t.Fatalf("GetTender() after query delete error = %v", err)
	}
	if got.QueryID != nil || got.QueryKeyword != nil {
		t.Errorf("QueryID/QueryKeyword = %v/%v, want nil", got.QueryID, got.QueryKeyword)
	}
	if _, err := s.GetQuery(ctx, q.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetQuery() after delete error = %v, want ErrNotFound", err)
	}
}

func externalIDs(tenders []*domain.Tender) []string {
	out := make([]string, 0, len(tenders))
	for _, t := range tenders {
		out = append(out, t.ExternalID)
	}
	return out
}

func keywords(qs []*domain.SavedQuery) []string {
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.Keyword)
	}
	return out
}
