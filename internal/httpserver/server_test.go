package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/MrSnakeDoc/tenders/internal/clock"
	"github.com/MrSnakeDoc/tenders/internal/domain"
	"github.com/MrSnakeDoc/tenders/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tenders/internal/logger"
	"github.com/MrSnakeDoc/tenders/internal/scheduler"
	"github.com/MrSnakeDoc/tenders/internal/store/memory"
	"github.com/MrSnakeDoc/tenders/internal/store/storetest"
)

type fixture struct {
	handler http.Handler
	store   *memory.Store
	clock   *clock.Fake
	deps    deps.Deps
}

func newFixture(t *testing.T, opts ...func(*deps.Deps)) *fixture {
	t.Helper()
	fc := clock.NewFake(storetest.Epoch)
	st := memory.New(fc)

	d := deps.Deps{
		Logger:     logger.NewNop(),
		StartTime:  storetest.Epoch,
		Version:    "test",
		Clock:      fc,
		RateBurst:  1000,
		RatePerMin: 1000,
		Storage:    "memory",
		Store:      st,
	}
	for _, opt := range opts {
		opt(&d)
	}

	return &fixture{handler: NewRouter(d.Logger, d), store: st, clock: fc, deps: d}
}

func (f *fixture) do(t *testing.T, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)
	return rec
}

// seed stores an active, an expired and a deadline-less tender.
func (f *fixture) seed(t *testing.T) []*domain.Tender {
	t.Helper()
	future := storetest.Epoch.Add(48 * time.Hour)
	past := storetest.Epoch.Add(-48 * time.Hour)
	price := decimal.RequireFromString("1500000.50")

	tenders := []*domain.Tender{
		storetest.NewTender("0373100000126000001"),
		storetest.NewTender("0373100000126000002"),
		storetest.NewTender("32615500001"),
	}
	tenders[0].Title = "Road asphalt repair"
	tenders[0].Deadline = &future
	tenders[0].MaxPrice = &price
	tenders[1].Title = "Office paper"
	tenders[1].Deadline = &past
	tenders[2].Title = "MRI scanner maintenance"

	if _, err := f.store.BatchInsert(context.Background(), tenders); err != nil {
		t.Fatalf("BatchInsert() error = %v", err)
	}
	return tenders
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decode[map[string]any](t, rec); got["status"] != "ok" || got["version"] != "test" {
		t.Errorf("body = %v", got)
	}
}

func TestListTenders(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	tests := []struct {
		name      string
		query     string
		wantTotal int
		wantFirst string
	}{
		{"hides expired by default", "", 2, ""},
		{"show expired", "?showExpired=true", 3, ""},
		{"search is case-insensitive", "?search=ASPHALT", 1, "Road asphalt repair"},
		{"search by purchase number", "?search=32615500001", 1, "MRI scanner maintenance"},
		{"sort by title ascending", "?showExpired=true&sortBy=title&sortDescending=false", 3, "MRI scanner maintenance"},
		{"deadline range", "?applicationDeadlineFrom=2026-03-11&applicationDeadlineTo=2026-03-13", 1, "Road asphalt repair"},
		{"page size clamps", "?showExpired=true&pageSize=1000", 3, ""},
		{"huge page is empty", "?showExpired=true&page=9223372036854775807", 3, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, "/api/tenders"+tt.query, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			page := decode[domain.TenderPage](t, rec)
			if page.TotalCount != tt.wantTotal {
				t.Errorf("totalCount = %d, want %d", page.TotalCount, tt.wantTotal)
			}
			if tt.wantFirst != "" && (len(page.Tenders) == 0 || page.Tenders[0].Title != tt.wantFirst) {
				t.Errorf("first tender = %+v, want %q", page.Tenders, tt.wantFirst)
			}
		})
	}
}

func TestListTendersRejectsBadParams(t *testing.T) {
	f := newFixture(t)

	for _, q := range []string{"?page=abc", "?queryId=x", "?fromDate=yesterday", "?showExpired=maybe"} {
		rec := f.do(t, http.MethodGet, "/api/tenders"+q, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, rec.Code)
			continue
		}
		if body := decode[map[string]string](t, rec); body["error"] == "" {
			t.Errorf("%s: missing error message", q)
		}
	}
}

func TestGetTender(t *testing.T) {
	f := newFixture(t)
	tenders := f.seed(t)

	rec := f.do(t, http.MethodGet, "/api/tenders/"+itoa(tenders[0].ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	got := decode[domain.Tender](t, rec)
	if got.ExternalID != tenders[0].ExternalID || got.MaxPrice == nil || got.MaxPrice.String() != "1500000.5" {
		t.Errorf("tender = %+v", got)
	}

	if rec := f.do(t, http.MethodGet, "/api/tenders/9999", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing tender status = %d, want 404", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/tenders/abc", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
}

func TestCountAndStats(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rec := f.do(t, http.MethodGet, "/api/tenders/count", "")
	if got := decode[map[string]int](t, rec); got["count"] != 3 {
		t.Errorf("count = %v, want 3", got)
	}

	rec = f.do(t, http.MethodGet, "/api/tenders/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	stats := decode[domain.TenderStats](t, rec)
	if stats.Total != 3 || stats.Active != 2 || stats.Expired != 1 {
		t.Errorf("stats = %+v, want 3/2/1", stats)
	}
	if !stats.LastUpdated.Equal(storetest.Epoch) {
		t.Errorf("lastUpdated = %v, want %v", stats.LastUpdated, storetest.Epoch)
	}
}

func TestExportTenders(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rec := f.do(t, http.MethodGet, "/api/tenders/export?sortBy=title&sortDescending=false", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("Content-Type = %q", ct)
	}

	wb, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer wb.Close()

	rows, err := wb.GetRows("Tenders")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "Purchase number" || rows[1][1] != "MRI scanner maintenance" || rows[2][1] != "Road asphalt repair" {
		t.Errorf("rows = %v", rows)
	}
}

func TestQueryCRUD(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(t, http.MethodPost, "/api/queries", `{"keyword":"   "}`); rec.Code != http.StatusBadRequest {
		t.Errorf("blank keyword status = %d, want 400", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/queries", `{"keyword":`); rec.Code != http.StatusBadRequest {
		t.Errorf("broken JSON status = %d, want 400", rec.Code)
	}

	rec := f.do(t, http.MethodPost, "/api/queries", `{"keyword":" асфальт ","category":"Roads"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	created := decode[domain.SavedQuery](t, rec)
	if created.Keyword != "асфальт" || !created.Active || created.ID == 0 {
		t.Errorf("created = %+v", created)
	}
	id := itoa(created.ID)

	rec = f.do(t, http.MethodPut, "/api/queries/"+id, `{"isActive":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}
	updated := decode[domain.SavedQuery](t, rec)
	if updated.Active || updated.Keyword != "асфальт" || updated.Category == nil || *updated.Category != "Roads" {
		t.Errorf("updated = %+v", updated)
	}

	rec = f.do(t, http.MethodGet, "/api/queries/active", "")
	if active := decode[[]domain.SavedQuery](t, rec); len(active) != 0 {
		t.Errorf("active = %+v, want none", active)
	}

	if rec := f.do(t, http.MethodDelete, "/api/queries/"+id, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/queries/"+id, ""); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, "/api/queries/"+id, ""); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestRunSearch(t *testing.T) {
	loop := scheduler.NewLoop(scheduler.LoopOptions{Name: "search", Schedule: scheduler.Every(time.Hour)},
		func(context.Context) error { return nil })
	f := newFixture(t, func(d *deps.Deps) { d.SearchLoop = loop })

	if rec := f.do(t, http.MethodPost, "/api/search/run", ""); rec.Code != http.StatusAccepted {
		t.Errorf("first trigger status = %d, want 202", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/search/run", ""); rec.Code != http.StatusTooManyRequests {
		t.Errorf("pending trigger status = %d, want 429", rec.Code)
	}

	idle := newFixture(t)
	if rec := idle.do(t, http.MethodPost, "/api/search/run", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("no loop status = %d, want 503", rec.Code)
	}
}

func TestInfraAndReadyz(t *testing.T) {
	loop := scheduler.NewLoop(scheduler.LoopOptions{Name: "retention", Schedule: scheduler.Every(time.Hour)},
		func(context.Context) error { return nil })
	f := newFixture(t, func(d *deps.Deps) { d.RetentionLoop = loop })

	if rec := f.do(t, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Errorf("readyz status = %d, want 200", rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/infra", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("infra status = %d", rec.Code)
	}
	var body struct {
		Mode       string `json:"mode"`
		Components map[string]struct {
			OK   bool   `json:"ok"`
			Mode string `json:"mode"`
		} `json:"components"`
		Loops map[string]struct {
			State   string `json:"state"`
			LastRun string `json:"last_run"`
		} `json:"loops"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Mode != "operational" {
		t.Errorf("mode = %q, want operational", body.Mode)
	}
	if s := body.Components["storage"]; !s.OK || s.Mode != "memory" {
		t.Errorf("storage = %+v", s)
	}
	if r := body.Components["redis"]; r.OK || r.Mode != "disabled" {
		t.Errorf("redis = %+v", r)
	}
	if l := body.Loops["retention"]; l.State != "idle" || l.LastRun != "never" {
		t.Errorf("retention loop = %+v", l)
	}
}

func TestOperationalEndpointsRespectCIDRs(t *testing.T) {
	f := newFixture(t, func(d *deps.Deps) {
		d.AllowedCIDRS = []string{"10.0.0.0/8"}
		d.TrustProxy = false
	})

	// httptest requests come from 192.0.2.1
	if rec := f.do(t, http.MethodGet, "/infra", ""); rec.Code != http.StatusForbidden {
		t.Errorf("infra status = %d, want 403", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/search/run", ""); rec.Code != http.StatusForbidden {
		t.Errorf("search run status = %d, want 403", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
}

func TestAPIRateLimit(t *testing.T) {
	f := newFixture(t, func(d *deps.Deps) {
		d.RateBurst = 1
		d.RatePerMin = 1
	})

	if rec := f.do(t, http.MethodGet, "/api/tenders/count", ""); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/tenders/count", ""); rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz is not rate limited, got %d", rec.Code)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
