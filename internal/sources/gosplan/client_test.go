package gosplan

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrSnakeDoc/tenders/internal/clock"
	"github.com/MrSnakeDoc/tenders/internal/domain"
	"github.com/MrSnakeDoc/tenders/internal/logger"
	"github.com/MrSnakeDoc/tenders/internal/ratelimit"
)

type recordedRequest struct {
	path   string
	query  map[string]string
	ua     string
	accept string
}

type fakeUpstream struct {
	mu       sync.Mutex
	requests []recordedRequest
	bodies   map[string]string
	status   map[string]int
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	q := map[string]string{}
	for k := range r.URL.Query() {
		q[k] = r.URL.Query().Get(k)
	}
	f.requests = append(f.requests, recordedRequest{
		path:   r.URL.Path,
		query:  q,
		ua:     r.Header.Get("User-Agent"),
		accept: r.Header.Get("Accept"),
	})
	status, body := f.status[r.URL.Path], f.bodies[r.URL.Path]
	f.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
	}
	_, _ = w.Write([]byte(body))
}

func newTestClient(t *testing.T, up *fakeUpstream) (*Client, *clock.Fake) {
	t.Helper()
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)

	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	spacer := ratelimit.NewSpacer(time.Second, fc, logger.NewNop())
	c := NewClient(Options{BaseURL: srv.URL + "/api/v2/"}, spacer, logger.NewNop())
	return c, fc
}

func TestClientSearchBothRegimes(t *testing.T) {
	up := &fakeUpstream{bodies: map[string]string{
		"/api/v2/fz44/purchases":  `[{"purchase_number":"A1","object_info":"Paper"},{"purchase_number":"A2","object_info":"Pens"}]`,
		"/api/v2/fz223/purchases": `{"data":[{"purchase_number":"B1","object_info":"Fuel"}],"total":1}`,
	}}
	c, fc := newTestClient(t, up)

	qid := int64(3)
	tenders, err := c.Search(context.Background(), "paper", &qid, SearchOptions{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	want := []string{"A1", "A2", "B1"}
	if len(tenders) != len(want) {
		t.Fatalf("Search() returned %d tenders, want %d", len(tenders), len(want))
	}
	for i, id := range want {
		if tenders[i].ExternalID != id {
			t.Errorf("tenders[%d].ExternalID = %v, want %v", i, tenders[i].ExternalID, id)
		}
		if tenders[i].QueryID == nil || *tenders[i].QueryID != qid {
			t.Errorf("tenders[%d].QueryID = %v, want %d", i, tenders[i].QueryID, qid)
		}
	}

	if len(up.requests) != 2 {
		t.Fatalf("upstream saw %d requests, want 2", len(up.requests))
	}
	if up.requests[0].path != "/api/v2/fz44/purchases" || up.requests[1].path != "/api/v2/fz223/purchases" {
		t.Errorf("request order = %v, %v", up.requests[0].path, up.requests[1].path)
	}
	for _, r := range up.requests {
		if r.query["search_description"] != "paper" {
			t.Errorf("search_description = %q, want paper", r.query["search_description"])
		}
		if r.query["limit"] != "100" {
			t.Errorf("limit = %q, want 100", r.query["limit"])
		}
		if r.ua != DefaultUserAgent {
			t.Errorf("User-Agent = %q, want %q", r.ua, DefaultUserAgent)
		}
		if r.accept != "application/json" {
			t.Errorf("Accept = %q, want application/json", r.accept)
		}
	}

	// second regime request waited for the spacer
	if sleeps := fc.Sleeps(); len(sleeps) != 1 || sleeps[0] != time.Second {
		t.Errorf("spacer sleeps = %v, want [1s]", sleeps)
	}
}

func TestClientSearchFilters(t *testing.T) {
	up := &fakeUpstream{bodies: map[string]string{
		"/api/v2/fz44/purchases":  `[]`,
		"/api/v2/fz223/purchases": `[]`,
	}}
	c, _ := newTestClient(t, up)

	from := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	minPrice := decimal.NewFromInt(1000)
	_, err := c.Search(context.Background(), "road", nil, SearchOptions{
		DeadlineFrom: &from,
		MinPrice:     &minPrice,
		Region:       "77",
		Limit:        10,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	q := up.requests[0].query
	if q["deadline_from"] != "2026-05-01T00:00:00Z" {
		t.Errorf("deadline_from = %q", q["deadline_from"])
	}
	if q["max_price_from"] != "1000" {
		t.Errorf("max_price_from = %q", q["max_price_from"])
	}
	if q["region"] != "77" || q["limit"] != "10" {
		t.Errorf("region/limit = %q/%q", q["region"], q["limit"])
	}
	if _, ok := q["deadline_to"]; ok {
		t.Error("deadline_to sent although unset")
	}
}

func TestClientSearchBasicLimit(t *testing.T) {
	up := &fakeUpstream{bodies: map[string]string{
		"/api/v2/fz44/purchases":  `[]`,
		"/api/v2/fz223/purchases": `[]`,
	}}
	c, _ := newTestClient(t, up)

	if _, err := c.SearchBasic(context.Background(), "x", nil); err != nil {
		t.Fatalf("SearchBasic() error = %v", err)
	}
	if got := up.requests[0].query["limit"]; got != "50" {
		t.Errorf("limit = %q, want 50", got)
	}
}

func TestClientSearchErrors(t *testing.T) {
	tests := []struct {
		name       string
		up         *fakeUpstream
		wantStatus int
		malformed  bool
		requests   int
	}{
		{
			name: "non-2xx on first regime",
			up: &fakeUpstream{
				status: map[string]int{"/api/v2/fz44/purchases": http.StatusBadGateway},
			},
			wantStatus: http.StatusBadGateway,
			requests:   1,
		},
		{
			name: "non-2xx on second regime",
			up: &fakeUpstream{
				bodies: map[string]string{"/api/v2/fz44/purchases": `[]`},
				status: map[string]int{"/api/v2/fz223/purchases": http.StatusTooManyRequests},
			},
			wantStatus: http.StatusTooManyRequests,
			requests:   2,
		},
		{
			name: "malformed json",
			up: &fakeUpstream{
				bodies: map[string]string{"/api/v2/fz44/purchases": `{"data": [`},
			},
			malformed: true,
			requests:  1,
		},
		{
			name: "html instead of json",
			up: &fakeUpstream{
				bodies: map[string]string{"/api/v2/fz44/purchases": `<html></html>`},
			},
			malformed: true,
			requests:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, tt.up)

			tenders, err := c.Search(context.Background(), "k", nil, SearchOptions{})
			if err == nil {
				t.Fatal("Search() error = nil, want error")
			}
			if tenders != nil {
				t.Errorf("Search() returned %d tenders on error", len(tenders))
			}
			if !domain.IsUpstreamError(err) {
				t.Errorf("IsUpstreamError(%v) = false", err)
			}

			var te *domain.TransportError
			var me *domain.MalformedResponseError
			switch {
			case tt.malformed:
				if !errors.As(err, &me) {
					t.Errorf("error = %T, want *MalformedResponseError", err)
				} else if me.Keyword != "k" {
					t.Errorf("Keyword = %q, want k", me.Keyword)
				}
			default:
				if !errors.As(err, &te) {
					t.Fatalf("error = %T, want *TransportError", err)
				}
				if te.StatusCode != tt.wantStatus {
					t.Errorf("StatusCode = %d, want %d", te.StatusCode, tt.wantStatus)
				}
			}

			if len(tt.up.requests) != tt.requests {
				t.Errorf("upstream saw %d requests, want %d", len(tt.up.requests), tt.requests)
			}
		})
	}
}

func TestClientSearchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Options{BaseURL: url}, ratelimit.NewSpacer(time.Millisecond, nil, nil), nil)
	_, err := c.Search(context.Background(), "k", nil, SearchOptions{})

	var te *domain.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
	if te.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", te.StatusCode)
	}
}

func TestClientSearchCancelled(t *testing.T) {
	up := &fakeUpstream{bodies: map[string]string{"/api/v2/fz44/purchases": `[]`}}
	c, _ := newTestClient(t, up)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Search(ctx, "k", nil, SearchOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if len(up.requests) != 0 {
		t.Errorf("upstream saw %d requests, want 0", len(up.requests))
	}
}
