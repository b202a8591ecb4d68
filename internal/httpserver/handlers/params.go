package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/tenders/internal/domain"
)

// dateLayouts are the accepted query-string time formats. Dates without a
// zone are UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTenderFilter reads the list/export query string. Unknown sort keys
// fall back to savedAt; malformed numbers, dates and booleans are rejected.
func parseTenderFilter(q url.Values, now time.Time) (domain.TenderFilter, error) {
	f := domain.TenderFilter{
		Search:         q.Get("search"),
		SortBy:         q.Get("sortBy"),
		SortDescending: true,
		Now:            now,
	}

	var err error
	if f.Page, err = intParam(q, "page"); err != nil {
		return f, err
	}
	if f.PageSize, err = intParam(q, "pageSize"); err != nil {
		return f, err
	}
	if v := q.Get("queryId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, &domain.ValidationError{Field: "queryId", Msg: "must be an integer"}
		}
		f.QueryID = &id
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"fromDate", &f.SavedFrom},
		{"toDate", &f.SavedTo},
		{"applicationDeadlineFrom", &f.DeadlineFrom},
		{"applicationDeadlineTo", &f.DeadlineTo},
	} {
		if *p.dst, err = timeParam(q, p.name); err != nil {
			return f, err
		}
	}

	if v := q.Get("showExpired"); v != "" {
		if f.ShowExpired, err = strconv.ParseBool(v); err != nil {
			return f, &domain.ValidationError{Field: "showExpired", Msg: "must be true or false"}
		}
	}
	if v := q.Get("sortDescending"); v != "" {
		if f.SortDescending, err = strconv.ParseBool(v); err != nil {
			return f, &domain.ValidationError{Field: "sortDescending", Msg: "must be true or false"}
		}
	}

	return f.Normalize(), nil
}

func intParam(q url.Values, name string) (int, error) {
	v := q.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &domain.ValidationError{Field: name, Msg: "must be an integer"}
	}
	return n, nil
}

func timeParam(q url.Values, name string) (*time.Time, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, &domain.ValidationError{Field: name, Msg: "must be a date (YYYY-MM-DD) or RFC 3339 timestamp"}
}

func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, &domain.ValidationError{Field: "id", Msg: "must be a positive integer"}
	}
	return id, nil
}
