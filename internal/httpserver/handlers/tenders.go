package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/tenders/internal/domain"
	"github.com/MrSnakeDoc/tenders/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tenders/internal/logger"
)

type countResponse struct {
	Count int `json:"count"`
}

type statsResponse struct {
	*domain.TenderStats
	LastSearch *domain.CycleReport `json:"lastSearch,omitempty"`
	LastSweep  *domain.SweepReport `json:"lastSweep,omitempty"`
}

// ListTenders serves one filtered, sorted page of tenders.
func ListTenders(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parseTenderFilter(r.URL.Query(), d.Now())
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}

		page, err := d.Store.ListTenders(r.Context(), f)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func GetTender(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}

		t, err := d.Store.GetTender(r.Context(), id)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func CountTenders(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := d.Store.CountTenders(r.Context())
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, countResponse{Count: n})
	}
}

// TenderStats reports totals. With redis enabled the totals are served
// from cache and the last search and sweep reports are attached.
func TenderStats(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		resp := statsResponse{}

		if d.Cache != nil {
			cached, err := d.Cache.CachedStats(ctx)
			if err != nil {
				d.Logger.Warn("failed to read cached stats", logger.Error(err))
			}
			resp.TenderStats = cached
		}

		if resp.TenderStats == nil {
			stats, err := d.Store.Stats(ctx, d.Now())
			if err != nil {
				writeError(w, r, d.Logger, err)
				return
			}
			resp.TenderStats = stats
			if d.Cache != nil {
				if err := d.Cache.CacheStats(ctx, stats); err != nil {
					d.Logger.Warn("failed to cache stats", logger.Error(err))
				}
			}
		}

		if d.Cache != nil {
			var err error
			if resp.LastSearch, err = d.Cache.LastCycleReport(ctx); err != nil {
				d.Logger.Warn("failed to read last search report", logger.Error(err))
			}
			if resp.LastSweep, err = d.Cache.LastSweepReport(ctx); err != nil {
				d.Logger.Warn("failed to read last sweep report", logger.Error(err))
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
