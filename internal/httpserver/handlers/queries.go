package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/tenders/internal/domain"
	"github.com/MrSnakeDoc/tenders/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tenders/internal/logger"
)

const maxQueryBody = 64 << 10

type createQueryRequest struct {
	Keyword  string  `json:"keyword"`
	Category *string `json:"category,omitempty"`
	Active   *bool   `json:"isActive,omitempty"`
}

func ListQueries(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs, err := d.Store.ListQueries(r.Context())
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(qs))
	}
}

func ListActiveQueries(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs, err := d.Store.ListActiveQueries(r.Context())
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(qs))
	}
}

func GetQuery(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		q, err := d.Store.GetQuery(r.Context(), id)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// CreateQuery adds a saved query. New queries are active unless isActive
// is explicitly false.
func CreateQuery(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createQueryRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, d.Logger, err)
			return
		}

		q := &domain.SavedQuery{
			Keyword:  strings.TrimSpace(req.Keyword),
			Category: req.Category,
			Active:   req.Active == nil || *req.Active,
		}
		created, err := d.Store.CreateQuery(r.Context(), q)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}

		d.Logger.Info("saved query created",
			logger.Int64("id", created.ID),
			logger.String("keyword", created.Keyword))
		writeJSON(w, http.StatusCreated, created)
	}
}

// UpdateQuery applies a partial update.
func UpdateQuery(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}

		var patch domain.QueryPatch
		if err := decodeBody(w, r, &patch); err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		if patch.Keyword != nil {
			k := strings.TrimSpace(*patch.Keyword)
			patch.Keyword = &k
		}

		updated, err := d.Store.UpdateQuery(r.Context(), id, patch)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

// DeleteQuery removes a saved query. Tenders it found are kept.
func DeleteQuery(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			writeError(w, r, d.Logger, err)
			return
		}
		if err := d.Store.DeleteQuery(r.Context(), id); err != nil {
			writeError(w, r, d.Logger, err)
			return
		}

		d.Logger.Info("saved query deleted", logger.Int64("id", id))
		w.WriteHeader(http.StatusNoContent)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &domain.ValidationError{Field: "body", Msg: "invalid JSON: " + err.Error()}
	}
	return nil
}

func nonNil(qs []*domain.SavedQuery) []*domain.SavedQuery {
	if qs == nil {
		return []*domain.SavedQuery{}
	}
	return qs
}
