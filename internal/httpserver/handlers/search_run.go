package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/tenders/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tenders/internal/logger"
)

type triggerResponse struct {
	Triggered bool   `json:"triggered"`
	Message   string `json:"message"`
}

// RunSearch wakes the search loop for an immediate cycle.
func RunSearch(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.SearchLoop == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "search scheduler is not running"})
			return
		}

		if !d.SearchLoop.Trigger() {
			d.Logger.Warn("search cycle already requested",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusTooManyRequests, triggerResponse{
				Triggered: false,
				Message:   "a search cycle is already pending, please wait",
			})
			return
		}

		d.Logger.Info("manual search cycle triggered via endpoint",
			logger.String("remote_ip", r.RemoteAddr))
		writeJSON(w, http.StatusAccepted, triggerResponse{
			Triggered: true,
			Message:   "search cycle triggered",
		})
	}
}
