package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/tenders/internal/httpserver/deps"
)

type componentStatus struct {
	OK     bool   `json:"ok"`
	Mode   string `json:"mode,omitempty"`
	Impact string `json:"impact,omitempty"`
	Error  string `json:"error,omitempty"`
}

type loopStatus struct {
	State   string `json:"state"`
	Runs    int64  `json:"runs"`
	LastRun string `json:"last_run"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
	Loops      map[string]loopStatus      `json:"loops"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		components := map[string]componentStatus{
			"storage": checkStorage(ctx, d),
			"redis":   checkRedis(ctx, d),
		}

		loops := make(map[string]loopStatus)
		for _, l := range d.Loops() {
			lastRun := "never"
			if t := l.LastRun(); !t.IsZero() {
				lastRun = t.UTC().Format(time.RFC3339)
			}
			loops[l.Name()] = loopStatus{
				State:   l.State().String(),
				Runs:    l.Runs(),
				LastRun: lastRun,
			}
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
			Loops:      loops,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	if storage, exists := components["storage"]; exists && !storage.OK {
		return "critical" // nothing can be stored or served
	}
	if redis, exists := components["redis"]; exists && !redis.OK && redis.Mode != "disabled" {
		return "degraded"
	}
	return "operational"
}

func checkStorage(ctx context.Context, d deps.Deps) componentStatus {
	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{OK: false, Mode: d.Storage, Error: err.Error()}
	}
	return componentStatus{OK: true, Mode: d.Storage}
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.Cache == nil {
		return componentStatus{
			OK:     false,
			Mode:   "disabled",
			Impact: "stats-cache-disabled",
		}
	}

	if err := d.Cache.Ping(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "stats-cache-disabled",
			Error:  "timeout",
		}
	}

	return componentStatus{
		OK:     true,
		Mode:   "optimal",
		Impact: "stats-cache-enabled",
	}
}
