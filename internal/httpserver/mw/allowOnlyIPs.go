package mw

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/tenders/internal/logger"
	"github.com/MrSnakeDoc/tenders/internal/utils"
)

// AllowOnlyCIDRS guards operational endpoints (readiness, infra, manual
// search trigger). An empty list disables the check.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(allowed)
	if m.IsEmpty() {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if m.Allow(ip) {
				next.ServeHTTP(w, r)
				return
			}

			log.Warn("ops endpoint refused",
				logger.String("client_ip", ip),
				logger.String("path", r.URL.Path),
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "forbidden"})
		})
	}
}
