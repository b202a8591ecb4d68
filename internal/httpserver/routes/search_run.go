package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/tenders/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tenders/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/tenders/internal/httpserver/mw"
)

func init() { RegisterAPI(registerSearchRun) }

func registerSearchRun(r chi.Router, d deps.Deps) {
	r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)).Post("/search/run", handlers.RunSearch(d))
}
