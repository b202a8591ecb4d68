package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/tenders/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tenders/internal/httpserver/handlers"
)

func init() { RegisterAPI(registerTenders) }

func registerTenders(r chi.Router, d deps.Deps) {
	r.Get("/tenders", handlers.ListTenders(d))
	r.Get("/tenders/count", handlers.CountTenders(d))
	r.Get("/tenders/stats", handlers.TenderStats(d))
	r.Get("/tenders/export", handlers.ExportTenders(d))
	r.Get("/tenders/{id}", handlers.GetTender(d))
}
