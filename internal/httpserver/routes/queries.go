package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/tenders/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tenders/internal/httpserver/handlers"
)

func init() { RegisterAPI(registerQueries) }

func registerQueries(r chi.Router, d deps.Deps) {
	r.Get("/queries", handlers.ListQueries(d))
	r.Post("/queries", handlers.CreateQuery(d))
	r.Get("/queries/active", handlers.ListActiveQueries(d))
	r.Get("/queries/{id}", handlers.GetQuery(d))
	r.Put("/queries/{id}", handlers.UpdateQuery(d))
	r.Delete("/queries/{id}", handlers.DeleteQuery(d))
}
