// Package api serves read-only JSON access to sessions and analysis reports.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the routes of app.
func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)
	r.Get("/songs", app.SongsHandler)
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", app.SessionsHandler)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/report", app.ReportHandler)
			r.Get("/runs", app.RunsHandler)
			r.Get("/attempts/{n}/window", app.WindowHandler)
			r.Get("/attempts/{n}/roll.png", app.RollHandler)
		})
	})
	return r
}
