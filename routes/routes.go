package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dndsage/oracle/app"
	"github.com/dndsage/oracle/handlers"
	"github.com/dndsage/oracle/middleware"
	"github.com/dndsage/oracle/utils"
)

// NewRouter wires the HTTP surface: health probes, the ask endpoint, the
// source listings, and the admin reload.
func NewRouter(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	askHandler := handlers.NewAskHandler(deps.Engine, deps.Logger)
	healthHandler := handlers.NewHealthHandler(deps.Engine, deps.Logger)
	sourcesHandler := handlers.NewSourcesHandler(deps.Engine, deps.Logger)
	reloadHandler := handlers.NewReloadHandler(deps.Engine, deps.Logger)

	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/ask", askHandler.Ask)
		r.Get("/sources/{type}", sourcesHandler.List)
		r.Post("/admin/reload", reloadHandler.Reload)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFound(w, "Route not found")
	})

	return r
}
