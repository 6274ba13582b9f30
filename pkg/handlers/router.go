package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"moveout/pkg/errors"
	"moveout/pkg/middleware"
)

// NewRouter wires the API, health and metrics endpoints and, when staticDir
// is set, the browser front end.
func NewRouter(api *APIHandlers, staticDir string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics)

	r.Get("/health", HealthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", api.Routes)

	if staticDir != "" {
		r.NotFound(spaHandler(staticDir))
	}
	return r
}

// spaHandler serves files from dir and falls back to index.html so client
// side routes like /?category=Books resolve.
func spaHandler(dir string) http.HandlerFunc {
	files := http.FileServer(http.Dir(dir))
	return func(w http.ResponseWriter, r *http.Request) {
		if isAPIPath(r.URL.Path) {
			errors.WriteJSON(w, errors.New(errors.ErrTypeNotFound, "ROUTE_NOT_FOUND", "no such endpoint"))
			return
		}

		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		files.ServeHTTP(w, r)
	}
}
