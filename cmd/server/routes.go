package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	apikey "github.com/tendant/chi-demo/middleware"
	"github.com/tendant/page-modules/pkg/pagemodules"
	"github.com/tendant/page-modules/pkg/pagemodules/api"
	"github.com/tendant/page-modules/pkg/pagemodules/config"
)

const maxRequestBytes = 1 << 20

// newRouter mounts the module API under /api/v1. When an API key hash is
// configured every API route requires it.
func newRouter(svc pagemodules.Service, cfg *config.ServerConfig, logger *slog.Logger) (http.Handler, error) {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(api.LoggingMiddleware(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, http.StatusText(http.StatusOK))
	})
	r.Get("/healthz/ready", func(w http.ResponseWriter, r *http.Request) {
		if _, err := svc.ListActiveModuleTypes(r.Context()); err != nil {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		render.PlainText(w, r, http.StatusText(http.StatusOK))
	})

	var requireKey func(http.Handler) http.Handler
	if cfg.APIKeySHA256 != "" {
		mw, err := apikey.ApiKeyMiddleware(apikey.ApiKeyConfig{
			APIKeys: map[string]string{
				"key1": cfg.APIKeySHA256,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize API key middleware: %w", err)
		}
		requireKey = mw
	}

	moduleHandler := api.NewModuleHandler(svc)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.RequestSize(maxRequestBytes))
		if requireKey != nil {
			r.Use(requireKey)
		}
		r.Mount("/", moduleHandler.Routes())
	})

	return r, nil
}
