package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/valkey-io/valkey-go"

	apihandler "github.com/bzfxn6/gas/internal/api/handler"
	apimw "github.com/bzfxn6/gas/internal/api/middleware"
	"github.com/bzfxn6/gas/internal/pipeline"
	"github.com/bzfxn6/gas/internal/store"
)

// RouterDeps holds the dependencies the router wires into handlers.
type RouterDeps struct {
	Store    store.ObjectStore
	Bucket   string
	Producer *pipeline.Producer
	Valkey   valkey.Client
}

func NewRouter(logger *slog.Logger, deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(apimw.Logger(logger))
	r.Use(apimw.CORS)
	r.Use(chimw.Recoverer)

	// Health checks
	health := apihandler.NewHealthHandler(deps.Valkey)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		batches := apihandler.NewBatchHandler(logger, deps.Producer, deps.Bucket)
		validation := apihandler.NewValidationHandler(logger, deps.Store, deps.Bucket)
		results := apihandler.NewResultHandler(logger, deps.Store, deps.Bucket)

		r.Route("/batches", func(r chi.Router) {
			r.Post("/", batches.Submit)
			r.Route("/{batchID}", func(r chi.Router) {
				r.Get("/validation", validation.Get)
				r.Get("/validation/errors", validation.Errors)
				r.Get("/chunks", results.Manifest)
				r.Get("/result", results.Final)
			})
		})
	})

	return r
}
