package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	widgetHandler "github.com/stenlabs/sten/backend/internal/handler/widget"
	middlewarePkg "github.com/stenlabs/sten/backend/internal/middleware"
	widgetModel "github.com/stenlabs/sten/backend/internal/model/widget"
	analysisService "github.com/stenlabs/sten/backend/internal/service/analysis"
	sessionService "github.com/stenlabs/sten/backend/internal/service/session"
	"github.com/stenlabs/sten/backend/internal/store"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(registry widgetModel.Registry, sessionSvc *sessionService.Service, analyzer *analysisService.Service, records store.Store) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	h := widgetHandler.New(registry, sessionSvc, analyzer, records, records)

	r.Route("/api", func(api chi.Router) {
		h.RegisterRoutes(api)
	})

	return r
}
