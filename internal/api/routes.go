package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/apexf1/pitwall/internal/collector"
	"github.com/apexf1/pitwall/internal/config"
	"github.com/apexf1/pitwall/internal/replay"
	"github.com/apexf1/pitwall/pkg/logger"
)

// Router is the API router
type Router struct {
	handler    *Handler
	middleware *Middleware
	config     *config.Config
	logger     *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(collectorService *collector.Service, aligner *replay.Aligner, cfg *config.Config, log *logger.Logger) *Router {
	return &Router{
		handler:    NewHandler(collectorService, aligner, log),
		middleware: NewMiddleware(log),
		config:     cfg,
		logger:     log.Named("api-router"),
	}
}

// Routes returns the API routes
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(r.middleware.RequestID)
	router.Use(r.middleware.Logger)
	router.Use(r.middleware.Recoverer)
	router.Use(r.middleware.CORS(r.config.Server.CORSAllowedOrigins))

	// API routes
	router.Route("/api/v1", func(router chi.Router) {
		// Health check
		router.Get("/health", r.handler.GetHealth)

		// Race calendar
		router.Get("/sessions", r.handler.GetSessions)

		// Per-session datasets
		router.Get("/sessions/{sessionKey}/training", r.handler.GetTrainingData)
		router.Get("/sessions/{sessionKey}/replay", r.handler.GetReplay)
		router.Get("/sessions/{sessionKey}/leaderboard", r.handler.GetLeaderboard)
	})

	return router
}
