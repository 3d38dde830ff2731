package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/35000ft/next-train-bot/internal/config"
	"github.com/35000ft/next-train-bot/internal/flights"
	"github.com/35000ft/next-train-bot/internal/radar"
	"github.com/35000ft/next-train-bot/internal/storage/sqlite"
	"github.com/35000ft/next-train-bot/internal/weather"
	"github.com/35000ft/next-train-bot/pkg/logger"
)

// Router is the API router
type Router struct {
	handler    *Handler
	middleware *Middleware
	config     *config.Config
	logger     *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(registry *flights.Registry, weatherClient *weather.Client, radarService *radar.Service, preferences *sqlite.PreferenceStorage, cfg *config.Config, log *logger.Logger) *Router {
	return &Router{
		handler:    NewHandler(registry, weatherClient, radarService, preferences, cfg, log),
		middleware: NewMiddleware(log),
		config:     cfg,
		logger:     log.Named("api-router"),
	}
}

// Routes returns the API routes
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	router.Use(r.middleware.RequestID)
	router.Use(r.middleware.Logger)
	router.Use(r.middleware.Recoverer)
	router.Use(r.middleware.CORS(r.config.Server.CORSAllowedOrigins))

	router.Route("/api/v1", func(router chi.Router) {
		// Flight board routes
		router.Get("/airports", r.handler.GetAirports)
		router.Get("/flights/{airport}", r.handler.GetFlights)

		// Weather routes
		router.Get("/wx/{station}", r.handler.GetWeather)
		router.Get("/radar/{station}", r.handler.GetRadarImage)

		// Preference routes
		router.Get("/preferences", r.handler.GetPreference)
		router.Post("/preferences", r.handler.SetPreference)

		// Health check
		router.Get("/health", r.handler.GetHealth)
	})

	return router
}
