package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"questlog/internal/handler"
	"questlog/internal/middleware"
	"questlog/internal/response"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler        *handler.Handler
	LibraryHandler *handler.LibraryHandler
	Logger         zerolog.Logger
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", handler.CredentialHeader},
		ExposedHeaders:   []string{"X-Request-ID", response.SyncSourceHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID(cfg.Logger))
	r.Use(c.Handler)

	r.Get("/api/status", cfg.Handler.Status)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", cfg.Handler.Health)
		r.Get("/platforms", cfg.Handler.Platforms)

		r.Get("/library/games", cfg.LibraryHandler.AggregateGames)

		r.Route("/{platform}/user/{userKey}", func(r chi.Router) {
			r.Get("/games", cfg.LibraryHandler.PlatformGames)
			r.Get("/games/{itemID}/achievements", cfg.LibraryHandler.ItemAchievements)
		})
	})

	return r
}
