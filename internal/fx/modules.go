package fx

import (
	"fmt"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"questlog/internal/config"
	"questlog/internal/database"
	"questlog/internal/handler"
	"questlog/internal/logger"
	"questlog/internal/platform"
	"questlog/internal/platform/psn"
	"questlog/internal/platform/steam"
	"questlog/internal/platform/xbox"
	"questlog/internal/repository"
	"questlog/internal/router"
	"questlog/internal/service"
)

// ProvideStore selects the snapshot store backend from configuration.
func ProvideStore(cfg *config.Config, log zerolog.Logger) (repository.Store, error) {
	switch cfg.Store.Type {
	case "redis":
		return repository.NewRedisStore(cfg.Store, log)
	case "sqlite":
		db, err := database.New(cfg, log)
		if err != nil {
			return nil, err
		}
		return repository.NewSQLiteStore(db, log), nil
	default:
		return nil, fmt.Errorf("unsupported store type %q", cfg.Store.Type)
	}
}

// ProvideRegistry registers every platform the configuration enables.
// PSN needs no server-side key; Steam and Xbox are skipped without one.
func ProvideRegistry(cfg *config.Config, log zerolog.Logger) *platform.Registry {
	registry := platform.NewRegistry()

	if cfg.Steam.APIKey != "" {
		registry.Register(steam.New(cfg.Steam))
	} else {
		log.Warn().Msg("STEAM_API_KEY not set, steam platform disabled")
	}

	registry.Register(psn.New(cfg.PSN))

	if cfg.Xbox.APIKey != "" {
		registry.Register(xbox.New(cfg.Xbox))
	} else {
		log.Warn().Msg("XBOX_API_KEY not set, xbox platform disabled")
	}

	log.Info().Interface("platforms", registry.Tags()).Msg("platform registry ready")
	return registry
}

func ProvideSyncConfig(cfg *config.Config) config.SyncConfig {
	return cfg.Sync
}

func ProvideRouter(h *handler.Handler, lh *handler.LibraryHandler, log zerolog.Logger) *chi.Mux {
	return router.New(router.Config{
		Handler:        h,
		LibraryHandler: lh,
		Logger:         log,
	})
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(ProvideStore),
	fx.Provide(ProvideRegistry),
	fx.Provide(ProvideSyncConfig),
	// svc
	fx.Provide(service.NewLibraryService),
	fx.Provide(service.NewAchievementService),
	fx.Provide(service.NewAggregateService),
	// http
	fx.Provide(handler.New),
	fx.Provide(handler.NewLibraryHandler),
	fx.Provide(ProvideRouter),
)
