package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// Config holds all application configuration loaded from environment
// variables (an optional .env file is read first).
type Config struct {
	Server ServerConfig
	Store  StoreConfig
	Sync   SyncConfig
	Steam  SteamConfig
	PSN    PSNConfig
	Xbox   XboxConfig
}

type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// StoreConfig selects and configures the snapshot store backend.
type StoreConfig struct {
	Type string `envconfig:"STORE_TYPE" default:"sqlite"` // sqlite or redis

	SQLitePath string `envconfig:"STORE_SQLITE_PATH" default:"./data/questlog.db"`

	RedisHost     string `envconfig:"STORE_REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"STORE_REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"STORE_REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"STORE_REDIS_DB" default:"0"`
}

type SyncConfig struct {
	FreshnessWindow            time.Duration `envconfig:"SYNC_FRESHNESS_WINDOW" default:"24h"`
	AchievementFreshnessWindow time.Duration `envconfig:"SYNC_ACHIEVEMENT_FRESHNESS_WINDOW" default:"6h"`
}

// SteamConfig carries the server-side Web API key. Steam is not registered
// when the key is absent.
type SteamConfig struct {
	APIKey  string `envconfig:"STEAM_API_KEY" default:""`
	BaseURL string `envconfig:"STEAM_BASE_URL" default:"https://api.steampowered.com"`
}

// PSNConfig has no server-side secret: the per-user NPSSO credential arrives
// with each request.
type PSNConfig struct {
	BaseURL     string `envconfig:"PSN_BASE_URL" default:"https://m.np.playstation.com"`
	AuthBaseURL string `envconfig:"PSN_AUTH_BASE_URL" default:"https://ca.account.sony.com"`
}

// XboxConfig carries the OpenXBL-style app key. Xbox is not registered when
// the key is absent.
type XboxConfig struct {
	APIKey  string `envconfig:"XBOX_API_KEY" default:""`
	BaseURL string `envconfig:"XBOX_BASE_URL" default:"https://xbl.io"`
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *StoreConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", s.RedisHost, s.RedisPort)
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	switch cfg.Store.Type {
	case "sqlite", "redis":
	default:
		return nil, fmt.Errorf("unsupported STORE_TYPE %q", cfg.Store.Type)
	}

	if cfg.Sync.FreshnessWindow <= 0 {
		return nil, fmt.Errorf("SYNC_FRESHNESS_WINDOW must be positive")
	}

	logger.Info().
		Str("store_type", cfg.Store.Type).
		Str("server_addr", cfg.Server.Address()).
		Dur("freshness_window", cfg.Sync.FreshnessWindow).
		Bool("steam_configured", cfg.Steam.APIKey != "").
		Bool("xbox_configured", cfg.Xbox.APIKey != "").
		Msg("configuration loaded")

	return &cfg, nil
}

var Module = fx.Provide(Load)
