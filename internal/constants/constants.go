package constants

import "time"

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

// Minimum spacing between consecutive per-item detail calls against one
// upstream. Removing these measurably raises 429 rates on larger libraries.
const (
	SteamDetailInterval = 100 * time.Millisecond
	PSNDetailInterval   = 130 * time.Millisecond
	XboxDetailInterval  = 150 * time.Millisecond
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)
