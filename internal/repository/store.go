package repository

import (
	"context"
	"time"

	"questlog/internal/domain"
)

// Store is the snapshot cache behind the sync pipeline. Implementations
// are upsert-only: items are never deleted, a stale row simply stops
// being served.
type Store interface {
	// FindFresh returns the cached library rows synced within maxAge,
	// ordered by title. An empty result is a cache miss.
	FindFresh(ctx context.Context, platform domain.Platform, userKey string, maxAge time.Duration) ([]domain.PlatformItem, error)

	// Upsert inserts or replaces one item snapshot.
	Upsert(ctx context.Context, item domain.PlatformItem) error

	// FindFreshAchievements returns the cached achievement rows for one
	// item when the whole set was fetched within maxAge.
	FindFreshAchievements(ctx context.Context, platform domain.Platform, userKey, itemID string, maxAge time.Duration) ([]domain.AchievementDetail, error)

	// UpsertAchievements replaces the achievement set for one item.
	UpsertAchievements(ctx context.Context, platform domain.Platform, userKey, itemID string, rows []domain.AchievementDetail) error

	Close() error
}
