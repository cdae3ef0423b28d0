package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"questlog/internal/config"
	"questlog/internal/constants"
	"questlog/internal/domain"
)

const redisKeyPrefix = "questlog"

// RedisStore keeps library snapshots in one hash per (platform, user)
// pair and achievement sets in one value per item. Freshness is judged
// from timestamps inside the stored JSON, not key TTLs, because the
// window varies per request.
type RedisStore struct {
	client *redis.Client
	logger zerolog.Logger
}

func NewRedisStore(cfg config.StoreConfig, logger zerolog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddress(),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     20,
		MinIdleConns: 5,
		ReadTimeout:  constants.DatabaseTimeout,
		WriteTimeout: constants.DatabaseTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info().Str("addr", cfg.RedisAddress()).Int("db", cfg.RedisDB).Msg("redis store connected")
	return &RedisStore{
		client: client,
		logger: logger,
	}, nil
}

var _ Store = (*RedisStore)(nil)

func libraryKey(platform domain.Platform, userKey string) string {
	return fmt.Sprintf("%s:library:%s:%s", redisKeyPrefix, platform, userKey)
}

func achievementsKey(platform domain.Platform, userKey, itemID string) string {
	return fmt.Sprintf("%s:achievements:%s:%s:%s", redisKeyPrefix, platform, userKey, itemID)
}

func (s *RedisStore) FindFresh(ctx context.Context, platform domain.Platform, userKey string, maxAge time.Duration) ([]domain.PlatformItem, error) {
	values, err := s.client.HGetAll(ctx, libraryKey(platform, userKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read library hash: %w", err)
	}

	cutoff := time.Now().UTC().Add(-maxAge)
	items := make([]domain.PlatformItem, 0, len(values))
	for field, raw := range values {
		var item domain.PlatformItem
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			s.logger.Warn().Str("field", field).Err(err).Msg("dropping unreadable library snapshot")
			continue
		}
		if item.LastSyncedAt.Before(cutoff) {
			continue
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return nil, nil
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Title < items[j].Title })
	return items, nil
}

func (s *RedisStore) Upsert(ctx context.Context, item domain.PlatformItem) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}
	if err := s.client.HSet(ctx, libraryKey(item.Platform, item.UserKey), item.ItemID, raw).Err(); err != nil {
		return fmt.Errorf("failed to write library snapshot: %w", err)
	}
	return nil
}

// achievementSet is the stored shape of one item's achievement rows.
type achievementSet struct {
	FetchedAt time.Time                  `json:"fetched_at"`
	Rows      []domain.AchievementDetail `json:"rows"`
}

func (s *RedisStore) FindFreshAchievements(ctx context.Context, platform domain.Platform, userKey, itemID string, maxAge time.Duration) ([]domain.AchievementDetail, error) {
	raw, err := s.client.Get(ctx, achievementsKey(platform, userKey, itemID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read achievement set: %w", err)
	}

	var set achievementSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("failed to decode achievement set: %w", err)
	}
	if set.FetchedAt.Before(time.Now().UTC().Add(-maxAge)) {
		return nil, nil
	}
	return set.Rows, nil
}

func (s *RedisStore) UpsertAchievements(ctx context.Context, platform domain.Platform, userKey, itemID string, rows []domain.AchievementDetail) error {
	if len(rows) == 0 {
		return nil
	}

	raw, err := json.Marshal(achievementSet{FetchedAt: time.Now().UTC(), Rows: rows})
	if err != nil {
		return fmt.Errorf("failed to marshal achievement set: %w", err)
	}
	if err := s.client.Set(ctx, achievementsKey(platform, userKey, itemID), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to write achievement set: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
