package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"questlog/internal/constants"
	"questlog/internal/domain"
	"questlog/internal/platform"
	"questlog/internal/repository"
)

type AchievementService struct {
	registry *platform.Registry
	store    repository.Store
	logger   zerolog.Logger
}

func NewAchievementService(registry *platform.Registry, store repository.Store, logger zerolog.Logger) *AchievementService {
	return &AchievementService{registry: registry, store: store, logger: logger}
}

// Sync returns the achievement rows for one owned item, cached when
// younger than window, fetched live otherwise. Unlike the library
// pipeline there is no per-item isolation here: the upstream fetch is
// a single call and any failure in it is fatal.
func (s *AchievementService) Sync(ctx context.Context, tag domain.Platform, userKey, itemID, credential string, window time.Duration) ([]domain.AchievementDetail, domain.Source, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	provider, err := s.registry.Get(tag)
	if err != nil {
		return nil, "", err
	}

	logger := s.logger.With().
		Str("platform", string(tag)).
		Str("user_key", userKey).
		Str("item_id", itemID).
		Logger()
	logger.Info().Dur("window", window).Msg("syncing achievements")

	if window > 0 {
		dbCtx, dbCancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
		cached, err := s.store.FindFreshAchievements(dbCtx, tag, userKey, itemID, window)
		dbCancel()
		if err != nil {
			logger.Warn().Err(err).Msg("cache read failed, treating as miss")
		} else if len(cached) > 0 {
			logger.Info().Int("rows", len(cached)).Msg("returning cached achievements")
			return cached, domain.SourceCache, nil
		}
	}

	apiCtx, apiCancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	sess, err := provider.ExchangeCredential(apiCtx, userKey, credential)
	apiCancel()
	if err != nil {
		logger.Error().Err(err).Msg("credential exchange failed")
		return nil, "", fmt.Errorf("credential exchange: %w", err)
	}

	fetchCtx, fetchCancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	rows, err := provider.FetchAchievements(fetchCtx, sess, itemID)
	fetchCancel()
	if err != nil {
		logger.Error().Err(err).Msg("achievement fetch failed")
		return nil, "", fmt.Errorf("fetch achievements: %w", err)
	}
	if rows == nil {
		rows = []domain.AchievementDetail{}
	}

	dbCtx, dbCancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	err = s.store.UpsertAchievements(dbCtx, tag, userKey, itemID, rows)
	dbCancel()
	if err != nil {
		logger.Error().Err(err).Msg("failed to persist achievements, keeping them in response")
	}

	logger.Info().Int("rows", len(rows)).Msg("achievements synced")
	return rows, domain.SourceAPI, nil
}
