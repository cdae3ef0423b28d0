package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"questlog/internal/constants"
	"questlog/internal/domain"
	"questlog/internal/platform"
	"questlog/internal/repository"
)

type LibraryService struct {
	registry *platform.Registry
	store    repository.Store
	logger   zerolog.Logger
}

func NewLibraryService(registry *platform.Registry, store repository.Store, logger zerolog.Logger) *LibraryService {
	return &LibraryService{registry: registry, store: store, logger: logger}
}

// Sync returns the user's library for one platform, serving the cached
// snapshot when it is younger than window and running the full fetch
// pipeline otherwise. window <= 0 forces a live fetch. The returned
// source tells the caller which path produced the result.
func (s *LibraryService) Sync(ctx context.Context, tag domain.Platform, userKey, credential string, window time.Duration) ([]domain.PlatformItem, domain.Source, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	provider, err := s.registry.Get(tag)
	if err != nil {
		return nil, "", err
	}

	logger := s.logger.With().Str("platform", string(tag)).Str("user_key", userKey).Logger()
	logger.Info().Dur("window", window).Msg("syncing library")

	if window > 0 {
		dbCtx, dbCancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
		cached, err := s.store.FindFresh(dbCtx, tag, userKey, window)
		dbCancel()
		if err != nil {
			logger.Warn().Err(err).Msg("cache read failed, treating as miss")
		} else if len(cached) > 0 {
			logger.Info().Int("items", len(cached)).Msg("returning cached library")
			return cached, domain.SourceCache, nil
		}
	}

	items, err := s.fetch(ctx, provider, userKey, credential, logger)
	if err != nil {
		return nil, "", err
	}
	return items, domain.SourceAPI, nil
}

// fetch runs the live pipeline: credential exchange, one listing call,
// then a strictly sequential per-item detail loop. The listing is the
// only fatal step; detail and persistence failures are isolated per
// item and never drop it from the result.
func (s *LibraryService) fetch(ctx context.Context, provider platform.Provider, userKey, credential string, logger zerolog.Logger) ([]domain.PlatformItem, error) {
	apiCtx, apiCancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	sess, err := provider.ExchangeCredential(apiCtx, userKey, credential)
	apiCancel()
	if err != nil {
		logger.Error().Err(err).Msg("credential exchange failed")
		return nil, fmt.Errorf("credential exchange: %w", err)
	}

	listCtx, listCancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	list, err := provider.ListOwnedItems(listCtx, sess)
	listCancel()
	if err != nil {
		logger.Error().Err(err).Msg("listing failed")
		return nil, fmt.Errorf("list owned items: %w", err)
	}

	switch list.Outcome {
	case platform.ListMalformed:
		logger.Warn().Msg("listing payload malformed, treating as empty library")
		return []domain.PlatformItem{}, nil
	case platform.ListEmpty:
		logger.Info().Msg("listing empty")
		return []domain.PlatformItem{}, nil
	}

	syncedAt := time.Now().UTC()
	items := make([]domain.PlatformItem, 0, len(list.Items))
	var detailFailures, persistFailures int

	for _, raw := range list.Items {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("sync aborted: %w", err)
		}

		detailCtx, detailCancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
		detail, err := provider.FetchItemDetail(detailCtx, sess, raw)
		detailCancel()
		if err != nil {
			detailFailures++
			detail = nil
			logger.Warn().
				Err(err).
				Str("item_id", raw.ItemID()).
				Str("title", raw.ItemTitle()).
				Msg("detail fetch failed, keeping item with zero summary")
		}

		item := provider.Normalize(userKey, raw, detail)
		item.LastSyncedAt = syncedAt

		dbCtx, dbCancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
		err = s.store.Upsert(dbCtx, item)
		dbCancel()
		if err != nil {
			persistFailures++
			logger.Error().Err(err).Str("item_id", item.ItemID).Msg("failed to persist item, keeping it in response")
		}

		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Title < items[j].Title })

	logger.Info().
		Int("items", len(items)).
		Int("detail_failures", detailFailures).
		Int("persist_failures", persistFailures).
		Msg("library synced")
	return items, nil
}
