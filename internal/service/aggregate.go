package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"questlog/internal/domain"
)

type AggregateService struct {
	library *LibraryService
	logger  zerolog.Logger
}

func NewAggregateService(library *LibraryService, logger zerolog.Logger) *AggregateService {
	return &AggregateService{library: library, logger: logger}
}

// LibraryView is the merged multi-platform library. Platforms that
// failed to sync are reported alongside the items that did, so one
// broken upstream never empties the whole view.
type LibraryView struct {
	Items  []domain.PlatformItem      `json:"items"`
	Failed map[domain.Platform]string `json:"failed,omitempty"`
}

// Library syncs every requested platform concurrently and merges the
// results into one title-sorted view.
func (s *AggregateService) Library(ctx context.Context, keys map[domain.Platform]string, credential string, window time.Duration) (LibraryView, error) {
	view := LibraryView{
		Items:  []domain.PlatformItem{},
		Failed: map[domain.Platform]string{},
	}

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)

	for tag, userKey := range keys {
		tag, userKey := tag, userKey
		g.Go(func() error {
			items, _, err := s.library.Sync(gCtx, tag, userKey, credential, window)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn().Err(err).Str("platform", string(tag)).Msg("platform sync failed in aggregate view")
				view.Failed[tag] = err.Error()
				return nil
			}
			view.Items = append(view.Items, items...)
			return nil
		})
	}

	// Per-platform failures are folded into the view, never returned.
	_ = g.Wait()

	if len(view.Failed) == 0 {
		view.Failed = nil
	}
	sort.Slice(view.Items, func(i, j int) bool { return view.Items[i].Title < view.Items[j].Title })
	return view, nil
}
