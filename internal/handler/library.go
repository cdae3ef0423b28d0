package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"questlog/internal/apierror"
	"questlog/internal/config"
	"questlog/internal/domain"
	"questlog/internal/platform"
	"questlog/internal/response"
	"questlog/internal/service"
)

// CredentialHeader carries the platform credential for upstreams that
// need one per request (Valve API keys are server-side config, but the
// PSN NPSSO token belongs to the caller).
const CredentialHeader = "X-Platform-Credential"

type LibraryHandler struct {
	libraryService     *service.LibraryService
	achievementService *service.AchievementService
	aggregateService   *service.AggregateService
	syncCfg            config.SyncConfig
}

func NewLibraryHandler(libraryService *service.LibraryService, achievementService *service.AchievementService, aggregateService *service.AggregateService, syncCfg config.SyncConfig) *LibraryHandler {
	return &LibraryHandler{
		libraryService:     libraryService,
		achievementService: achievementService,
		aggregateService:   aggregateService,
		syncCfg:            syncCfg,
	}
}

// PlatformGames handles GET /api/v1/{platform}/user/{userKey}/games
func (h *LibraryHandler) PlatformGames(w http.ResponseWriter, r *http.Request) {
	tag := domain.Platform(chi.URLParam(r, "platform"))
	userKey := chi.URLParam(r, "userKey")
	if userKey == "" {
		response.Error(w, apierror.BadRequest("userKey is required"))
		return
	}

	window := h.window(r, h.syncCfg.FreshnessWindow)
	items, source, err := h.libraryService.Sync(r.Context(), tag, userKey, r.Header.Get(CredentialHeader), window)
	if err != nil {
		response.Error(w, mapSyncError(err))
		return
	}

	w.Header().Set(response.SyncSourceHeader, string(source))
	response.OK(w, items)
}

// ItemAchievements handles GET /api/v1/{platform}/user/{userKey}/games/{itemID}/achievements
func (h *LibraryHandler) ItemAchievements(w http.ResponseWriter, r *http.Request) {
	tag := domain.Platform(chi.URLParam(r, "platform"))
	userKey := chi.URLParam(r, "userKey")
	itemID := chi.URLParam(r, "itemID")
	if userKey == "" || itemID == "" {
		response.Error(w, apierror.BadRequest("userKey and itemID are required"))
		return
	}

	window := h.window(r, h.syncCfg.AchievementFreshnessWindow)
	rows, source, err := h.achievementService.Sync(r.Context(), tag, userKey, itemID, r.Header.Get(CredentialHeader), window)
	if err != nil {
		response.Error(w, mapSyncError(err))
		return
	}

	w.Header().Set(response.SyncSourceHeader, string(source))
	response.OK(w, rows)
}

// AggregateGames handles GET /api/v1/library/games?steam=...&psn=...&xbox=...
func (h *LibraryHandler) AggregateGames(w http.ResponseWriter, r *http.Request) {
	keys := map[domain.Platform]string{}
	for _, tag := range []domain.Platform{domain.PlatformSteam, domain.PlatformPSN, domain.PlatformXbox} {
		if v := r.URL.Query().Get(string(tag)); v != "" {
			keys[tag] = v
		}
	}
	if len(keys) == 0 {
		response.Error(w, apierror.BadRequest("at least one platform user key is required (steam, psn or xbox)"))
		return
	}

	window := h.window(r, h.syncCfg.FreshnessWindow)
	view, err := h.aggregateService.Library(r.Context(), keys, r.Header.Get(CredentialHeader), window)
	if err != nil {
		response.Error(w, mapSyncError(err))
		return
	}

	response.OK(w, view)
}

// window resolves the freshness window for this request. refresh=1 (or
// refresh=true) collapses it to zero, which forces a live fetch.
func (h *LibraryHandler) window(r *http.Request, fallback time.Duration) time.Duration {
	switch r.URL.Query().Get("refresh") {
	case "1", "true":
		return 0
	}
	return fallback
}

// mapSyncError translates the sync error taxonomy into wire errors.
func mapSyncError(err error) error {
	switch {
	case errors.Is(err, platform.ErrUnknownPlatform):
		return apierror.BadRequest(err.Error())
	case errors.Is(err, platform.ErrCredentialMissing):
		return apierror.BadRequest(err.Error())
	case errors.Is(err, platform.ErrCredential):
		return apierror.Unauthorized("")
	case errors.Is(err, platform.ErrAccessDenied):
		return apierror.Forbidden("")
	case errors.Is(err, platform.ErrUnknownUser):
		return apierror.NotFound("No account found for the given user key")
	case errors.Is(err, platform.ErrRateLimited):
		return apierror.TooManyRequests("")
	case errors.Is(err, platform.ErrUpstreamUnavailable):
		return apierror.ServiceUnavailable("")
	default:
		return apierror.InternalError("Failed to sync library")
	}
}
