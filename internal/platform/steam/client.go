package steam

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"questlog/internal/config"
	"questlog/internal/constants"
	"questlog/internal/domain"
	"questlog/internal/platform"
)

// Client talks to the Steam Web API. Steam has no per-user credential:
// every call is signed with the server-side key and the profile must be
// public.
type Client struct {
	apiKey  string
	baseURL string
	client  *fasthttp.Client
	limiter *rate.Limiter
}

func New(cfg config.SteamConfig) *Client {
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         constants.ExternalAPITimeout,
			WriteTimeout:        constants.ExternalAPITimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		limiter: rate.NewLimiter(rate.Every(constants.SteamDetailInterval), 1),
	}
}

func (c *Client) Tag() domain.Platform { return domain.PlatformSteam }

func (c *Client) Name() string { return "Steam" }

// ExchangeCredential resolves vanity profile names to a 64-bit SteamID.
// Numeric keys pass through untouched; the per-user credential is unused.
func (c *Client) ExchangeCredential(ctx context.Context, userKey, _ string) (platform.Session, error) {
	if isSteamID(userKey) {
		return platform.Session{AccountID: userKey}, nil
	}

	u := fmt.Sprintf("%s/ISteamUser/ResolveVanityURL/v1/?key=%s&vanityurl=%s",
		c.baseURL, c.apiKey, url.QueryEscape(userKey))
	resolved, err := doRequest[vanityEnvelope](ctx, c, u)
	if err != nil {
		return platform.Session{}, fmt.Errorf("resolve vanity url: %w", err)
	}
	if resolved.Response.Success != 1 || resolved.Response.SteamID == "" {
		return platform.Session{}, fmt.Errorf("%w: no steam account for %q", platform.ErrUnknownUser, userKey)
	}
	return platform.Session{AccountID: resolved.Response.SteamID}, nil
}

// ListOwnedItems fetches the full owned-games list. A private profile
// answers 200 with an empty response object; the missing games field is
// reported as malformed, not as an error.
func (c *Client) ListOwnedItems(ctx context.Context, sess platform.Session) (platform.ListResult, error) {
	u := fmt.Sprintf("%s/IPlayerService/GetOwnedGames/v1/?key=%s&steamid=%s&include_appinfo=1&include_played_free_games=1",
		c.baseURL, c.apiKey, sess.AccountID)
	body, status, err := c.get(ctx, u)
	if err != nil {
		return platform.ListResult{}, fmt.Errorf("owned games: %w", err)
	}
	if status != fasthttp.StatusOK {
		return platform.ListResult{}, fmt.Errorf("owned games: %w", platform.StatusError(status))
	}

	var envelope ownedGamesEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return platform.ListResult{Outcome: platform.ListMalformed}, nil
	}
	if envelope.Response == nil || envelope.Response.Games == nil {
		return platform.ListResult{Outcome: platform.ListMalformed}, nil
	}
	if len(envelope.Response.Games) == 0 {
		return platform.ListResult{Outcome: platform.ListEmpty}, nil
	}

	items := make([]platform.RawItem, 0, len(envelope.Response.Games))
	for _, g := range envelope.Response.Games {
		items = append(items, g)
	}
	return platform.ListResult{Outcome: platform.ListOK, Items: items}, nil
}

// FetchItemDetail fetches the player's achievement page for one owned
// game, paced by the client limiter.
func (c *Client) FetchItemDetail(ctx context.Context, sess platform.Session, item platform.RawItem) (platform.RawDetail, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.fetchAchievementPage(ctx, sess, item.ItemID())
}

// fetchAchievementPage calls GetPlayerAchievements. Apps that expose no
// stats answer 400; that is a game without achievements, not a failure.
func (c *Client) fetchAchievementPage(ctx context.Context, sess platform.Session, appID string) (*AchievementPage, error) {
	u := fmt.Sprintf("%s/ISteamUserStats/GetPlayerAchievements/v1/?key=%s&steamid=%s&appid=%s",
		c.baseURL, c.apiKey, sess.AccountID, appID)
	body, status, err := c.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("player achievements: %w", err)
	}
	if status == fasthttp.StatusBadRequest {
		return &AchievementPage{}, nil
	}
	if status != fasthttp.StatusOK {
		return nil, fmt.Errorf("player achievements: %w", platform.StatusError(status))
	}

	var envelope playerAchievementsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("player achievements: decode: %w", err)
	}
	return &envelope.PlayerStats, nil
}

// FetchAchievements merges the player's achievement page with the game
// schema and the global rarity table, fetched concurrently.
func (c *Client) FetchAchievements(ctx context.Context, sess platform.Session, itemID string) ([]domain.AchievementDetail, error) {
	var (
		page   *AchievementPage
		schema *schemaEnvelope
		global *globalPercentagesEnvelope
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page, err = c.fetchAchievementPage(gctx, sess, itemID)
		return err
	})
	g.Go(func() error {
		u := fmt.Sprintf("%s/ISteamUserStats/GetSchemaForGame/v2/?key=%s&appid=%s", c.baseURL, c.apiKey, itemID)
		var err error
		schema, err = doRequest[schemaEnvelope](gctx, c, u)
		return err
	})
	g.Go(func() error {
		u := fmt.Sprintf("%s/ISteamUserStats/GetGlobalAchievementPercentagesForApp/v2/?gameid=%s", c.baseURL, itemID)
		var err error
		global, err = doRequest[globalPercentagesEnvelope](gctx, c, u)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rarity := make(map[string]float64, len(global.AchievementPercentages.Achievements))
	for _, p := range global.AchievementPercentages.Achievements {
		rarity[p.Name] = p.Percent
	}
	return buildAchievements(page, schema.Game.AvailableGameStats.Achievements, rarity), nil
}

// get runs one GET and maps transport failures onto the shared taxonomy.
// Status handling stays with the caller.
func (c *Client) get(ctx context.Context, url string) ([]byte, int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.client.DoDeadline(req, resp, deadline)
	} else {
		err = c.client.Do(req, resp)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", platform.ErrUpstreamUnavailable, err)
	}

	// The response buffer is recycled on release.
	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, resp.StatusCode(), nil
}

func doRequest[T any](ctx context.Context, c *Client, url string) (*T, error) {
	body, status, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	if status != fasthttp.StatusOK {
		return nil, platform.StatusError(status)
	}

	var result T
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// SteamID64s are 17 decimal digits.
func isSteamID(s string) bool {
	if len(s) != 17 {
		return false
	}
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}

// OwnedGame is one entry of GetOwnedGames.
type OwnedGame struct {
	AppID           int64  `json:"appid"`
	Name            string `json:"name"`
	PlaytimeForever int64  `json:"playtime_forever"`
	ImgIconURL      string `json:"img_icon_url"`
}

func (g OwnedGame) ItemID() string    { return strconv.FormatInt(g.AppID, 10) }
func (g OwnedGame) ItemTitle() string { return g.Name }

// AchievementPage is the playerstats object of GetPlayerAchievements.
type AchievementPage struct {
	GameName     string        `json:"gameName"`
	Achievements []Achievement `json:"achievements"`
	Success      bool          `json:"success"`
}

type Achievement struct {
	APIName     string `json:"apiname"`
	Achieved    int    `json:"achieved"`
	UnlockTime  int64  `json:"unlocktime"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type vanityEnvelope struct {
	Response struct {
		SteamID string `json:"steamid"`
		Success int    `json:"success"`
	} `json:"response"`
}

type playerAchievementsEnvelope struct {
	PlayerStats AchievementPage `json:"playerstats"`
}

type ownedGamesEnvelope struct {
	Response *struct {
		GameCount int         `json:"game_count"`
		Games     []OwnedGame `json:"games"`
	} `json:"response"`
}

type schemaEnvelope struct {
	Game struct {
		GameName           string `json:"gameName"`
		AvailableGameStats struct {
			Achievements []SchemaAchievement `json:"achievements"`
		} `json:"availableGameStats"`
	} `json:"game"`
}

type SchemaAchievement struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Hidden      int    `json:"hidden"`
}

type globalPercentagesEnvelope struct {
	AchievementPercentages struct {
		Achievements []struct {
			Name    string  `json:"name"`
			Percent float64 `json:"percent"`
		} `json:"achievements"`
	} `json:"achievementpercentages"`
}
