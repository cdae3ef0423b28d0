package xbox

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"questlog/internal/config"
	"questlog/internal/constants"
	"questlog/internal/domain"
	"questlog/internal/platform"
)

// Client talks to an OpenXBL-style Xbox Live gateway. Every call is
// signed with the server-side app key; there is no per-user credential.
type Client struct {
	apiKey  string
	baseURL string
	client  *fasthttp.Client
	limiter *rate.Limiter
}

func New(cfg config.XboxConfig) *Client {
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         constants.ExternalAPITimeout,
			WriteTimeout:        constants.ExternalAPITimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		limiter: rate.NewLimiter(rate.Every(constants.XboxDetailInterval), 1),
	}
}

func (c *Client) Tag() domain.Platform { return domain.PlatformXbox }

func (c *Client) Name() string { return "Xbox" }

// ExchangeCredential resolves gamertags to a numeric XUID through the
// people search. Numeric keys pass through untouched; the per-user
// credential is unused.
func (c *Client) ExchangeCredential(ctx context.Context, userKey, _ string) (platform.Session, error) {
	if isXUID(userKey) {
		return platform.Session{AccountID: userKey}, nil
	}

	u := fmt.Sprintf("%s/api/v2/search/%s", c.baseURL, url.PathEscape(userKey))
	found, err := doRequest[searchEnvelope](ctx, c, u)
	if err != nil {
		return platform.Session{}, fmt.Errorf("gamertag search: %w", err)
	}
	if len(found.People) == 0 || found.People[0].XUID == "" {
		return platform.Session{}, fmt.Errorf("%w: no xbox account for %q", platform.ErrUnknownUser, userKey)
	}
	return platform.Session{AccountID: found.People[0].XUID}, nil
}

// ListOwnedItems fetches the player's title history.
func (c *Client) ListOwnedItems(ctx context.Context, sess platform.Session) (platform.ListResult, error) {
	u := fmt.Sprintf("%s/api/v2/player/titleHistory/%s", c.baseURL, url.PathEscape(sess.AccountID))
	body, status, err := c.get(ctx, u)
	if err != nil {
		return platform.ListResult{}, fmt.Errorf("title history: %w", err)
	}
	if status != fasthttp.StatusOK {
		return platform.ListResult{}, fmt.Errorf("title history: %w", platform.StatusError(status))
	}

	var envelope titleHistoryEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return platform.ListResult{Outcome: platform.ListMalformed}, nil
	}
	if envelope.Titles == nil {
		return platform.ListResult{Outcome: platform.ListMalformed}, nil
	}
	if len(envelope.Titles) == 0 {
		return platform.ListResult{Outcome: platform.ListEmpty}, nil
	}

	items := make([]platform.RawItem, 0, len(envelope.Titles))
	for _, t := range envelope.Titles {
		items = append(items, t)
	}
	return platform.ListResult{Outcome: platform.ListOK, Items: items}, nil
}

// FetchItemDetail fetches the per-title achievement list, paced by the
// client limiter. The summary (counts and Gamerscore) is computed from
// this list alone.
func (c *Client) FetchItemDetail(ctx context.Context, sess platform.Session, item platform.RawItem) (platform.RawDetail, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.fetchAchievementPage(ctx, sess, item.ItemID())
}

func (c *Client) fetchAchievementPage(ctx context.Context, sess platform.Session, titleID string) (*AchievementPage, error) {
	u := fmt.Sprintf("%s/api/v2/achievements/player/%s/%s",
		c.baseURL, url.PathEscape(sess.AccountID), url.PathEscape(titleID))
	page, err := doRequest[AchievementPage](ctx, c, u)
	if err != nil {
		return nil, fmt.Errorf("player achievements: %w", err)
	}
	return page, nil
}

// FetchAchievements maps the same per-title achievement list onto the
// canonical breakdown.
func (c *Client) FetchAchievements(ctx context.Context, sess platform.Session, itemID string) ([]domain.AchievementDetail, error) {
	page, err := c.fetchAchievementPage(ctx, sess, itemID)
	if err != nil {
		return nil, err
	}
	return buildAchievements(page), nil
}

// get runs one app-key-signed GET against the gateway.
func (c *Client) get(ctx context.Context, url string) ([]byte, int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("X-Authorization", c.apiKey)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")

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

// XUIDs are numeric, sixteen digits nowadays.
func isXUID(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}

// Title is one entry of the player's title history.
type Title struct {
	TitleID      string `json:"titleId"`
	Name         string `json:"name"`
	DisplayImage string `json:"displayImage"`
}

func (t Title) ItemID() string    { return t.TitleID }
func (t Title) ItemTitle() string { return t.Name }

// AchievementPage is the per-title achievement list.
type AchievementPage struct {
	Achievements []Achievement `json:"achievements"`
}

type Achievement struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ProgressState string `json:"progressState"`
	Progression   struct {
		TimeUnlocked string `json:"timeUnlocked"`
	} `json:"progression"`
	IsSecret          bool     `json:"isSecret"`
	Description       string   `json:"description"`
	LockedDescription string   `json:"lockedDescription"`
	Rewards           []Reward `json:"rewards"`
	Rarity            struct {
		CurrentCategory   string  `json:"currentCategory"`
		CurrentPercentage float64 `json:"currentPercentage"`
	} `json:"rarity"`
}

// Reward carries the Gamerscore value as a string, the way the upstream
// API serializes it.
type Reward struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// gamerscore extracts the Gamerscore reward value, zero when absent.
func (a Achievement) gamerscore() int {
	for _, r := range a.Rewards {
		if r.Type == "Gamerscore" {
			if v, err := strconv.Atoi(r.Value); err == nil {
				return v
			}
		}
	}
	return 0
}

func (a Achievement) unlocked() bool { return a.ProgressState == "Achieved" }

type titleHistoryEnvelope struct {
	XUID   string  `json:"xuid"`
	Titles []Title `json:"titles"`
}

type searchEnvelope struct {
	People []struct {
		XUID     string `json:"xuid"`
		Gamertag string `json:"gamertag"`
	} `json:"people"`
}
