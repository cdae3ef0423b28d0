package psn

import (
	"context"
	"fmt"
	"net/url"
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

// Mobile-app OAuth client used by the trophy API. The NPSSO cookie is
// exchanged for an authorization code, then for a bearer token.
const (
	oauthClientID    = "09515159-7237-4370-9b40-3806e67c0891"
	oauthRedirectURI = "com.scee.psxandroid.scecompcall://redirect"
	oauthScope       = "psn:mobile.v2.core psn:clientapp"
	oauthBasicAuth   = "Basic MDk1MTUxNTktNzIzNy00MzcwLTliNDAtMzgwNmU2N2MwODkxOnVjUGprYTV0bnRCMktxc1A="
)

const listPageSize = 800

// Client talks to the PlayStation Network trophy API. Every request
// needs a bearer token derived from the caller's NPSSO credential.
type Client struct {
	baseURL     string
	authBaseURL string
	client      *fasthttp.Client
	limiter     *rate.Limiter
}

func New(cfg config.PSNConfig) *Client {
	return &Client{
		baseURL:     cfg.BaseURL,
		authBaseURL: cfg.AuthBaseURL,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         constants.ExternalAPITimeout,
			WriteTimeout:        constants.ExternalAPITimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		limiter: rate.NewLimiter(rate.Every(constants.PSNDetailInterval), 1),
	}
}

func (c *Client) Tag() domain.Platform { return domain.PlatformPSN }

func (c *Client) Name() string { return "PlayStation Network" }

// ExchangeCredential runs the chained NPSSO flow: the NPSSO cookie buys
// an authorization code, the code buys an access token. The user key is
// an account id, or "me" for the credential owner.
func (c *Client) ExchangeCredential(ctx context.Context, userKey, credential string) (platform.Session, error) {
	if credential == "" {
		return platform.Session{}, fmt.Errorf("%w: npsso token", platform.ErrCredentialMissing)
	}

	code, err := c.fetchAuthorizationCode(ctx, credential)
	if err != nil {
		return platform.Session{}, err
	}
	token, err := c.fetchAccessToken(ctx, code)
	if err != nil {
		return platform.Session{}, err
	}
	return platform.Session{AccountID: userKey, AccessToken: token}, nil
}

// fetchAuthorizationCode presents the NPSSO cookie to the authorize
// endpoint. A valid cookie answers 302 with the code in the redirect
// Location; anything else means the credential was rejected.
func (c *Client) fetchAuthorizationCode(ctx context.Context, npsso string) (string, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	params := url.Values{}
	params.Set("access_type", "offline")
	params.Set("client_id", oauthClientID)
	params.Set("redirect_uri", oauthRedirectURI)
	params.Set("response_type", "code")
	params.Set("scope", oauthScope)

	req.SetRequestURI(fmt.Sprintf("%s/api/authz/v3/oauth/authorize?%s", c.authBaseURL, params.Encode()))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetCookie("npsso", npsso)

	if err := c.roundTrip(ctx, req, resp); err != nil {
		return "", fmt.Errorf("authorize: %w", err)
	}

	location := string(resp.Header.Peek(fasthttp.HeaderLocation))
	redirect, err := url.Parse(location)
	if err != nil || redirect.Query().Get("code") == "" {
		return "", fmt.Errorf("%w: npsso exchange yielded no authorization code", platform.ErrCredential)
	}
	return redirect.Query().Get("code"), nil
}

// fetchAccessToken trades the authorization code for a bearer token.
func (c *Client) fetchAccessToken(ctx context.Context, code string) (string, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	form := url.Values{}
	form.Set("code", code)
	form.Set("redirect_uri", oauthRedirectURI)
	form.Set("grant_type", "authorization_code")
	form.Set("token_format", "jwt")

	req.SetRequestURI(fmt.Sprintf("%s/api/authz/v3/oauth/token", c.authBaseURL))
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/x-www-form-urlencoded")
	req.Header.Set(fasthttp.HeaderAuthorization, oauthBasicAuth)
	req.SetBodyString(form.Encode())

	if err := c.roundTrip(ctx, req, resp); err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return "", fmt.Errorf("%w: token exchange answered %d", platform.ErrCredential, resp.StatusCode())
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(resp.Body(), &token); err != nil || token.AccessToken == "" {
		return "", fmt.Errorf("%w: token exchange returned no access token", platform.ErrCredential)
	}
	return token.AccessToken, nil
}

// ListOwnedItems pages through the user's trophy titles. Entries carry
// the four-tier defined and earned counts used by Normalize.
func (c *Client) ListOwnedItems(ctx context.Context, sess platform.Session) (platform.ListResult, error) {
	var all []platform.RawItem

	for offset := 0; ; {
		u := fmt.Sprintf("%s/api/trophy/v1/users/%s/trophyTitles?limit=%d&offset=%d",
			c.baseURL, url.PathEscape(sess.AccountID), listPageSize, offset)
		body, status, err := c.get(ctx, u, sess.AccessToken)
		if err != nil {
			return platform.ListResult{}, fmt.Errorf("trophy titles: %w", err)
		}
		if status != fasthttp.StatusOK {
			return platform.ListResult{}, fmt.Errorf("trophy titles: %w", platform.StatusError(status))
		}

		var envelope trophyTitlesEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			return platform.ListResult{Outcome: platform.ListMalformed}, nil
		}
		if envelope.TrophyTitles == nil {
			return platform.ListResult{Outcome: platform.ListMalformed}, nil
		}

		for _, t := range envelope.TrophyTitles {
			all = append(all, t)
		}
		offset += len(envelope.TrophyTitles)
		if offset >= envelope.TotalItemCount || len(envelope.TrophyTitles) == 0 {
			break
		}
	}

	if len(all) == 0 {
		return platform.ListResult{Outcome: platform.ListEmpty}, nil
	}
	return platform.ListResult{Outcome: platform.ListOK, Items: all}, nil
}

// FetchItemDetail fetches the per-title earned summary, paced by the
// client limiter.
func (c *Client) FetchItemDetail(ctx context.Context, sess platform.Session, item platform.RawItem) (platform.RawDetail, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	title, ok := item.(TrophyTitle)
	if !ok {
		return nil, fmt.Errorf("unexpected raw item %T", item)
	}

	u := fmt.Sprintf("%s/api/trophy/v1/users/%s/npCommunicationIds/%s/trophyGroups?npServiceName=%s",
		c.baseURL, url.PathEscape(sess.AccountID), url.PathEscape(title.NPCommunicationID), title.serviceName())
	earnings, err := doRequest[TrophyGroupEarnings](ctx, c, u, sess.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("trophy group earnings: %w", err)
	}
	return earnings, nil
}

// FetchAchievements merges the title's trophy schema with the user's
// earned records, fetched concurrently and joined by trophy id.
func (c *Client) FetchAchievements(ctx context.Context, sess platform.Session, itemID string) ([]domain.AchievementDetail, error) {
	var (
		defined *trophiesEnvelope
		earned  *trophiesEnvelope
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u := fmt.Sprintf("%s/api/trophy/v1/npCommunicationIds/%s/trophyGroups/all/trophies?npServiceName=trophy",
			c.baseURL, url.PathEscape(itemID))
		var err error
		defined, err = doRequest[trophiesEnvelope](gctx, c, u, sess.AccessToken)
		return err
	})
	g.Go(func() error {
		u := fmt.Sprintf("%s/api/trophy/v1/users/%s/npCommunicationIds/%s/trophyGroups/all/trophies?npServiceName=trophy",
			c.baseURL, url.PathEscape(sess.AccountID), url.PathEscape(itemID))
		var err error
		earned, err = doRequest[trophiesEnvelope](gctx, c, u, sess.AccessToken)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return mergeTrophies(defined.Trophies, earned.Trophies), nil
}

// get runs one authorized GET against the trophy API.
func (c *Client) get(ctx context.Context, url, token string) ([]byte, int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+token)

	if err := c.roundTrip(ctx, req, resp); err != nil {
		return nil, 0, err
	}

	// The response buffer is recycled on release.
	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, resp.StatusCode(), nil
}

// roundTrip runs one prepared request, honoring the context deadline.
// Redirects are not followed; the authorize step reads them directly.
func (c *Client) roundTrip(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.client.DoDeadline(req, resp, deadline)
	} else {
		err = c.client.Do(req, resp)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", platform.ErrUpstreamUnavailable, err)
	}
	return nil
}

func doRequest[T any](ctx context.Context, c *Client, url, token string) (*T, error) {
	body, status, err := c.get(ctx, url, token)
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

// TrophyTitle is one entry of the trophyTitles listing.
type TrophyTitle struct {
	NPCommunicationID   string     `json:"npCommunicationId"`
	NPServiceName       string     `json:"npServiceName"`
	TrophyTitleName     string     `json:"trophyTitleName"`
	TrophyTitleIconURL  string     `json:"trophyTitleIconUrl"`
	TrophyTitlePlatform string     `json:"trophyTitlePlatform"`
	HasTrophyGroups     bool       `json:"hasTrophyGroups"`
	Progress            int        `json:"progress"`
	DefinedTrophies     TierCounts `json:"definedTrophies"`
	EarnedTrophies      TierCounts `json:"earnedTrophies"`
}

func (t TrophyTitle) ItemID() string    { return t.NPCommunicationID }
func (t TrophyTitle) ItemTitle() string { return t.TrophyTitleName }

func (t TrophyTitle) serviceName() string {
	if t.NPServiceName != "" {
		return t.NPServiceName
	}
	return "trophy"
}

// TierCounts carries the four trophy tiers of a defined or earned set.
type TierCounts struct {
	Bronze   int `json:"bronze"`
	Silver   int `json:"silver"`
	Gold     int `json:"gold"`
	Platinum int `json:"platinum"`
}

// Sum collapses the tiers into one count.
func (t TierCounts) Sum() int { return t.Bronze + t.Silver + t.Gold + t.Platinum }

// TrophyGroupEarnings is the per-title earned summary.
type TrophyGroupEarnings struct {
	Progress       int        `json:"progress"`
	EarnedTrophies TierCounts `json:"earnedTrophies"`
}

type trophyTitlesEnvelope struct {
	TrophyTitles   []TrophyTitle `json:"trophyTitles"`
	TotalItemCount int           `json:"totalItemCount"`
}

type trophiesEnvelope struct {
	Trophies []Trophy `json:"trophies"`
}

// Trophy is one trophy record from either the title schema (name,
// detail) or the user's earned list (earned flag, timestamp, rate).
type Trophy struct {
	TrophyID         int    `json:"trophyId"`
	TrophyHidden     bool   `json:"trophyHidden"`
	Earned           bool   `json:"earned"`
	EarnedDateTime   string `json:"earnedDateTime"`
	TrophyType       string `json:"trophyType"`
	TrophyName       string `json:"trophyName"`
	TrophyDetail     string `json:"trophyDetail"`
	TrophyIconURL    string `json:"trophyIconUrl"`
	TrophyEarnedRate string `json:"trophyEarnedRate"`
}
