package steam

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"questlog/internal/config"
	"questlog/internal/constants"
	"questlog/internal/domain"
	"questlog/internal/platform"
)

func newTestClient(baseURL string) *Client {
	return New(config.SteamConfig{APIKey: "test-key", BaseURL: baseURL})
}

func TestExchangeCredential_NumericIDPassesThrough(t *testing.T) {
	c := newTestClient("http://unused.invalid")

	sess, err := c.ExchangeCredential(context.Background(), "76561198000000000", "")
	if err != nil {
		t.Fatal(err)
	}
	if sess.AccountID != "76561198000000000" {
		t.Errorf("AccountID = %q, want the key unchanged", sess.AccountID)
	}
}

func TestExchangeCredential_ResolvesVanityName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ISteamUser/ResolveVanityURL/v1/" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("vanityurl") != "gaben" {
			t.Errorf("vanityurl = %q, want gaben", r.URL.Query().Get("vanityurl"))
		}
		w.Write([]byte(`{"response":{"steamid":"76561197960287930","success":1}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	sess, err := c.ExchangeCredential(context.Background(), "gaben", "")
	if err != nil {
		t.Fatal(err)
	}
	if sess.AccountID != "76561197960287930" {
		t.Errorf("AccountID = %q", sess.AccountID)
	}
}

func TestExchangeCredential_UnknownVanityName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":{"success":42,"message":"No match"}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.ExchangeCredential(context.Background(), "nobody-here", "")
	if !errors.Is(err, platform.ErrUnknownUser) {
		t.Fatalf("expected unknown user error, got %v", err)
	}
}

func TestListOwnedItems_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		outcome platform.ListOutcome
		items   int
	}{
		{
			name:    "two games",
			body:    `{"response":{"game_count":2,"games":[{"appid":440,"name":"Team Fortress 2","playtime_forever":6200},{"appid":730,"name":"Counter-Strike 2","playtime_forever":121}]}}`,
			outcome: platform.ListOK,
			items:   2,
		},
		{
			name:    "empty list",
			body:    `{"response":{"game_count":0,"games":[]}}`,
			outcome: platform.ListEmpty,
		},
		{
			name:    "private profile",
			body:    `{"response":{}}`,
			outcome: platform.ListMalformed,
		},
		{
			name:    "missing response object",
			body:    `{}`,
			outcome: platform.ListMalformed,
		},
		{
			name:    "broken json",
			body:    `{"response":{`,
			outcome: platform.ListMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(srv.URL)
			got, err := c.ListOwnedItems(context.Background(), platform.Session{AccountID: "76561198000000000"})
			if err != nil {
				t.Fatal(err)
			}
			if got.Outcome != tt.outcome {
				t.Errorf("Outcome = %q, want %q", got.Outcome, tt.outcome)
			}
			if len(got.Items) != tt.items {
				t.Errorf("len(Items) = %d, want %d", len(got.Items), tt.items)
			}
			if tt.outcome == platform.ListOK {
				if got.Items[0].ItemID() != "440" || got.Items[0].ItemTitle() != "Team Fortress 2" {
					t.Errorf("first item = %q/%q", got.Items[0].ItemID(), got.Items[0].ItemTitle())
				}
			}
		})
	}
}

func TestListOwnedItems_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, platform.ErrCredential},
		{http.StatusForbidden, platform.ErrAccessDenied},
		{http.StatusNotFound, platform.ErrUnknownUser},
		{http.StatusTooManyRequests, platform.ErrRateLimited},
		{http.StatusInternalServerError, platform.ErrUpstreamUnavailable},
		{http.StatusBadGateway, platform.ErrUpstreamUnavailable},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		c := newTestClient(srv.URL)
		_, err := c.ListOwnedItems(context.Background(), platform.Session{AccountID: "76561198000000000"})
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: got %v, want %v", tt.status, err, tt.want)
		}
		srv.Close()
	}
}

func TestFetchItemDetail_NoStatsApp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"playerstats":{"error":"Requested app has no stats","success":false}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	detail, err := c.FetchItemDetail(context.Background(), platform.Session{AccountID: "76561198000000000"}, OwnedGame{AppID: 12210, Name: "GTA IV"})
	if err != nil {
		t.Fatalf("an app without stats is not an error, got %v", err)
	}
	page, ok := detail.(*AchievementPage)
	if !ok || page == nil {
		t.Fatalf("detail = %T, want *AchievementPage", detail)
	}
	if len(page.Achievements) != 0 {
		t.Errorf("expected empty page, got %d achievements", len(page.Achievements))
	}
}

func TestFetchItemDetail_PacesConsecutiveCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"playerstats":{"gameName":"Team Fortress 2","achievements":[],"success":true}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	sess := platform.Session{AccountID: "76561198000000000"}
	game := OwnedGame{AppID: 440, Name: "Team Fortress 2"}

	start := time.Now()
	for i := 0; i < 2; i++ {
		if _, err := c.FetchItemDetail(context.Background(), sess, game); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < constants.SteamDetailInterval {
		t.Errorf("two consecutive detail calls took %v, want at least %v between them", elapsed, constants.SteamDetailInterval)
	}
}

func TestFetchAchievements_MergesSchemaAndRarity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ISteamUserStats/GetPlayerAchievements/v1/":
			w.Write([]byte(`{"playerstats":{"gameName":"Team Fortress 2","achievements":[
				{"apiname":"TF_GET_HEALPOINTS","achieved":1,"unlocktime":1700000000},
				{"apiname":"TF_BURN_PLAYERSINMINIMUMTIME","achieved":0,"unlocktime":0}
			],"success":true}}`))
		case "/ISteamUserStats/GetSchemaForGame/v2/":
			w.Write([]byte(`{"game":{"gameName":"Team Fortress 2","availableGameStats":{"achievements":[
				{"name":"TF_GET_HEALPOINTS","displayName":"Medical Intervention","description":"Heal 25000 points"},
				{"name":"TF_BURN_PLAYERSINMINIMUMTIME","displayName":"Arsonist","description":"Burn 3 players fast"}
			]}}}`))
		case "/ISteamUserStats/GetGlobalAchievementPercentagesForApp/v2/":
			w.Write([]byte(`{"achievementpercentages":{"achievements":[
				{"name":"TF_GET_HEALPOINTS","percent":34.9},
				{"name":"TF_BURN_PLAYERSINMINIMUMTIME","percent":5.1}
			]}}`))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	rows, err := c.FetchAchievements(context.Background(), platform.Session{AccountID: "76561198000000000"}, "440")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	first := rows[0]
	if first.ID != "TF_GET_HEALPOINTS" || first.Name != "Medical Intervention" {
		t.Errorf("schema join failed: %+v", first)
	}
	if !first.Unlocked || first.UnlockedAt == nil {
		t.Errorf("unlock state lost: %+v", first)
	}
	if first.RarityPct != 34.9 {
		t.Errorf("RarityPct = %v, want 34.9", first.RarityPct)
	}
	if rows[1].Unlocked || rows[1].UnlockedAt != nil {
		t.Errorf("locked row drifted: %+v", rows[1])
	}
}

func TestNormalize(t *testing.T) {
	c := newTestClient("http://unused.invalid")
	game := OwnedGame{AppID: 440, Name: "Team Fortress 2", PlaytimeForever: 6200}

	page := &AchievementPage{Achievements: []Achievement{
		{APIName: "A", Achieved: 1},
		{APIName: "B", Achieved: 0},
		{APIName: "C", Achieved: 1},
	}}

	item := c.Normalize("gaben", game, page)
	if item.Platform != domain.PlatformSteam {
		t.Errorf("Platform = %q", item.Platform)
	}
	if item.ItemID != "440" || item.Title != "Team Fortress 2" {
		t.Errorf("identity fields wrong: %+v", item)
	}
	if item.CoverImageURL != "https://steamcdn-a.akamaihd.net/steam/apps/440/header.jpg" {
		t.Errorf("CoverImageURL = %q", item.CoverImageURL)
	}
	if item.PlaytimeMinutes == nil || *item.PlaytimeMinutes != 6200 {
		t.Errorf("PlaytimeMinutes = %v, want 6200", item.PlaytimeMinutes)
	}
	if item.Achievements.UnlockedCount != 2 || item.Achievements.TotalCount != 3 {
		t.Errorf("summary = %+v, want 2/3", item.Achievements)
	}
	if item.Achievements.CurrentScore != nil || item.Achievements.TotalScore != nil {
		t.Error("steam has no score concept, scores must stay nil")
	}
}

func TestNormalize_NilDetail(t *testing.T) {
	c := newTestClient("http://unused.invalid")
	game := OwnedGame{AppID: 730, Name: "Counter-Strike 2", PlaytimeForever: 90}

	item := c.Normalize("gaben", game, nil)
	if item.Achievements.UnlockedCount != 0 || item.Achievements.TotalCount != 0 {
		t.Errorf("nil detail must leave the zero summary, got %+v", item.Achievements)
	}
	if item.PlaytimeMinutes == nil || *item.PlaytimeMinutes != 90 {
		t.Error("playtime comes from the listing and must survive a nil detail")
	}
}

type foreignItem struct{}

func (foreignItem) ItemID() string { return "raw-1" }
func (foreignItem) ItemTitle() string { return "Raw Title" }

func TestNormalize_ForeignRawItem(t *testing.T) {
	c := newTestClient("http://unused.invalid")

	item := c.Normalize("gaben", foreignItem{}, nil)
	if item.Platform != domain.PlatformSteam || item.UserKey != "gaben" {
		t.Errorf("identity header drifted: %+v", item)
	}
	if item.ItemID != "raw-1" || item.Title != "Raw Title" {
		t.Errorf("identity must come from the raw item accessors, got %+v", item)
	}
	if item.PlaytimeMinutes != nil || item.Achievements.TotalCount != 0 {
		t.Errorf("a foreign item carries no platform fields, got %+v", item)
	}
}

func TestIsSteamID(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"76561198000000000", true},
		{"7656119800000000", false},   // 16 digits
		{"765611980000000001", false}, // 18 digits
		{"gaben", false},
		{"7656119800000000x", false},
	}
	for _, tt := range tests {
		if got := isSteamID(tt.key); got != tt.want {
			t.Errorf("isSteamID(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}
