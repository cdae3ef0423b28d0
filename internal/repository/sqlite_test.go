package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"questlog/internal/config"
	"questlog/internal/database"
	"questlog/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	cfg := &config.Config{}
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "test.db")

	db, err := database.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	store := NewSQLiteStore(db, zerolog.Nop())
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_UpsertAndFindFresh(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	playtime := int64(340)
	current, total := 150, 1000
	items := []domain.PlatformItem{
		{
			Platform:      domain.PlatformXbox,
			UserKey:       "gamer",
			ItemID:        "449089",
			Title:         "Zelda-like",
			CoverImageURL: "https://images.example/449089.png",
			Achievements: domain.AchievementSummary{
				UnlockedCount: 3,
				TotalCount:    40,
				CurrentScore:  &current,
				TotalScore:    &total,
			},
			LastSyncedAt: now,
		},
		{
			Platform:        domain.PlatformXbox,
			UserKey:         "gamer",
			ItemID:          "12210",
			Title:           "Apex Legends",
			CoverImageURL:   "https://images.example/12210.png",
			PlaytimeMinutes: &playtime,
			LastSyncedAt:    now,
		},
	}
	for _, it := range items {
		if err := store.Upsert(ctx, it); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.FindFresh(ctx, domain.PlatformXbox, "gamer", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if got[0].Title != "Apex Legends" || got[1].Title != "Zelda-like" {
		t.Errorf("not ordered by title: %q, %q", got[0].Title, got[1].Title)
	}

	if got[0].PlaytimeMinutes == nil || *got[0].PlaytimeMinutes != 340 {
		t.Errorf("playtime lost in round trip: %v", got[0].PlaytimeMinutes)
	}
	if got[1].PlaytimeMinutes != nil {
		t.Errorf("absent playtime must stay nil, got %v", *got[1].PlaytimeMinutes)
	}
	if got[1].Achievements.CurrentScore == nil || *got[1].Achievements.CurrentScore != 150 {
		t.Errorf("current score lost in round trip: %v", got[1].Achievements.CurrentScore)
	}
	if got[0].Achievements.CurrentScore != nil {
		t.Error("absent score must stay nil")
	}
	if !got[0].LastSyncedAt.Equal(now) {
		t.Errorf("sync time drifted: stored %v, got %v", now, got[0].LastSyncedAt)
	}
}

func TestSQLiteStore_UpsertIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item := domain.PlatformItem{
		Platform:     domain.PlatformSteam,
		UserKey:      "u",
		ItemID:       "440",
		Title:        "Team Fortress 2",
		LastSyncedAt: time.Now().UTC(),
	}
	if err := store.Upsert(ctx, item); err != nil {
		t.Fatal(err)
	}

	item.Title = "Team Fortress 2 (updated)"
	item.Achievements.UnlockedCount = 7
	if err := store.Upsert(ctx, item); err != nil {
		t.Fatal(err)
	}

	got, err := store.FindFresh(ctx, domain.PlatformSteam, "u", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected a single row after re-upsert, got %d", len(got))
	}
	if got[0].Title != "Team Fortress 2 (updated)" || got[0].Achievements.UnlockedCount != 7 {
		t.Errorf("row not updated: %+v", got[0])
	}
}

func TestSQLiteStore_FreshnessWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stale := domain.PlatformItem{
		Platform:     domain.PlatformSteam,
		UserKey:      "u",
		ItemID:       "10",
		Title:        "Counter-Strike",
		LastSyncedAt: time.Now().UTC().Add(-25 * time.Hour),
	}
	if err := store.Upsert(ctx, stale); err != nil {
		t.Fatal(err)
	}

	got, err := store.FindFresh(ctx, domain.PlatformSteam, "u", 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("stale row must be a miss, got %d rows", len(got))
	}

	got, err = store.FindFresh(ctx, domain.PlatformSteam, "u", 48*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("wider window must hit, got %d rows", len(got))
	}
}

func TestSQLiteStore_KeysAreIsolated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.Upsert(ctx, domain.PlatformItem{
		Platform: domain.PlatformSteam, UserKey: "alice", ItemID: "10", Title: "CS", LastSyncedAt: now,
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.Upsert(ctx, domain.PlatformItem{
		Platform: domain.PlatformPSN, UserKey: "alice", ItemID: "10", Title: "CS", LastSyncedAt: now,
	}); err != nil {
		t.Fatal(err)
	}

	got, err := store.FindFresh(ctx, domain.PlatformSteam, "bob", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("foreign user must see nothing, got %d rows", len(got))
	}

	got, err = store.FindFresh(ctx, domain.PlatformSteam, "alice", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Platform != domain.PlatformSteam {
		t.Fatalf("platform rows bled across keys: %+v", got)
	}
}

func TestSQLiteStore_SkipsUnreadableRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.Upsert(ctx, domain.PlatformItem{
		Platform: domain.PlatformSteam, UserKey: "u", ItemID: "440", Title: "Team Fortress 2", LastSyncedAt: now,
	}); err != nil {
		t.Fatal(err)
	}

	// A row written by hand with a non-numeric count cannot be scanned.
	if _, err := store.db.ExecContext(ctx, `
		INSERT INTO platform_items (platform, user_key, item_id, title, unlocked_count, last_synced_at)
		VALUES ('steam', 'u', '570', 'Dota 2', 'lots', ?)`, now); err != nil {
		t.Fatal(err)
	}

	got, err := store.FindFresh(ctx, domain.PlatformSteam, "u", time.Hour)
	if err != nil {
		t.Fatalf("an unreadable row must be skipped, not fail the read: %v", err)
	}
	if len(got) != 1 || got[0].ItemID != "440" {
		t.Errorf("expected only the readable row, got %+v", got)
	}
}

func TestSQLiteStore_Achievements(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	unlockedAt := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	rows := []domain.AchievementDetail{
		{ID: "ACH_WIN", Name: "Winner", Description: "Win once", Unlocked: true, Score: 10, RarityPct: 41.5, UnlockedAt: &unlockedAt},
		{ID: "ACH_ALL", Name: "Completionist", Description: "Do everything", Unlocked: false, Score: 100, RarityPct: 0.7},
	}
	if err := store.UpsertAchievements(ctx, domain.PlatformSteam, "u", "440", rows); err != nil {
		t.Fatal(err)
	}

	got, err := store.FindFreshAchievements(ctx, domain.PlatformSteam, "u", "440", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].ID != "ACH_WIN" || got[1].ID != "ACH_ALL" {
		t.Errorf("insertion order lost: %q, %q", got[0].ID, got[1].ID)
	}
	if got[0].UnlockedAt == nil || !got[0].UnlockedAt.Equal(unlockedAt) {
		t.Errorf("unlock time drifted: %v", got[0].UnlockedAt)
	}
	if got[1].UnlockedAt != nil {
		t.Error("locked row must keep a nil unlock time")
	}
	if got[0].RarityPct != 41.5 {
		t.Errorf("rarity drifted: %v", got[0].RarityPct)
	}

	// Re-upsert replaces in place without duplicating.
	rows[1].Unlocked = true
	if err := store.UpsertAchievements(ctx, domain.PlatformSteam, "u", "440", rows); err != nil {
		t.Fatal(err)
	}
	got, err = store.FindFreshAchievements(ctx, domain.PlatformSteam, "u", "440", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("re-upsert duplicated rows: %d", len(got))
	}
	if !got[1].Unlocked {
		t.Error("re-upsert did not update the row")
	}

	// The whole set ages together.
	got, err = store.FindFreshAchievements(ctx, domain.PlatformSteam, "u", "440", time.Nanosecond)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("aged-out set must miss, got %d rows", len(got))
	}
}
