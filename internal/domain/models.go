package domain

import (
	"time"
)

// Platform identifies one of the supported upstream gaming platforms.
type Platform string

const (
	PlatformSteam Platform = "steam"
	PlatformPSN   Platform = "psn"
	PlatformXbox  Platform = "xbox"
)

// Source tags where a sync result came from.
type Source string

const (
	SourceCache Source = "cache"
	SourceAPI   Source = "api"
)

type AchievementSummary struct {
	UnlockedCount int  `json:"unlocked_count"`
	TotalCount    int  `json:"total_count"`
	CurrentScore  *int `json:"current_score,omitempty"` // Gamerscore-style points; nil when the platform has no score concept
	TotalScore    *int `json:"total_score,omitempty"`
}

// PlatformItem is the cached snapshot of one owned title for one user on one
// platform. (Platform, UserKey, ItemID) is unique; writes are upsert-only and
// items are never deleted, a stale title simply stops being refreshed.
type PlatformItem struct {
	Platform        Platform           `json:"platform"`
	UserKey         string             `json:"user_key"`
	ItemID          string             `json:"item_id"`
	Title           string             `json:"title"`
	CoverImageURL   string             `json:"cover_image_url"`
	PlaytimeMinutes *int64             `json:"playtime_minutes,omitempty"` // nil when the source does not report playtime
	Achievements    AchievementSummary `json:"achievement_summary"`
	LastSyncedAt    time.Time          `json:"last_synced_at"`
}

// AchievementDetail is one platform-defined completion milestone for a title,
// fetched lazily on explicit demand, never during a bulk library sync.
type AchievementDetail struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Unlocked    bool       `json:"unlocked"`
	Score       int        `json:"score"` // reward points; 0 on platforms without them
	RarityPct   float64    `json:"rarity_percent"`
	UnlockedAt  *time.Time `json:"unlocked_at,omitempty"`
}
