package steam

import (
	"fmt"
	"time"

	"questlog/internal/domain"
	"questlog/internal/platform"
)

// Steam exposes no cover-art field; the header image URL is derived from
// the appid.
const coverURLFormat = "https://steamcdn-a.akamaihd.net/steam/apps/%d/header.jpg"

// Normalize maps one owned game and its achievement page onto the
// canonical item shape. Playtime is already in minutes and passes
// through; a nil detail leaves the zero summary. A raw item of a
// foreign shape keeps its identity fields and nothing else.
func (c *Client) Normalize(userKey string, item platform.RawItem, detail platform.RawDetail) domain.PlatformItem {
	game, ok := item.(OwnedGame)
	if !ok {
		return domain.PlatformItem{
			Platform: domain.PlatformSteam,
			UserKey:  userKey,
			ItemID:   item.ItemID(),
			Title:    item.ItemTitle(),
		}
	}

	playtime := game.PlaytimeForever
	out := domain.PlatformItem{
		Platform:        domain.PlatformSteam,
		UserKey:         userKey,
		ItemID:          game.ItemID(),
		Title:           game.Name,
		CoverImageURL:   fmt.Sprintf(coverURLFormat, game.AppID),
		PlaytimeMinutes: &playtime,
	}

	page, ok := detail.(*AchievementPage)
	if !ok || page == nil {
		return out
	}

	summary := domain.AchievementSummary{TotalCount: len(page.Achievements)}
	for _, a := range page.Achievements {
		if a.Achieved == 1 {
			summary.UnlockedCount++
		}
	}
	out.Achievements = summary
	return out
}

// buildAchievements joins the player page with schema metadata and the
// global unlock percentages, keyed by apiname.
func buildAchievements(page *AchievementPage, schema []SchemaAchievement, rarity map[string]float64) []domain.AchievementDetail {
	meta := make(map[string]SchemaAchievement, len(schema))
	for _, s := range schema {
		meta[s.Name] = s
	}

	out := make([]domain.AchievementDetail, 0, len(page.Achievements))
	for _, a := range page.Achievements {
		d := domain.AchievementDetail{
			ID:        a.APIName,
			Name:      a.Name,
			Unlocked:  a.Achieved == 1,
			RarityPct: rarity[a.APIName],
		}
		if s, ok := meta[a.APIName]; ok {
			d.Name = s.DisplayName
			d.Description = s.Description
		}
		if d.Name == "" {
			d.Name = a.APIName
		}
		if a.UnlockTime > 0 {
			t := time.Unix(a.UnlockTime, 0).UTC()
			d.UnlockedAt = &t
		}
		out = append(out, d)
	}
	return out
}
