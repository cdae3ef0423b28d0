package xbox

import (
	"time"

	"questlog/internal/domain"
	"questlog/internal/platform"
)

// Normalize maps one title and its achievement list onto the canonical
// item shape. Xbox is the only platform with a score concept: the
// summary carries current and total Gamerscore. Playtime is not
// reported. A nil detail leaves the zero summary with absent scores. A
// raw item of a foreign shape keeps its identity fields and nothing else.
func (c *Client) Normalize(userKey string, item platform.RawItem, detail platform.RawDetail) domain.PlatformItem {
	title, ok := item.(Title)
	if !ok {
		return domain.PlatformItem{
			Platform: domain.PlatformXbox,
			UserKey:  userKey,
			ItemID:   item.ItemID(),
			Title:    item.ItemTitle(),
		}
	}

	out := domain.PlatformItem{
		Platform:      domain.PlatformXbox,
		UserKey:       userKey,
		ItemID:        title.TitleID,
		Title:         title.Name,
		CoverImageURL: title.DisplayImage,
	}

	page, ok := detail.(*AchievementPage)
	if !ok || page == nil {
		return out
	}

	var unlocked, currentScore, totalScore int
	for _, a := range page.Achievements {
		score := a.gamerscore()
		totalScore += score
		if a.unlocked() {
			unlocked++
			currentScore += score
		}
	}

	out.Achievements = domain.AchievementSummary{
		UnlockedCount: unlocked,
		TotalCount:    len(page.Achievements),
		CurrentScore:  &currentScore,
		TotalScore:    &totalScore,
	}
	return out
}

// buildAchievements maps the per-title achievement list onto the
// canonical breakdown. Locked secrets keep their locked description.
func buildAchievements(page *AchievementPage) []domain.AchievementDetail {
	out := make([]domain.AchievementDetail, 0, len(page.Achievements))
	for _, a := range page.Achievements {
		d := domain.AchievementDetail{
			ID:          a.ID,
			Name:        a.Name,
			Description: a.Description,
			Unlocked:    a.unlocked(),
			Score:       a.gamerscore(),
			RarityPct:   a.Rarity.CurrentPercentage,
		}
		if !d.Unlocked && a.LockedDescription != "" {
			d.Description = a.LockedDescription
		}
		if d.Unlocked && a.Progression.TimeUnlocked != "" {
			if ts, err := time.Parse(time.RFC3339, a.Progression.TimeUnlocked); err == nil && ts.Year() > 1 {
				utc := ts.UTC()
				d.UnlockedAt = &utc
			}
		}
		out = append(out, d)
	}
	return out
}
