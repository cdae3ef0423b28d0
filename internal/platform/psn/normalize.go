package psn

import (
	"strconv"
	"time"

	"questlog/internal/domain"
	"questlog/internal/platform"
)

// Normalize maps one trophy title and its earned summary onto the
// canonical item shape. Totals come from the title's defined tiers,
// unlocks from the detail's earned tiers, both collapsed by summation.
// PSN reports no playtime and has no score concept; a nil detail leaves
// the zero summary. A raw item of a foreign shape keeps its identity
// fields and nothing else.
func (c *Client) Normalize(userKey string, item platform.RawItem, detail platform.RawDetail) domain.PlatformItem {
	title, ok := item.(TrophyTitle)
	if !ok {
		return domain.PlatformItem{
			Platform: domain.PlatformPSN,
			UserKey:  userKey,
			ItemID:   item.ItemID(),
			Title:    item.ItemTitle(),
		}
	}

	out := domain.PlatformItem{
		Platform:      domain.PlatformPSN,
		UserKey:       userKey,
		ItemID:        title.NPCommunicationID,
		Title:         title.TrophyTitleName,
		CoverImageURL: title.TrophyTitleIconURL,
	}

	earnings, ok := detail.(*TrophyGroupEarnings)
	if !ok || earnings == nil {
		return out
	}

	out.Achievements = domain.AchievementSummary{
		UnlockedCount: earnings.EarnedTrophies.Sum(),
		TotalCount:    title.DefinedTrophies.Sum(),
	}
	return out
}

// mergeTrophies joins the title schema with the user's earned records by
// trophy id. Schema rows without an earned counterpart stay locked.
func mergeTrophies(defined, earned []Trophy) []domain.AchievementDetail {
	earnedByID := make(map[int]Trophy, len(earned))
	for _, t := range earned {
		earnedByID[t.TrophyID] = t
	}

	out := make([]domain.AchievementDetail, 0, len(defined))
	for _, t := range defined {
		d := domain.AchievementDetail{
			ID:          strconv.Itoa(t.TrophyID),
			Name:        t.TrophyName,
			Description: t.TrophyDetail,
		}
		if e, ok := earnedByID[t.TrophyID]; ok {
			d.Unlocked = e.Earned
			if rate, err := strconv.ParseFloat(e.TrophyEarnedRate, 64); err == nil {
				d.RarityPct = rate
			}
			if e.Earned && e.EarnedDateTime != "" {
				if ts, err := time.Parse(time.RFC3339, e.EarnedDateTime); err == nil {
					utc := ts.UTC()
					d.UnlockedAt = &utc
				}
			}
		}
		out = append(out, d)
	}
	return out
}
