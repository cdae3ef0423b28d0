package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"questlog/internal/domain"
)

// SQLiteStore is the default snapshot store, backed by the pooled
// connection from internal/database.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSQLiteStore(db *sql.DB, logger zerolog.Logger) *SQLiteStore {
	return &SQLiteStore{
		db:     db,
		logger: logger,
	}
}

var _ Store = (*SQLiteStore)(nil)

func (s *SQLiteStore) FindFresh(ctx context.Context, platform domain.Platform, userKey string, maxAge time.Duration) ([]domain.PlatformItem, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	rows, err := s.db.QueryContext(ctx, `
		SELECT platform, user_key, item_id, title, cover_image_url, playtime_minutes,
		       unlocked_count, total_count, current_score, total_score, last_synced_at
		FROM platform_items
		WHERE platform = ? AND user_key = ? AND last_synced_at >= ?
		ORDER BY title`,
		string(platform), userKey, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query platform items: %w", err)
	}
	defer rows.Close()

	var items []domain.PlatformItem
	for rows.Next() {
		item, err := scanPlatformItem(rows)
		if err != nil {
			s.logger.Warn().Err(err).Msg("dropping unreadable item row")
			continue
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) Upsert(ctx context.Context, item domain.PlatformItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO platform_items (platform, user_key, item_id, title, cover_image_url, playtime_minutes,
			unlocked_count, total_count, current_score, total_score, last_synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(platform, user_key, item_id) DO UPDATE SET
			title = excluded.title,
			cover_image_url = excluded.cover_image_url,
			playtime_minutes = excluded.playtime_minutes,
			unlocked_count = excluded.unlocked_count,
			total_count = excluded.total_count,
			current_score = excluded.current_score,
			total_score = excluded.total_score,
			last_synced_at = excluded.last_synced_at`,
		string(item.Platform), item.UserKey, item.ItemID, item.Title, item.CoverImageURL, item.PlaytimeMinutes,
		item.Achievements.UnlockedCount, item.Achievements.TotalCount,
		item.Achievements.CurrentScore, item.Achievements.TotalScore, item.LastSyncedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert platform item: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindFreshAchievements(ctx context.Context, platform domain.Platform, userKey, itemID string, maxAge time.Duration) ([]domain.AchievementDetail, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	rows, err := s.db.QueryContext(ctx, `
		SELECT achievement_id, name, description, unlocked, score, rarity_percent, unlocked_at
		FROM achievement_details
		WHERE platform = ? AND user_key = ? AND item_id = ? AND fetched_at >= ?
		ORDER BY rowid`,
		string(platform), userKey, itemID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	defer rows.Close()

	var out []domain.AchievementDetail
	for rows.Next() {
		var (
			d          domain.AchievementDetail
			unlockedAt sql.NullTime
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.Unlocked, &d.Score, &d.RarityPct, &unlockedAt); err != nil {
			s.logger.Warn().Err(err).Msg("dropping unreadable achievement row")
			continue
		}
		if unlockedAt.Valid {
			t := unlockedAt.Time.UTC()
			d.UnlockedAt = &t
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertAchievements(ctx context.Context, platform domain.Platform, userKey, itemID string, rows []domain.AchievementDetail) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO achievement_details (id, platform, user_key, item_id, achievement_id,
			name, description, unlocked, score, rarity_percent, unlocked_at, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(platform, user_key, item_id, achievement_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			unlocked = excluded.unlocked,
			score = excluded.score,
			rarity_percent = excluded.rarity_percent,
			unlocked_at = excluded.unlocked_at,
			fetched_at = excluded.fetched_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	fetchedAt := time.Now().UTC()
	for _, row := range rows {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate nanoid: %w", err)
		}

		var unlockedAt *time.Time
		if row.UnlockedAt != nil {
			t := row.UnlockedAt.UTC()
			unlockedAt = &t
		}
		if _, err := stmt.ExecContext(ctx, id, string(platform), userKey, itemID, row.ID,
			row.Name, row.Description, row.Unlocked, row.Score, row.RarityPct, unlockedAt, fetchedAt); err != nil {
			return fmt.Errorf("failed to upsert achievement %s: %w", row.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanPlatformItem(rows *sql.Rows) (domain.PlatformItem, error) {
	var (
		item         domain.PlatformItem
		playtime     sql.NullInt64
		currentScore sql.NullInt64
		totalScore   sql.NullInt64
	)
	if err := rows.Scan(&item.Platform, &item.UserKey, &item.ItemID, &item.Title, &item.CoverImageURL,
		&playtime, &item.Achievements.UnlockedCount, &item.Achievements.TotalCount,
		&currentScore, &totalScore, &item.LastSyncedAt); err != nil {
		return domain.PlatformItem{}, fmt.Errorf("failed to scan platform item: %w", err)
	}

	if playtime.Valid {
		item.PlaytimeMinutes = &playtime.Int64
	}
	if currentScore.Valid {
		v := int(currentScore.Int64)
		item.Achievements.CurrentScore = &v
	}
	if totalScore.Valid {
		v := int(totalScore.Int64)
		item.Achievements.TotalScore = &v
	}
	item.LastSyncedAt = item.LastSyncedAt.UTC()
	return item, nil
}
