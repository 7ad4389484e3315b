package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sectbot/internal/ledger"
)

// Guild config keys used by the bot.
const (
	ConfigNotificationChannel = "notification_channel"
)

const searchResultLimit = 50

// LedgerService owns the persistent contribution ledger: points, profiles
// and per-guild configuration.
type LedgerService struct {
	db *pgxpool.Pool
}

func NewLedgerService(db *pgxpool.Pool) *LedgerService {
	return &LedgerService{db: db}
}

// CreateTables creates the ledger schema if it does not exist yet.
func (s *LedgerService) CreateTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS leaderboard (
			guild_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			username VARCHAR(255) NOT NULL,
			points INTEGER DEFAULT 0 CHECK (points >= 0),
			last_updated TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (guild_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS user_profiles (
			guild_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			custom_title VARCHAR(100),
			status_message VARCHAR(200),
			preferred_color VARCHAR(7) DEFAULT '#2C3E50',
			notification_dm BOOLEAN DEFAULT TRUE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (guild_id, user_id),
			FOREIGN KEY (guild_id, user_id) REFERENCES leaderboard(guild_id, user_id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS guild_config (
			guild_id BIGINT NOT NULL,
			config_key VARCHAR(100) NOT NULL,
			config_value TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (guild_id, config_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_leaderboard_guild_points ON leaderboard (guild_id, points DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_leaderboard_username ON leaderboard (guild_id, username)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create ledger schema: %w", err)
		}
	}

	log.Println("Ledger tables and indexes ready")
	return nil
}

// UpsertMember inserts a member with zero points, or refreshes username and
// last_updated when the member already exists. Safe to call repeatedly.
func (s *LedgerService) UpsertMember(ctx context.Context, guildID, userID int64, username string) error {
	query := `
	INSERT INTO leaderboard (guild_id, user_id, username, points, last_updated, created_at)
	VALUES ($1, $2, $3, 0, NOW(), NOW())
	ON CONFLICT (guild_id, user_id) DO UPDATE SET
		username = EXCLUDED.username,
		last_updated = NOW()
	`

	if _, err := s.db.Exec(ctx, query, guildID, userID, truncateUsername(username)); err != nil {
		return fmt.Errorf("failed to upsert member %d in guild %d: %w", userID, guildID, err)
	}
	return nil
}

// RemoveMember deletes a member's ledger entry. It reports whether a row
// was actually removed.
func (s *LedgerService) RemoveMember(ctx context.Context, guildID, userID int64) (bool, error) {
	result, err := s.db.Exec(ctx, `DELETE FROM leaderboard WHERE guild_id = $1 AND user_id = $2`, guildID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to remove member %d from guild %d: %w", userID, guildID, err)
	}
	return result.RowsAffected() > 0, nil
}

// ApplyPointsDelta atomically adds delta to a member's points, clamping the
// result at zero; when the result would go negative the applied delta is
// truncated so the stored value is exactly 0. The row is locked for the
// duration of the transaction so concurrent appliers on the same member
// serialize and no update is lost.
//
// When the member has no entry and username is empty the call is a no-op
// and applied is false; a non-empty username creates the entry first.
func (s *LedgerService) ApplyPointsDelta(ctx context.Context, guildID, userID int64, delta int, username string) (applied bool, newPoints int, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if username != "" {
		_, err = tx.Exec(ctx, `
			INSERT INTO leaderboard (guild_id, user_id, username, points, last_updated, created_at)
			VALUES ($1, $2, $3, 0, NOW(), NOW())
			ON CONFLICT (guild_id, user_id) DO UPDATE SET username = EXCLUDED.username
		`, guildID, userID, truncateUsername(username))
		if err != nil {
			return false, 0, fmt.Errorf("failed to ensure member exists: %w", err)
		}
	}

	var current int
	err = tx.QueryRow(ctx, `
		SELECT points FROM leaderboard
		WHERE guild_id = $1 AND user_id = $2
		FOR UPDATE
	`, guildID, userID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Printf("ApplyPointsDelta: user %d not in ledger for guild %d", userID, guildID)
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("failed to read current points: %w", err)
	}

	newPoints = current + delta
	if newPoints < 0 {
		log.Printf("ApplyPointsDelta: clamping user %d in guild %d to 0 (had %d, delta %d)", userID, guildID, current, delta)
		newPoints = 0
	}

	_, err = tx.Exec(ctx, `
		UPDATE leaderboard SET points = $3, last_updated = NOW()
		WHERE guild_id = $1 AND user_id = $2
	`, guildID, userID, newPoints)
	if err != nil {
		return false, 0, fmt.Errorf("failed to update points: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return false, 0, fmt.Errorf("failed to commit points update: %w", err)
	}

	return true, newPoints, nil
}

// GetStats returns a member's points, 1-based rank and timestamps, or nil
// when the member has no ledger entry. Rank ties go to the earlier
// contributor.
func (s *LedgerService) GetStats(ctx context.Context, guildID, userID int64) (*ledger.Stats, error) {
	query := `
	SELECT username, points, last_updated, created_at, rank FROM (
		SELECT user_id, username, points, last_updated, created_at,
		       ROW_NUMBER() OVER (ORDER BY points DESC, last_updated ASC) AS rank
		FROM leaderboard
		WHERE guild_id = $1
	) ranked
	WHERE user_id = $2
	`

	stats := &ledger.Stats{}
	err := s.db.QueryRow(ctx, query, guildID, userID).Scan(
		&stats.Username,
		&stats.Points,
		&stats.LastUpdated,
		&stats.CreatedAt,
		&stats.Rank,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get stats for user %d: %w", userID, err)
	}

	return stats, nil
}

// GetPage returns one leaderboard page ordered by points descending with
// earlier last_updated breaking ties. Rank numbers are computed over the
// full guild ordering, so page 2 continues from page 1. The page number is
// clamped into [1, totalPages]; an empty guild yields an empty page 1 of 1.
func (s *LedgerService) GetPage(ctx context.Context, guildID int64, page, perPage int) (*ledger.Page, error) {
	var total int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM leaderboard WHERE guild_id = $1`, guildID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count guild members: %w", err)
	}

	page, totalPages := clampPage(page, total, perPage)
	if total == 0 {
		return &ledger.Page{Page: page, TotalPages: totalPages}, nil
	}

	offset := (page - 1) * perPage
	rows, err := s.db.Query(ctx, `
		SELECT user_id, username, points, last_updated,
		       ROW_NUMBER() OVER (ORDER BY points DESC, last_updated ASC) AS rank
		FROM leaderboard
		WHERE guild_id = $1
		ORDER BY points DESC, last_updated ASC
		LIMIT $2 OFFSET $3
	`, guildID, perPage, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leaderboard page: %w", err)
	}
	defer rows.Close()

	result := &ledger.Page{Page: page, TotalPages: totalPages, TotalMembers: total}
	for rows.Next() {
		var row ledger.Row
		if err := rows.Scan(&row.UserID, &row.Username, &row.Points, &row.LastUpdated, &row.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		result.Rows = append(result.Rows, row)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard rows: %w", err)
	}

	return result, nil
}

// SearchByUsername finds members whose username contains the query,
// case-insensitively, in leaderboard order, capped at 50 results.
func (s *LedgerService) SearchByUsername(ctx context.Context, guildID int64, query string) ([]ledger.Row, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, username, points, last_updated,
		       ROW_NUMBER() OVER (ORDER BY points DESC, last_updated ASC) AS rank
		FROM leaderboard
		WHERE guild_id = $1 AND username ILIKE $2
		ORDER BY points DESC, last_updated ASC
		LIMIT $3
	`, guildID, "%"+escapeLike(query)+"%", searchResultLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	var results []ledger.Row
	for rows.Next() {
		var row ledger.Row
		if err := rows.Scan(&row.UserID, &row.Username, &row.Points, &row.LastUpdated, &row.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}
		results = append(results, row)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search rows: %w", err)
	}

	return results, nil
}

// GetGuildTotalPoints sums every member's points in the guild.
func (s *LedgerService) GetGuildTotalPoints(ctx context.Context, guildID int64) (int64, error) {
	var total int64
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(points), 0) FROM leaderboard WHERE guild_id = $1
	`, guildID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum guild points: %w", err)
	}
	return total, nil
}

// GetGuildStats returns aggregate ledger statistics for a guild.
func (s *LedgerService) GetGuildStats(ctx context.Context, guildID int64) (*ledger.GuildStats, error) {
	stats := &ledger.GuildStats{}
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(points), 0),
		       COALESCE(AVG(points), 0),
		       COALESCE(MAX(points), 0)
		FROM leaderboard
		WHERE guild_id = $1
	`, guildID).Scan(&stats.TotalMembers, &stats.TotalPoints, &stats.AvgPoints, &stats.MaxPoints)
	if err != nil {
		return nil, fmt.Errorf("failed to get guild stats: %w", err)
	}
	return stats, nil
}

// SetGuildConfig stores a per-guild configuration string.
func (s *LedgerService) SetGuildConfig(ctx context.Context, guildID int64, key, value string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO guild_config (guild_id, config_key, config_value, updated_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		ON CONFLICT (guild_id, config_key)
		DO UPDATE SET config_value = $3, updated_at = CURRENT_TIMESTAMP
	`, guildID, key, value)
	if err != nil {
		return fmt.Errorf("failed to set guild config %s: %w", key, err)
	}
	return nil
}

// GetGuildConfig reads a per-guild configuration string. The second return
// reports whether the key was present.
func (s *LedgerService) GetGuildConfig(ctx context.Context, guildID int64, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(ctx, `
		SELECT config_value FROM guild_config
		WHERE guild_id = $1 AND config_key = $2
	`, guildID, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get guild config %s: %w", key, err)
	}
	return value, true, nil
}

// GetGuildConfigInt reads a configuration value stored as a numeric string.
func (s *LedgerService) GetGuildConfigInt(ctx context.Context, guildID int64, key string) (int64, bool, error) {
	value, ok, err := s.GetGuildConfig(ctx, guildID, key)
	if err != nil || !ok {
		return 0, false, err
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		log.Printf("Guild config %s for guild %d is not numeric: %q", key, guildID, value)
		return 0, false, nil
	}
	return n, true, nil
}

// GetProfile returns a member's profile customization, or nil when none was
// ever set.
func (s *LedgerService) GetProfile(ctx context.Context, guildID, userID int64) (*ledger.Profile, error) {
	profile := &ledger.Profile{}
	var customTitle, statusMessage, preferredColor *string
	err := s.db.QueryRow(ctx, `
		SELECT custom_title, status_message, preferred_color, notification_dm
		FROM user_profiles
		WHERE guild_id = $1 AND user_id = $2
	`, guildID, userID).Scan(&customTitle, &statusMessage, &preferredColor, &profile.NotificationDM)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile for user %d: %w", userID, err)
	}

	if customTitle != nil {
		profile.CustomTitle = *customTitle
	}
	if statusMessage != nil {
		profile.StatusMessage = *statusMessage
	}
	if preferredColor != nil {
		profile.PreferredColor = *preferredColor
	}
	return profile, nil
}

// UpdateProfile creates or updates a member's profile. Profiles are
// foreign-key dependent on the ledger entry; the call reports false when
// the member is not in the ledger.
func (s *LedgerService) UpdateProfile(ctx context.Context, guildID, userID int64, update ledger.ProfileUpdate) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM leaderboard WHERE guild_id = $1 AND user_id = $2)
	`, guildID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check ledger entry: %w", err)
	}
	if !exists {
		return false, nil
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO user_profiles (guild_id, user_id, custom_title, status_message, preferred_color, notification_dm, updated_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, '#2C3E50'), COALESCE($6, TRUE), NOW())
		ON CONFLICT (guild_id, user_id) DO UPDATE SET
			custom_title = COALESCE($3, user_profiles.custom_title),
			status_message = COALESCE($4, user_profiles.status_message),
			preferred_color = COALESCE($5, user_profiles.preferred_color),
			notification_dm = COALESCE($6, user_profiles.notification_dm),
			updated_at = NOW()
	`, guildID, userID, update.CustomTitle, update.StatusMessage, update.PreferredColor, update.NotificationDM)
	if err != nil {
		return false, fmt.Errorf("failed to update profile for user %d: %w", userID, err)
	}
	return true, nil
}

// CleanupInactive deletes zero-point entries untouched for longer than
// maxAge and returns how many rows were pruned.
func (s *LedgerService) CleanupInactive(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	result, err := s.db.Exec(ctx, `
		DELETE FROM leaderboard WHERE last_updated < $1 AND points = 0
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up inactive entries: %w", err)
	}
	return result.RowsAffected(), nil
}

// clampPage normalizes a requested page number against the member count.
// totalPages never drops below 1, even for an empty guild.
func clampPage(page, total, perPage int) (int, int) {
	totalPages := 1
	if perPage > 0 && total > 0 {
		totalPages = (total + perPage - 1) / perPage
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	return page, totalPages
}

func truncateUsername(username string) string {
	if len(username) > 255 {
		return username[:255]
	}
	return username
}

func escapeLike(query string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(query)
}
