// Package store persists wird tracking state in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// Store wraps the SQLite database holding all bot state.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and applies the schema.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// DB returns the underlying *sql.DB for shared access.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// GetUser returns the user row for (userID, guildID), or nil when absent.
func (s *Store) GetUser(ctx context.Context, userID, guildID string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, guild_id, registered, current_streak, longest_streak,
		       COALESCE(last_completion_date, ''), COALESCE(streak_emoji, '')
		FROM users WHERE user_id = ? AND guild_id = ?`, userID, guildID)

	var u User
	err := row.Scan(&u.UserID, &u.GuildID, &u.Registered, &u.CurrentStreak,
		&u.LongestStreak, &u.LastCompletionDate, &u.StreakEmoji)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// EnsureUser creates the user row if it does not exist and returns it.
func (s *Store) EnsureUser(ctx context.Context, userID, guildID string) (*User, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, guild_id, registered) VALUES (?, ?, 1)
		ON CONFLICT (user_id, guild_id) DO UPDATE SET registered = 1`,
		userID, guildID)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	return s.GetUser(ctx, userID, guildID)
}

// SetStreakEmoji updates the emoji shown next to the user's streak.
func (s *Store) SetStreakEmoji(ctx context.Context, userID, guildID, emoji string) error {
	if _, err := s.EnsureUser(ctx, userID, guildID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET streak_emoji = ? WHERE user_id = ? AND guild_id = ?`,
		emoji, userID, guildID)
	if err != nil {
		return fmt.Errorf("set streak emoji: %w", err)
	}
	return nil
}

// UpdateStreak records a completion on date (YYYY-MM-DD) and returns the new
// current and longest streaks. A same-day repeat leaves the streak unchanged;
// a completion the day after the last one extends it; anything else resets to 1.
func (s *Store) UpdateStreak(ctx context.Context, userID, guildID, date string) (current, longest int, err error) {
	u, err := s.EnsureUser(ctx, userID, guildID)
	if err != nil {
		return 0, 0, err
	}

	current = u.CurrentStreak
	longest = u.LongestStreak

	if u.LastCompletionDate != date {
		if isNextDay(u.LastCompletionDate, date) {
			current = u.CurrentStreak + 1
		} else {
			current = 1
		}
		if current > longest {
			longest = current
		}
		_, err = s.db.ExecContext(ctx, `
			UPDATE users SET current_streak = ?, longest_streak = ?, last_completion_date = ?
			WHERE user_id = ? AND guild_id = ?`,
			current, longest, date, userID, guildID)
		if err != nil {
			return 0, 0, fmt.Errorf("update streak: %w", err)
		}
	}

	return current, longest, nil
}

func isNextDay(prev, next string) bool {
	if prev == "" {
		return false
	}
	p, err := time.Parse(dateLayout, prev)
	if err != nil {
		return false
	}
	n, err := time.Parse(dateLayout, next)
	if err != nil {
		return false
	}
	return p.AddDate(0, 0, 1).Equal(n)
}

// ---------------------------------------------------------------------------
// Completions
// ---------------------------------------------------------------------------

// RecordCompletion stores one completed page.
func (s *Store) RecordCompletion(ctx context.Context, c *Completion) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO completions (user_id, guild_id, page_number, date, is_late)
		VALUES (?, ?, ?, ?, ?)`,
		c.UserID, c.GuildID, c.PageNumber, c.Date, c.IsLate)
	if err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	return nil
}

// CountCompletions returns the user's total completed pages in a guild.
func (s *Store) CountCompletions(ctx context.Context, userID, guildID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM completions WHERE user_id = ? AND guild_id = ?`,
		userID, guildID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count completions: %w", err)
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// User memories
// ---------------------------------------------------------------------------

// AddMemory stores a note about a user and returns its id.
func (s *Store) AddMemory(ctx context.Context, userID, guildID, content string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO user_memories (user_id, guild_id, content) VALUES (?, ?, ?)`,
		userID, guildID, content)
	if err != nil {
		return 0, fmt.Errorf("add memory: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("add memory: %w", err)
	}
	return id, nil
}

// ListMemories returns the newest memories for a user, newest first.
func (s *Store) ListMemories(ctx context.Context, userID string, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, guild_id, content, created_at
		FROM user_memories WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// SearchMemories returns memories whose content matches the keyword.
func (s *Store) SearchMemories(ctx context.Context, userID, keyword string, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, guild_id, content, created_at
		FROM user_memories WHERE user_id = ? AND content LIKE ?
		ORDER BY created_at DESC LIMIT ?`, userID, "%"+keyword+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// DeleteMemory removes one memory owned by userID. Returns false when the id
// does not exist or belongs to a different user.
func (s *Store) DeleteMemory(ctx context.Context, id int64, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_memories WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete memory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete memory: %w", err)
	}
	return n > 0, nil
}

func scanMemories(rows *sql.Rows) ([]Memory, error) {
	var out []Memory
	for rows.Next() {
		var m Memory
		if err := rows.Scan(&m.ID, &m.UserID, &m.GuildID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Code-execution whitelist
// ---------------------------------------------------------------------------

// WhitelistAdd grants a guild code-execution privileges.
func (s *Store) WhitelistAdd(ctx context.Context, guildID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO ai_code_whitelist (guild_id) VALUES (?)`, guildID)
	if err != nil {
		return fmt.Errorf("whitelist add: %w", err)
	}
	return nil
}

// WhitelistRemove revokes a guild's code-execution privileges. Returns false
// when the guild was not whitelisted.
func (s *Store) WhitelistRemove(ctx context.Context, guildID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ai_code_whitelist WHERE guild_id = ?`, guildID)
	if err != nil {
		return false, fmt.Errorf("whitelist remove: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("whitelist remove: %w", err)
	}
	return n > 0, nil
}

// WhitelistContains reports whether a guild is whitelisted.
func (s *Store) WhitelistContains(ctx context.Context, guildID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ai_code_whitelist WHERE guild_id = ?`, guildID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("whitelist contains: %w", err)
	}
	return n > 0, nil
}

// WhitelistAll returns every whitelisted guild id.
func (s *Store) WhitelistAll(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT guild_id FROM ai_code_whitelist ORDER BY guild_id`)
	if err != nil {
		return nil, fmt.Errorf("whitelist all: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("whitelist all: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Guild configuration
// ---------------------------------------------------------------------------

// GetGuild returns the guild config row, or nil when absent.
func (s *Store) GetGuild(ctx context.Context, guildID string) (*Guild, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT guild_id, configured, COALESCE(channel_id, ''), COALESCE(mushaf_type, ''),
		       pages_per_day, current_page, COALESCE(mosque_id, ''),
		       followup_on_completion, COALESCE(wird_role_id, '')
		FROM guilds WHERE guild_id = ?`, guildID)

	var g Guild
	err := row.Scan(&g.GuildID, &g.Configured, &g.ChannelID, &g.MushafType,
		&g.PagesPerDay, &g.CurrentPage, &g.MosqueID, &g.FollowupOnCompletion,
		&g.WirdRoleID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get guild: %w", err)
	}
	return &g, nil
}

// UpsertGuild writes the full guild config row.
func (s *Store) UpsertGuild(ctx context.Context, g *Guild) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guilds (guild_id, configured, channel_id, mushaf_type,
			pages_per_day, current_page, mosque_id, followup_on_completion, wird_role_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (guild_id) DO UPDATE SET
			configured = excluded.configured,
			channel_id = excluded.channel_id,
			mushaf_type = excluded.mushaf_type,
			pages_per_day = excluded.pages_per_day,
			current_page = excluded.current_page,
			mosque_id = excluded.mosque_id,
			followup_on_completion = excluded.followup_on_completion,
			wird_role_id = excluded.wird_role_id`,
		g.GuildID, g.Configured, g.ChannelID, g.MushafType, g.PagesPerDay,
		g.CurrentPage, g.MosqueID, g.FollowupOnCompletion, g.WirdRoleID)
	if err != nil {
		return fmt.Errorf("upsert guild: %w", err)
	}
	return nil
}

// SetCurrentPage moves a guild's reading position.
func (s *Store) SetCurrentPage(ctx context.Context, guildID string, page int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE guilds SET current_page = ? WHERE guild_id = ?`, page, guildID)
	if err != nil {
		return fmt.Errorf("set current page: %w", err)
	}
	return nil
}

// ConfiguredGuilds returns every guild with completed setup.
func (s *Store) ConfiguredGuilds(ctx context.Context) ([]Guild, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, configured, COALESCE(channel_id, ''), COALESCE(mushaf_type, ''),
		       pages_per_day, current_page, COALESCE(mosque_id, ''),
		       followup_on_completion, COALESCE(wird_role_id, '')
		FROM guilds WHERE configured = 1`)
	if err != nil {
		return nil, fmt.Errorf("configured guilds: %w", err)
	}
	defer rows.Close()

	var out []Guild
	for rows.Next() {
		var g Guild
		if err := rows.Scan(&g.GuildID, &g.Configured, &g.ChannelID, &g.MushafType,
			&g.PagesPerDay, &g.CurrentPage, &g.MosqueID, &g.FollowupOnCompletion,
			&g.WirdRoleID); err != nil {
			return nil, fmt.Errorf("scan guild: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Scheduled delivery times
// ---------------------------------------------------------------------------

// AddScheduledTime registers a delivery slot for a guild.
func (s *Store) AddScheduledTime(ctx context.Context, guildID, timeType, timeValue string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_times (guild_id, time_type, time_value, enabled)
		VALUES (?, ?, ?, 1)`, guildID, timeType, timeValue)
	if err != nil {
		return 0, fmt.Errorf("add scheduled time: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("add scheduled time: %w", err)
	}
	return id, nil
}

// EnabledScheduledTimes returns all enabled delivery slots across guilds.
func (s *Store) EnabledScheduledTimes(ctx context.Context) ([]ScheduledTime, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, time_type, time_value, enabled
		FROM scheduled_times WHERE enabled = 1`)
	if err != nil {
		return nil, fmt.Errorf("enabled scheduled times: %w", err)
	}
	defer rows.Close()

	var out []ScheduledTime
	for rows.Next() {
		var t ScheduledTime
		if err := rows.Scan(&t.ID, &t.GuildID, &t.TimeType, &t.TimeValue, &t.Enabled); err != nil {
			return nil, fmt.Errorf("scan scheduled time: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RemoveScheduledTime deletes one delivery slot.
func (s *Store) RemoveScheduledTime(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_times WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove scheduled time: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Wird sessions (one delivery per guild per day)
// ---------------------------------------------------------------------------

// SessionExists reports whether a portion was already delivered to the guild
// on the given date.
func (s *Store) SessionExists(ctx context.Context, guildID, date string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM wird_sessions WHERE guild_id = ? AND date = ?`,
		guildID, date).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("session exists: %w", err)
	}
	return n > 0, nil
}

// RecordSession stores one delivery. The (guild, date) pair is unique, so a
// duplicate delivery attempt fails here rather than double-posting.
func (s *Store) RecordSession(ctx context.Context, sess *WirdSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wird_sessions (guild_id, date, start_page, end_page)
		VALUES (?, ?, ?, ?)`,
		sess.GuildID, sess.Date, sess.StartPage, sess.EndPage)
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}
