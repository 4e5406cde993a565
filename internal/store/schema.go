package store

import (
	"time"
)

// User represents a tracked reader within one guild.
type User struct {
	UserID             string `json:"user_id"`
	GuildID            string `json:"guild_id"`
	Registered         bool   `json:"registered"`
	CurrentStreak      int    `json:"current_streak"`
	LongestStreak      int    `json:"longest_streak"`
	LastCompletionDate string `json:"last_completion_date"` // YYYY-MM-DD, empty when never completed
	StreakEmoji        string `json:"streak_emoji"`
}

// Completion represents one recorded page completion.
type Completion struct {
	ID         int64  `json:"id"`
	UserID     string `json:"user_id"`
	GuildID    string `json:"guild_id"`
	PageNumber int    `json:"page_number"`
	Date       string `json:"date"` // YYYY-MM-DD
	IsLate     bool   `json:"is_late"`
}

// Memory is a free-form note stored about a user.
type Memory struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	GuildID   string    `json:"guild_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Guild holds per-guild wird configuration.
type Guild struct {
	GuildID              string `json:"guild_id"`
	Configured           bool   `json:"configured"`
	ChannelID            string `json:"channel_id"`
	MushafType           string `json:"mushaf_type"`
	PagesPerDay          int    `json:"pages_per_day"`
	CurrentPage          int    `json:"current_page"`
	MosqueID             string `json:"mosque_id"`
	FollowupOnCompletion bool   `json:"followup_on_completion"`
	WirdRoleID           string `json:"wird_role_id"`
}

// ScheduledTime is one HH:MM delivery slot for a guild.
type ScheduledTime struct {
	ID        int64  `json:"id"`
	GuildID   string `json:"guild_id"`
	TimeType  string `json:"time_type"`  // e.g. "custom"
	TimeValue string `json:"time_value"` // HH:MM, 24h
	Enabled   bool   `json:"enabled"`
}

// WirdSession records one daily portion delivery for a guild.
type WirdSession struct {
	ID        int64  `json:"id"`
	GuildID   string `json:"guild_id"`
	Date      string `json:"date"` // YYYY-MM-DD
	StartPage int    `json:"start_page"`
	EndPage   int    `json:"end_page"`
}

const Schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id TEXT NOT NULL,
	guild_id TEXT NOT NULL,
	registered BOOLEAN NOT NULL DEFAULT 0,
	current_streak INTEGER NOT NULL DEFAULT 0,
	longest_streak INTEGER NOT NULL DEFAULT 0,
	last_completion_date TEXT DEFAULT '',
	streak_emoji TEXT DEFAULT '',
	PRIMARY KEY (user_id, guild_id)
);

CREATE TABLE IF NOT EXISTS completions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	guild_id TEXT NOT NULL,
	page_number INTEGER NOT NULL,
	date TEXT NOT NULL,
	is_late BOOLEAN NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_completions_user ON completions(user_id, guild_id);
CREATE INDEX IF NOT EXISTS idx_completions_date ON completions(date);

CREATE TABLE IF NOT EXISTS user_memories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	guild_id TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_user_memories_user ON user_memories(user_id);

CREATE TABLE IF NOT EXISTS ai_code_whitelist (
	guild_id TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS guilds (
	guild_id TEXT PRIMARY KEY,
	configured BOOLEAN NOT NULL DEFAULT 0,
	channel_id TEXT DEFAULT '',
	mushaf_type TEXT DEFAULT 'madani',
	pages_per_day INTEGER NOT NULL DEFAULT 1,
	current_page INTEGER NOT NULL DEFAULT 1,
	mosque_id TEXT DEFAULT '',
	followup_on_completion BOOLEAN NOT NULL DEFAULT 0,
	wird_role_id TEXT DEFAULT ''
);

CREATE TABLE IF NOT EXISTS scheduled_times (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	guild_id TEXT NOT NULL,
	time_type TEXT NOT NULL DEFAULT 'custom',
	time_value TEXT NOT NULL,
	enabled BOOLEAN NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_scheduled_times_guild ON scheduled_times(guild_id);

CREATE TABLE IF NOT EXISTS wird_sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	guild_id TEXT NOT NULL,
	date TEXT NOT NULL,
	start_page INTEGER NOT NULL,
	end_page INTEGER NOT NULL,
	UNIQUE (guild_id, date)
);
`
