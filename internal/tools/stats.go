package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wirdbot/wirdbot/internal/store"
)

const defaultStreakEmoji = "🔥"

// StatsTool reports the caller's streaks and completion count.
type StatsTool struct {
	store *store.Store
}

// NewStatsTool creates the get_my_stats tool.
func NewStatsTool(st *store.Store) *StatsTool {
	return &StatsTool{store: st}
}

func (t *StatsTool) Name() string { return "get_my_stats" }

func (t *StatsTool) Description() string {
	return "Get the caller's wird stats: current streak, longest streak, total completions and streak emoji."
}

func (t *StatsTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (t *StatsTool) Requirement() Requirement   { return Public }
func (t *StatsTool) RequiresConfirmation() bool { return false }

func (t *StatsTool) Execute(ctx context.Context, inv *Invocation, params map[string]any) (string, error) {
	if inv.CallerID == "" || inv.GuildID == "" {
		return "Error: User context missing.", nil
	}

	user, err := t.store.GetUser(ctx, inv.CallerID, inv.GuildID)
	if err != nil {
		return fmt.Sprintf("Error fetching stats: %v", err), nil
	}
	if user == nil {
		return "User not found in the database.", nil
	}
	if !user.Registered {
		return "You are not registered! Use /register to get started.", nil
	}

	emoji := user.StreakEmoji
	if emoji == "" {
		emoji = defaultStreakEmoji
	}
	completions, err := t.store.CountCompletions(ctx, inv.CallerID, inv.GuildID)
	if err != nil {
		return fmt.Sprintf("Error fetching stats: %v", err), nil
	}

	return fmt.Sprintf(
		"**Your Stats:**\n- Current Streak: %d %s\n- Longest Streak: %d\n- Total Completions: %d\n- Streak Emoji: %s",
		user.CurrentStreak, emoji, user.LongestStreak, completions, emoji,
	), nil
}

// MarkWirdTool records today's completion for the caller and advances the
// streak. The page defaults to the guild's current wird page.
type MarkWirdTool struct {
	store *store.Store
}

// NewMarkWirdTool creates the mark_wird_complete tool.
func NewMarkWirdTool(st *store.Store) *MarkWirdTool {
	return &MarkWirdTool{store: st}
}

func (t *MarkWirdTool) Name() string { return "mark_wird_complete" }

func (t *MarkWirdTool) Description() string {
	return "Mark the caller's wird (daily reading) as complete for today. Updates their streak. " +
		"Pass a page number only if the user read a different page than today's."
}

func (t *MarkWirdTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"page": map[string]any{
				"type":        "integer",
				"description": "Page that was read (defaults to the server's current page)",
			},
		},
	}
}

func (t *MarkWirdTool) Requirement() Requirement   { return Public }
func (t *MarkWirdTool) RequiresConfirmation() bool { return false }

func (t *MarkWirdTool) Execute(ctx context.Context, inv *Invocation, params map[string]any) (string, error) {
	if inv.CallerID == "" || inv.GuildID == "" {
		return "Error: Cannot mark completion outside of a server context.", nil
	}

	page := GetInt(params, "page", 0)
	if page == 0 {
		guild, err := t.store.GetGuild(ctx, inv.GuildID)
		if err != nil {
			return fmt.Sprintf("Error marking completion: %v", err), nil
		}
		if guild == nil {
			return "Error: This server has no wird configured and no page was given.", nil
		}
		page = guild.CurrentPage
	}
	if page < 1 {
		return "Invalid page number.", nil
	}

	if _, err := t.store.EnsureUser(ctx, inv.CallerID, inv.GuildID); err != nil {
		return fmt.Sprintf("Error marking completion: %v", err), nil
	}

	today := time.Now().Format("2006-01-02")
	completion := &store.Completion{
		UserID:     inv.CallerID,
		GuildID:    inv.GuildID,
		PageNumber: page,
		Date:       today,
	}
	if err := t.store.RecordCompletion(ctx, completion); err != nil {
		return fmt.Sprintf("Error marking completion: %v", err), nil
	}

	current, _, err := t.store.UpdateStreak(ctx, inv.CallerID, inv.GuildID, today)
	if err != nil {
		return fmt.Sprintf("Error updating streak: %v", err), nil
	}

	user, err := t.store.GetUser(ctx, inv.CallerID, inv.GuildID)
	if err != nil || user == nil {
		return fmt.Sprintf("✅ Marked page %d complete. Current streak: %d", page, current), nil
	}
	emoji := user.StreakEmoji
	if emoji == "" {
		emoji = defaultStreakEmoji
	}
	return fmt.Sprintf("✅ Marked page %d complete. Current streak: %d %s", page, current, emoji), nil
}

// StreakEmojiTool sets the caller's streak emoji.
type StreakEmojiTool struct {
	store *store.Store
}

// NewStreakEmojiTool creates the set_my_streak_emoji tool.
func NewStreakEmojiTool(st *store.Store) *StreakEmojiTool {
	return &StreakEmojiTool{store: st}
}

func (t *StreakEmojiTool) Name() string { return "set_my_streak_emoji" }

func (t *StreakEmojiTool) Description() string {
	return "Update the emoji shown next to the caller's streak."
}

func (t *StreakEmojiTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"emoji": map[string]any{
				"type":        "string",
				"description": "The new emoji to use for streak display",
			},
		},
		"required": []string{"emoji"},
	}
}

func (t *StreakEmojiTool) Requirement() Requirement   { return Public }
func (t *StreakEmojiTool) RequiresConfirmation() bool { return false }

func (t *StreakEmojiTool) Execute(ctx context.Context, inv *Invocation, params map[string]any) (string, error) {
	if inv.CallerID == "" || inv.GuildID == "" {
		return "Error: User context missing.", nil
	}

	emoji := strings.TrimSpace(GetString(params, "emoji", ""))
	if emoji == "" {
		return "Error: emoji is required", nil
	}

	user, err := t.store.GetUser(ctx, inv.CallerID, inv.GuildID)
	if err != nil {
		return fmt.Sprintf("Error updating emoji: %v", err), nil
	}
	if user == nil || !user.Registered {
		return "You are not registered. Use /register first.", nil
	}

	if err := t.store.SetStreakEmoji(ctx, inv.CallerID, inv.GuildID, emoji); err != nil {
		return fmt.Sprintf("Error updating emoji: %v", err), nil
	}
	return fmt.Sprintf("✅ Updated your streak emoji to %s", emoji), nil
}
