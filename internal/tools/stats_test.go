package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/wirdbot/wirdbot/internal/store"
)

func newToolStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "wirdbot.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func guildInvocation(userID, guildID string) *Invocation {
	return &Invocation{
		CallerID:   userID,
		CallerName: "Tester",
		ChannelID:  "chan-1",
		MessageID:  "msg-1",
		GuildID:    guildID,
	}
}

func TestStatsToolGuards(t *testing.T) {
	st := newToolStore(t)
	tool := NewStatsTool(st)
	ctx := context.Background()

	result, err := tool.Execute(ctx, &Invocation{CallerID: "u1"}, nil)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result != "Error: User context missing." {
		t.Errorf("dm result = %q", result)
	}

	result, err = tool.Execute(ctx, guildInvocation("ghost", "g1"), nil)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result != "User not found in the database." {
		t.Errorf("missing user result = %q", result)
	}
}

func TestStatsToolFormatsStats(t *testing.T) {
	st := newToolStore(t)
	tool := NewStatsTool(st)
	ctx := context.Background()

	if _, err := st.EnsureUser(ctx, "u1", "g1"); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	if err := st.SetStreakEmoji(ctx, "u1", "g1", "⭐"); err != nil {
		t.Fatalf("set emoji: %v", err)
	}
	today := time.Now().Format("2006-01-02")
	if _, _, err := st.UpdateStreak(ctx, "u1", "g1", today); err != nil {
		t.Fatalf("update streak: %v", err)
	}
	for i := 0; i < 2; i++ {
		err := st.RecordCompletion(ctx, &store.Completion{
			UserID: "u1", GuildID: "g1", PageNumber: 10 + i, Date: today,
		})
		if err != nil {
			t.Fatalf("record completion: %v", err)
		}
	}

	result, err := tool.Execute(ctx, guildInvocation("u1", "g1"), nil)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	want := "**Your Stats:**\n- Current Streak: 1 ⭐\n- Longest Streak: 1\n- Total Completions: 2\n- Streak Emoji: ⭐"
	if result != want {
		t.Errorf("result = %q, want %q", result, want)
	}
}

func TestMarkWirdDefaultsToGuildPage(t *testing.T) {
	st := newToolStore(t)
	tool := NewMarkWirdTool(st)
	ctx := context.Background()

	err := st.UpsertGuild(ctx, &store.Guild{
		GuildID: "g1", Configured: true, MushafType: "madani",
		PagesPerDay: 1, CurrentPage: 42,
	})
	if err != nil {
		t.Fatalf("upsert guild: %v", err)
	}

	result, err := tool.Execute(ctx, guildInvocation("u1", "g1"), map[string]any{})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	want := "✅ Marked page 42 complete. Current streak: 1 🔥"
	if result != want {
		t.Errorf("result = %q, want %q", result, want)
	}

	count, err := st.CountCompletions(ctx, "u1", "g1")
	if err != nil {
		t.Fatalf("count completions: %v", err)
	}
	if count != 1 {
		t.Errorf("completions = %d, want 1", count)
	}
}

func TestMarkWirdGuards(t *testing.T) {
	st := newToolStore(t)
	tool := NewMarkWirdTool(st)
	ctx := context.Background()

	result, err := tool.Execute(ctx, &Invocation{CallerID: "u1"}, nil)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result != "Error: Cannot mark completion outside of a server context." {
		t.Errorf("dm result = %q", result)
	}

	result, err = tool.Execute(ctx, guildInvocation("u1", "unconfigured"), map[string]any{})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result != "Error: This server has no wird configured and no page was given." {
		t.Errorf("unconfigured result = %q", result)
	}
}

func TestStreakEmojiTool(t *testing.T) {
	st := newToolStore(t)
	tool := NewStreakEmojiTool(st)
	ctx := context.Background()

	result, err := tool.Execute(ctx, guildInvocation("u1", "g1"), map[string]any{"emoji": "🚀"})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result != "You are not registered. Use /register first." {
		t.Errorf("unregistered result = %q", result)
	}

	if _, err := st.EnsureUser(ctx, "u1", "g1"); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	result, err = tool.Execute(ctx, guildInvocation("u1", "g1"), map[string]any{"emoji": "🚀"})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result != fmt.Sprintf("✅ Updated your streak emoji to %s", "🚀") {
		t.Errorf("result = %q", result)
	}

	user, err := st.GetUser(ctx, "u1", "g1")
	if err != nil || user == nil {
		t.Fatalf("get user: %v", err)
	}
	if user.StreakEmoji != "🚀" {
		t.Errorf("persisted emoji = %q", user.StreakEmoji)
	}
}
