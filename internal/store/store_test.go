package store

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "wirdbot.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestGetUserMissing(t *testing.T) {
	s := newTestStore(t)

	u, err := s.GetUser(context.Background(), "u1", "g1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u != nil {
		t.Fatalf("expected nil for missing user, got %+v", u)
	}
}

func TestEnsureUserIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.EnsureUser(ctx, "u1", "g1")
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	if !u.Registered {
		t.Error("expected registered user")
	}

	if _, _, err := s.UpdateStreak(ctx, "u1", "g1", "2026-08-20"); err != nil {
		t.Fatalf("update streak: %v", err)
	}

	// A second Ensure must not reset streak state.
	u, err = s.EnsureUser(ctx, "u1", "g1")
	if err != nil {
		t.Fatalf("ensure user again: %v", err)
	}
	if u.CurrentStreak != 1 {
		t.Errorf("ensure reset streak: got %d, want 1", u.CurrentStreak)
	}
}

func TestUpdateStreakProgression(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// First completion starts a streak of 1.
	cur, long, err := s.UpdateStreak(ctx, "u1", "g1", "2026-08-18")
	if err != nil {
		t.Fatalf("update streak: %v", err)
	}
	if cur != 1 || long != 1 {
		t.Errorf("first completion: got (%d, %d), want (1, 1)", cur, long)
	}

	// Same day again is a no-op.
	cur, long, err = s.UpdateStreak(ctx, "u1", "g1", "2026-08-18")
	if err != nil {
		t.Fatalf("update streak: %v", err)
	}
	if cur != 1 || long != 1 {
		t.Errorf("same-day repeat: got (%d, %d), want (1, 1)", cur, long)
	}

	// Next day extends the streak.
	cur, long, err = s.UpdateStreak(ctx, "u1", "g1", "2026-08-19")
	if err != nil {
		t.Fatalf("update streak: %v", err)
	}
	if cur != 2 || long != 2 {
		t.Errorf("next day: got (%d, %d), want (2, 2)", cur, long)
	}

	// A gap resets current but keeps longest.
	cur, long, err = s.UpdateStreak(ctx, "u1", "g1", "2026-08-25")
	if err != nil {
		t.Fatalf("update streak: %v", err)
	}
	if cur != 1 || long != 2 {
		t.Errorf("after gap: got (%d, %d), want (1, 2)", cur, long)
	}
}

func TestCompletionsCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, page := range []int{10, 11, 12} {
		err := s.RecordCompletion(ctx, &Completion{
			UserID: "u1", GuildID: "g1", PageNumber: page, Date: "2026-08-20",
		})
		if err != nil {
			t.Fatalf("record completion: %v", err)
		}
	}
	err := s.RecordCompletion(ctx, &Completion{
		UserID: "u2", GuildID: "g1", PageNumber: 10, Date: "2026-08-20",
	})
	if err != nil {
		t.Fatalf("record completion: %v", err)
	}

	n, err := s.CountCompletions(ctx, "u1", "g1")
	if err != nil {
		t.Fatalf("count completions: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 completions for u1, got %d", n)
	}
}

func TestMemoryLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, err := s.AddMemory(ctx, "u1", "g1", "prefers the madani mushaf")
	if err != nil {
		t.Fatalf("add memory: %v", err)
	}
	if _, err := s.AddMemory(ctx, "u1", "g1", "reads after fajr"); err != nil {
		t.Fatalf("add memory: %v", err)
	}
	if _, err := s.AddMemory(ctx, "u2", "g1", "other user's note"); err != nil {
		t.Fatalf("add memory: %v", err)
	}

	list, err := s.ListMemories(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("list memories: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 memories for u1, got %d", len(list))
	}

	found, err := s.SearchMemories(ctx, "u1", "fajr", 0)
	if err != nil {
		t.Fatalf("search memories: %v", err)
	}
	if len(found) != 1 || found[0].Content != "reads after fajr" {
		t.Errorf("search mismatch: %+v", found)
	}

	// Deleting someone else's memory must fail the owner check.
	ok, err := s.DeleteMemory(ctx, id1, "u2")
	if err != nil {
		t.Fatalf("delete memory: %v", err)
	}
	if ok {
		t.Error("delete should fail for non-owner")
	}

	ok, err = s.DeleteMemory(ctx, id1, "u1")
	if err != nil {
		t.Fatalf("delete memory: %v", err)
	}
	if !ok {
		t.Error("delete should succeed for owner")
	}

	list, err = s.ListMemories(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("list memories: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 memory after delete, got %d", len(list))
	}
}

func TestWhitelist(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, err := s.WhitelistContains(ctx, "g1")
	if err != nil {
		t.Fatalf("whitelist contains: %v", err)
	}
	if ok {
		t.Error("fresh store should have empty whitelist")
	}

	if err := s.WhitelistAdd(ctx, "g1"); err != nil {
		t.Fatalf("whitelist add: %v", err)
	}
	// Adding twice is fine.
	if err := s.WhitelistAdd(ctx, "g1"); err != nil {
		t.Fatalf("whitelist re-add: %v", err)
	}
	if err := s.WhitelistAdd(ctx, "g2"); err != nil {
		t.Fatalf("whitelist add: %v", err)
	}

	ok, err = s.WhitelistContains(ctx, "g1")
	if err != nil {
		t.Fatalf("whitelist contains: %v", err)
	}
	if !ok {
		t.Error("g1 should be whitelisted")
	}

	all, err := s.WhitelistAll(ctx)
	if err != nil {
		t.Fatalf("whitelist all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 whitelisted guilds, got %d", len(all))
	}

	removed, err := s.WhitelistRemove(ctx, "g1")
	if err != nil {
		t.Fatalf("whitelist remove: %v", err)
	}
	if !removed {
		t.Error("expected removal of g1")
	}
	removed, err = s.WhitelistRemove(ctx, "g1")
	if err != nil {
		t.Fatalf("whitelist remove again: %v", err)
	}
	if removed {
		t.Error("second removal should report false")
	}
}

func TestGuildConfigRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	g, err := s.GetGuild(ctx, "g1")
	if err != nil {
		t.Fatalf("get guild: %v", err)
	}
	if g != nil {
		t.Fatalf("expected nil for unknown guild, got %+v", g)
	}

	want := &Guild{
		GuildID:              "g1",
		Configured:           true,
		ChannelID:            "c1",
		MushafType:           "madani",
		PagesPerDay:          2,
		CurrentPage:          600,
		FollowupOnCompletion: true,
		WirdRoleID:           "r1",
	}
	if err := s.UpsertGuild(ctx, want); err != nil {
		t.Fatalf("upsert guild: %v", err)
	}

	g, err = s.GetGuild(ctx, "g1")
	if err != nil {
		t.Fatalf("get guild: %v", err)
	}
	if g == nil || g.ChannelID != "c1" || g.PagesPerDay != 2 || g.CurrentPage != 600 {
		t.Errorf("round trip mismatch: %+v", g)
	}

	if err := s.SetCurrentPage(ctx, "g1", 602); err != nil {
		t.Fatalf("set current page: %v", err)
	}
	g, _ = s.GetGuild(ctx, "g1")
	if g.CurrentPage != 602 {
		t.Errorf("expected page 602, got %d", g.CurrentPage)
	}

	configured, err := s.ConfiguredGuilds(ctx)
	if err != nil {
		t.Fatalf("configured guilds: %v", err)
	}
	if len(configured) != 1 {
		t.Errorf("expected 1 configured guild, got %d", len(configured))
	}
}

func TestScheduledTimes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.AddScheduledTime(ctx, "g1", "custom", "05:30")
	if err != nil {
		t.Fatalf("add scheduled time: %v", err)
	}
	if _, err := s.AddScheduledTime(ctx, "g2", "custom", "21:00"); err != nil {
		t.Fatalf("add scheduled time: %v", err)
	}

	times, err := s.EnabledScheduledTimes(ctx)
	if err != nil {
		t.Fatalf("enabled scheduled times: %v", err)
	}
	if len(times) != 2 {
		t.Fatalf("expected 2 enabled times, got %d", len(times))
	}

	if err := s.RemoveScheduledTime(ctx, id); err != nil {
		t.Fatalf("remove scheduled time: %v", err)
	}
	times, err = s.EnabledScheduledTimes(ctx)
	if err != nil {
		t.Fatalf("enabled scheduled times: %v", err)
	}
	if len(times) != 1 || times[0].GuildID != "g2" {
		t.Errorf("expected only g2 slot, got %+v", times)
	}
}

func TestSessionDedup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	exists, err := s.SessionExists(ctx, "g1", "2026-08-21")
	if err != nil {
		t.Fatalf("session exists: %v", err)
	}
	if exists {
		t.Error("no session recorded yet")
	}

	sess := &WirdSession{GuildID: "g1", Date: "2026-08-21", StartPage: 10, EndPage: 11}
	if err := s.RecordSession(ctx, sess); err != nil {
		t.Fatalf("record session: %v", err)
	}

	exists, err = s.SessionExists(ctx, "g1", "2026-08-21")
	if err != nil {
		t.Fatalf("session exists: %v", err)
	}
	if !exists {
		t.Error("session should exist after recording")
	}

	// The unique constraint blocks a second delivery for the same day.
	if err := s.RecordSession(ctx, sess); err == nil {
		t.Error("duplicate session for same guild and date should fail")
	}
}
