package tools

import (
	"context"
	"testing"

	"github.com/wirdbot/wirdbot/internal/store"
)

func TestServerConfigRequiresGuild(t *testing.T) {
	st := newToolStore(t)
	tool := NewServerConfigTool(st)

	result, err := tool.Execute(context.Background(), &Invocation{CallerID: "u1", IsAdmin: true}, map[string]any{
		"setting": "pages_per_day",
		"value":   "2",
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result != "Error: Cannot update config without guild context." {
		t.Errorf("result = %q", result)
	}
}

func TestServerConfigRejectsUnknownSetting(t *testing.T) {
	st := newToolStore(t)
	tool := NewServerConfigTool(st)

	result, err := tool.Execute(context.Background(), guildInvocation("u1", "g1"), map[string]any{
		"setting": "owner_id",
		"value":   "123",
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	want := "Error: Setting 'owner_id' is not allowed. Allowed: mushaf_type, pages_per_day, channel_id, mosque_id, followup_on_completion, wird_role_id"
	if result != want {
		t.Errorf("result = %q, want %q", result, want)
	}
}

func TestServerConfigPagesPerDayBounds(t *testing.T) {
	st := newToolStore(t)
	tool := NewServerConfigTool(st)
	ctx := context.Background()
	inv := guildInvocation("u1", "g1")

	result, err := tool.Execute(ctx, inv, map[string]any{
		"setting": "pages_per_day",
		"value":   "25",
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result != "Error updating config: Pages must be between 1 and 20" {
		t.Errorf("out-of-range result = %q", result)
	}

	// JSON numbers arrive as float64.
	result, err = tool.Execute(ctx, inv, map[string]any{
		"setting": "pages_per_day",
		"value":   float64(5),
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result != "✅ Successfully updated `pages_per_day` to `5`." {
		t.Errorf("result = %q", result)
	}

	guild, err := st.GetGuild(ctx, "g1")
	if err != nil || guild == nil {
		t.Fatalf("get guild: %v", err)
	}
	if guild.PagesPerDay != 5 {
		t.Errorf("persisted pages_per_day = %d", guild.PagesPerDay)
	}
}

func TestServerConfigExtractsChannelID(t *testing.T) {
	st := newToolStore(t)
	tool := NewServerConfigTool(st)
	ctx := context.Background()
	inv := guildInvocation("u1", "g1")

	result, err := tool.Execute(ctx, inv, map[string]any{
		"setting": "channel_id",
		"value":   "<#123456789012345678>",
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result != "✅ Successfully updated `channel_id` to `123456789012345678`." {
		t.Errorf("result = %q", result)
	}

	guild, err := st.GetGuild(ctx, "g1")
	if err != nil || guild == nil {
		t.Fatalf("get guild: %v", err)
	}
	if guild.ChannelID != "123456789012345678" {
		t.Errorf("persisted channel_id = %q", guild.ChannelID)
	}

	result, err = tool.Execute(ctx, inv, map[string]any{
		"setting": "wird_role_id",
		"value":   "no digits here",
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result != "Error updating config: Invalid ID format" {
		t.Errorf("bad id result = %q", result)
	}
}

func TestServerConfigFollowupFlag(t *testing.T) {
	st := newToolStore(t)
	tool := NewServerConfigTool(st)
	ctx := context.Background()
	inv := guildInvocation("u1", "g1")

	result, err := tool.Execute(ctx, inv, map[string]any{
		"setting": "followup_on_completion",
		"value":   "yes",
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result != "✅ Successfully updated `followup_on_completion` to `1`." {
		t.Errorf("result = %q", result)
	}

	guild, err := st.GetGuild(ctx, "g1")
	if err != nil || guild == nil {
		t.Fatalf("get guild: %v", err)
	}
	if !guild.FollowupOnCompletion {
		t.Error("followup flag not persisted")
	}

	result, err = tool.Execute(ctx, inv, map[string]any{
		"setting": "followup_on_completion",
		"value":   "off",
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result != "✅ Successfully updated `followup_on_completion` to `0`." {
		t.Errorf("result = %q", result)
	}
}

func TestServerConfigPreservesOtherFields(t *testing.T) {
	st := newToolStore(t)
	tool := NewServerConfigTool(st)
	ctx := context.Background()

	err := st.UpsertGuild(ctx, &store.Guild{
		GuildID: "g1", Configured: true, ChannelID: "111",
		MushafType: "madani", PagesPerDay: 2, CurrentPage: 300,
	})
	if err != nil {
		t.Fatalf("upsert guild: %v", err)
	}

	result, err := tool.Execute(ctx, guildInvocation("u1", "g1"), map[string]any{
		"setting": "mushaf_type",
		"value":   "tajweed",
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result != "✅ Successfully updated `mushaf_type` to `tajweed`." {
		t.Errorf("result = %q", result)
	}

	guild, err := st.GetGuild(ctx, "g1")
	if err != nil || guild == nil {
		t.Fatalf("get guild: %v", err)
	}
	if guild.MushafType != "tajweed" {
		t.Errorf("mushaf_type = %q", guild.MushafType)
	}
	if guild.CurrentPage != 300 || guild.ChannelID != "111" || !guild.Configured {
		t.Errorf("update clobbered other fields: %+v", guild)
	}
}
