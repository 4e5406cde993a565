package tools

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/wirdbot/wirdbot/internal/store"
)

// allowedSettings is the safe set of guild settings the model may change,
// in the order they are reported back on a bad setting name.
var allowedSettings = []string{
	"mushaf_type",
	"pages_per_day",
	"channel_id",
	"mosque_id",
	"followup_on_completion",
	"wird_role_id",
}

var idPattern = regexp.MustCompile(`(\d+)`)

// ServerConfigTool updates one guild setting from the safe set.
type ServerConfigTool struct {
	store *store.Store
}

// NewServerConfigTool creates the update_server_config tool.
func NewServerConfigTool(st *store.Store) *ServerConfigTool {
	return &ServerConfigTool{store: st}
}

func (t *ServerConfigTool) Name() string { return "update_server_config" }

func (t *ServerConfigTool) Description() string {
	return "Update a server configuration setting. Allowed settings: mushaf_type (e.g. 'madani', 'tajweed', '13-line'), " +
		"pages_per_day (1-20), channel_id, mosque_id, followup_on_completion ('true' or 'false'), wird_role_id."
}

func (t *ServerConfigTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"setting": map[string]any{
				"type":        "string",
				"description": "The setting to change",
			},
			"value": map[string]any{
				"type":        "string",
				"description": "The new value to set",
			},
		},
		"required": []string{"setting", "value"},
	}
}

func (t *ServerConfigTool) Requirement() Requirement   { return AdminOrOwner }
func (t *ServerConfigTool) RequiresConfirmation() bool { return false }

func (t *ServerConfigTool) Execute(ctx context.Context, inv *Invocation, params map[string]any) (string, error) {
	if inv.GuildID == "" {
		return "Error: Cannot update config without guild context.", nil
	}

	setting := strings.TrimSpace(GetString(params, "setting", ""))
	value := stringifyParam(params["value"])

	allowed := false
	for _, name := range allowedSettings {
		if setting == name {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Sprintf("Error: Setting '%s' is not allowed. Allowed: %s",
			setting, strings.Join(allowedSettings, ", ")), nil
	}

	guild, err := t.store.GetGuild(ctx, inv.GuildID)
	if err != nil {
		return fmt.Sprintf("Error updating config: %v", err), nil
	}
	if guild == nil {
		guild = &store.Guild{
			GuildID:     inv.GuildID,
			MushafType:  "madani",
			PagesPerDay: 1,
			CurrentPage: 1,
		}
	}

	finalValue := value
	switch setting {
	case "mushaf_type":
		guild.MushafType = value
	case "mosque_id":
		guild.MosqueID = value
	case "pages_per_day":
		pages, convErr := strconv.Atoi(strings.TrimSpace(value))
		if convErr != nil {
			return fmt.Sprintf("Error updating config: invalid number '%s'", value), nil
		}
		if pages < 1 || pages > 20 {
			return "Error updating config: Pages must be between 1 and 20", nil
		}
		guild.PagesPerDay = pages
		finalValue = strconv.Itoa(pages)
	case "channel_id", "wird_role_id":
		match := idPattern.FindString(value)
		if match == "" {
			return "Error updating config: Invalid ID format", nil
		}
		if setting == "channel_id" {
			guild.ChannelID = match
		} else {
			guild.WirdRoleID = match
		}
		finalValue = match
	case "followup_on_completion":
		on := false
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes":
			on = true
		}
		guild.FollowupOnCompletion = on
		if on {
			finalValue = "1"
		} else {
			finalValue = "0"
		}
	}

	if err := t.store.UpsertGuild(ctx, guild); err != nil {
		return fmt.Sprintf("Error updating config: %v", err), nil
	}
	return fmt.Sprintf("✅ Successfully updated `%s` to `%s`.", setting, finalValue), nil
}

// stringifyParam renders a raw JSON argument as the string form the setting
// parsers expect. Snowflake IDs must not pass through float formatting with
// an exponent.
func stringifyParam(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(val)
	}
}
