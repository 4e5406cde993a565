package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// PresenceSetter updates the bot's displayed activity. Implemented by the
// Discord adapter; the console session installs a no-op.
type PresenceSetter interface {
	SetPresence(text string, duration time.Duration) error
}

// PresenceTool forces the bot's presence text for a while.
type PresenceTool struct {
	setter PresenceSetter
}

// NewPresenceTool creates the set_bot_presence tool.
func NewPresenceTool(setter PresenceSetter) *PresenceTool {
	return &PresenceTool{setter: setter}
}

func (t *PresenceTool) Name() string { return "set_bot_presence" }

func (t *PresenceTool) Description() string {
	return "Set the bot's Discord presence (activity text) for a set duration before normal rotation resumes."
}

func (t *PresenceTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"status_text": map[string]any{
				"type":        "string",
				"description": "The text to display (e.g. 'Reading Quran')",
			},
			"duration_minutes": map[string]any{
				"type":        "integer",
				"description": "How long to keep this presence. Default 30.",
			},
		},
		"required": []string{"status_text"},
	}
}

func (t *PresenceTool) Requirement() Requirement   { return OwnerOnly }
func (t *PresenceTool) RequiresConfirmation() bool { return false }

func (t *PresenceTool) Execute(ctx context.Context, inv *Invocation, params map[string]any) (string, error) {
	if t.setter == nil {
		return "Error: Bot context missing.", nil
	}

	text := strings.TrimSpace(GetString(params, "status_text", ""))
	if text == "" {
		return "Error: status_text is required", nil
	}
	minutes := GetInt(params, "duration_minutes", 30)
	if minutes <= 0 {
		minutes = 30
	}

	if err := t.setter.SetPresence(text, time.Duration(minutes)*time.Minute); err != nil {
		return fmt.Sprintf("Error setting presence: %v", err), nil
	}
	return fmt.Sprintf("✅ Presence set to '%s' for %d minutes.", text, minutes), nil
}
