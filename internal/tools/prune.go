package tools

import (
	"context"
)

// MarkerSetter records the context-pruning cutoff for a channel. Implemented
// by the agent's marker table; messages with ids at or before the cutoff are
// never rebuilt into context.
type MarkerSetter interface {
	SetMarker(channelID, messageID string)
}

// ClearContextTool forgets the conversation so far in the current channel.
type ClearContextTool struct {
	markers MarkerSetter
}

// NewClearContextTool creates the clear_context tool.
func NewClearContextTool(markers MarkerSetter) *ClearContextTool {
	return &ClearContextTool{markers: markers}
}

func (t *ClearContextTool) Name() string { return "clear_context" }

func (t *ClearContextTool) Description() string {
	return "Clear the short-term conversation memory for this channel. Use when a topic ends and a fresh start is wanted."
}

func (t *ClearContextTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"confirmation": map[string]any{
				"type":        "boolean",
				"description": "Must be true to proceed",
			},
		},
	}
}

func (t *ClearContextTool) Requirement() Requirement   { return Public }
func (t *ClearContextTool) RequiresConfirmation() bool { return false }

func (t *ClearContextTool) Execute(ctx context.Context, inv *Invocation, params map[string]any) (string, error) {
	if !GetBool(params, "confirmation", true) {
		return "Context clear cancelled (confirmation=False).", nil
	}
	if t.markers == nil || inv.ChannelID == "" || inv.MessageID == "" {
		return "Error: Internal context missing.", nil
	}

	t.markers.SetMarker(inv.ChannelID, inv.MessageID)
	return "✅ Context cleared. I have forgotten previous messages in this session.", nil
}
