package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/wirdbot/wirdbot/internal/store"
)

// memoryListLimit caps how many memories a single listing returns.
const memoryListLimit = 10

// RememberTool stores a fact about the caller in long-term memory.
type RememberTool struct {
	store *store.Store
}

// NewRememberTool creates the remember_info tool.
func NewRememberTool(st *store.Store) *RememberTool {
	return &RememberTool{store: st}
}

func (t *RememberTool) Name() string { return "remember_info" }

func (t *RememberTool) Description() string {
	return "Store a piece of information about the user in long-term memory. Use when the user shares a preference or fact worth keeping."
}

func (t *RememberTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{
				"type":        "string",
				"description": "The fact or information to remember",
			},
		},
		"required": []string{"content"},
	}
}

func (t *RememberTool) Requirement() Requirement   { return Public }
func (t *RememberTool) RequiresConfirmation() bool { return false }

func (t *RememberTool) Execute(ctx context.Context, inv *Invocation, params map[string]any) (string, error) {
	if inv.CallerID == "" || inv.GuildID == "" {
		return "Error: Missing user or guild context.", nil
	}

	content := strings.TrimSpace(GetString(params, "content", ""))
	if content == "" {
		return "Error: content is required", nil
	}

	if _, err := t.store.AddMemory(ctx, inv.CallerID, inv.GuildID, content); err != nil {
		return fmt.Sprintf("Error saving memory: %v", err), nil
	}
	return fmt.Sprintf("✅ I've remembered: '%s'", content), nil
}

// MemoriesTool lists or searches the caller's stored memories.
type MemoriesTool struct {
	store *store.Store
}

// NewMemoriesTool creates the get_my_memories tool.
func NewMemoriesTool(st *store.Store) *MemoriesTool {
	return &MemoriesTool{store: st}
}

func (t *MemoriesTool) Name() string { return "get_my_memories" }

func (t *MemoriesTool) Description() string {
	return "Retrieve the caller's stored memories, optionally filtered by a search query."
}

func (t *MemoriesTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"search_query": map[string]any{
				"type":        "string",
				"description": "Optional keywords to filter memories",
			},
		},
	}
}

func (t *MemoriesTool) Requirement() Requirement   { return Public }
func (t *MemoriesTool) RequiresConfirmation() bool { return false }

func (t *MemoriesTool) Execute(ctx context.Context, inv *Invocation, params map[string]any) (string, error) {
	if inv.CallerID == "" {
		return "Error: Context missing.", nil
	}

	var (
		memories []store.Memory
		err      error
	)
	if query := strings.TrimSpace(GetString(params, "search_query", "")); query != "" {
		memories, err = t.store.SearchMemories(ctx, inv.CallerID, query, memoryListLimit)
	} else {
		memories, err = t.store.ListMemories(ctx, inv.CallerID, memoryListLimit)
	}
	if err != nil {
		return fmt.Sprintf("Error retrieving memories: %v", err), nil
	}
	if len(memories) == 0 {
		return "You have no saved memories.", nil
	}

	var b strings.Builder
	b.WriteString("**Your Memories:**\n")
	for _, mem := range memories {
		fmt.Fprintf(&b, "- [ID: %d] %s (%s)\n", mem.ID, mem.Content, mem.CreatedAt.Format("2006-01-02 15:04"))
	}
	return b.String(), nil
}

// ForgetTool deletes one of the caller's memories by id.
type ForgetTool struct {
	store *store.Store
}

// NewForgetTool creates the forget_memory tool.
func NewForgetTool(st *store.Store) *ForgetTool {
	return &ForgetTool{store: st}
}

func (t *ForgetTool) Name() string { return "forget_memory" }

func (t *ForgetTool) Description() string {
	return "Delete a specific memory by its ID (found via get_my_memories). Only the caller's own memories can be deleted."
}

func (t *ForgetTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"memory_id": map[string]any{
				"type":        "integer",
				"description": "The ID of the memory to delete",
			},
		},
		"required": []string{"memory_id"},
	}
}

func (t *ForgetTool) Requirement() Requirement   { return Public }
func (t *ForgetTool) RequiresConfirmation() bool { return false }

func (t *ForgetTool) Execute(ctx context.Context, inv *Invocation, params map[string]any) (string, error) {
	if inv.CallerID == "" {
		return "Error: Context missing.", nil
	}

	id := GetInt(params, "memory_id", 0)
	if id <= 0 {
		return "Error: memory_id is required", nil
	}

	ok, err := t.store.DeleteMemory(ctx, int64(id), inv.CallerID)
	if err != nil {
		return fmt.Sprintf("Error deleting memory: %v", err), nil
	}
	if !ok {
		return fmt.Sprintf("Error: Memory %d not found.", id), nil
	}
	return fmt.Sprintf("✅ Memory %d deleted.", id), nil
}
