// Package memory provides the user-memory service and its system-prompt
// injection blocks.
package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/wirdbot/wirdbot/internal/store"
)

// promptItemLimit caps how many memories are injected per user so a hoarder
// cannot crowd the system prompt.
const promptItemLimit = 5

// Service wraps the memory table with the operations the prompt assembly
// needs. Tool-facing reads and writes go through the store directly.
type Service struct {
	store *store.Store
}

// NewService creates a memory service backed by the store.
func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// Items returns the newest stored memory contents for a user, newest first.
func (s *Service) Items(ctx context.Context, userID string) ([]string, error) {
	memories, err := s.store.ListMemories(ctx, userID, promptItemLimit)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	items := make([]string, 0, len(memories))
	for _, m := range memories {
		items = append(items, m.Content)
	}
	return items, nil
}

// InjectionBlock renders the memory note appended to the current-message
// wrapper for one user. Returns "" when the user has no memories.
func (s *Service) InjectionBlock(ctx context.Context, userID, displayName string) (string, error) {
	items, err := s.Items(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", nil
	}
	return fmt.Sprintf("\n[System: Memories about User @%s: %s]", displayName, strings.Join(items, "; ")), nil
}
