// Package session persists console chat conversations as JSONL files.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Message is one console chat message. IDs are increasing decimal strings
// so the context builder can order and prune them like platform message
// IDs.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Session is one named console conversation.
type Session struct {
	Name      string
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time

	nextID int
	mu     sync.RWMutex
}

// NewSession creates an empty session.
func NewSession(name string) *Session {
	now := time.Now()
	return &Session{Name: name, CreatedAt: now, UpdatedAt: now, nextID: 1}
}

// AddMessage appends a message and returns it with its assigned ID.
func (s *Session) AddMessage(role, content string) Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := Message{
		ID:        strconv.Itoa(s.nextID),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
	s.nextID++
	s.Messages = append(s.Messages, m)
	s.UpdatedAt = time.Now()
	return m
}

// UpdateMessage replaces the content of an existing message. Reports
// whether the ID was found.
func (s *Session) UpdateMessage(id, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Messages {
		if s.Messages[i].ID == id {
			s.Messages[i].Content = content
			s.UpdatedAt = time.Now()
			return true
		}
	}
	return false
}

// Get returns a message by ID.
func (s *Session) Get(id string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// RecentBefore returns up to limit messages older than beforeID, newest
// first. An empty beforeID means everything.
func (s *Session) RecentBefore(beforeID string, limit int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, 0, limit)
	for i := len(s.Messages) - 1; i >= 0 && len(out) < limit; i-- {
		m := s.Messages[i]
		if beforeID != "" && !idBefore(m.ID, beforeID) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Len returns the message count.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Messages)
}

// MessagesSince returns a copy of the messages from index n onward.
func (s *Session) MessagesSince(n int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n < 0 {
		n = 0
	}
	if n >= len(s.Messages) {
		return nil
	}
	return append([]Message(nil), s.Messages[n:]...)
}

// TrimTo drops the oldest messages so at most n remain.
func (s *Session) TrimTo(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 || len(s.Messages) <= n {
		return
	}
	s.Messages = append([]Message(nil), s.Messages[len(s.Messages)-n:]...)
	s.UpdatedAt = time.Now()
}

// idBefore reports a < b for decimal string IDs; shorter means smaller.
func idBefore(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// Manager loads and saves sessions under a directory.
type Manager struct {
	dir   string
	cache map[string]*Session
	mu    sync.Mutex
}

// NewManager creates a session manager rooted at dir. An empty dir means
// ~/.wirdbot/sessions.
func NewManager(dir string) *Manager {
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".wirdbot", "sessions")
	}
	os.MkdirAll(dir, 0o700)
	return &Manager{dir: dir, cache: make(map[string]*Session)}
}

// GetOrCreate returns the named session, loading it from disk if present.
func (m *Manager) GetOrCreate(name string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.cache[name]; ok {
		return s
	}
	s := m.load(name)
	if s == nil {
		s = NewSession(name)
	}
	m.cache[name] = s
	return s
}

// Save writes the session to disk: a metadata line followed by one message
// per line.
func (m *Manager) Save(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Create(m.sessionPath(s.Name))
	if err != nil {
		return fmt.Errorf("create session file: %w", err)
	}
	defer f.Close()

	meta, _ := json.Marshal(map[string]any{
		"_type":      "metadata",
		"created_at": s.CreatedAt.Format(time.RFC3339),
		"updated_at": s.UpdatedAt.Format(time.RFC3339),
		"next_id":    s.nextID,
	})
	if _, err := f.Write(append(meta, '\n')); err != nil {
		return fmt.Errorf("write session metadata: %w", err)
	}
	for _, msg := range s.Messages {
		line, _ := json.Marshal(msg)
		if _, err := f.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("write session message: %w", err)
		}
	}
	m.cache[s.Name] = s
	return nil
}

// Delete removes a session from the cache and disk.
func (m *Manager) Delete(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, name)
	return os.Remove(m.sessionPath(name)) == nil
}

// Info describes a stored session.
type Info struct {
	Name      string
	Messages  int
	UpdatedAt time.Time
}

// List returns the stored sessions, newest first.
func (m *Manager) List() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil
	}
	var out []Info
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".jsonl")
		s := m.load(name)
		if s == nil {
			continue
		}
		out = append(out, Info{Name: name, Messages: len(s.Messages), UpdatedAt: s.UpdatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// sessionPath maps a session name to its file, stripping anything that
// could escape the sessions directory.
func (m *Manager) sessionPath(name string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_", ":", "_").Replace(name)
	return filepath.Join(m.dir, filepath.Base(safe)+".jsonl")
}

func (m *Manager) load(name string) *Session {
	f, err := os.Open(m.sessionPath(name))
	if err != nil {
		return nil
	}
	defer f.Close()

	s := NewSession(name)
	dec := json.NewDecoder(f)
	maxID := 0
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			break
		}
		var meta struct {
			Type      string `json:"_type"`
			CreatedAt string `json:"created_at"`
			UpdatedAt string `json:"updated_at"`
			NextID    int    `json:"next_id"`
		}
		if json.Unmarshal(raw, &meta) == nil && meta.Type == "metadata" {
			if ts, err := time.Parse(time.RFC3339, meta.CreatedAt); err == nil {
				s.CreatedAt = ts
			}
			if ts, err := time.Parse(time.RFC3339, meta.UpdatedAt); err == nil {
				s.UpdatedAt = ts
			}
			if meta.NextID > 0 {
				s.nextID = meta.NextID
			}
			continue
		}
		var msg Message
		if json.Unmarshal(raw, &msg) == nil && msg.ID != "" {
			s.Messages = append(s.Messages, msg)
			if n, err := strconv.Atoi(msg.ID); err == nil && n > maxID {
				maxID = n
			}
		}
	}
	// Recover the counter when the metadata line is missing or stale.
	if s.nextID <= maxID {
		s.nextID = maxID + 1
	}
	return s
}
