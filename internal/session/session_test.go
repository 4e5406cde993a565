package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAddUpdateGet(t *testing.T) {
	s := NewSession("test")

	first := s.AddMessage("user", "salam")
	second := s.AddMessage("assistant", "wa alaikum assalam")
	if first.ID != "1" || second.ID != "2" {
		t.Errorf("IDs = %q, %q, want 1, 2", first.ID, second.ID)
	}

	if !s.UpdateMessage(second.ID, "edited") {
		t.Fatal("UpdateMessage reported not found")
	}
	got, ok := s.Get(second.ID)
	if !ok || got.Content != "edited" {
		t.Errorf("Get(%q) = %+v, %v", second.ID, got, ok)
	}
	if s.UpdateMessage("99", "x") {
		t.Error("UpdateMessage found a message that does not exist")
	}
}

func TestRecentBefore(t *testing.T) {
	s := NewSession("test")
	for i := 0; i < 5; i++ {
		s.AddMessage("user", "msg")
	}

	got := s.RecentBefore("4", 10)
	want := []string{"3", "2", "1"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("got[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}

	if got := s.RecentBefore("4", 2); len(got) != 2 || got[0].ID != "3" || got[1].ID != "2" {
		t.Errorf("limited RecentBefore wrong: %+v", got)
	}
	if got := s.RecentBefore("", 10); len(got) != 5 || got[0].ID != "5" {
		t.Errorf("unbounded RecentBefore wrong: %d messages", len(got))
	}
}

func TestTrimTo(t *testing.T) {
	s := NewSession("test")
	for i := 0; i < 5; i++ {
		s.AddMessage("user", "msg")
	}

	s.TrimTo(2)
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	if s.Messages[0].ID != "4" || s.Messages[1].ID != "5" {
		t.Errorf("kept wrong messages: %q, %q", s.Messages[0].ID, s.Messages[1].ID)
	}

	s.TrimTo(10)
	if s.Len() != 2 {
		t.Error("TrimTo above the count changed the session")
	}

	// The counter keeps increasing after a trim.
	if m := s.AddMessage("user", "next"); m.ID != "6" {
		t.Errorf("post-trim ID = %q, want 6", m.ID)
	}
}

func TestIDBefore(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"1", "2", true},
		{"2", "1", false},
		{"9", "10", true},
		{"10", "9", false},
		{"3", "3", false},
	}
	for _, tt := range tests {
		if got := idBefore(tt.a, tt.b); got != tt.want {
			t.Errorf("idBefore(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	m := NewManager(dir)
	s := m.GetOrCreate("daily")
	s.AddMessage("user", "what page am I on?")
	s.AddMessage("assistant", "Page 42.")
	if err := m.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A fresh manager reads the file back.
	reloaded := NewManager(dir).GetOrCreate("daily")
	if reloaded.Len() != 2 {
		t.Fatalf("reloaded Len = %d, want 2", reloaded.Len())
	}
	got, ok := reloaded.Get("2")
	if !ok || got.Role != "assistant" || got.Content != "Page 42." {
		t.Errorf("reloaded message = %+v, %v", got, ok)
	}
	if next := reloaded.AddMessage("user", "thanks"); next.ID != "3" {
		t.Errorf("counter not restored, next ID = %q", next.ID)
	}
}

func TestLoadWithoutMetadataRecoversCounter(t *testing.T) {
	dir := t.TempDir()
	raw := strings.Join([]string{
		`{"id":"1","role":"user","content":"hi"}`,
		`{"id":"2","role":"assistant","content":"salam"}`,
	}, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, "bare.jsonl"), []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	s := NewManager(dir).GetOrCreate("bare")
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	if m := s.AddMessage("user", "next"); m.ID != "3" {
		t.Errorf("recovered ID = %q, want 3", m.ID)
	}
}

func TestDeleteAndList(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	old := m.GetOrCreate("old")
	old.AddMessage("user", "a")
	old.UpdatedAt = time.Now().Add(-time.Hour)
	if err := m.Save(old); err != nil {
		t.Fatal(err)
	}
	fresh := m.GetOrCreate("fresh")
	fresh.AddMessage("user", "b")
	if err := m.Save(fresh); err != nil {
		t.Fatal(err)
	}

	infos := m.List()
	if len(infos) != 2 {
		t.Fatalf("List = %d sessions, want 2", len(infos))
	}
	if infos[0].Name != "fresh" {
		t.Errorf("newest first, got %q", infos[0].Name)
	}

	if !m.Delete("old") {
		t.Error("Delete reported failure")
	}
	if len(m.List()) != 1 {
		t.Error("session not deleted")
	}
	if m.Delete("old") {
		t.Error("double delete reported success")
	}
}

func TestSessionPathStaysInDir(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	for _, name := range []string{"../escape", "a/b", `c\d`, "x:y"} {
		p := m.sessionPath(name)
		if filepath.Dir(p) != dir {
			t.Errorf("sessionPath(%q) = %q leaves the sessions dir", name, p)
		}
	}
}
