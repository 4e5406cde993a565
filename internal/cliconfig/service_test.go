package cliconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolateConfig points the config loader at a temp file so tests never
// touch the real installation.
func isolateConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "config.json")
	t.Setenv("WIRDBOT_CONFIG", path)
	return path
}

func readFileMap(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	m := map[string]any{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return m
}

func TestSetGetRoundTrip(t *testing.T) {
	isolateConfig(t)

	if err := Set("discord.token", "abc123"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := Get("discord.token")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "abc123" {
		t.Fatalf("got %v, want abc123", got)
	}

	if err := Set("providers.gemini.apiKey", "k-1"); err != nil {
		t.Fatalf("set nested: %v", err)
	}
	got, err = Get("providers.gemini.apiKey")
	if err != nil {
		t.Fatalf("get nested: %v", err)
	}
	if got != "k-1" {
		t.Fatalf("got %v, want k-1", got)
	}
}

func TestSetParsesJSONValues(t *testing.T) {
	path := isolateConfig(t)

	if err := Set("scheduler.enabled", "true"); err != nil {
		t.Fatalf("set bool: %v", err)
	}
	if err := Set("model.maxTokens", "2048"); err != nil {
		t.Fatalf("set number: %v", err)
	}
	if err := Set("discord.presence", "Reading the Quran"); err != nil {
		t.Fatalf("set string: %v", err)
	}

	m := readFileMap(t, path)
	sched := m["scheduler"].(map[string]any)
	if sched["enabled"] != true {
		t.Fatalf("enabled stored as %T %v, want bool true", sched["enabled"], sched["enabled"])
	}
	model := m["model"].(map[string]any)
	if model["maxTokens"] != float64(2048) {
		t.Fatalf("maxTokens stored as %v, want 2048", model["maxTokens"])
	}
	discord := m["discord"].(map[string]any)
	if discord["presence"] != "Reading the Quran" {
		t.Fatalf("presence stored as %v", discord["presence"])
	}
}

func TestSetPreservesUnknownKeys(t *testing.T) {
	path := isolateConfig(t)
	seed := `{"custom":{"note":"keep me"},"discord":{"token":"t"}}`
	if err := os.WriteFile(path, []byte(seed), 0600); err != nil {
		t.Fatalf("seed config: %v", err)
	}

	if err := Set("discord.ownerId", "owner-1"); err != nil {
		t.Fatalf("set: %v", err)
	}

	m := readFileMap(t, path)
	custom, ok := m["custom"].(map[string]any)
	if !ok || custom["note"] != "keep me" {
		t.Fatalf("unknown key lost: %v", m["custom"])
	}
	discord := m["discord"].(map[string]any)
	if discord["token"] != "t" || discord["ownerId"] != "owner-1" {
		t.Fatalf("discord section wrong: %v", discord)
	}
}

func TestSetRejectsScalarParent(t *testing.T) {
	isolateConfig(t)
	if err := Set("discord.token", "t"); err != nil {
		t.Fatalf("set: %v", err)
	}
	err := Set("discord.token.sub", "x")
	if err == nil || !strings.Contains(err.Error(), "not an object") {
		t.Fatalf("expected scalar-parent error, got %v", err)
	}
}

func TestUnset(t *testing.T) {
	path := isolateConfig(t)
	if err := Set("discord.token", "t"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := Unset("discord.token"); err != nil {
		t.Fatalf("unset: %v", err)
	}
	m := readFileMap(t, path)
	discord := m["discord"].(map[string]any)
	if _, ok := discord["token"]; ok {
		t.Fatalf("token still in file: %v", discord)
	}
	err := Unset("discord.token")
	if err == nil || !strings.Contains(err.Error(), "no value at") {
		t.Fatalf("expected no-value error, got %v", err)
	}
}

func TestGetObjectAndMissing(t *testing.T) {
	isolateConfig(t)
	got, err := Get("discord")
	if err != nil {
		t.Fatalf("get section: %v", err)
	}
	section, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("got %T, want object", got)
	}
	if _, ok := section["token"]; !ok {
		t.Fatalf("discord section missing token key: %v", section)
	}

	if _, err := Get("nope.deep"); err == nil {
		t.Fatal("expected error for unknown path")
	}
}

func TestSplitPath(t *testing.T) {
	cases := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{in: " discord.token ", want: []string{"discord", "token"}},
		{in: "logging", want: []string{"logging"}},
		{in: "", wantErr: true},
		{in: "a..b", wantErr: true},
		{in: ".a", wantErr: true},
	}
	for _, tc := range cases {
		got, err := splitPath(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("splitPath(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("splitPath(%q): %v", tc.in, err)
			continue
		}
		if len(got) != len(tc.want) {
			t.Errorf("splitPath(%q) = %v, want %v", tc.in, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("splitPath(%q)[%d] = %q, want %q", tc.in, i, got[i], tc.want[i])
			}
		}
	}
}

func TestListSorted(t *testing.T) {
	isolateConfig(t)
	if err := Set("discord.token", "secret-token"); err != nil {
		t.Fatalf("set: %v", err)
	}

	entries, err := List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected entries")
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Path >= entries[i].Path {
			t.Fatalf("entries not sorted: %q before %q", entries[i-1].Path, entries[i].Path)
		}
	}
	var found bool
	for _, e := range entries {
		if e.Path == "discord.token" {
			found = true
			if e.Value != `"secret-token"` {
				t.Fatalf("token value = %s", e.Value)
			}
		}
	}
	if !found {
		t.Fatal("discord.token missing from listing")
	}
}

func TestSensitive(t *testing.T) {
	cases := map[string]bool{
		"discord.token":           true,
		"providers.gemini.apiKey": true,
		"model.maxTokens":         false,
		"quran.edition":           false,
		"token":                   true,
	}
	for path, want := range cases {
		if got := Sensitive(path); got != want {
			t.Errorf("Sensitive(%q) = %v, want %v", path, got, want)
		}
	}
}
