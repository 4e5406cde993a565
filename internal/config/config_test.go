package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model.Simple != "gemini/gemini-2.5-flash-lite" {
		t.Errorf("expected default simple model gemini/gemini-2.5-flash-lite, got %s", cfg.Model.Simple)
	}

	if cfg.Model.Complex != "gemini/gemini-2.5-flash" {
		t.Errorf("expected default complex model gemini/gemini-2.5-flash, got %s", cfg.Model.Complex)
	}

	if cfg.Agent.MaxToolCalls != 10 {
		t.Errorf("expected maxToolCalls 10, got %d", cfg.Agent.MaxToolCalls)
	}

	if cfg.Agent.ToolTimeout != 60*time.Second {
		t.Errorf("expected tool timeout 60s, got %v", cfg.Agent.ToolTimeout)
	}

	if cfg.Agent.ApprovalMaxAge != 15*time.Minute {
		t.Errorf("expected approval max age 15m, got %v", cfg.Agent.ApprovalMaxAge)
	}

	if cfg.Quran.APIBase != "https://api.alquran.cloud/v1" {
		t.Errorf("expected alquran.cloud API base, got %s", cfg.Quran.APIBase)
	}

	if cfg.Events.Topic != "wirdbot.audit" {
		t.Errorf("expected events topic wirdbot.audit, got %s", cfg.Events.Topic)
	}
}

func TestLoadDefaults(t *testing.T) {
	origHome := os.Getenv("HOME")
	os.Setenv("HOME", t.TempDir())
	defer os.Setenv("HOME", origHome)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Model.MaxTokens != 8192 {
		t.Errorf("expected maxTokens 8192, got %d", cfg.Model.MaxTokens)
	}

	if cfg.Store.Path == "" {
		t.Error("expected store path to resolve to a default under the config dir")
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, ConfigDir)
	os.MkdirAll(configDir, 0755)
	configFile := filepath.Join(configDir, ConfigFile)

	configJSON := `{
		"discord": {
			"token": "file-token",
			"ownerId": "42"
		},
		"model": {
			"complex": "openai/gpt-4o",
			"maxTokens": 4096
		},
		"agent": {
			"maxToolCalls": 3
		}
	}`
	os.WriteFile(configFile, []byte(configJSON), 0600)

	origHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", origHome)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Discord.Token != "file-token" {
		t.Errorf("expected token from file, got %q", cfg.Discord.Token)
	}
	if cfg.Discord.OwnerID != "42" {
		t.Errorf("expected owner 42, got %q", cfg.Discord.OwnerID)
	}
	if cfg.Model.Complex != "openai/gpt-4o" {
		t.Errorf("expected complex model from file, got %s", cfg.Model.Complex)
	}
	if cfg.Model.MaxTokens != 4096 {
		t.Errorf("expected maxTokens 4096, got %d", cfg.Model.MaxTokens)
	}
	if cfg.Agent.MaxToolCalls != 3 {
		t.Errorf("expected maxToolCalls 3, got %d", cfg.Agent.MaxToolCalls)
	}
	// Untouched groups keep defaults.
	if cfg.Model.Simple != "gemini/gemini-2.5-flash-lite" {
		t.Errorf("expected default simple model, got %s", cfg.Model.Simple)
	}
}

func TestEnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, ConfigDir)
	os.MkdirAll(configDir, 0755)
	os.WriteFile(filepath.Join(configDir, ConfigFile),
		[]byte(`{"agent": {"maxToolCalls": 5}}`), 0600)

	origHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	os.Setenv("WIRDBOT_AGENT_MAX_TOOL_CALLS", "2")
	os.Setenv("WIRDBOT_DISCORD_OWNER_ID", "env-owner")
	defer func() {
		os.Setenv("HOME", origHome)
		os.Unsetenv("WIRDBOT_AGENT_MAX_TOOL_CALLS")
		os.Unsetenv("WIRDBOT_DISCORD_OWNER_ID")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Agent.MaxToolCalls != 2 {
		t.Errorf("env should beat file: expected maxToolCalls 2, got %d", cfg.Agent.MaxToolCalls)
	}
	if cfg.Discord.OwnerID != "env-owner" {
		t.Errorf("expected owner from env, got %q", cfg.Discord.OwnerID)
	}
}

func TestBareKeyFallbacks(t *testing.T) {
	origHome := os.Getenv("HOME")
	os.Setenv("HOME", t.TempDir())
	os.Setenv("GEMINI_API_KEY", "bare-gemini-key")
	defer func() {
		os.Setenv("HOME", origHome)
		os.Unsetenv("GEMINI_API_KEY")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Providers.Gemini.APIKey != "bare-gemini-key" {
		t.Errorf("expected GEMINI_API_KEY fallback, got %q", cfg.Providers.Gemini.APIKey)
	}
}
