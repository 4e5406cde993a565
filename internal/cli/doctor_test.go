package cli

import (
	"strings"
	"testing"
)

func TestDoctorCommandReportsFailures(t *testing.T) {
	isolateHome(t)

	out, err := runRootCommand(t, "doctor")
	if err == nil || !strings.Contains(err.Error(), "doctor found") {
		t.Fatalf("expected failing doctor run, got %v", err)
	}
	if !strings.Contains(out, "[FAIL] discord_token") {
		t.Fatalf("expected discord_token failure line, got:\n%s", out)
	}
	if !strings.Contains(out, "[WARN] config_file") {
		t.Fatalf("expected config_file warning line, got:\n%s", out)
	}
}

func TestDoctorCommandPassesWithConfiguredBot(t *testing.T) {
	tmp := isolateHome(t)

	for _, kv := range [][2]string{
		{"discord.token", "tok"},
		{"discord.ownerId", "42"},
		{"providers.gemini.apiKey", "g-key"},
		{"store.path", tmp + "/wird.db"},
		{"agent.workspace", tmp + "/workspace"},
	} {
		if _, err := runRootCommand(t, "config", "set", kv[0], kv[1]); err != nil {
			t.Fatalf("config set %s: %v", kv[0], err)
		}
	}

	out, err := runRootCommand(t, "doctor")
	if err != nil {
		t.Fatalf("doctor: %v (output:\n%s)", err, out)
	}
	if !strings.Contains(out, "[PASS] discord_token") {
		t.Fatalf("expected discord_token pass, got:\n%s", out)
	}
	if !strings.Contains(out, "[PASS] model_simple") {
		t.Fatalf("expected model_simple pass, got:\n%s", out)
	}
}
