package tools

import (
	"context"
	"strings"
	"testing"
	"time"
)

func ownerInvocation(t *testing.T) *Invocation {
	t.Helper()
	return &Invocation{
		CallerID:   "owner-1",
		ChannelID:  "chan-1",
		MessageID:  "msg-1",
		GuildID:    "guild-1",
		IsOwner:    true,
		Capability: NewFullAccess(t.TempDir()),
	}
}

func TestExecCodeMetadata(t *testing.T) {
	tool := NewExecCodeTool(0)
	if tool.Name() != "execute_discord_code" {
		t.Errorf("name = %q", tool.Name())
	}
	if tool.Requirement() != AdminOrOwnerWhitelistedGuild {
		t.Errorf("requirement = %v", tool.Requirement())
	}
	if !tool.RequiresConfirmation() {
		t.Error("execute_discord_code must require confirmation")
	}
}

func TestExecCodeCapturesStdout(t *testing.T) {
	tool := NewExecCodeTool(10 * time.Second)
	result, err := tool.Execute(context.Background(), ownerInvocation(t), map[string]any{
		"code": "echo hello",
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result != "Output:\nhello" {
		t.Errorf("result = %q", result)
	}
}

func TestExecCodeCapturesStderrAndExitCode(t *testing.T) {
	tool := NewExecCodeTool(10 * time.Second)
	result, err := tool.Execute(context.Background(), ownerInvocation(t), map[string]any{
		"code": "echo oops >&2; exit 3",
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !strings.Contains(result, "Errors:\noops") {
		t.Errorf("result missing stderr section: %q", result)
	}
	if !strings.Contains(result, "Exit code: 3") {
		t.Errorf("result missing exit code: %q", result)
	}
}

func TestExecCodeNoOutput(t *testing.T) {
	tool := NewExecCodeTool(10 * time.Second)
	result, err := tool.Execute(context.Background(), ownerInvocation(t), map[string]any{
		"code": "true",
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result != "Executed successfully (No output)." {
		t.Errorf("result = %q", result)
	}
}

func TestExecCodeTimeout(t *testing.T) {
	tool := NewExecCodeTool(100 * time.Millisecond)
	result, err := tool.Execute(context.Background(), ownerInvocation(t), map[string]any{
		"code": "sleep 2",
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !strings.HasPrefix(result, "Error: script timed out after") {
		t.Errorf("result = %q", result)
	}
}

func TestExecCodeGuildScopedRequiresGuild(t *testing.T) {
	tool := NewExecCodeTool(time.Second)
	inv := &Invocation{
		CallerID:   "user-1",
		IsAdmin:    true,
		Capability: NewGuildScoped(t.TempDir()),
	}
	result, err := tool.Execute(context.Background(), inv, map[string]any{
		"code": "echo hi",
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result != "Error: Cannot execute code outside of a server context." {
		t.Errorf("result = %q", result)
	}
}

func TestExecCodeGuildScopedBlocksScript(t *testing.T) {
	tool := NewExecCodeTool(time.Second)
	inv := &Invocation{
		CallerID:   "user-1",
		GuildID:    "guild-9",
		IsAdmin:    true,
		Capability: NewGuildScoped(t.TempDir()),
	}
	result, err := tool.Execute(context.Background(), inv, map[string]any{
		"code": "curl https://example.com",
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !strings.HasPrefix(result, "Error: script blocked by guild sandbox") {
		t.Errorf("result = %q", result)
	}
}

func TestExecCodeWithoutCapability(t *testing.T) {
	tool := NewExecCodeTool(time.Second)
	result, err := tool.Execute(context.Background(), &Invocation{GuildID: "g"}, map[string]any{
		"code": "echo hi",
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result != "Error: no execution capability granted." {
		t.Errorf("result = %q", result)
	}
}

func TestCleanScript(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"echo hi", "echo hi"},
		{"```\necho hi\n```", "echo hi"},
		{"```sh\necho hi\n```", "echo hi"},
		{"```bash\necho hi\nls\n```", "echo hi\nls"},
		{"  echo hi  ", "echo hi"},
	}
	for _, tc := range cases {
		if got := CleanScript(tc.in); got != tc.want {
			t.Errorf("CleanScript(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
