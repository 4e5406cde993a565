package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ExecCodeTool proposes a script for human approval and, once accepted,
// runs it under the caller's Capability. The loop never calls Execute at
// proposal time: it parks the call in the approval broker and only invokes
// Execute after the proposer's script is accepted.
type ExecCodeTool struct {
	Timeout time.Duration
}

// NewExecCodeTool creates the script execution tool.
func NewExecCodeTool(timeout time.Duration) *ExecCodeTool {
	return &ExecCodeTool{Timeout: timeout}
}

func (t *ExecCodeTool) Name() string { return "execute_discord_code" }

func (t *ExecCodeTool) Description() string {
	return "Propose a shell script that acts on this server (workspace files, reports, automation). " +
		"WARNING: this will NOT run immediately; the user is asked to approve the script first. " +
		"Available to the bot owner always, and to server admins in whitelisted guilds."
}

func (t *ExecCodeTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{
				"type":        "string",
				"description": "The script to execute after approval",
			},
		},
		"required": []string{"code"},
	}
}

func (t *ExecCodeTool) Requirement() Requirement { return AdminOrOwnerWhitelistedGuild }

func (t *ExecCodeTool) RequiresConfirmation() bool { return true }

func (t *ExecCodeTool) Execute(ctx context.Context, inv *Invocation, params map[string]any) (string, error) {
	code := CleanScript(GetString(params, "code", ""))
	if code == "" {
		return "Error: code is required", nil
	}
	if inv.Capability == nil {
		return "Error: no execution capability granted.", nil
	}

	if err := inv.Capability.Validate(code); err != nil {
		return err.Error(), nil
	}

	workdir, err := inv.Capability.Workdir(inv)
	if err != nil {
		if inv.GuildID == "" {
			return "Error: Cannot execute code outside of a server context.", nil
		}
		return fmt.Sprintf("Error: %v", err), nil
	}

	timeout := t.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", code)
	cmd.Dir = workdir
	cmd.Env = inv.Capability.Env(workdir)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	var result strings.Builder
	if stdout.Len() > 0 {
		result.WriteString("Output:\n")
		result.WriteString(stdout.String())
		result.WriteString("\n")
	}
	if stderr.Len() > 0 {
		result.WriteString("Errors:\n")
		result.WriteString(stderr.String())
		result.WriteString("\n")
	}

	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Sprintf("Error: script timed out after %v\n%s", timeout, result.String()), nil
	}

	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			result.WriteString(fmt.Sprintf("Exit code: %d", exitErr.ExitCode()))
		} else {
			return fmt.Sprintf("Error executing script: %v", runErr), nil
		}
	}

	if result.Len() == 0 {
		return "Executed successfully (No output).", nil
	}

	return strings.TrimRight(result.String(), "\n"), nil
}

// CleanScript strips markdown code fences the model tends to wrap scripts
// in, so the approval card and the executed body match.
func CleanScript(code string) string {
	code = strings.TrimSpace(code)
	if strings.HasPrefix(code, "```") {
		code = strings.TrimPrefix(code, "```")
		if idx := strings.Index(code, "\n"); idx >= 0 {
			first := strings.TrimSpace(code[:idx])
			// Drop a language hint like sh or bash on the fence line.
			if first != "" && !strings.ContainsAny(first, " \t") && len(first) <= 12 {
				code = code[idx+1:]
			}
		}
		code = strings.TrimSuffix(strings.TrimSpace(code), "```")
	}
	return strings.TrimSpace(code)
}
