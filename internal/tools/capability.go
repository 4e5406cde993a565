package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// Capability bounds the environment an approved script runs in. The loop
// selects one per turn from the caller's role: the bot owner gets
// FullAccess, everyone else gets GuildScoped.
type Capability interface {
	// Name identifies the capability in logs and audit events.
	Name() string
	// Validate rejects a script before it runs. The returned error message
	// is shown to the model as the tool result.
	Validate(script string) error
	// Workdir returns (and creates) the directory the script runs in.
	Workdir(inv *Invocation) (string, error)
	// Env returns the environment for the script process.
	Env(workdir string) []string
}

// GuildDenyPatterns contains regex patterns rejected by the guild-scoped
// capability: network access, filesystem escapes, and secret probing.
var GuildDenyPatterns = []string{
	`(?i)\b(curl|wget|nc|ncat|netcat|ssh|scp|sftp|telnet|ftp)\b`, // network utilities
	`(?i)\b(python|perl|ruby|node)\b.*\b(socket|urllib|requests|http)\b`,
	`\brm\s+(-[rf]+\s+)*[/~]`, // rm with root or home
	`\bdd\b.*\bof=/dev/`,      // dd to device
	`\bmkfs\b`,                // filesystem format
	`\bshutdown\b`,
	`\breboot\b`,
	`\bsudo\b`,
	`\bsu\b`,
	`(?i)\b(printenv|env)\b`,                        // environment dumps
	`(?i)(discord[_-]?token|api[_-]?key|_secret)`,   // secret probing
	`\.env\b`,                                       // env files
	`(^|[\s"'=])/(etc|root|home|var|proc|sys|usr)/`, // system paths
}

// GuildPathPatterns for detecting path traversal out of the guild workdir.
var GuildPathPatterns = []string{
	`\.\.\/`, // ../
	`\.\.\\`, // ..\
	`\/\.\.`, // /..
	`~`,      // home expansion
}

// FullAccess is the owner capability: no script validation, full process
// environment, shared workspace root.
type FullAccess struct {
	Workspace string
}

// NewFullAccess creates the owner capability rooted at workspace.
func NewFullAccess(workspace string) *FullAccess {
	return &FullAccess{Workspace: workspace}
}

func (c *FullAccess) Name() string { return "full_access" }

func (c *FullAccess) Validate(script string) error { return nil }

func (c *FullAccess) Workdir(inv *Invocation) (string, error) {
	if err := os.MkdirAll(c.Workspace, 0o755); err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	return c.Workspace, nil
}

func (c *FullAccess) Env(workdir string) []string {
	return os.Environ()
}

// GuildScoped is the capability for non-owner callers. Scripts run in a
// per-guild directory with a scrubbed environment; commands that reach the
// network, escape the directory, or probe for secrets are rejected.
type GuildScoped struct {
	Workspace   string
	denyRegexes []*regexp.Regexp
	pathRegexes []*regexp.Regexp
}

// NewGuildScoped creates the restricted capability rooted at workspace.
func NewGuildScoped(workspace string) *GuildScoped {
	denyRegexes := make([]*regexp.Regexp, 0, len(GuildDenyPatterns))
	for _, pattern := range GuildDenyPatterns {
		if re, err := regexp.Compile(pattern); err == nil {
			denyRegexes = append(denyRegexes, re)
		}
	}

	pathRegexes := make([]*regexp.Regexp, 0, len(GuildPathPatterns))
	for _, pattern := range GuildPathPatterns {
		if re, err := regexp.Compile(pattern); err == nil {
			pathRegexes = append(pathRegexes, re)
		}
	}

	return &GuildScoped{
		Workspace:   workspace,
		denyRegexes: denyRegexes,
		pathRegexes: pathRegexes,
	}
}

func (c *GuildScoped) Name() string { return "guild_scoped" }

func (c *GuildScoped) Validate(script string) error {
	for _, re := range c.denyRegexes {
		if re.MatchString(script) {
			return fmt.Errorf("Error: script blocked by guild sandbox (restricted command)")
		}
	}
	for _, re := range c.pathRegexes {
		if re.MatchString(script) {
			return fmt.Errorf("Error: script blocked by guild sandbox (path traversal)")
		}
	}
	return nil
}

func (c *GuildScoped) Workdir(inv *Invocation) (string, error) {
	if inv.GuildID == "" {
		return "", fmt.Errorf("guild-scoped capability requires a guild")
	}
	dir := filepath.Join(c.Workspace, "guilds", inv.GuildID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create guild workdir: %w", err)
	}
	return dir, nil
}

func (c *GuildScoped) Env(workdir string) []string {
	return []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"HOME=" + workdir,
		"LANG=C.UTF-8",
	}
}
