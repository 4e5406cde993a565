// Package onboarding installs wirdbot as a systemd service and walks new
// installations through initial configuration.
package onboarding

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
)

// ServiceName is the systemd unit wirdbot installs under.
const ServiceName = "wirdbot.service"

var (
	currentEUID   = os.Geteuid
	lookupUserFn  = user.Lookup
	currentUserFn = user.Current
	ensureUserFn  = ensureNonRootUser
	runCommandFn  = func(name string, args ...string) ([]byte, error) {
		return exec.Command(name, args...).CombinedOutput()
	}
)

// SetupOptions configures the systemd installation.
type SetupOptions struct {
	ServiceUser string
	ServiceHome string
	BinaryPath  string
	Version     string
	InstallRoot string
}

// SetupResult reports what the installation wrote.
type SetupResult struct {
	UserCreated  bool
	ServicePath  string
	OverridePath string
	EnvPath      string
}

// SetupSystemd writes the wirdbot.service unit, a user override, and an env
// file skeleton. An existing env file is never overwritten.
func SetupSystemd(opts SetupOptions) (*SetupResult, error) {
	if opts.ServiceUser == "" {
		return nil, fmt.Errorf("service user is required")
	}
	if opts.BinaryPath == "" {
		return nil, fmt.Errorf("binary path is required")
	}
	if opts.InstallRoot == "" {
		opts.InstallRoot = "/"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	created := false
	home := opts.ServiceHome
	if home == "" {
		var err error
		created, home, err = ensureUserFn(opts.ServiceUser)
		if err != nil {
			return nil, err
		}
	}

	servicePath := filepath.Join(opts.InstallRoot, "etc", "systemd", "system", ServiceName)
	overridePath := filepath.Join(home, ".config", "systemd", "user", ServiceName+".d", "override.conf")
	envPath := filepath.Join(home, ".config", "wirdbot", "env")

	if err := os.MkdirAll(filepath.Dir(servicePath), 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(overridePath), 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(envPath), 0o700); err != nil {
		return nil, err
	}

	if err := os.WriteFile(servicePath, []byte(renderSystemUnit(opts, home)), 0o644); err != nil {
		return nil, err
	}
	if err := os.WriteFile(overridePath, []byte(renderOverride(home)), 0o644); err != nil {
		return nil, err
	}
	if _, err := os.Stat(envPath); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(envPath, []byte(renderEnvFile(home)), 0o600); err != nil {
			return nil, err
		}
	}

	return &SetupResult{
		UserCreated:  created,
		ServicePath:  servicePath,
		OverridePath: overridePath,
		EnvPath:      envPath,
	}, nil
}

// ActivateSystemd reloads systemd and enables the service immediately.
func ActivateSystemd() error {
	if out, err := runCommandFn("systemctl", "daemon-reload"); err != nil {
		return fmt.Errorf("systemctl daemon-reload: %v (%s)", err, strings.TrimSpace(string(out)))
	}
	if out, err := runCommandFn("systemctl", "enable", "--now", ServiceName); err != nil {
		return fmt.Errorf("systemctl enable --now: %v (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func ensureNonRootUser(name string) (bool, string, error) {
	if currentEUID() != 0 {
		u, err := lookupUserFn(name)
		if err != nil {
			cur, curErr := currentUserFn()
			if curErr != nil {
				return false, "", fmt.Errorf("cannot resolve current user: %w", curErr)
			}
			return false, cur.HomeDir, nil
		}
		return false, u.HomeDir, nil
	}

	u, err := lookupUserFn(name)
	if err == nil {
		return false, u.HomeDir, nil
	}

	if out, err := runCommandFn("useradd", "--create-home", "--shell", "/bin/bash", name); err != nil {
		if fbOut, fbErr := runCommandFn("adduser", "--disabled-password", "--gecos", "", name); fbErr != nil {
			return false, "", fmt.Errorf("failed to create user %q: useradd=%v (%s), adduser=%v (%s)", name, err, string(out), fbErr, string(fbOut))
		}
	}

	u, err = lookupUserFn(name)
	if err != nil {
		return false, "", fmt.Errorf("user %q created but lookup failed: %w", name, err)
	}
	return true, u.HomeDir, nil
}

func renderSystemUnit(opts SetupOptions, home string) string {
	escapedExec := shellEscape(filepath.Clean(opts.BinaryPath))
	return strings.Join([]string{
		"[Unit]",
		fmt.Sprintf("Description=WirdBot Discord bot (v%s)", opts.Version),
		"After=network-online.target",
		"Wants=network-online.target",
		"",
		"[Service]",
		"User=" + opts.ServiceUser,
		"Group=" + opts.ServiceUser,
		"ExecStart=" + escapedExec + " serve",
		"Restart=always",
		"RestartSec=5",
		"EnvironmentFile=-" + filepath.Join(home, ".config", "wirdbot", "env"),
		"WorkingDirectory=" + home,
		"",
		"[Install]",
		"WantedBy=multi-user.target",
		"",
	}, "\n")
}

func renderOverride(home string) string {
	return strings.Join([]string{
		"[Service]",
		"EnvironmentFile=%h/.config/wirdbot/env",
		"Environment=WIRDBOT_CONFIG=" + filepath.Join(home, ".wirdbot", "config.json"),
		"Environment=WIRDBOT_HOME=" + home,
		"Environment=HOME=" + home,
		"Environment=PATH=" + filepath.Join(home, ".local", "bin") + ":" + "/usr/local/bin:/usr/bin:/bin",
		"",
	}, "\n")
}

func renderEnvFile(home string) string {
	return strings.Join([]string{
		"# WirdBot runtime environment",
		"# Loaded via systemd EnvironmentFile",
		"WIRDBOT_DISCORD_TOKEN=",
		"GEMINI_API_KEY=",
		"WIRDBOT_CONFIG=" + filepath.Join(home, ".wirdbot", "config.json"),
		"WIRDBOT_HOME=" + home,
		"",
	}, "\n")
}

func shellEscape(v string) string {
	if v == "" {
		return "''"
	}
	if strings.IndexFunc(v, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '"' || r == '\'' || r == '\\'
	}) == -1 {
		return v
	}
	return strconv.Quote(v)
}
