package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wirdbot/wirdbot/internal/onboarding"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the wirdbot systemd service lifecycle",
}

var serviceInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install and optionally activate the systemd service (Linux)",
	RunE:  runServiceInstall,
}

var serviceUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Disable and remove the systemd service (Linux)",
	RunE:  runServiceUninstall,
}

var serviceStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the systemd service (Linux)",
	RunE:  runServiceStart,
}

var serviceStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the systemd service (Linux)",
	RunE:  runServiceStop,
}

var serviceRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the systemd service (Linux)",
	RunE:  runServiceRestart,
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show systemd service status (Linux)",
	RunE:  runServiceStatus,
}

var serviceUser string
var serviceBinary string
var serviceInstallRoot string
var serviceActivate bool
var serviceJSON bool

var serviceExecFn = func(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput()
}
var serviceOS = runtime.GOOS
var serviceCurrentEUID = os.Geteuid
var serviceSetupFn = onboarding.SetupSystemd
var serviceActivateFn = onboarding.ActivateSystemd

func init() {
	serviceInstallCmd.Flags().StringVar(&serviceUser, "service-user", "wirdbot", "Service user for the systemd unit")
	serviceInstallCmd.Flags().StringVar(&serviceBinary, "service-binary", "/usr/local/bin/wirdbot", "wirdbot binary path in ExecStart")
	serviceInstallCmd.Flags().StringVar(&serviceInstallRoot, "service-install-root", "/", "Root path for systemd files (testing/packaging)")
	serviceInstallCmd.Flags().BoolVar(&serviceActivate, "activate", true, "Run daemon-reload and enable --now after install")
	serviceInstallCmd.Flags().BoolVar(&serviceJSON, "json", false, "Output machine-readable JSON")
	_ = serviceInstallCmd.Flags().MarkHidden("service-install-root")

	serviceUninstallCmd.Flags().BoolVar(&serviceJSON, "json", false, "Output machine-readable JSON")
	serviceStartCmd.Flags().BoolVar(&serviceJSON, "json", false, "Output machine-readable JSON")
	serviceStopCmd.Flags().BoolVar(&serviceJSON, "json", false, "Output machine-readable JSON")
	serviceRestartCmd.Flags().BoolVar(&serviceJSON, "json", false, "Output machine-readable JSON")
	serviceStatusCmd.Flags().BoolVar(&serviceJSON, "json", false, "Output machine-readable JSON")

	serviceCmd.AddCommand(serviceInstallCmd, serviceUninstallCmd, serviceStartCmd, serviceStopCmd, serviceRestartCmd, serviceStatusCmd)
	rootCmd.AddCommand(serviceCmd)
}

func runServiceInstall(cmd *cobra.Command, args []string) error {
	if serviceOS != "linux" {
		return serviceResult(cmd, "error", "install", map[string]any{"os": serviceOS}, "service install currently supports Linux systemd only")
	}
	result, err := serviceSetupFn(onboarding.SetupOptions{
		ServiceUser: serviceUser,
		BinaryPath:  serviceBinary,
		Version:     version,
		InstallRoot: serviceInstallRoot,
	})
	if err != nil {
		return serviceResult(cmd, "error", "install", nil, err.Error())
	}
	if serviceActivate {
		if serviceCurrentEUID() != 0 {
			return serviceResult(cmd, "error", "install", map[string]any{"servicePath": result.ServicePath}, "activation requires root privileges")
		}
		if err := serviceActivateFn(); err != nil {
			return serviceResult(cmd, "error", "install", map[string]any{"servicePath": result.ServicePath}, err.Error())
		}
	}
	return serviceResult(cmd, "ok", "install", map[string]any{
		"servicePath":  result.ServicePath,
		"overridePath": result.OverridePath,
		"envPath":      result.EnvPath,
		"userCreated":  result.UserCreated,
		"activated":    serviceActivate,
	}, "")
}

func runServiceUninstall(cmd *cobra.Command, args []string) error {
	if serviceOS != "linux" {
		return serviceResult(cmd, "error", "uninstall", map[string]any{"os": serviceOS}, "service uninstall currently supports Linux systemd only")
	}
	if serviceCurrentEUID() != 0 {
		return serviceResult(cmd, "error", "uninstall", nil, "uninstall requires root privileges")
	}
	_, _ = serviceExecFn("systemctl", "disable", "--now", onboarding.ServiceName)
	_ = os.Remove(filepath.Join("/", "etc", "systemd", "system", onboarding.ServiceName))
	_, _ = serviceExecFn("systemctl", "daemon-reload")
	return serviceResult(cmd, "ok", "uninstall", nil, "")
}

func runServiceStart(cmd *cobra.Command, args []string) error {
	return runServiceSystemctlAction(cmd, "start")
}

func runServiceStop(cmd *cobra.Command, args []string) error {
	return runServiceSystemctlAction(cmd, "stop")
}

func runServiceRestart(cmd *cobra.Command, args []string) error {
	return runServiceSystemctlAction(cmd, "restart")
}

func runServiceSystemctlAction(cmd *cobra.Command, action string) error {
	if serviceOS != "linux" {
		return serviceResult(cmd, "error", action, map[string]any{"os": serviceOS}, "service actions currently support Linux systemd only")
	}
	if serviceCurrentEUID() != 0 {
		return serviceResult(cmd, "error", action, nil, fmt.Sprintf("%s requires root privileges", action))
	}
	out, err := serviceExecFn("systemctl", action, onboarding.ServiceName)
	if err != nil {
		return serviceResult(cmd, "error", action, map[string]any{"output": strings.TrimSpace(string(out))}, err.Error())
	}
	return serviceResult(cmd, "ok", action, map[string]any{"output": strings.TrimSpace(string(out))}, "")
}

func runServiceStatus(cmd *cobra.Command, args []string) error {
	if serviceOS != "linux" {
		return serviceResult(cmd, "error", "status", map[string]any{"os": serviceOS}, "service status currently supports Linux systemd only")
	}
	enabledOut, enabledErr := serviceExecFn("systemctl", "is-enabled", onboarding.ServiceName)
	activeOut, activeErr := serviceExecFn("systemctl", "is-active", onboarding.ServiceName)
	result := map[string]any{
		"enabled": strings.TrimSpace(string(enabledOut)),
		"active":  strings.TrimSpace(string(activeOut)),
	}
	if enabledErr != nil || activeErr != nil {
		return serviceResult(cmd, "error", "status", result, "service not enabled/active")
	}
	return serviceResult(cmd, "ok", "status", result, "")
}

func serviceResult(cmd *cobra.Command, status, action string, result map[string]any, errMsg string) error {
	if serviceJSON {
		payload := map[string]any{
			"status":  strings.TrimSpace(status),
			"command": "service",
			"action":  strings.TrimSpace(action),
		}
		if len(result) > 0 {
			payload["result"] = result
		}
		if strings.TrimSpace(errMsg) != "" {
			payload["error"] = strings.TrimSpace(errMsg)
		}
		b, _ := json.MarshalIndent(payload, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		if strings.EqualFold(status, "error") {
			return fmt.Errorf("%s", errMsg)
		}
		return nil
	}
	if strings.EqualFold(status, "error") {
		return fmt.Errorf("%s", errMsg)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
	return nil
}
