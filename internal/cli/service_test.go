package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/wirdbot/wirdbot/internal/onboarding"
)

func TestRunServiceInstallNonLinux(t *testing.T) {
	origOS := serviceOS
	origJSON := serviceJSON
	defer func() {
		serviceOS = origOS
		serviceJSON = origJSON
	}()

	serviceOS = "darwin"
	serviceJSON = true
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	if err := runServiceInstall(cmd, nil); err == nil {
		t.Fatal("expected non-linux service install error")
	}
}

func TestRunServiceInstallWithoutActivation(t *testing.T) {
	origOS := serviceOS
	origJSON := serviceJSON
	origActivate := serviceActivate
	origSetup := serviceSetupFn
	defer func() {
		serviceOS = origOS
		serviceJSON = origJSON
		serviceActivate = origActivate
		serviceSetupFn = origSetup
	}()

	serviceOS = "linux"
	serviceJSON = true
	serviceActivate = false
	var gotOpts onboarding.SetupOptions
	serviceSetupFn = func(opts onboarding.SetupOptions) (*onboarding.SetupResult, error) {
		gotOpts = opts
		return &onboarding.SetupResult{
			ServicePath:  "/etc/systemd/system/wirdbot.service",
			OverridePath: "/home/wirdbot/.config/systemd/user/wirdbot.service.d/override.conf",
			EnvPath:      "/home/wirdbot/.config/wirdbot/env",
		}, nil
	}

	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	if err := runServiceInstall(cmd, nil); err != nil {
		t.Fatalf("service install failed: %v", err)
	}
	if !strings.Contains(out.String(), `"status": "ok"`) {
		t.Fatalf("expected json ok output, got %q", out.String())
	}
	if gotOpts.ServiceUser != "wirdbot" {
		t.Fatalf("expected default service user, got %q", gotOpts.ServiceUser)
	}
	if gotOpts.BinaryPath != "/usr/local/bin/wirdbot" {
		t.Fatalf("expected default binary path, got %q", gotOpts.BinaryPath)
	}
}

func TestRunServiceInstallActivationRequiresRoot(t *testing.T) {
	origOS := serviceOS
	origJSON := serviceJSON
	origActivate := serviceActivate
	origSetup := serviceSetupFn
	origEUID := serviceCurrentEUID
	defer func() {
		serviceOS = origOS
		serviceJSON = origJSON
		serviceActivate = origActivate
		serviceSetupFn = origSetup
		serviceCurrentEUID = origEUID
	}()

	serviceOS = "linux"
	serviceJSON = true
	serviceActivate = true
	serviceCurrentEUID = func() int { return 1000 }
	serviceSetupFn = func(opts onboarding.SetupOptions) (*onboarding.SetupResult, error) {
		return &onboarding.SetupResult{
			ServicePath: "/etc/systemd/system/wirdbot.service",
		}, nil
	}

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	if err := runServiceInstall(cmd, nil); err == nil {
		t.Fatal("expected activation root privilege error")
	}
}

func TestRunServiceInstallActivates(t *testing.T) {
	origOS := serviceOS
	origJSON := serviceJSON
	origActivate := serviceActivate
	origSetup := serviceSetupFn
	origEUID := serviceCurrentEUID
	origActivateFn := serviceActivateFn
	defer func() {
		serviceOS = origOS
		serviceJSON = origJSON
		serviceActivate = origActivate
		serviceSetupFn = origSetup
		serviceCurrentEUID = origEUID
		serviceActivateFn = origActivateFn
	}()

	serviceOS = "linux"
	serviceJSON = true
	serviceActivate = true
	serviceCurrentEUID = func() int { return 0 }
	serviceSetupFn = func(opts onboarding.SetupOptions) (*onboarding.SetupResult, error) {
		return &onboarding.SetupResult{ServicePath: "/etc/systemd/system/wirdbot.service"}, nil
	}
	activated := false
	serviceActivateFn = func() error {
		activated = true
		return nil
	}

	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	if err := runServiceInstall(cmd, nil); err != nil {
		t.Fatalf("service install failed: %v", err)
	}
	if !activated {
		t.Fatal("expected activation to run")
	}
	if !strings.Contains(out.String(), `"activated": true`) {
		t.Fatalf("expected activated flag in output, got %q", out.String())
	}
}

func TestRunServiceStatusJSON(t *testing.T) {
	origOS := serviceOS
	origJSON := serviceJSON
	origExec := serviceExecFn
	defer func() {
		serviceOS = origOS
		serviceJSON = origJSON
		serviceExecFn = origExec
	}()

	serviceOS = "linux"
	serviceJSON = true
	serviceExecFn = func(name string, args ...string) ([]byte, error) {
		if len(args) > 0 && args[0] == "is-enabled" {
			return []byte("enabled\n"), nil
		}
		return []byte("active\n"), nil
	}

	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	if err := runServiceStatus(cmd, nil); err != nil {
		t.Fatalf("service status failed: %v", err)
	}
	if !strings.Contains(out.String(), `"enabled": "enabled"`) || !strings.Contains(out.String(), `"active": "active"`) {
		t.Fatalf("expected service status output fields, got %q", out.String())
	}
}

func TestRunServiceStartRequiresRoot(t *testing.T) {
	origOS := serviceOS
	origJSON := serviceJSON
	origEUID := serviceCurrentEUID
	defer func() {
		serviceOS = origOS
		serviceJSON = origJSON
		serviceCurrentEUID = origEUID
	}()

	serviceOS = "linux"
	serviceJSON = false
	serviceCurrentEUID = func() int { return 1000 }

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	err := runServiceStart(cmd, nil)
	if err == nil || !strings.Contains(err.Error(), "root privileges") {
		t.Fatalf("expected root privilege error, got %v", err)
	}
}

func TestRunServiceRestartInvokesSystemctl(t *testing.T) {
	origOS := serviceOS
	origJSON := serviceJSON
	origEUID := serviceCurrentEUID
	origExec := serviceExecFn
	defer func() {
		serviceOS = origOS
		serviceJSON = origJSON
		serviceCurrentEUID = origEUID
		serviceExecFn = origExec
	}()

	serviceOS = "linux"
	serviceJSON = false
	serviceCurrentEUID = func() int { return 0 }
	var gotArgs []string
	serviceExecFn = func(name string, args ...string) ([]byte, error) {
		gotArgs = append([]string{name}, args...)
		return []byte(""), nil
	}

	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	if err := runServiceRestart(cmd, nil); err != nil {
		t.Fatalf("service restart failed: %v", err)
	}
	want := []string{"systemctl", "restart", onboarding.ServiceName}
	if len(gotArgs) != len(want) {
		t.Fatalf("systemctl args = %v", gotArgs)
	}
	for i := range want {
		if gotArgs[i] != want[i] {
			t.Fatalf("systemctl args = %v, want %v", gotArgs, want)
		}
	}
	if !strings.Contains(out.String(), "service restart: ok") {
		t.Fatalf("expected plain ok line, got %q", out.String())
	}
}
