package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wirdbot/wirdbot/internal/cliconfig"
	"github.com/wirdbot/wirdbot/internal/config"
	"github.com/wirdbot/wirdbot/internal/onboarding"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize configuration for a new installation",
	RunE:  runOnboard,
}

var onboardDiscordToken string
var onboardOwnerID string
var onboardLLMPreset string
var onboardLLMToken string
var onboardLLMAPIBase string
var onboardModelSimple string
var onboardModelComplex string
var onboardNonInteractive bool
var onboardJSON bool
var onboardSystemd bool
var onboardServiceUser string
var onboardServiceBinary string
var onboardInstallRoot string

type onboardingSummary struct {
	ConfigPath   string `json:"configPath"`
	Workspace    string `json:"workspace"`
	StorePath    string `json:"storePath"`
	ModelSimple  string `json:"modelSimple"`
	ModelComplex string `json:"modelComplex"`
	Scheduler    bool   `json:"schedulerEnabled"`
}

func init() {
	onboardCmd.Flags().StringVar(&onboardDiscordToken, "discord-token", "", "Discord bot token")
	onboardCmd.Flags().StringVar(&onboardOwnerID, "owner-id", "", "Discord user ID of the bot owner")
	onboardCmd.Flags().StringVar(&onboardLLMPreset, "llm", "", "Model provider preset: gemini | openai | claude | openrouter | groq | vllm | skip")
	onboardCmd.Flags().StringVar(&onboardLLMToken, "llm-token", "", "Provider API key")
	onboardCmd.Flags().StringVar(&onboardLLMAPIBase, "llm-api-base", "", "OpenAI-compatible API base for the vllm preset")
	onboardCmd.Flags().StringVar(&onboardModelSimple, "model-simple", "", "Model route for routine turns, e.g. gemini/gemini-2.5-flash-lite")
	onboardCmd.Flags().StringVar(&onboardModelComplex, "model-complex", "", "Model route for tool-heavy turns")
	onboardCmd.Flags().BoolVar(&onboardNonInteractive, "non-interactive", false, "Run onboarding without prompts")
	onboardCmd.Flags().BoolVar(&onboardJSON, "json", false, "Output onboarding summary as JSON")
	onboardCmd.Flags().BoolVar(&onboardSystemd, "systemd", false, "Install systemd service + override + env file (Linux)")
	onboardCmd.Flags().StringVar(&onboardServiceUser, "service-user", "wirdbot", "Service user for systemd setup")
	onboardCmd.Flags().StringVar(&onboardServiceBinary, "service-binary", "/usr/local/bin/wirdbot", "wirdbot binary path for systemd ExecStart")
	onboardCmd.Flags().StringVar(&onboardInstallRoot, "service-install-root", "/", "Installation root for systemd files (testing/packaging)")
	_ = onboardCmd.Flags().MarkHidden("service-install-root")
	rootCmd.AddCommand(onboardCmd)
}

func runOnboard(cmd *cobra.Command, args []string) error {
	if onboardNonInteractive && strings.TrimSpace(onboardLLMPreset) == "" {
		return fmt.Errorf("non-interactive onboarding requires an explicit provider (--llm, or --llm skip to keep current models)")
	}

	out := cmd.OutOrStdout()
	printHeader("🚀 WirdBot Onboard")

	cfgPath, _ := config.ConfigPath()
	cfg := config.DefaultConfig()
	if _, err := os.Stat(cfgPath); err == nil {
		loaded, loadErr := config.Load()
		if loadErr != nil {
			fmt.Fprintf(out, "Config warning: %v (using defaults)\n", loadErr)
		} else if loaded != nil {
			cfg = loaded
		}
		fmt.Fprintf(out, "Config exists at: %s\n", cfgPath)
		fmt.Fprintln(out, "Onboarding updates selected fields; existing settings are kept unless changed.")
	} else {
		fmt.Fprintf(out, "Config will be created at: %s\n", cfgPath)
	}

	in := bufio.NewReader(cmd.InOrStdin())
	if err := onboarding.RunSetupWizard(cfg, in, out, onboarding.WizardParams{
		DiscordToken:   onboardDiscordToken,
		OwnerID:        onboardOwnerID,
		LLMPreset:      onboardLLMPreset,
		LLMToken:       onboardLLMToken,
		LLMAPIBase:     onboardLLMAPIBase,
		SimpleModel:    onboardModelSimple,
		ComplexModel:   onboardModelComplex,
		NonInteractive: onboardNonInteractive,
	}); err != nil {
		return fmt.Errorf("onboarding wizard error: %w", err)
	}

	if err := preflightOnboardingConfig(cfg, cfgPath); err != nil {
		return err
	}

	fmt.Fprintln(out, onboarding.BuildSummary(cfg))
	if !onboardNonInteractive {
		ok, err := onboarding.ConfirmApply(in, out)
		if err != nil {
			return fmt.Errorf("onboarding confirmation error: %w", err)
		}
		if !ok {
			fmt.Fprintln(out, "Onboarding aborted before writing config.")
			return nil
		}
	}
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Fprintf(out, "Updated configuration at: %s\n", cfgPath)
	fmt.Fprintf(out, "\nWorkspace: %s\n", cfg.Agent.Workspace)

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "1. Review the config with 'wirdbot config list'.")
	fmt.Fprintln(out, "2. Run 'wirdbot doctor' to verify the setup.")
	fmt.Fprintln(out, "3. Try 'wirdbot chat -m \"assalamu alaikum\"', then 'wirdbot serve'.")

	if onboardJSON {
		summary := onboardingSummary{
			ConfigPath:   cfgPath,
			Workspace:    cfg.Agent.Workspace,
			StorePath:    cfg.Store.Path,
			ModelSimple:  cfg.Model.Simple,
			ModelComplex: cfg.Model.Complex,
			Scheduler:    cfg.Scheduler.Enabled,
		}
		data, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Fprintln(out, string(data))
	}

	if onboardSystemd {
		if runtime.GOOS != "linux" {
			fmt.Fprintln(out, "\nSystemd setup is only supported on Linux.")
			return nil
		}
		result, err := onboarding.SetupSystemd(onboarding.SetupOptions{
			ServiceUser: onboardServiceUser,
			BinaryPath:  onboardServiceBinary,
			Version:     version,
			InstallRoot: onboardInstallRoot,
		})
		if err != nil {
			fmt.Fprintf(out, "\nSystemd setup failed: %v\n", err)
			return nil
		}
		fmt.Fprintln(out, "\nSystemd setup complete:")
		if result.UserCreated {
			fmt.Fprintf(out, "  + Created user: %s\n", onboardServiceUser)
		}
		fmt.Fprintf(out, "  + Service unit: %s\n", result.ServicePath)
		fmt.Fprintf(out, "  + Override file: %s\n", result.OverridePath)
		fmt.Fprintf(out, "  + Env file: %s\n", result.EnvPath)
		fmt.Fprintf(out, "  Next (as root): systemctl daemon-reload && systemctl enable --now %s\n", onboarding.ServiceName)
	}

	printPostOnboardingReadiness(cmd)
	return nil
}

func preflightOnboardingConfig(cfg *config.Config, cfgPath string) error {
	if cfg == nil {
		return fmt.Errorf("onboarding preflight failed: nil config")
	}
	if strings.TrimSpace(cfg.Agent.Workspace) == "" {
		return fmt.Errorf("onboarding preflight failed: workspace path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o700); err != nil {
		return fmt.Errorf("onboarding preflight failed: cannot create config directory: %w", err)
	}
	if err := os.MkdirAll(cfg.Agent.Workspace, 0o755); err != nil {
		return fmt.Errorf("onboarding preflight failed: cannot access workspace path %q: %w", cfg.Agent.Workspace, err)
	}
	return nil
}

func printPostOnboardingReadiness(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nReadiness gates:")
	report, err := cliconfig.RunDoctor()
	if err != nil {
		fmt.Fprintf(out, "- doctor: warning (%v)\n", err)
		return
	}
	failures := 0
	for _, check := range report.Checks {
		if check.Status == cliconfig.DoctorFail {
			failures++
		}
	}
	if failures > 0 {
		fmt.Fprintf(out, "- doctor: %d failing check(s) (run 'wirdbot doctor')\n", failures)
	} else {
		fmt.Fprintln(out, "- doctor: ok")
	}
}
