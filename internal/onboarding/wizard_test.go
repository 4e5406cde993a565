package onboarding

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/wirdbot/wirdbot/internal/config"
)

func TestRunSetupWizardNonInteractive(t *testing.T) {
	cfg := &config.Config{}
	out := &bytes.Buffer{}
	err := RunSetupWizard(cfg, strings.NewReader(""), out, WizardParams{
		DiscordToken:   "tok-abc",
		OwnerID:        "1122",
		LLMPreset:      "openai",
		LLMToken:       "sk-test",
		NonInteractive: true,
	})
	if err != nil {
		t.Fatalf("RunSetupWizard: %v", err)
	}
	if cfg.Discord.Token != "tok-abc" {
		t.Fatalf("token = %q", cfg.Discord.Token)
	}
	if cfg.Discord.OwnerID != "1122" {
		t.Fatalf("ownerId = %q", cfg.Discord.OwnerID)
	}
	if cfg.Providers.OpenAI.APIKey != "sk-test" {
		t.Fatalf("openai key = %q", cfg.Providers.OpenAI.APIKey)
	}
	if cfg.Model.Simple != "openai/gpt-4.1-mini" || cfg.Model.Complex != "openai/gpt-4.1" {
		t.Fatalf("models = %q / %q", cfg.Model.Simple, cfg.Model.Complex)
	}
	if cfg.Scheduler.Enabled {
		t.Fatal("scheduler should stay disabled without a prompt")
	}
}

func TestRunSetupWizardInteractiveGemini(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("GEMINI_API_KEY", "")

	cfg := &config.Config{}
	in := strings.NewReader("tok-123\n4242\n\ng-key\n\n\ny\n")
	out := &bytes.Buffer{}
	if err := RunSetupWizard(cfg, in, out, WizardParams{}); err != nil {
		t.Fatalf("RunSetupWizard: %v", err)
	}

	if cfg.Discord.Token != "tok-123" {
		t.Fatalf("token = %q", cfg.Discord.Token)
	}
	if cfg.Discord.OwnerID != "4242" {
		t.Fatalf("ownerId = %q", cfg.Discord.OwnerID)
	}
	if cfg.Providers.Gemini.APIKey != "g-key" {
		t.Fatalf("gemini key = %q", cfg.Providers.Gemini.APIKey)
	}
	if cfg.Model.Simple != "gemini/gemini-2.5-flash-lite" {
		t.Fatalf("simple = %q", cfg.Model.Simple)
	}
	if cfg.Model.Complex != "gemini/gemini-2.5-flash" {
		t.Fatalf("complex = %q", cfg.Model.Complex)
	}
	if !cfg.Scheduler.Enabled {
		t.Fatal("scheduler should be enabled after answering y")
	}
	if !strings.Contains(out.String(), "Select a model provider") {
		t.Fatal("provider menu missing from output")
	}
}

func TestRunSetupWizardSkipKeepsModels(t *testing.T) {
	cfg := &config.Config{}
	cfg.Model.Simple = "gemini/custom-simple"
	cfg.Model.Complex = "gemini/custom-complex"
	err := RunSetupWizard(cfg, strings.NewReader(""), &bytes.Buffer{}, WizardParams{
		LLMPreset:      "skip",
		NonInteractive: true,
	})
	if err != nil {
		t.Fatalf("RunSetupWizard: %v", err)
	}
	if cfg.Model.Simple != "gemini/custom-simple" || cfg.Model.Complex != "gemini/custom-complex" {
		t.Fatalf("models changed: %q / %q", cfg.Model.Simple, cfg.Model.Complex)
	}
}

func TestRunSetupWizardInvalidProviderChoice(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")

	cfg := &config.Config{}
	in := strings.NewReader("tok\n1\n9\n")
	err := RunSetupWizard(cfg, in, &bytes.Buffer{}, WizardParams{})
	if err == nil || !strings.Contains(err.Error(), "invalid provider choice") {
		t.Fatalf("expected invalid choice error, got %v", err)
	}
}

func TestApplyVLLMNonInteractive(t *testing.T) {
	cfg := &config.Config{}
	err := RunSetupWizard(cfg, strings.NewReader(""), &bytes.Buffer{}, WizardParams{
		LLMPreset:      "vllm",
		LLMAPIBase:     "http://10.0.0.5:8000/v1",
		SimpleModel:    "qwen3-32b",
		NonInteractive: true,
	})
	if err != nil {
		t.Fatalf("RunSetupWizard: %v", err)
	}
	if cfg.Providers.VLLM.APIBase != "http://10.0.0.5:8000/v1" {
		t.Fatalf("apiBase = %q", cfg.Providers.VLLM.APIBase)
	}
	if cfg.Model.Simple != "vllm/qwen3-32b" || cfg.Model.Complex != "vllm/qwen3-32b" {
		t.Fatalf("models = %q / %q", cfg.Model.Simple, cfg.Model.Complex)
	}
}

func TestApplyVLLMRequiresAPIBase(t *testing.T) {
	cfg := &config.Config{}
	err := RunSetupWizard(cfg, strings.NewReader(""), &bytes.Buffer{}, WizardParams{
		LLMPreset:      "vllm",
		NonInteractive: true,
	})
	if err == nil || !strings.Contains(err.Error(), "API base") {
		t.Fatalf("expected API base error, got %v", err)
	}
}

func TestNormalizeLLMPreset(t *testing.T) {
	cases := []struct {
		in   string
		want LLMPreset
	}{
		{"gemini", LLMPresetGemini},
		{"google", LLMPresetGemini},
		{"GPT", LLMPresetOpenAI},
		{"anthropic", LLMPresetClaude},
		{"claude", LLMPresetClaude},
		{"openrouter", LLMPresetOpenRouter},
		{"groq", LLMPresetGroq},
		{"ollama", LLMPresetVLLM},
		{"skip", LLMPresetSkip},
		{"", ""},
		{"auto", ""},
		{"bogus", ""},
	}
	for _, tc := range cases {
		if got := normalizeLLMPreset(tc.in); got != tc.want {
			t.Errorf("normalizeLLMPreset(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBuildSummary(t *testing.T) {
	cfg := &config.Config{}
	cfg.Discord.Token = "tok"
	cfg.Discord.OwnerID = "99"
	cfg.Model.Simple = "gemini/gemini-2.5-flash-lite"
	cfg.Providers.Gemini.APIKey = "g"
	cfg.Providers.Groq.APIKey = "q"

	summary := BuildSummary(cfg)
	for _, want := range []string{
		"- discord.token: set",
		"- discord.ownerId: 99",
		"- model.simple: gemini/gemini-2.5-flash-lite",
		"- providers: gemini, groq",
		"- scheduler.enabled: false",
	} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
	if strings.Contains(summary, "discord.token: tok") {
		t.Fatal("summary must not leak the raw token")
	}
}

func TestBuildSummaryNoProviders(t *testing.T) {
	summary := BuildSummary(&config.Config{})
	if !strings.Contains(summary, "- discord.token: not set") {
		t.Fatalf("summary missing token state:\n%s", summary)
	}
	if !strings.Contains(summary, "- providers: (none)") {
		t.Fatalf("summary missing provider placeholder:\n%s", summary)
	}
}

func TestConfirmApply(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"yes\n", true},
		{"n\n", false},
		{"\n", false},
	}
	for _, tc := range cases {
		got, err := ConfirmApply(bufio.NewReader(strings.NewReader(tc.input)), &bytes.Buffer{})
		if err != nil {
			t.Fatalf("ConfirmApply(%q): %v", tc.input, err)
		}
		if got != tc.want {
			t.Errorf("ConfirmApply(%q) = %t, want %t", tc.input, got, tc.want)
		}
	}
}

func TestPromptReturnsDefaultOnEmpty(t *testing.T) {
	out := &bytes.Buffer{}
	got, err := prompt(bufio.NewReader(strings.NewReader("\n")), out, "Label", "fallback")
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	if got != "fallback" {
		t.Fatalf("prompt = %q, want fallback", got)
	}
	if !strings.Contains(out.String(), "Label [fallback]: ") {
		t.Fatalf("prompt output = %q", out.String())
	}
}

func TestPromptReturnsDefaultOnEOF(t *testing.T) {
	got, err := prompt(bufio.NewReader(strings.NewReader("")), &bytes.Buffer{}, "Label", "fallback")
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	if got != "fallback" {
		t.Fatalf("prompt = %q, want fallback", got)
	}
}
