package onboarding

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wirdbot/wirdbot/internal/config"
)

// LLMPreset selects which provider the setup wizard configures.
type LLMPreset string

const (
	LLMPresetSkip       LLMPreset = "skip"
	LLMPresetGemini     LLMPreset = "gemini"
	LLMPresetOpenAI     LLMPreset = "openai"
	LLMPresetClaude     LLMPreset = "claude"
	LLMPresetOpenRouter LLMPreset = "openrouter"
	LLMPresetGroq       LLMPreset = "groq"
	LLMPresetVLLM       LLMPreset = "vllm"
)

// WizardParams prefills wizard answers. Empty fields prompt interactively;
// NonInteractive accepts defaults instead of prompting.
type WizardParams struct {
	DiscordToken   string
	OwnerID        string
	LLMPreset      string
	LLMToken       string
	LLMAPIBase     string
	SimpleModel    string
	ComplexModel   string
	NonInteractive bool
}

// RunSetupWizard fills in the configuration a fresh installation needs:
// Discord credentials, a model provider, and the scheduler switch. The
// caller decides whether to persist cfg afterwards.
func RunSetupWizard(cfg *config.Config, in io.Reader, out io.Writer, p WizardParams) error {
	reader, ok := in.(*bufio.Reader)
	if !ok {
		reader = bufio.NewReader(in)
	}

	if err := applyDiscord(cfg, reader, out, p); err != nil {
		return err
	}
	preset, err := resolveLLMPreset(reader, out, p)
	if err != nil {
		return err
	}
	if err := applyLLM(cfg, preset, reader, out, p); err != nil {
		return err
	}
	return applyScheduler(cfg, reader, out, p)
}

func applyDiscord(cfg *config.Config, reader *bufio.Reader, out io.Writer, p WizardParams) error {
	token := strings.TrimSpace(p.DiscordToken)
	if token == "" && !p.NonInteractive {
		val, err := prompt(reader, out, "Discord bot token", os.Getenv("DISCORD_TOKEN"))
		if err != nil {
			return err
		}
		token = strings.TrimSpace(val)
	}
	if token != "" {
		cfg.Discord.Token = token
	}

	owner := strings.TrimSpace(p.OwnerID)
	if owner == "" && !p.NonInteractive {
		val, err := prompt(reader, out, "Owner user ID (Discord snowflake)", cfg.Discord.OwnerID)
		if err != nil {
			return err
		}
		owner = strings.TrimSpace(val)
	}
	if owner != "" {
		cfg.Discord.OwnerID = owner
	}
	return nil
}

func resolveLLMPreset(reader *bufio.Reader, out io.Writer, p WizardParams) (LLMPreset, error) {
	preset := normalizeLLMPreset(p.LLMPreset)
	if preset != "" {
		return preset, nil
	}
	if p.NonInteractive {
		return LLMPresetSkip, nil
	}

	fmt.Fprintln(out, "\nSelect a model provider:")
	fmt.Fprintln(out, "1) gemini (recommended)")
	fmt.Fprintln(out, "2) openai")
	fmt.Fprintln(out, "3) claude")
	fmt.Fprintln(out, "4) openrouter")
	fmt.Fprintln(out, "5) groq")
	fmt.Fprintln(out, "6) vllm (self-hosted, OpenAI compatible)")
	fmt.Fprintln(out, "7) skip")
	choice, err := prompt(reader, out, "Provider [1-7]", "1")
	if err != nil {
		return "", err
	}
	switch strings.TrimSpace(choice) {
	case "1":
		return LLMPresetGemini, nil
	case "2":
		return LLMPresetOpenAI, nil
	case "3":
		return LLMPresetClaude, nil
	case "4":
		return LLMPresetOpenRouter, nil
	case "5":
		return LLMPresetGroq, nil
	case "6":
		return LLMPresetVLLM, nil
	case "7":
		return LLMPresetSkip, nil
	default:
		return "", fmt.Errorf("invalid provider choice: %s", choice)
	}
}

func normalizeLLMPreset(v string) LLMPreset {
	switch strings.TrimSpace(strings.ToLower(v)) {
	case "", "auto":
		return ""
	case "skip":
		return LLMPresetSkip
	case "gemini", "google":
		return LLMPresetGemini
	case "openai", "gpt":
		return LLMPresetOpenAI
	case "claude", "anthropic":
		return LLMPresetClaude
	case "openrouter":
		return LLMPresetOpenRouter
	case "groq":
		return LLMPresetGroq
	case "vllm", "ollama", "openai-compatible":
		return LLMPresetVLLM
	default:
		return ""
	}
}

type applyKeyOpts struct {
	providerLabel  string
	envVar         string
	defaultSimple  string
	defaultComplex string
	setKey         func(*config.Config, string)
}

func applyLLM(cfg *config.Config, preset LLMPreset, reader *bufio.Reader, out io.Writer, p WizardParams) error {
	switch preset {
	case LLMPresetSkip, "":
		return nil
	case LLMPresetGemini:
		return applyKeyPreset(cfg, reader, out, p, applyKeyOpts{
			providerLabel:  "Gemini",
			envVar:         "GEMINI_API_KEY",
			defaultSimple:  "gemini/gemini-2.5-flash-lite",
			defaultComplex: "gemini/gemini-2.5-flash",
			setKey:         func(c *config.Config, k string) { c.Providers.Gemini.APIKey = k },
		})
	case LLMPresetOpenAI:
		return applyKeyPreset(cfg, reader, out, p, applyKeyOpts{
			providerLabel:  "OpenAI",
			envVar:         "OPENAI_API_KEY",
			defaultSimple:  "openai/gpt-4.1-mini",
			defaultComplex: "openai/gpt-4.1",
			setKey:         func(c *config.Config, k string) { c.Providers.OpenAI.APIKey = k },
		})
	case LLMPresetClaude:
		return applyKeyPreset(cfg, reader, out, p, applyKeyOpts{
			providerLabel:  "Anthropic",
			envVar:         "ANTHROPIC_API_KEY",
			defaultSimple:  "claude/claude-3-5-haiku-latest",
			defaultComplex: "claude/claude-sonnet-4-0",
			setKey:         func(c *config.Config, k string) { c.Providers.Anthropic.APIKey = k },
		})
	case LLMPresetOpenRouter:
		return applyKeyPreset(cfg, reader, out, p, applyKeyOpts{
			providerLabel:  "OpenRouter",
			envVar:         "OPENROUTER_API_KEY",
			defaultSimple:  "openrouter/openai/gpt-4.1-mini",
			defaultComplex: "openrouter/openai/gpt-4.1",
			setKey:         func(c *config.Config, k string) { c.Providers.OpenRouter.APIKey = k },
		})
	case LLMPresetGroq:
		return applyKeyPreset(cfg, reader, out, p, applyKeyOpts{
			providerLabel:  "Groq",
			envVar:         "GROQ_API_KEY",
			defaultSimple:  "groq/llama-3.1-8b-instant",
			defaultComplex: "groq/llama-3.3-70b-versatile",
			setKey:         func(c *config.Config, k string) { c.Providers.Groq.APIKey = k },
		})
	case LLMPresetVLLM:
		return applyVLLM(cfg, reader, out, p)
	default:
		return fmt.Errorf("unknown provider preset: %s", preset)
	}
}

// applyKeyPreset handles the common flow: prompt for API key and the two
// model routes, then set config.
func applyKeyPreset(cfg *config.Config, reader *bufio.Reader, out io.Writer, p WizardParams, opts applyKeyOpts) error {
	token := strings.TrimSpace(p.LLMToken)
	simple := strings.TrimSpace(p.SimpleModel)
	complexModel := strings.TrimSpace(p.ComplexModel)

	if token == "" && !p.NonInteractive {
		val, err := prompt(reader, out, opts.providerLabel+" API key", os.Getenv(opts.envVar))
		if err != nil {
			return err
		}
		token = strings.TrimSpace(val)
	}
	if simple == "" {
		if p.NonInteractive {
			simple = opts.defaultSimple
		} else {
			val, err := prompt(reader, out, "Simple model route", opts.defaultSimple)
			if err != nil {
				return err
			}
			simple = strings.TrimSpace(val)
		}
	}
	if complexModel == "" {
		if p.NonInteractive {
			complexModel = opts.defaultComplex
		} else {
			val, err := prompt(reader, out, "Complex model route", opts.defaultComplex)
			if err != nil {
				return err
			}
			complexModel = strings.TrimSpace(val)
		}
	}

	if token != "" {
		opts.setKey(cfg, token)
	}
	if simple != "" {
		cfg.Model.Simple = simple
	}
	if complexModel != "" {
		cfg.Model.Complex = complexModel
	}
	return nil
}

func applyVLLM(cfg *config.Config, reader *bufio.Reader, out io.Writer, p WizardParams) error {
	base := strings.TrimSpace(p.LLMAPIBase)
	if base == "" && !p.NonInteractive {
		val, err := prompt(reader, out, "vLLM API base", "http://localhost:8000/v1")
		if err != nil {
			return err
		}
		base = strings.TrimSpace(val)
	}
	if base == "" {
		return fmt.Errorf("vllm preset requires an API base")
	}
	cfg.Providers.VLLM.APIBase = base
	if token := strings.TrimSpace(p.LLMToken); token != "" {
		cfg.Providers.VLLM.APIKey = token
	}

	model := strings.TrimSpace(p.SimpleModel)
	if model == "" && !p.NonInteractive {
		val, err := prompt(reader, out, "Served model name", "local")
		if err != nil {
			return err
		}
		model = strings.TrimSpace(val)
	}
	if model == "" {
		model = "local"
	}
	cfg.Model.Simple = "vllm/" + model
	cfg.Model.Complex = "vllm/" + model
	return nil
}

func applyScheduler(cfg *config.Config, reader *bufio.Reader, out io.Writer, p WizardParams) error {
	if p.NonInteractive {
		return nil
	}
	answer, err := prompt(reader, out, "Enable the daily wird scheduler? [y/N]", "N")
	if err != nil {
		return err
	}
	cfg.Scheduler.Enabled = isYes(answer)
	return nil
}

// BuildSummary renders the configuration the wizard is about to apply.
func BuildSummary(cfg *config.Config) string {
	tokenState := "not set"
	if strings.TrimSpace(cfg.Discord.Token) != "" {
		tokenState = "set"
	}

	providerEntries := []struct {
		id     string
		hasKey bool
	}{
		{"gemini", cfg.Providers.Gemini.APIKey != ""},
		{"openai", cfg.Providers.OpenAI.APIKey != ""},
		{"claude", cfg.Providers.Anthropic.APIKey != ""},
		{"openrouter", cfg.Providers.OpenRouter.APIKey != ""},
		{"groq", cfg.Providers.Groq.APIKey != ""},
		{"vllm", cfg.Providers.VLLM.APIBase != ""},
	}
	var configured []string
	for _, pe := range providerEntries {
		if pe.hasKey {
			configured = append(configured, pe.id)
		}
	}
	if len(configured) == 0 {
		configured = []string{"(none)"}
	}

	lines := []string{
		"",
		"Planned configuration:",
		fmt.Sprintf("- discord.token: %s", tokenState),
		fmt.Sprintf("- discord.ownerId: %s", firstNonEmpty(cfg.Discord.OwnerID, "(not set)")),
		fmt.Sprintf("- model.simple: %s", firstNonEmpty(cfg.Model.Simple, "(empty)")),
		fmt.Sprintf("- model.complex: %s", firstNonEmpty(cfg.Model.Complex, "(empty)")),
		fmt.Sprintf("- providers: %s", strings.Join(configured, ", ")),
		fmt.Sprintf("- scheduler.enabled: %t", cfg.Scheduler.Enabled),
		fmt.Sprintf("- events.enabled: %t", cfg.Events.Enabled),
		fmt.Sprintf("- store.path: %s", firstNonEmpty(cfg.Store.Path, "(default)")),
		"",
	}
	return strings.Join(lines, "\n")
}

// ConfirmApply asks before the wizard's answers are written to disk.
func ConfirmApply(reader *bufio.Reader, out io.Writer) (bool, error) {
	answer, err := prompt(reader, out, "Apply this configuration? [y/N]", "N")
	if err != nil {
		return false, err
	}
	return isYes(answer), nil
}

func prompt(r *bufio.Reader, out io.Writer, label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	val := strings.TrimSpace(line)
	if val == "" {
		return def, nil
	}
	return val, nil
}

func isYes(answer string) bool {
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}

func firstNonEmpty(v, fallback string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}
