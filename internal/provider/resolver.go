package provider

import (
	"fmt"
	"strings"

	"github.com/wirdbot/wirdbot/internal/config"
)

// providerAliases maps common aliases to canonical provider IDs.
var providerAliases = map[string]string{
	"google":    "gemini",
	"anthropic": "claude",
}

// NormalizeProviderID resolves aliases and normalizes the provider ID.
func NormalizeProviderID(id string) string {
	lower := strings.ToLower(strings.TrimSpace(id))
	if canonical, ok := providerAliases[lower]; ok {
		return canonical
	}
	return lower
}

// ParseModelString splits a "provider/model" string into provider ID and
// model name. For OpenRouter the model segment keeps its own slash
// ("openrouter/vendor/model").
func ParseModelString(s string) (providerID, modelName string) {
	s = strings.TrimSpace(s)
	parts := strings.SplitN(s, "/", 2)
	if len(parts) < 2 {
		return "", s
	}
	providerID = strings.ToLower(parts[0])
	modelName = parts[1]
	return
}

// Resolve builds the LLMProvider for a "provider/model" string and returns it
// with the bare model name. A string without a provider segment resolves to
// Gemini when its key is configured, OpenAI otherwise.
func Resolve(cfg *config.Config, modelStr string) (LLMProvider, string, error) {
	provID, model := ParseModelString(modelStr)
	if provID == "" {
		if cfg.Providers.Gemini.APIKey != "" {
			provID = "gemini"
		} else {
			provID = "openai"
		}
	}
	provID = NormalizeProviderID(provID)
	prov, err := buildProvider(cfg, provID, model)
	if err != nil {
		return nil, "", err
	}
	return prov, model, nil
}

// buildProvider constructs a provider from its canonical ID and model name.
func buildProvider(cfg *config.Config, providerID, model string) (LLMProvider, error) {
	switch providerID {
	case "gemini":
		key := cfg.Providers.Gemini.APIKey
		if key == "" {
			return nil, &ProviderError{Provider: "gemini", Hint: "set providers.gemini.apiKey in config or run: wirdbot config set providers.gemini.apiKey <key>"}
		}
		return NewGeminiProvider(key, model), nil

	case "openai":
		key := cfg.Providers.OpenAI.APIKey
		base := cfg.Providers.OpenAI.APIBase
		if key == "" {
			return nil, &ProviderError{Provider: "openai", Hint: "set providers.openai.apiKey in config or run: wirdbot config set providers.openai.apiKey <key>"}
		}
		return NewOpenAIProvider(key, base, model), nil

	case "claude":
		key := cfg.Providers.Anthropic.APIKey
		base := cfg.Providers.Anthropic.APIBase
		if key == "" {
			return nil, &ProviderError{Provider: "claude", Hint: "set providers.anthropic.apiKey in config"}
		}
		if base == "" {
			base = "https://api.anthropic.com/v1"
		}
		return NewOpenAIProvider(key, base, model), nil

	case "openrouter":
		key := cfg.Providers.OpenRouter.APIKey
		base := cfg.Providers.OpenRouter.APIBase
		if key == "" {
			return nil, &ProviderError{Provider: "openrouter", Hint: "set providers.openrouter.apiKey in config"}
		}
		if base == "" {
			base = "https://openrouter.ai/api/v1"
		}
		return NewOpenAIProvider(key, base, model), nil

	case "groq":
		key := cfg.Providers.Groq.APIKey
		base := cfg.Providers.Groq.APIBase
		if key == "" {
			return nil, &ProviderError{Provider: "groq", Hint: "set providers.groq.apiKey in config"}
		}
		if base == "" {
			base = "https://api.groq.com/openai/v1"
		}
		return NewOpenAIProvider(key, base, model), nil

	case "vllm":
		base := cfg.Providers.VLLM.APIBase
		key := cfg.Providers.VLLM.APIKey
		if base == "" {
			return nil, &ProviderError{Provider: "vllm", Hint: "set providers.vllm.apiBase in config (e.g. http://localhost:8000/v1)"}
		}
		return NewOpenAIProvider(key, base, model), nil

	default:
		return nil, &ProviderError{Provider: providerID, Hint: fmt.Sprintf("unknown provider ID %q, supported: gemini, openai, claude, openrouter, groq, vllm", providerID)}
	}
}

// ProviderError is returned when a provider cannot be constructed.
type ProviderError struct {
	Provider string
	Hint     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %q: %s", e.Provider, e.Hint)
}
