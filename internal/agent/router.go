package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/wirdbot/wirdbot/internal/provider"
)

// ProviderResolver returns the provider client and bare model name for a
// "provider/model" configuration string.
type ProviderResolver func(model string) (provider.LLMProvider, string, error)

// routerPrompt is the one-shot classifier instruction. The classifier runs
// on the simple model with temperature 0.
const routerPrompt = `You are a request classifier. Classify the following user message as 'SIMPLE' or 'COMPLEX'.

CRITERIA:
- COMPLEX: Advanced math, long or layered reasoning, large coding or automation tasks, or when explicitly requested.
- SIMPLE: Everything else: general conversation, Quran lookups, wird tracking, server questions, short requests.

Output ONLY 'SIMPLE' or 'COMPLEX'.`

// shortMessageLimit is the length under which a message skips the
// classifier entirely.
const shortMessageLimit = 100

var (
	forceComplexKeywords = []string{"use pro", "force pro", "pro model", "think hard"}
	forceSimpleKeywords  = []string{"use flash", "force flash", "flash model", "fast model"}
)

// Router selects between the simple and complex models per turn.
type Router struct {
	resolve ProviderResolver
	simple  string
	complex string
}

// NewRouter creates a router over the configured model pair.
func NewRouter(resolve ProviderResolver, simple, complex string) *Router {
	return &Router{resolve: resolve, simple: simple, complex: complex}
}

// Pick returns the model string for this message and whether the complex
// model was chosen. Classification failures fall back to the simple model;
// routing must never break a turn.
func (r *Router) Pick(ctx context.Context, content string) (string, bool) {
	lower := strings.ToLower(content)
	for _, kw := range forceComplexKeywords {
		if strings.Contains(lower, kw) {
			return r.complex, true
		}
	}
	for _, kw := range forceSimpleKeywords {
		if strings.Contains(lower, kw) {
			return r.simple, false
		}
	}
	if len(content) < shortMessageLimit {
		return r.simple, false
	}
	if r.classify(ctx, content) == "COMPLEX" {
		return r.complex, true
	}
	return r.simple, false
}

func (r *Router) classify(ctx context.Context, content string) string {
	prov, model, err := r.resolve(r.simple)
	if err != nil {
		slog.Warn("Router resolve failed, using simple model", "error", err)
		return "SIMPLE"
	}
	resp, err := prov.Chat(ctx, &provider.ChatRequest{
		Model:       model,
		System:      routerPrompt,
		Messages:    []provider.Message{{Role: "user", Content: "User Message: " + content}},
		MaxTokens:   8,
		Temperature: 0,
	})
	if err != nil {
		slog.Warn("Router classification failed, using simple model", "error", err)
		return "SIMPLE"
	}
	if strings.Contains(strings.ToUpper(resp.Text()), "COMPLEX") {
		return "COMPLEX"
	}
	return "SIMPLE"
}
