// Package tools provides the tool framework and implementations for the agent.
package tools

import (
	"context"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"

	"github.com/wirdbot/wirdbot/internal/provider"
)

// Requirement declares who may invoke a tool. The policy gate maps each
// requirement to the caller's identity flags; the registry itself never
// checks permissions.
type Requirement int

const (
	// Public tools are available to every caller, including DMs.
	Public Requirement = iota
	// OwnerOnly tools are restricted to the configured bot owner.
	OwnerOnly
	// AdminOrOwner tools require server admin or the bot owner.
	AdminOrOwner
	// AdminOrOwnerWhitelistedGuild tools require the bot owner, or a server
	// admin in a guild on the code whitelist.
	AdminOrOwnerWhitelistedGuild
)

// String returns the wire name used in logs and audit events.
func (r Requirement) String() string {
	switch r {
	case Public:
		return "public"
	case OwnerOnly:
		return "owner_only"
	case AdminOrOwner:
		return "admin_or_owner"
	case AdminOrOwnerWhitelistedGuild:
		return "admin_or_owner_if_guild_whitelisted"
	default:
		return fmt.Sprintf("requirement(%d)", int(r))
	}
}

// Invocation carries the identity and addressing of a single tool call.
// It is constructed per call by the turn loop and never persisted.
type Invocation struct {
	CallerID   string
	CallerName string
	ChannelID  string
	MessageID  string
	GuildID    string // empty in DMs

	IsOwner          bool
	IsAdmin          bool
	GuildWhitelisted bool

	// Model is the resolved model string for the current turn.
	Model string
	// Capability bounds what an approved script may do. Selected by the
	// loop based on the caller; nil for tools that never execute code.
	Capability Capability
}

// Tool is the interface that all agent tools must implement.
type Tool interface {
	// Name returns the tool identifier used in function calls.
	Name() string
	// Description returns a human-readable description for the LLM.
	Description() string
	// Parameters returns the JSON Schema for tool parameters.
	Parameters() map[string]any
	// Requirement returns who may invoke this tool.
	Requirement() Requirement
	// RequiresConfirmation reports whether the tool must be approved by a
	// human before it runs. The loop consults this flag; confirmation-gated
	// tools register like any other.
	RequiresConfirmation() bool
	// Execute runs the tool with the given parameters.
	// Returns result string and error. On error, return user-friendly message.
	Execute(ctx context.Context, inv *Invocation, params map[string]any) (string, error)
}

// Registry manages tool registration and lookup.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates a new tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry. Registering the same name twice is
// an error; tool names are the wire identity the model calls by.
func (r *Registry) Register(tool Tool) error {
	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// MustRegister registers a set of tools and panics on a duplicate name.
// Intended for wiring at startup where a duplicate is a programming error.
func (r *Registry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Get returns a tool by name. A missing name is not an error here: the turn
// loop feeds an in-band "not found" result back to the model instead.
func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []Tool {
	result := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		result = append(result, tool)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// Specs returns provider tool definitions for the named subset, sorted by
// name. A nil allowed set exposes every registered tool.
func (r *Registry) Specs(allowed map[string]bool) []provider.ToolDefinition {
	result := make([]provider.ToolDefinition, 0, len(r.tools))
	for _, tool := range r.List() {
		if allowed != nil && !allowed[tool.Name()] {
			continue
		}
		result = append(result, provider.ToolDefinition{
			Type: "function",
			Function: provider.FunctionDef{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		})
	}
	return result
}

// DecodeParams decodes raw tool arguments into a typed struct. Models emit
// JSON numbers as float64 and occasionally quote integers, so decoding is
// weakly typed. Field names follow the json tags.
func DecodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("build params decoder: %w", err)
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return nil
}

// GetString extracts a string parameter with a default value.
func GetString(params map[string]any, key string, defaultVal string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultVal
}

// GetInt extracts an int parameter with a default value.
func GetInt(params map[string]any, key string, defaultVal int) int {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return defaultVal
}

// GetBool extracts a bool parameter with a default value.
func GetBool(params map[string]any, key string, defaultVal bool) bool {
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// GetFloat extracts a float parameter with a default value.
func GetFloat(params map[string]any, key string, defaultVal float64) float64 {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	return defaultVal
}
