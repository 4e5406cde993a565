// Package policy provides tool invocation authorization.
package policy

import (
	"fmt"

	"github.com/wirdbot/wirdbot/internal/tools"
)

// Caller holds the identity flags a permission check runs against. The
// Discord adapter resolves them once per inbound message.
type Caller struct {
	UserID           string
	GuildID          string // empty in DMs
	IsOwner          bool
	IsAdmin          bool
	GuildWhitelisted bool
}

// Decision is the result of a gate check. Reason is a short machine token
// for logs and audit events; user-facing denial text comes from
// DenialMessage.
type Decision struct {
	Allow  bool
	Reason string
}

// Gate is the canonical authority on who may invoke which tool. The
// per-turn allowed set sent to the model derives from the same table, so a
// hallucinated restricted call still gets denied here.
type Gate struct{}

// NewGate creates the permission gate.
func NewGate() *Gate { return &Gate{} }

// Check applies the requirement table to the caller.
func (g *Gate) Check(req tools.Requirement, c Caller) Decision {
	switch req {
	case tools.Public:
		return Decision{Allow: true, Reason: "public"}

	case tools.OwnerOnly:
		if c.IsOwner {
			return Decision{Allow: true, Reason: "owner"}
		}
		return Decision{Allow: false, Reason: "owner_required"}

	case tools.AdminOrOwner:
		if c.IsOwner {
			return Decision{Allow: true, Reason: "owner"}
		}
		if c.IsAdmin {
			return Decision{Allow: true, Reason: "admin"}
		}
		return Decision{Allow: false, Reason: "admin_required"}

	case tools.AdminOrOwnerWhitelistedGuild:
		if c.IsOwner {
			return Decision{Allow: true, Reason: "owner"}
		}
		if c.IsAdmin && c.GuildWhitelisted {
			return Decision{Allow: true, Reason: "whitelisted_admin"}
		}
		if c.IsAdmin {
			return Decision{Allow: false, Reason: "guild_not_whitelisted"}
		}
		return Decision{Allow: false, Reason: "admin_required"}

	default:
		return Decision{Allow: false, Reason: fmt.Sprintf("unknown_requirement_%d", int(req))}
	}
}

// AllowedNames returns the set of tool names the caller may use this turn.
// This is what the model sees as its tool list; it is derived from the same
// table Check applies, never maintained separately.
func (g *Gate) AllowedNames(reg *tools.Registry, c Caller) map[string]bool {
	allowed := make(map[string]bool)
	for _, tool := range reg.List() {
		if g.Check(tool.Requirement(), c).Allow {
			allowed[tool.Name()] = true
		}
	}
	return allowed
}

// DenialMessage renders the in-band tool result for a denied call. The
// whitelist-gated requirement names its unlock path; everything else gets
// the generic text.
func DenialMessage(toolName string, req tools.Requirement) string {
	if req == tools.AdminOrOwnerWhitelistedGuild {
		return fmt.Sprintf("❌ Permission Denied: %s requires Bot Owner, or Server Admin in a whitelisted guild.", toolName)
	}
	return fmt.Sprintf("❌ Permission Denied: Tool '%s' is not available to you.", toolName)
}
