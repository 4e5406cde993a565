// Package provider implements chat model provider clients.
package provider

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyResponse is returned when the API answers successfully but carries
// no candidates or parts. Callers treat this differently from transport
// failures: the user sees an "empty response" notice instead of an API error.
var ErrEmptyResponse = errors.New("model returned an empty response")

// LLMProvider is the interface for chat model API clients.
type LLMProvider interface {
	// Chat sends a completion request and returns the response.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	// DefaultModel returns the configured default model.
	DefaultModel() string
}

// ChatRequest contains the parameters for a chat completion request.
type ChatRequest struct {
	Model       string
	System      string
	Messages    []Message
	Tools       []ToolDefinition
	MaxTokens   int
	Temperature float64
}

// Message represents a chat message.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall represents a tool call from the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolDefinition defines a tool that can be called by the model.
type ToolDefinition struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef describes a function that can be called.
type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Part is one ordered element of a model response. Exactly one of Text or
// Call is set. Order matters: the turn loop consumes parts in the order the
// model emitted them, so text written before a tool call flushes before the
// call executes.
type Part struct {
	Text string
	Call *ToolCall
}

// ChatResponse contains the response from a chat completion request.
type ChatResponse struct {
	Parts        []Part
	FinishReason string
	Usage        Usage
}

// Text returns all text parts joined in order.
func (r *ChatResponse) Text() string {
	var b strings.Builder
	for _, p := range r.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// Calls returns all tool-call parts in order.
func (r *ChatResponse) Calls() []ToolCall {
	var calls []ToolCall
	for _, p := range r.Parts {
		if p.Call != nil {
			calls = append(calls, *p.Call)
		}
	}
	return calls
}

// Empty reports whether the response carries neither text nor tool calls.
func (r *ChatResponse) Empty() bool {
	for _, p := range r.Parts {
		if p.Call != nil || strings.TrimSpace(p.Text) != "" {
			return false
		}
	}
	return true
}

// Usage contains token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
