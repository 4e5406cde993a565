// Package events publishes audit events for agent activity.
package events

import (
	"context"
	"time"
)

// Event types emitted by the agent loop and approval flow.
const (
	TypeTurnStarted      = "turn.started"
	TypeTurnCompleted    = "turn.completed"
	TypeToolExecuted     = "tool.executed"
	TypeToolDenied       = "tool.denied"
	TypeApprovalProposed = "approval.proposed"
	TypeApprovalResolved = "approval.resolved"
	TypeBudgetCheckpoint = "budget.checkpoint"
)

// Event is one audit record. CorrelationID ties every event of a turn
// together; SenderID is the Discord user that triggered it.
type Event struct {
	Type          string         `json:"type"`
	CorrelationID string         `json:"correlation_id"`
	SenderID      string         `json:"sender_id,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	Payload       map[string]any `json:"payload,omitempty"`
}

// Publisher delivers audit events to a sink.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher drops every event. Used when events are disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// ChannelPublisher delivers events to an in-process channel. Tests consume
// from Events to assert on what the loop emitted.
type ChannelPublisher struct {
	Events chan Event
}

// NewChannelPublisher creates a ChannelPublisher with the given buffer size.
func NewChannelPublisher(buffer int) *ChannelPublisher {
	return &ChannelPublisher{Events: make(chan Event, buffer)}
}

func (p *ChannelPublisher) Publish(_ context.Context, ev Event) error {
	select {
	case p.Events <- ev:
	default:
	}
	return nil
}

func (p *ChannelPublisher) Close() error { return nil }
