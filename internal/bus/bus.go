// Package bus provides the async message bus between channel adapters and
// the agent loop.
package bus

import (
	"context"
	"sync"
	"time"
)

// Mention is a user referenced in a triggering message, kept for memory
// injection into the system prompt.
type Mention struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// InboundMessage is one triggering message from a channel adapter: a mention
// of the bot, a reply to it, or a DM. The adapter resolves the caller's role
// flags before publishing so the loop never talks to the platform for
// permissions.
type InboundMessage struct {
	Channel          string    `json:"channel"`
	MessageID        string    `json:"message_id"`
	ChannelID        string    `json:"channel_id"`
	GuildID          string    `json:"guild_id,omitempty"`
	AuthorID         string    `json:"author_id"`
	AuthorName       string    `json:"author_name"`
	Content          string    `json:"content"`
	ReferenceID      string    `json:"reference_id,omitempty"`
	AttachmentURL    string    `json:"attachment_url,omitempty"`
	Mentions         []Mention `json:"mentions,omitempty"`
	IsDM             bool      `json:"is_dm"`
	IsOwner          bool      `json:"is_owner"`
	IsAdmin          bool      `json:"is_admin"`
	GuildWhitelisted bool      `json:"guild_whitelisted"`
	TraceID          string    `json:"trace_id"`
	Timestamp        time.Time `json:"timestamp"`
}

// OutboundMessage is a plain send from a non-turn producer (scheduler,
// notices) to a channel. Turn output goes through the loop's Messenger
// instead, which supports edits.
type OutboundMessage struct {
	Channel   string `json:"channel"`
	ChannelID string `json:"channel_id"`
	ReplyToID string `json:"reply_to_id,omitempty"`
	Content   string `json:"content"`
}

// MessageBus decouples channel adapters from the agent core.
type MessageBus struct {
	inbound  chan *InboundMessage
	outbound chan *OutboundMessage
	subs     map[string][]func(*OutboundMessage)
	mu       sync.RWMutex
}

// NewMessageBus creates a new message bus.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:  make(chan *InboundMessage, 100),
		outbound: make(chan *OutboundMessage, 100),
		subs:     make(map[string][]func(*OutboundMessage)),
	}
}

// PublishInbound sends a message from a channel adapter to the agent.
func (b *MessageBus) PublishInbound(msg *InboundMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	b.inbound <- msg
}

// ConsumeInbound blocks until a message is available or the context is
// cancelled.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (*InboundMessage, error) {
	select {
	case msg := <-b.inbound:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PublishOutbound sends a message from the core to channel adapters.
func (b *MessageBus) PublishOutbound(msg *OutboundMessage) {
	b.outbound <- msg
}

// Subscribe registers a callback for outbound messages to a specific channel.
func (b *MessageBus) Subscribe(channel string, callback func(*OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs[channel] = append(b.subs[channel], callback)
}

// DispatchOutbound runs the outbound message dispatcher.
// This should be run as a goroutine.
func (b *MessageBus) DispatchOutbound(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-b.outbound:
			b.mu.RLock()
			callbacks := b.subs[msg.Channel]
			b.mu.RUnlock()

			for _, cb := range callbacks {
				cb(msg)
			}
		}
	}
}

// InboundSize returns the number of pending inbound messages.
func (b *MessageBus) InboundSize() int {
	return len(b.inbound)
}

// OutboundSize returns the number of pending outbound messages.
func (b *MessageBus) OutboundSize() int {
	return len(b.outbound)
}
