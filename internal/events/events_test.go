package events

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestChannelPublisherDelivers(t *testing.T) {
	p := NewChannelPublisher(4)
	ev := Event{
		Type:          TypeToolExecuted,
		CorrelationID: "corr-1",
		SenderID:      "user-1",
		Timestamp:     time.Now(),
		Payload:       map[string]any{"tool": "get_my_stats"},
	}
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-p.Events:
		if got.Type != TypeToolExecuted || got.CorrelationID != "corr-1" {
			t.Errorf("unexpected event: %+v", got)
		}
	default:
		t.Fatal("no event delivered")
	}
}

func TestChannelPublisherDropsWhenFull(t *testing.T) {
	p := NewChannelPublisher(1)
	ctx := context.Background()
	if err := p.Publish(ctx, Event{Type: TypeTurnStarted}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	// Buffer is full now; a second publish must not block.
	done := make(chan struct{})
	go func() {
		p.Publish(ctx, Event{Type: TypeTurnCompleted})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full channel")
	}
}

func TestFormatLine(t *testing.T) {
	raw := []byte(`{"type":"tool.denied","correlation_id":"c","sender_id":"u-9","timestamp":"2026-01-02T10:00:00Z","payload":{"tool":"set_bot_presence","reason":"owner_required"}}`)
	line := FormatLine(raw)
	for _, want := range []string{"tool.denied", "sender=u-9", "tool=set_bot_presence", "reason=owner_required"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}

	if got := FormatLine([]byte("not-json")); got != "not-json" {
		t.Errorf("malformed record should print raw, got %q", got)
	}
}
