package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/wirdbot/wirdbot/internal/provider"
)

// Context construction bounds. DMs are lower-volume and higher-relevance per
// message, so they get a wider scan window and a larger character budget
// than guild channels.
const (
	replyChainMaxHops = 5
	dmScanLimit       = 300
	guildScanLimit    = 100
	dmCharBudget      = 14000
	guildCharBudget   = 6000
)

// ChannelMessage is one platform message as the context builder sees it.
type ChannelMessage struct {
	ID            string
	AuthorID      string
	AuthorName    string
	Content       string
	ReferenceID   string
	FromBot       bool
	AttachmentURL string
	Timestamp     time.Time
}

// HistoryProvider supplies channel history. Implemented by the Discord
// adapter, the console session store, and test fakes.
type HistoryProvider interface {
	// RecentMessages returns up to limit messages older than beforeID,
	// newest first.
	RecentMessages(ctx context.Context, channelID, beforeID string, limit int) ([]ChannelMessage, error)
	// FetchMessage resolves a single message by ID.
	FetchMessage(ctx context.Context, channelID, messageID string) (*ChannelMessage, error)
}

// ContextBuilder assembles the bounded conversation history for one turn.
type ContextBuilder struct {
	history HistoryProvider
	markers *Markers
}

// NewContextBuilder creates a context builder over a history provider and
// the process-wide pruning markers.
func NewContextBuilder(history HistoryProvider, markers *Markers) *ContextBuilder {
	return &ContextBuilder{history: history, markers: markers}
}

// Build returns the role-tagged history for the trigger message, oldest
// first: recent channel messages under the character budget, then the reply
// chain the trigger hangs off. The trigger itself is not included; the loop
// wraps it separately as the current message.
func (b *ContextBuilder) Build(ctx context.Context, channelID string, trigger *ChannelMessage, isDM bool) ([]provider.Message, error) {
	chain, err := b.replyChain(ctx, channelID, trigger)
	if err != nil {
		return nil, err
	}
	inChain := make(map[string]bool, len(chain))
	for _, m := range chain {
		inChain[m.ID] = true
	}

	budget := guildCharBudget
	scanLimit := guildScanLimit
	if isDM {
		budget = dmCharBudget
		scanLimit = dmScanLimit
	}

	scanned, err := b.history.RecentMessages(ctx, channelID, trigger.ID, scanLimit)
	if err != nil {
		return nil, fmt.Errorf("scan channel history: %w", err)
	}

	marker, hasMarker := b.markers.Marker(channelID)
	var recent []ChannelMessage
	chars := 0
	for _, m := range scanned {
		if hasMarker && snowflakeLE(m.ID, marker) {
			continue
		}
		if inChain[m.ID] || m.ID == trigger.ID {
			continue
		}
		if chars+len(m.Content) > budget {
			break
		}
		chars += len(m.Content)
		recent = append(recent, m)
	}

	// Both lists arrive newest-first; flip to chronological and append the
	// reply chain after the recent scan so it sits closest to the trigger.
	reverse(recent)
	reverse(chain)

	history := make([]provider.Message, 0, len(recent)+len(chain))
	for _, m := range append(recent, chain...) {
		history = append(history, renderHistoryMessage(m))
	}
	return history, nil
}

// replyChain walks the reference chain from the trigger, newest first, up to
// replyChainMaxHops hops. A failed fetch ends the walk silently.
func (b *ContextBuilder) replyChain(ctx context.Context, channelID string, trigger *ChannelMessage) ([]ChannelMessage, error) {
	var chain []ChannelMessage
	cur := trigger
	for i := 0; i < replyChainMaxHops; i++ {
		if cur.ReferenceID == "" {
			break
		}
		ref, err := b.history.FetchMessage(ctx, channelID, cur.ReferenceID)
		if err != nil || ref == nil {
			break
		}
		chain = append(chain, *ref)
		cur = ref
	}
	return chain, nil
}

// renderHistoryMessage tags a platform message with its model role. Bot
// output passes through verbatim so the model never learns to echo a
// speaker prefix; user messages carry name and ID for disambiguation in
// multi-user channels.
func renderHistoryMessage(m ChannelMessage) provider.Message {
	content := m.Content
	if m.AttachmentURL != "" {
		content += fmt.Sprintf("\n[System: Attachment: %s]", m.AttachmentURL)
	}
	if m.FromBot {
		return provider.Message{Role: "model", Content: content}
	}
	return provider.Message{
		Role:    "user",
		Content: fmt.Sprintf("User %s (%s): %s", m.AuthorName, m.AuthorID, content),
	}
}

func reverse(msgs []ChannelMessage) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

// snowflakeLE compares two numeric snowflake IDs. Shorter decimal strings
// are older; equal lengths compare lexicographically.
func snowflakeLE(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a <= b
}
