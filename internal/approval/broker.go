// Package approval provides the human approval gate for confirmation-gated
// tool calls.
package approval

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrPendingExists is returned by Propose while another proposal occupies
// the channel slot. The loop surfaces it to the model as an in-band busy
// result.
var ErrPendingExists = errors.New("a proposal is already awaiting approval in this channel")

// ToolResult is a completed tool call carried alongside a proposal. When a
// model response mixes ordinary calls with a confirmation-gated one, the
// ordinary results wait here until the human decides.
type ToolResult struct {
	Name    string
	Content string
}

// Pending is one proposed script awaiting a human decision. The lifecycle
// is Proposed → Accepted | Rejected; both outcomes remove it from the
// broker and are terminal.
type Pending struct {
	ID           string
	ChannelID    string
	ToolName     string
	Code         string
	Carried      []ToolResult
	ProposerID   string
	ProposerName string
	CreatedAt    time.Time

	// Run executes the approved script under the proposer's capability.
	// The loop builds this closure at proposal time; the broker itself
	// never calls it.
	Run func(ctx context.Context) (string, error)
}

// Age reports how long the proposal has been waiting.
func (p *Pending) Age() time.Duration {
	return time.Since(p.CreatedAt)
}

// Broker holds at most one pending proposal per channel. All methods are
// safe for concurrent use.
type Broker struct {
	mu      sync.Mutex
	pending map[string]*Pending // keyed by channel ID
}

// NewBroker creates an empty approval broker.
func NewBroker() *Broker {
	return &Broker{
		pending: make(map[string]*Pending),
	}
}

// Propose registers a proposal for its channel. It assigns the ID and
// creation time and returns the stored copy, or ErrPendingExists while the
// channel slot is taken.
func (b *Broker) Propose(p Pending) (*Pending, error) {
	if p.ChannelID == "" {
		return nil, errors.New("proposal requires a channel")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.pending[p.ChannelID]; exists {
		return nil, ErrPendingExists
	}

	p.ID = newProposalID()
	p.CreatedAt = time.Now()
	stored := p
	b.pending[p.ChannelID] = &stored
	return &stored, nil
}

// Get returns the pending proposal for a channel without removing it.
func (b *Broker) Get(channelID string) (*Pending, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pending[channelID]
	return p, ok
}

// Resolve removes and returns the channel's pending proposal. Accept,
// reject, and interruption paths all come through here, so a decision can
// only ever be delivered once.
func (b *Broker) Resolve(channelID string) (*Pending, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pending[channelID]
	if ok {
		delete(b.pending, channelID)
	}
	return p, ok
}

// Reap removes and returns proposals older than maxAge. The serve loop
// calls this periodically and announces the timed-out proposals.
func (b *Broker) Reap(maxAge time.Duration) []Pending {
	b.mu.Lock()
	defer b.mu.Unlock()

	var reaped []Pending
	for channelID, p := range b.pending {
		if time.Since(p.CreatedAt) >= maxAge {
			reaped = append(reaped, *p)
			delete(b.pending, channelID)
		}
	}
	return reaped
}

// Len reports how many proposals are pending across all channels.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func newProposalID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err == nil {
		return hex.EncodeToString(buf[:])
	}
	return fmt.Sprintf("prop-%d", time.Now().UnixNano())
}
