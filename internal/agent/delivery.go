package agent

import (
	"context"
	"log/slog"
	"strings"
)

// Controls selects the interactive buttons attached to a loop-sent message.
type Controls int

const (
	// ControlsNone sends a plain message.
	ControlsNone Controls = iota
	// ControlsApproval attaches Approve/Reject buttons routed to Resolve.
	ControlsApproval
	// ControlsCheckpoint attaches Continue/Stop buttons routed to
	// Continue and Halt.
	ControlsCheckpoint
)

// Messenger is the outward message surface the loop writes through.
// Implemented by the Discord adapter and the console chat frontend.
type Messenger interface {
	// Send posts a new message, replying to replyToID when non-empty, and
	// returns the new message's ID.
	Send(ctx context.Context, channelID, replyToID, content string) (string, error)
	// SendWithControls posts a message carrying interactive controls.
	SendWithControls(ctx context.Context, channelID, replyToID, content string, controls Controls) (string, error)
	// Edit replaces an existing message's content.
	Edit(ctx context.Context, channelID, messageID, content string) error
	// Typing signals activity in a channel. Best effort.
	Typing(ctx context.Context, channelID string) error
}

// outBlock is one unit of outward content: either flushed text or a status
// entry that re-renders as its state changes.
type outBlock struct {
	text   string
	status *ToolStatus
}

// outward is the single evolving reply a turn edits as it progresses. Once
// the composed content would cross the platform ceiling the current message
// freezes and a fresh message becomes the edit target.
type outward struct {
	m           Messenger
	channelID   string
	replyToID   string
	msgID       string
	blocks      []outBlock
	placeholder string
}

func newOutward(m Messenger, channelID, replyToID, placeholder string) *outward {
	return &outward{m: m, channelID: channelID, replyToID: replyToID, placeholder: placeholder}
}

// start posts the placeholder status message that anchors the turn's output.
func (o *outward) start(ctx context.Context) {
	if o.placeholder == "" {
		return
	}
	id, err := o.m.Send(ctx, o.channelID, o.replyToID, o.placeholder)
	if err != nil {
		slog.Warn("Outward placeholder send failed", "channel", o.channelID, "error", err)
		return
	}
	o.msgID = id
}

// render composes the current message from its blocks. Consecutive status
// entries render as one condensed group of subtext lines.
func (o *outward) render() string {
	if len(o.blocks) == 0 {
		return o.placeholder
	}
	var parts []string
	var group []*ToolStatus
	flush := func() {
		if len(group) > 0 {
			parts = append(parts, renderStatuses(group))
			group = nil
		}
	}
	for _, b := range o.blocks {
		if b.status != nil {
			group = append(group, b.status)
			continue
		}
		flush()
		parts = append(parts, b.text)
	}
	flush()
	return strings.Join(parts, "\n")
}

// put appends a block, editing the current message in place when the
// composed content still fits, otherwise freezing it and starting a new
// message that contains only the appended block.
func (o *outward) put(ctx context.Context, b outBlock) {
	withBlock := append(o.blocks, b)
	candidate := composeBlocks(withBlock)
	if o.msgID != "" && len(candidate) < messageCeiling {
		if err := o.m.Edit(ctx, o.channelID, o.msgID, candidate); err == nil {
			o.blocks = withBlock
			return
		}
	}
	o.startNew(ctx, b)
}

func composeBlocks(blocks []outBlock) string {
	tmp := outward{blocks: blocks}
	return tmp.render()
}

func (o *outward) startNew(ctx context.Context, b outBlock) {
	o.blocks = []outBlock{b}
	id, err := o.m.Send(ctx, o.channelID, o.replyToID, o.render())
	if err != nil {
		slog.Warn("Outward send failed", "channel", o.channelID, "error", err)
		o.msgID = ""
		return
	}
	o.msgID = id
}

// appendText flushes accumulated model text, splitting chunks that exceed
// the platform ceiling on a line boundary near the limit.
func (o *outward) appendText(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	for _, chunk := range SplitText(text, splitLimit) {
		o.put(ctx, outBlock{text: chunk})
	}
}

// appendStatus adds a tool status entry to the outward message.
func (o *outward) appendStatus(ctx context.Context, st *ToolStatus) {
	o.put(ctx, outBlock{status: st})
}

// refresh re-renders the current message after a status entry mutated.
func (o *outward) refresh(ctx context.Context) {
	if o.msgID == "" {
		return
	}
	if err := o.m.Edit(ctx, o.channelID, o.msgID, o.render()); err != nil {
		slog.Warn("Outward status refresh failed", "channel", o.channelID, "error", err)
	}
}

// errorOut surfaces a terminal error, replacing the outward message when one
// exists and sending a fresh reply otherwise.
func (o *outward) errorOut(ctx context.Context, text string) {
	o.blocks = []outBlock{{text: text}}
	if o.msgID != "" {
		if err := o.m.Edit(ctx, o.channelID, o.msgID, text); err == nil {
			return
		}
	}
	id, err := o.m.Send(ctx, o.channelID, o.replyToID, text)
	if err != nil {
		slog.Warn("Outward error send failed", "channel", o.channelID, "error", err)
		return
	}
	o.msgID = id
}

// interrupted appends the interruption marker. Best effort: the turn is
// already being torn down.
func (o *outward) interrupted(ctx context.Context) {
	if o.msgID == "" {
		return
	}
	content := o.render() + " [Interrupted 🛑]"
	if len(content) > messageCeiling {
		content = content[:messageCeiling]
	}
	if err := o.m.Edit(ctx, o.channelID, o.msgID, content); err != nil {
		slog.Warn("Interrupted marker edit failed", "channel", o.channelID, "error", err)
	}
}
