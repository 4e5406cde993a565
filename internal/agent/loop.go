package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/wirdbot/wirdbot/internal/approval"
	"github.com/wirdbot/wirdbot/internal/bus"
	"github.com/wirdbot/wirdbot/internal/config"
	"github.com/wirdbot/wirdbot/internal/events"
	"github.com/wirdbot/wirdbot/internal/memory"
	"github.com/wirdbot/wirdbot/internal/policy"
	"github.com/wirdbot/wirdbot/internal/provider"
	"github.com/wirdbot/wirdbot/internal/tools"
)

// User-visible notices. These strings are part of the bot's surface; tests
// assert on them, so changes here are behavior changes.
const (
	emptyResponseNotice  = "⚠️ Error: AI response was empty (No candidates)."
	contextFailureNotice = "❌ Error processing request. Check logs."
	checkpointNotice     = "Looks like I've been running for a long time, do you want to keep running?"
	continueNotice       = "🔄 **Continuing execution...**"
	stoppedNotice        = "🛑 **Execution Stopped (User Request).**"
	cancelledNotice      = "❌ **Execution Cancelled by User**"
	expiredNotice        = "⏳ **Proposal expired without review.**"
	proposalHeader       = "🤖 **Code Proposal**\nReview required for server action:"

	thinkingPlaceholder   = "-# 🧠 Thinking (Pro Model)..."
	generatingPlaceholder = "-# ⏳ Generating..."
)

// Model-facing result strings for calls that never ran.
const (
	refusalResult = "User refused the code execution."
	busyResult    = "Error: Another action is already awaiting approval in this channel."
)

const (
	// sessionGap is the quiet period after which the user message gets a
	// stale-context note.
	sessionGap = 6 * time.Hour
	// proposalCodeMax bounds the script shown inline on an approval card.
	proposalCodeMax = 1500
)

// LoopOptions wires the agent loop to its collaborators. Messenger, History
// and the bus normally come from the Discord adapter; the console chat
// command supplies its own.
type LoopOptions struct {
	Config    *config.Config
	Bus       *bus.MessageBus
	Registry  *tools.Registry
	Gate      *policy.Gate
	Broker    *approval.Broker
	Resolve   ProviderResolver
	Messenger Messenger
	History   HistoryProvider
	Markers   *Markers

	// Memory is optional; nil skips profile injection.
	Memory *memory.Service
	// Events is optional; nil publishes nowhere.
	Events events.Publisher
	// Router is optional; built from Resolve and Config when nil.
	Router *Router
}

// Loop consumes inbound messages and drives model turns: routing, context
// assembly, tool dispatch, approval hand-off and budget checkpoints. One
// turn may be active per channel; a newer message from the same author
// interrupts the running one.
type Loop struct {
	cfg       *config.Config
	bus       *bus.MessageBus
	registry  *tools.Registry
	gate      *policy.Gate
	broker    *approval.Broker
	resolve   ProviderResolver
	router    *Router
	messenger Messenger
	history   HistoryProvider
	markers   *Markers
	contexts  *ContextBuilder
	memory    *memory.Service
	events    events.Publisher

	running atomic.Bool

	mu          sync.Mutex
	stop        context.CancelFunc
	active      map[string]*activeTurn
	approvals   map[string]*approvalWait
	checkpoints map[string]*checkpointWait
}

type activeTurn struct {
	authorID string
	cancel   context.CancelFunc
}

// turn is the per-request state threaded through one model conversation.
type turn struct {
	msg     *bus.InboundMessage
	out     *outward
	caller  policy.Caller
	allowed map[string]bool
	inv     *tools.Invocation

	prov     provider.LLMProvider
	model    string // bare model name for requests
	system   string
	messages []provider.Message

	budget  int
	traceID string
}

// approvalWait is a turn parked on a code proposal. consumed and results
// hold the calls already answered from the suspended response; execCall is
// the gated call itself, answered at resolution time.
type approvalWait struct {
	t        *turn
	consumed []provider.ToolCall
	results  []provider.Message
	respText string
	execCall provider.ToolCall
	status   *ToolStatus
	cardID   string
	cardBody string
}

// checkpointWait is a turn parked on the tool budget, holding the model
// response that has not been consumed yet.
type checkpointWait struct {
	t        *turn
	resp     *provider.ChatResponse
	noticeID string
}

// stepResult is what consuming one model response produced.
type stepResult struct {
	text        string // trailing text after the last call part
	consumed    []provider.ToolCall
	results     []provider.Message
	proposed    bool
	interrupted bool
}

// NewLoop builds the loop. Config, Bus, Registry, Gate, Broker, Resolve,
// Messenger, History and Markers are required.
func NewLoop(opts LoopOptions) *Loop {
	router := opts.Router
	if router == nil {
		router = NewRouter(opts.Resolve, opts.Config.Model.Simple, opts.Config.Model.Complex)
	}
	pub := opts.Events
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Loop{
		cfg:         opts.Config,
		bus:         opts.Bus,
		registry:    opts.Registry,
		gate:        opts.Gate,
		broker:      opts.Broker,
		resolve:     opts.Resolve,
		router:      router,
		messenger:   opts.Messenger,
		history:     opts.History,
		markers:     opts.Markers,
		contexts:    NewContextBuilder(opts.History, opts.Markers),
		memory:      opts.Memory,
		events:      pub,
		active:      make(map[string]*activeTurn),
		approvals:   make(map[string]*approvalWait),
		checkpoints: make(map[string]*checkpointWait),
	}
}

// Run consumes the inbound bus until ctx is cancelled or Stop is called.
// Each message runs its turn on its own goroutine so channels do not block
// each other. Stale proposals are reaped once a minute.
func (l *Loop) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	l.mu.Lock()
	l.stop = cancel
	l.mu.Unlock()

	l.running.Store(true)
	defer l.running.Store(false)

	slog.Info("Agent loop started",
		"simpleModel", l.cfg.Model.Simple,
		"complexModel", l.cfg.Model.Complex,
		"maxToolCalls", l.maxToolCalls())

	reap := time.NewTicker(time.Minute)
	defer reap.Stop()
	go func() {
		for {
			select {
			case <-runCtx.Done():
				return
			case <-reap.C:
				l.ReapApprovals(runCtx)
			}
		}
	}()

	for {
		msg, err := l.bus.ConsumeInbound(runCtx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		l.dispatch(runCtx, msg)
	}
}

// Stop cancels Run and every in-flight turn.
func (l *Loop) Stop() {
	l.mu.Lock()
	stop := l.stop
	l.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Running reports whether Run is consuming the bus.
func (l *Loop) Running() bool { return l.running.Load() }

// ProcessDirect runs a single turn synchronously. Used by the console chat
// command, which has no bus consumer.
func (l *Loop) ProcessDirect(ctx context.Context, msg *bus.InboundMessage) error {
	return l.runTurn(ctx, msg)
}

// PendingApproval exposes the channel's parked proposal, if any. The
// adapter uses it to restrict approval buttons to the proposer.
func (l *Loop) PendingApproval(channelID string) (*approval.Pending, bool) {
	return l.broker.Get(channelID)
}

// CheckpointOwner returns who may answer the channel's budget checkpoint.
func (l *Loop) CheckpointOwner(channelID string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := l.checkpoints[channelID]
	if cp == nil {
		return "", false
	}
	return cp.t.msg.AuthorID, true
}

func (l *Loop) dispatch(ctx context.Context, msg *bus.InboundMessage) {
	if l.shouldInterrupt(msg) {
		l.Interrupt(ctx, msg.ChannelID, msg.AuthorName)
	}
	go func() {
		if err := l.runTurn(ctx, msg); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Turn failed", "channel", msg.ChannelID, "error", err)
		}
	}()
}

// shouldInterrupt reports whether msg supersedes work in its channel: the
// author already has a running turn there, or a proposal of theirs is
// awaiting review.
func (l *Loop) shouldInterrupt(msg *bus.InboundMessage) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h := l.active[msg.ChannelID]; h != nil && h.authorID == msg.AuthorID {
		return true
	}
	if w := l.approvals[msg.ChannelID]; w != nil && w.t.msg.AuthorID == msg.AuthorID {
		return true
	}
	return false
}

// Interrupt cancels the channel's running turn and auto-rejects any parked
// proposal. byName is shown on the proposal card. Reports whether anything
// was interrupted.
func (l *Loop) Interrupt(ctx context.Context, channelID, byName string) bool {
	l.mu.Lock()
	h := l.active[channelID]
	l.mu.Unlock()

	interrupted := false
	if h != nil {
		h.cancel()
		interrupted = true
	}

	if p, ok := l.broker.Resolve(channelID); ok {
		l.mu.Lock()
		w := l.approvals[channelID]
		delete(l.approvals, channelID)
		l.mu.Unlock()
		if w != nil {
			l.editCard(ctx, channelID, w, fmt.Sprintf("%s\n\n🛑 **Auto-Rejected: Interrupted by %s**", w.cardBody, byName))
		}
		l.emit(ctx, events.Event{
			Type:          events.TypeApprovalResolved,
			CorrelationID: correlationOf(w),
			SenderID:      p.ProposerID,
			Payload:       map[string]any{"tool": p.ToolName, "approved": false, "resolved_by": byName, "reason": "interrupted"},
		})
		interrupted = true
	}
	return interrupted
}

func correlationOf(w *approvalWait) string {
	if w == nil {
		return ""
	}
	return w.t.traceID
}

// ReapApprovals expires proposals older than the configured max age,
// marking their cards and discarding the parked turns. Returns how many
// were reaped.
func (l *Loop) ReapApprovals(ctx context.Context) int {
	reaped := l.broker.Reap(l.cfg.Agent.ApprovalMaxAge)
	for _, p := range reaped {
		l.mu.Lock()
		w := l.approvals[p.ChannelID]
		delete(l.approvals, p.ChannelID)
		l.mu.Unlock()
		if w != nil {
			l.editCard(ctx, p.ChannelID, w, w.cardBody+"\n\n"+expiredNotice)
		}
		l.emit(ctx, events.Event{
			Type:          events.TypeApprovalResolved,
			CorrelationID: correlationOf(w),
			SenderID:      p.ProposerID,
			Payload:       map[string]any{"tool": p.ToolName, "approved": false, "reason": "timeout"},
		})
		slog.Info("Proposal expired", "channel", p.ChannelID, "tool", p.ToolName)
	}
	return len(reaped)
}

// runTurn drives one inbound message to completion, suspension or failure.
func (l *Loop) runTurn(parent context.Context, msg *bus.InboundMessage) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	h := l.track(msg.ChannelID, msg.AuthorID, cancel)
	defer l.untrack(msg.ChannelID, h)

	traceID := msg.TraceID
	if traceID == "" {
		traceID = uuid.NewString()
	}
	l.emit(ctx, events.Event{
		Type:          events.TypeTurnStarted,
		CorrelationID: traceID,
		SenderID:      msg.AuthorID,
		Payload:       map[string]any{"channel_id": msg.ChannelID, "author": msg.AuthorName, "dm": msg.IsDM},
	})

	if err := l.messenger.Typing(ctx, msg.ChannelID); err != nil {
		slog.Debug("Typing indicator failed", "channel", msg.ChannelID, "error", err)
	}

	caller := policy.Caller{
		UserID:           msg.AuthorID,
		GuildID:          msg.GuildID,
		IsOwner:          msg.IsOwner,
		IsAdmin:          msg.IsAdmin,
		GuildWhitelisted: msg.GuildWhitelisted,
	}
	allowed := l.gate.AllowedNames(l.registry, caller)

	routed, complex := l.router.Pick(ctx, msg.Content)
	placeholder := generatingPlaceholder
	if complex {
		placeholder = thinkingPlaceholder
	}
	out := newOutward(l.messenger, msg.ChannelID, msg.MessageID, placeholder)
	out.start(ctx)

	prov, bare, err := l.resolve(routed)
	if err != nil {
		out.errorOut(ctx, "❌ AI Error: "+err.Error())
		return fmt.Errorf("resolve model %q: %w", routed, err)
	}

	trigger := &ChannelMessage{
		ID:            msg.MessageID,
		AuthorID:      msg.AuthorID,
		AuthorName:    msg.AuthorName,
		Content:       msg.Content,
		ReferenceID:   msg.ReferenceID,
		AttachmentURL: msg.AttachmentURL,
		Timestamp:     msg.Timestamp,
	}
	history, err := l.contexts.Build(ctx, msg.ChannelID, trigger, msg.IsDM)
	if err != nil {
		if ctx.Err() != nil {
			return l.interruptTurnOut(out, traceID, msg)
		}
		slog.Error("Context build failed", "channel", msg.ChannelID, "error", err)
		out.errorOut(ctx, contextFailureNotice)
		return err
	}

	t := &turn{
		msg:     msg,
		out:     out,
		caller:  caller,
		allowed: allowed,
		inv:     l.invocation(msg, routed),
		prov:    prov,
		model:   bare,
		system:  buildSystemPrompt(msg.IsOwner, msg.IsAdmin, msg.GuildWhitelisted),
		traceID: traceID,
	}
	notes := l.contextNotes(ctx, msg)
	t.messages = append(history, provider.Message{Role: "user", Content: buildUserMessage(msg, notes...)})

	resp, err := l.chat(ctx, t)
	if err != nil {
		return l.chatFailed(ctx, t, err)
	}
	return l.iterate(ctx, t, resp)
}

// iterate consumes model responses until the turn finishes, suspends or
// fails. On each fresh response the budget is checked before anything else;
// pending tool calls loop back for another model round.
func (l *Loop) iterate(ctx context.Context, t *turn, resp *provider.ChatResponse) error {
	for {
		if ctx.Err() != nil {
			return l.interruptTurn(t)
		}
		if t.budget >= l.maxToolCalls() {
			return l.suspendCheckpoint(ctx, t, resp)
		}
		if resp.Empty() {
			t.out.errorOut(ctx, emptyResponseNotice)
			l.complete(ctx, t, "empty_response")
			return nil
		}

		step := l.consume(ctx, t, resp)
		if step.interrupted {
			return l.interruptTurn(t)
		}
		if step.proposed {
			return nil // parked in the approval broker
		}
		if len(step.results) == 0 {
			t.out.appendText(ctx, step.text)
			l.complete(ctx, t, "ok")
			return nil
		}

		t.out.appendText(ctx, step.text)
		t.messages = append(t.messages, provider.Message{
			Role:      "model",
			Content:   resp.Text(),
			ToolCalls: step.consumed,
		})
		t.messages = append(t.messages, step.results...)

		next, err := l.chat(ctx, t)
		if err != nil {
			return l.chatFailed(ctx, t, err)
		}
		resp = next
	}
}

// consume walks one response's parts in order: text accumulates, tool calls
// flush it and then run through the permission layers. A confirmation-gated
// call parks the turn and drops any later parts.
func (l *Loop) consume(ctx context.Context, t *turn, resp *provider.ChatResponse) stepResult {
	var step stepResult
	var text strings.Builder

	for _, part := range resp.Parts {
		if part.Call == nil {
			text.WriteString(StripSubtext(part.Text))
			continue
		}
		if ctx.Err() != nil {
			step.interrupted = true
			break
		}

		t.out.appendText(ctx, text.String())
		text.Reset()

		tc := *part.Call
		st := &ToolStatus{Name: tc.Name, Args: tc.Arguments, State: ToolRunning}
		t.out.appendStatus(ctx, st)

		if !t.allowed[tc.Name] {
			l.settleCall(ctx, t, &step, tc, st, policy.DenialMessage(tc.Name, tools.Public), false)
			l.emitTool(ctx, t, events.TypeToolDenied, map[string]any{"tool": tc.Name, "reason": "not in allowed set"})
			continue
		}

		tool, ok := l.registry.Get(tc.Name)
		if !ok {
			l.settleCall(ctx, t, &step, tc, st, fmt.Sprintf("Error: Tool '%s' not found.", tc.Name), false)
			continue
		}

		if dec := l.gate.Check(tool.Requirement(), t.caller); !dec.Allow {
			l.settleCall(ctx, t, &step, tc, st, policy.DenialMessage(tc.Name, tool.Requirement()), false)
			l.emitTool(ctx, t, events.TypeToolDenied, map[string]any{"tool": tc.Name, "reason": dec.Reason})
			continue
		}

		if tool.RequiresConfirmation() {
			if l.propose(ctx, t, &step, resp, tool, tc, st) {
				step.proposed = true
				break
			}
			continue
		}

		started := time.Now()
		res, err := l.runTool(ctx, tool, t.inv, tc)
		if ctx.Err() != nil {
			step.interrupted = true
			break
		}
		if err != nil {
			l.settleCall(ctx, t, &step, tc, st, fmt.Sprintf("Error execution %s: %v", tc.Name, err), false)
			l.emitTool(ctx, t, events.TypeToolExecuted, map[string]any{
				"tool": tc.Name, "ok": false, "error": err.Error(), "duration_ms": time.Since(started).Milliseconds(),
			})
			continue
		}
		l.settleCall(ctx, t, &step, tc, st, res, true)
		l.emitTool(ctx, t, events.TypeToolExecuted, map[string]any{
			"tool": tc.Name, "ok": true, "duration_ms": time.Since(started).Milliseconds(),
		})
	}

	step.text = text.String()
	return step
}

// settleCall records a call's in-band result and counts it against the
// budget. Denials, not-found and execution errors all settle the same way;
// only the status glyph and the result text differ.
func (l *Loop) settleCall(ctx context.Context, t *turn, step *stepResult, tc provider.ToolCall, st *ToolStatus, result string, ok bool) {
	if ok {
		st.State = ToolDone
	} else {
		st.State = ToolFailed
	}
	t.out.refresh(ctx)
	step.consumed = append(step.consumed, tc)
	step.results = append(step.results, provider.Message{Role: "tool", Content: result, ToolCallID: tc.ID})
	t.budget++
}

func (l *Loop) runTool(ctx context.Context, tool tools.Tool, inv *tools.Invocation, tc provider.ToolCall) (string, error) {
	toolCtx, cancel := context.WithTimeout(ctx, l.toolTimeout())
	defer cancel()
	return tool.Execute(toolCtx, inv, tc.Arguments)
}

// propose parks the turn on a code proposal. Returns false when the broker
// already holds one for this channel, in which case a busy result was
// settled in-band and the part walk continues.
func (l *Loop) propose(ctx context.Context, t *turn, step *stepResult, resp *provider.ChatResponse, tool tools.Tool, tc provider.ToolCall, st *ToolStatus) bool {
	code := tools.CleanScript(tools.GetString(tc.Arguments, "code", ""))

	carried := make([]approval.ToolResult, len(step.results))
	for i, r := range step.results {
		carried[i] = approval.ToolResult{Name: step.consumed[i].Name, Content: r.Content}
	}

	pending, err := l.broker.Propose(approval.Pending{
		ChannelID:    t.msg.ChannelID,
		ToolName:     tc.Name,
		Code:         code,
		Carried:      carried,
		ProposerID:   t.msg.AuthorID,
		ProposerName: t.msg.AuthorName,
		Run: func(runCtx context.Context) (string, error) {
			return tool.Execute(runCtx, t.inv, tc.Arguments)
		},
	})
	if err != nil {
		l.settleCall(ctx, t, step, tc, st, busyResult, false)
		return false
	}

	body := proposalCard(code)
	cardID, err := l.messenger.SendWithControls(ctx, t.msg.ChannelID, t.msg.MessageID, body, ControlsApproval)
	if err != nil {
		slog.Warn("Proposal card send failed", "channel", t.msg.ChannelID, "error", err)
	}

	l.mu.Lock()
	l.approvals[t.msg.ChannelID] = &approvalWait{
		t:        t,
		consumed: append(append([]provider.ToolCall(nil), step.consumed...), tc),
		results:  append([]provider.Message(nil), step.results...),
		respText: resp.Text(),
		execCall: tc,
		status:   st,
		cardID:   cardID,
		cardBody: body,
	}
	l.mu.Unlock()

	l.emit(ctx, events.Event{
		Type:          events.TypeApprovalProposed,
		CorrelationID: t.traceID,
		SenderID:      t.msg.AuthorID,
		Payload:       map[string]any{"tool": tc.Name, "proposer": t.msg.AuthorName, "pending_id": pending.ID},
	})
	return true
}

// Resolve answers the channel's parked proposal. Approval runs the script
// under the proposer's capability; rejection feeds a refusal back to the
// model. Either way the turn resumes with a fresh tool budget, carrying the
// results settled before the proposal.
func (l *Loop) Resolve(ctx context.Context, channelID string, approved bool, resolvedBy string) error {
	p, ok := l.broker.Resolve(channelID)
	if !ok {
		return fmt.Errorf("no pending approval for channel %s", channelID)
	}
	l.mu.Lock()
	w := l.approvals[channelID]
	delete(l.approvals, channelID)
	l.mu.Unlock()

	l.emit(ctx, events.Event{
		Type:          events.TypeApprovalResolved,
		CorrelationID: correlationOf(w),
		SenderID:      p.ProposerID,
		Payload:       map[string]any{"tool": p.ToolName, "approved": approved, "resolved_by": resolvedBy},
	})
	if w == nil {
		return fmt.Errorf("approval state for channel %s was lost", channelID)
	}

	var result string
	if approved {
		started := time.Now()
		res, err := l.runApproved(ctx, p)
		if err != nil {
			result = fmt.Sprintf("Error execution %s: %v", p.ToolName, err)
			w.status.State = ToolFailed
		} else {
			result = res
			w.status.State = ToolDone
		}
		l.editCard(ctx, channelID, w, cardWithOutput(w.cardBody, result))
		l.emitTool(ctx, w.t, events.TypeToolExecuted, map[string]any{
			"tool": p.ToolName, "ok": err == nil, "approved": true, "duration_ms": time.Since(started).Milliseconds(),
		})
	} else {
		result = refusalResult
		w.status.State = ToolFailed
		l.editCard(ctx, channelID, w, w.cardBody+"\n\n"+cancelledNotice)
	}
	w.t.out.refresh(ctx)

	w.t.messages = append(w.t.messages, provider.Message{
		Role:      "model",
		Content:   w.respText,
		ToolCalls: w.consumed,
	})
	w.t.messages = append(w.t.messages, w.results...)
	w.t.messages = append(w.t.messages, provider.Message{Role: "tool", Content: result, ToolCallID: w.execCall.ID})
	w.t.budget = 0

	return l.resume(ctx, w.t, nil)
}

func (l *Loop) runApproved(ctx context.Context, p *approval.Pending) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, l.toolTimeout())
	defer cancel()
	return p.Run(runCtx)
}

// suspendCheckpoint parks the turn with its unconsumed response and asks
// whether to keep going.
func (l *Loop) suspendCheckpoint(ctx context.Context, t *turn, resp *provider.ChatResponse) error {
	noticeID, err := l.messenger.SendWithControls(ctx, t.msg.ChannelID, t.msg.MessageID, checkpointNotice, ControlsCheckpoint)
	if err != nil {
		slog.Warn("Checkpoint notice send failed", "channel", t.msg.ChannelID, "error", err)
	}
	l.mu.Lock()
	l.checkpoints[t.msg.ChannelID] = &checkpointWait{t: t, resp: resp, noticeID: noticeID}
	l.mu.Unlock()
	l.emit(ctx, events.Event{
		Type:          events.TypeBudgetCheckpoint,
		CorrelationID: t.traceID,
		SenderID:      t.msg.AuthorID,
		Payload:       map[string]any{"channel_id": t.msg.ChannelID, "tool_calls": t.budget},
	})
	return nil
}

// Continue resumes the channel's checkpointed turn with a fresh budget. The
// parked response is consumed next, not re-requested.
func (l *Loop) Continue(ctx context.Context, channelID string) error {
	l.mu.Lock()
	cp := l.checkpoints[channelID]
	delete(l.checkpoints, channelID)
	l.mu.Unlock()
	if cp == nil {
		return fmt.Errorf("no pending checkpoint for channel %s", channelID)
	}
	if cp.noticeID != "" {
		if err := l.messenger.Edit(ctx, channelID, cp.noticeID, continueNotice); err != nil {
			slog.Warn("Checkpoint edit failed", "channel", channelID, "error", err)
		}
	}
	cp.t.budget = 0
	return l.resume(ctx, cp.t, cp.resp)
}

// Halt discards the channel's checkpointed turn.
func (l *Loop) Halt(ctx context.Context, channelID string) error {
	l.mu.Lock()
	cp := l.checkpoints[channelID]
	delete(l.checkpoints, channelID)
	l.mu.Unlock()
	if cp == nil {
		return fmt.Errorf("no pending checkpoint for channel %s", channelID)
	}
	if cp.noticeID != "" {
		if err := l.messenger.Edit(ctx, channelID, cp.noticeID, stoppedNotice); err != nil {
			slog.Warn("Checkpoint edit failed", "channel", channelID, "error", err)
		}
	}
	l.complete(ctx, cp.t, "stopped")
	return nil
}

// resume re-registers the turn as active and keeps iterating. A nil resp
// means the next model round has not been requested yet.
func (l *Loop) resume(parent context.Context, t *turn, resp *provider.ChatResponse) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	h := l.track(t.msg.ChannelID, t.msg.AuthorID, cancel)
	defer l.untrack(t.msg.ChannelID, h)

	if resp == nil {
		var err error
		resp, err = l.chat(ctx, t)
		if err != nil {
			return l.chatFailed(ctx, t, err)
		}
	}
	return l.iterate(ctx, t, resp)
}

func (l *Loop) chat(ctx context.Context, t *turn) (*provider.ChatResponse, error) {
	return t.prov.Chat(ctx, &provider.ChatRequest{
		Model:       t.model,
		System:      t.system,
		Messages:    t.messages,
		Tools:       l.registry.Specs(t.allowed),
		MaxTokens:   l.cfg.Model.MaxTokens,
		Temperature: l.cfg.Model.Temperature,
	})
}

// chatFailed maps a model call error to its user-visible outcome.
func (l *Loop) chatFailed(ctx context.Context, t *turn, err error) error {
	if ctx.Err() != nil {
		return l.interruptTurn(t)
	}
	if errors.Is(err, provider.ErrEmptyResponse) {
		t.out.errorOut(ctx, emptyResponseNotice)
		l.complete(ctx, t, "empty_response")
		return nil
	}
	slog.Error("Model call failed", "model", t.model, "error", err)
	t.out.errorOut(ctx, "❌ AI Error: "+err.Error())
	return err
}

func (l *Loop) interruptTurn(t *turn) error {
	return l.interruptTurnOut(t.out, t.traceID, t.msg)
}

func (l *Loop) interruptTurnOut(out *outward, traceID string, msg *bus.InboundMessage) error {
	bg := context.Background()
	out.interrupted(bg)
	l.emit(bg, events.Event{
		Type:          events.TypeTurnCompleted,
		CorrelationID: traceID,
		SenderID:      msg.AuthorID,
		Payload:       map[string]any{"channel_id": msg.ChannelID, "outcome": "interrupted"},
	})
	return context.Canceled
}

func (l *Loop) complete(ctx context.Context, t *turn, outcome string) {
	l.emit(ctx, events.Event{
		Type:          events.TypeTurnCompleted,
		CorrelationID: t.traceID,
		SenderID:      t.msg.AuthorID,
		Payload:       map[string]any{"channel_id": t.msg.ChannelID, "outcome": outcome, "tool_calls": t.budget},
	})
}

// contextNotes assembles the system notes attached to the user message:
// a stale-context hint after a long quiet period, then memory blocks for
// the author and anyone they mention.
func (l *Loop) contextNotes(ctx context.Context, msg *bus.InboundMessage) []string {
	var notes []string

	if !msg.Timestamp.IsZero() {
		prev, err := l.history.RecentMessages(ctx, msg.ChannelID, msg.MessageID, 1)
		if err == nil && len(prev) > 0 && !prev[0].Timestamp.IsZero() &&
			msg.Timestamp.Sub(prev[0].Timestamp) > sessionGap {
			notes = append(notes, timeGapNote)
		}
	}

	if l.memory == nil {
		return notes
	}
	seen := map[string]bool{msg.AuthorID: true}
	if block, err := l.memory.InjectionBlock(ctx, msg.AuthorID, msg.AuthorName); err != nil {
		slog.Warn("Memory lookup failed", "user", msg.AuthorID, "error", err)
	} else if block != "" {
		notes = append(notes, block)
	}
	for _, m := range msg.Mentions {
		if seen[m.UserID] {
			continue
		}
		seen[m.UserID] = true
		if block, err := l.memory.InjectionBlock(ctx, m.UserID, m.DisplayName); err == nil && block != "" {
			notes = append(notes, block)
		}
	}
	return notes
}

// invocation builds the tool execution context for the caller. Owners get
// full access; everyone else is confined to the guild workspace.
func (l *Loop) invocation(msg *bus.InboundMessage, model string) *tools.Invocation {
	var capability tools.Capability
	if msg.IsOwner {
		capability = tools.NewFullAccess(l.cfg.Agent.Workspace)
	} else {
		capability = tools.NewGuildScoped(l.cfg.Agent.Workspace)
	}
	return &tools.Invocation{
		CallerID:         msg.AuthorID,
		CallerName:       msg.AuthorName,
		ChannelID:        msg.ChannelID,
		MessageID:        msg.MessageID,
		GuildID:          msg.GuildID,
		IsOwner:          msg.IsOwner,
		IsAdmin:          msg.IsAdmin,
		GuildWhitelisted: msg.GuildWhitelisted,
		Model:            model,
		Capability:       capability,
	}
}

func (l *Loop) track(channelID, authorID string, cancel context.CancelFunc) *activeTurn {
	h := &activeTurn{authorID: authorID, cancel: cancel}
	l.mu.Lock()
	l.active[channelID] = h
	l.mu.Unlock()
	return h
}

// untrack removes the registration only if it is still h's; a concurrent
// turn in the same channel may have replaced it.
func (l *Loop) untrack(channelID string, h *activeTurn) {
	l.mu.Lock()
	if l.active[channelID] == h {
		delete(l.active, channelID)
	}
	l.mu.Unlock()
}

func (l *Loop) maxToolCalls() int {
	if l.cfg.Agent.MaxToolCalls > 0 {
		return l.cfg.Agent.MaxToolCalls
	}
	return 10
}

func (l *Loop) toolTimeout() time.Duration {
	if l.cfg.Agent.ToolTimeout > 0 {
		return l.cfg.Agent.ToolTimeout
	}
	return 60 * time.Second
}

func (l *Loop) emit(ctx context.Context, ev events.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if err := l.events.Publish(ctx, ev); err != nil {
		slog.Debug("Event publish failed", "type", ev.Type, "error", err)
	}
}

func (l *Loop) emitTool(ctx context.Context, t *turn, typ string, payload map[string]any) {
	payload["channel_id"] = t.msg.ChannelID
	l.emit(ctx, events.Event{
		Type:          typ,
		CorrelationID: t.traceID,
		SenderID:      t.msg.AuthorID,
		Payload:       payload,
	})
}

func (l *Loop) editCard(ctx context.Context, channelID string, w *approvalWait, content string) {
	if w.cardID == "" {
		return
	}
	if err := l.messenger.Edit(ctx, channelID, w.cardID, cutBytes(content, messageCeiling)); err != nil {
		slog.Warn("Proposal card edit failed", "channel", channelID, "error", err)
	}
}

// proposalCard renders the approval card body. Oversized scripts are
// summarized instead of flooding the channel.
func proposalCard(code string) string {
	if len(code) > proposalCodeMax {
		return fmt.Sprintf("%s\n*(script of %d characters — too long to display inline)*", proposalHeader, len(code))
	}
	return fmt.Sprintf("%s\n```sh\n%s\n```", proposalHeader, code)
}

// cardWithOutput appends an executed script's output to its card, trimmed
// to fit the platform message ceiling.
func cardWithOutput(body, output string) string {
	if strings.TrimSpace(output) == "" {
		output = "(no output)"
	}
	const head = "\n\n**Output:**\n```\n"
	const tail = "\n```"
	avail := messageCeiling - len(body) - len(head) - len(tail)
	if avail <= 0 {
		return body + "\n\n**Output:** *(too long to display)*"
	}
	return body + head + cutBytes(output, avail) + tail
}

// cutBytes truncates s to at most n bytes without splitting a rune.
func cutBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
