// Package channels bridges chat platforms to the message bus. Discord is
// the only outward surface; the console chat command talks to the loop
// directly.
package channels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/wirdbot/wirdbot/internal/agent"
	"github.com/wirdbot/wirdbot/internal/approval"
	"github.com/wirdbot/wirdbot/internal/bus"
	"github.com/wirdbot/wirdbot/internal/config"
	"github.com/wirdbot/wirdbot/internal/store"
)

// Component custom IDs for the loop's interactive controls.
const (
	customIDApprove  = "wird_approve"
	customIDReject   = "wird_reject"
	customIDContinue = "wird_continue"
	customIDStop     = "wird_stop"
)

// messageSplitLimit is where bus-sourced messages are split; the loop's own
// output arrives pre-split.
const messageSplitLimit = 1900

// restAPI is the slice of the discordgo session the adapter calls. Tests
// substitute a scripted fake.
type restAPI interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)
	UpdateCustomStatus(state string) error
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// turnControl is the part of the agent loop the button handlers drive.
type turnControl interface {
	PendingApproval(channelID string) (*approval.Pending, bool)
	CheckpointOwner(channelID string) (string, bool)
	Resolve(ctx context.Context, channelID string, approved bool, resolvedBy string) error
	Continue(ctx context.Context, channelID string) error
	Halt(ctx context.Context, channelID string) error
}

// DiscordChannel connects the gateway to the bus and implements the loop's
// Messenger and HistoryProvider plus the presence tool's setter.
type DiscordChannel struct {
	cfg     config.DiscordConfig
	bus     *bus.MessageBus
	store   *store.Store
	session *discordgo.Session
	api     restAPI
	loop    turnControl

	mu    sync.RWMutex
	botID string

	presenceMu    sync.Mutex
	presenceTimer *time.Timer
}

// New creates the adapter. The gateway is not opened until Start.
func New(cfg config.DiscordConfig, b *bus.MessageBus, st *store.Store) (*DiscordChannel, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("discord token is empty")
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentDirectMessages |
		discordgo.IntentMessageContent

	return &DiscordChannel{cfg: cfg, bus: b, store: st, session: session, api: session}, nil
}

// Name returns the bus channel name.
func (c *DiscordChannel) Name() string { return "discord" }

// AttachLoop wires the loop in after construction; the loop itself needs
// this adapter as its Messenger, so neither can be built first with the
// other in hand.
func (c *DiscordChannel) AttachLoop(tc turnControl) { c.loop = tc }

// Start opens the gateway and begins consuming outbound bus messages.
func (c *DiscordChannel) Start() error {
	c.session.AddHandler(c.onReady)
	c.session.AddHandler(c.onMessageCreate)
	c.session.AddHandler(c.onInteractionCreate)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	if u := c.session.State.User; u != nil {
		c.setBotID(u.ID)
	}
	c.bus.Subscribe(c.Name(), func(m *bus.OutboundMessage) {
		c.deliverOutbound(context.Background(), m)
	})
	slog.Info("discord: gateway connected")
	return nil
}

// Stop closes the gateway connection.
func (c *DiscordChannel) Stop() error {
	return c.session.Close()
}

func (c *DiscordChannel) setBotID(id string) {
	c.mu.Lock()
	c.botID = id
	c.mu.Unlock()
}

// BotID returns the connected bot user's ID, empty before ready.
func (c *DiscordChannel) BotID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.botID
}

// ---------------------------------------------------------------------------
// Gateway handlers
// ---------------------------------------------------------------------------

func (c *DiscordChannel) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	if r.User != nil {
		c.setBotID(r.User.ID)
		slog.Info("discord: ready", "user", r.User.Username, "id", r.User.ID)
	}
	if c.cfg.Presence != "" {
		if err := c.api.UpdateCustomStatus(c.cfg.Presence); err != nil {
			slog.Warn("discord: presence update failed", "error", err)
		}
	}
}

func (c *DiscordChannel) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	c.handleMessage(context.Background(), m.Message)
}

func (c *DiscordChannel) onInteractionCreate(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
	c.handleInteraction(context.Background(), ic)
}

// handleMessage filters gateway messages down to addressed ones and
// publishes them on the bus with resolved caller flags.
func (c *DiscordChannel) handleMessage(ctx context.Context, m *discordgo.Message) {
	if m == nil || m.Author == nil || m.Author.Bot {
		return
	}
	if !c.isAddressed(ctx, m) {
		return
	}

	content := stripLeadingMention(m.Content, c.BotID())
	attachment := firstAttachmentURL(m)
	if content == "" && attachment == "" {
		return
	}

	isAdmin := false
	whitelisted := false
	if m.GuildID != "" {
		perms, err := c.api.UserChannelPermissions(m.Author.ID, m.ChannelID, discordgo.WithContext(ctx))
		if err != nil {
			slog.Warn("discord: permission lookup failed", "user", m.Author.ID, "channel", m.ChannelID, "error", err)
		} else {
			isAdmin = perms&discordgo.PermissionAdministrator != 0
		}
		whitelisted, err = c.store.WhitelistContains(ctx, m.GuildID)
		if err != nil {
			slog.Warn("discord: whitelist lookup failed", "guild", m.GuildID, "error", err)
			whitelisted = false
		}
	}

	mentions := make([]bus.Mention, 0, len(m.Mentions))
	for _, u := range m.Mentions {
		mentions = append(mentions, bus.Mention{UserID: u.ID, DisplayName: u.Username})
	}

	c.bus.PublishInbound(&bus.InboundMessage{
		Channel:          c.Name(),
		MessageID:        m.ID,
		ChannelID:        m.ChannelID,
		GuildID:          m.GuildID,
		AuthorID:         m.Author.ID,
		AuthorName:       m.Author.Username,
		Content:          content,
		ReferenceID:      referenceID(m),
		AttachmentURL:    attachment,
		Mentions:         mentions,
		IsDM:             m.GuildID == "",
		IsOwner:          m.Author.ID == c.cfg.OwnerID,
		IsAdmin:          isAdmin,
		GuildWhitelisted: whitelisted,
		TraceID:          uuid.NewString(),
		Timestamp:        m.Timestamp,
	})
}

// isAddressed reports whether the bot should answer: every DM, any message
// mentioning the bot, and any reply to one of the bot's messages.
func (c *DiscordChannel) isAddressed(ctx context.Context, m *discordgo.Message) bool {
	if m.GuildID == "" {
		return true
	}
	botID := c.BotID()
	for _, u := range m.Mentions {
		if u.ID == botID {
			return true
		}
	}
	if m.ReferencedMessage != nil {
		return m.ReferencedMessage.Author != nil && m.ReferencedMessage.Author.ID == botID
	}
	// Reply metadata without the embedded message: resolve the parent.
	if m.MessageReference != nil && m.MessageReference.MessageID != "" {
		parent, err := c.api.ChannelMessage(m.ChannelID, m.MessageReference.MessageID, discordgo.WithContext(ctx))
		if err != nil {
			slog.Debug("discord: reply parent lookup failed", "message", m.MessageReference.MessageID, "error", err)
			return false
		}
		return parent.Author != nil && parent.Author.ID == botID
	}
	return false
}

// handleInteraction routes component button presses into the loop. Buttons
// act for the user that triggered the suspended work; everyone else gets an
// ephemeral notice.
func (c *DiscordChannel) handleInteraction(ctx context.Context, ic *discordgo.InteractionCreate) {
	if ic == nil || ic.Type != discordgo.InteractionMessageComponent || c.loop == nil {
		return
	}
	user := interactionUser(ic)
	if user == nil {
		return
	}

	switch ic.MessageComponentData().CustomID {
	case customIDApprove, customIDReject:
		p, ok := c.loop.PendingApproval(ic.ChannelID)
		if !ok {
			c.respondEphemeral(ctx, ic, "Nothing is awaiting review here.")
			return
		}
		if !c.mayAct(user.ID, p.ProposerID) {
			c.respondEphemeral(ctx, ic, "Only the requester or the bot owner can review this proposal.")
			return
		}
		c.ack(ctx, ic)
		approved := ic.MessageComponentData().CustomID == customIDApprove
		if err := c.loop.Resolve(ctx, ic.ChannelID, approved, user.Username); err != nil {
			slog.Warn("discord: approval resolve failed", "channel", ic.ChannelID, "error", err)
		}
	case customIDContinue, customIDStop:
		ownerID, ok := c.loop.CheckpointOwner(ic.ChannelID)
		if !ok {
			c.respondEphemeral(ctx, ic, "Nothing is paused here.")
			return
		}
		if !c.mayAct(user.ID, ownerID) {
			c.respondEphemeral(ctx, ic, "Only the user who started this run or the bot owner can decide.")
			return
		}
		c.ack(ctx, ic)
		var err error
		if ic.MessageComponentData().CustomID == customIDContinue {
			err = c.loop.Continue(ctx, ic.ChannelID)
		} else {
			err = c.loop.Halt(ctx, ic.ChannelID)
		}
		if err != nil {
			slog.Warn("discord: checkpoint action failed", "channel", ic.ChannelID, "error", err)
		}
	}
}

// mayAct restricts suspended-work buttons to their requester and the owner.
func (c *DiscordChannel) mayAct(userID, requesterID string) bool {
	return userID == requesterID || (c.cfg.OwnerID != "" && userID == c.cfg.OwnerID)
}

func (c *DiscordChannel) ack(ctx context.Context, ic *discordgo.InteractionCreate) {
	err := c.api.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}, discordgo.WithContext(ctx))
	if err != nil {
		slog.Debug("discord: interaction ack failed", "error", err)
	}
}

func (c *DiscordChannel) respondEphemeral(ctx context.Context, ic *discordgo.InteractionCreate, text string) {
	err := c.api.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: text,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		slog.Debug("discord: ephemeral response failed", "error", err)
	}
}

// ---------------------------------------------------------------------------
// Messenger
// ---------------------------------------------------------------------------

// Send posts a message, replying to replyToID when non-empty.
func (c *DiscordChannel) Send(ctx context.Context, channelID, replyToID, content string) (string, error) {
	return c.send(ctx, channelID, replyToID, content, nil)
}

// SendWithControls posts a message with the interactive buttons matching
// controls.
func (c *DiscordChannel) SendWithControls(ctx context.Context, channelID, replyToID, content string, controls agent.Controls) (string, error) {
	return c.send(ctx, channelID, replyToID, content, controlComponents(controls))
}

func (c *DiscordChannel) send(ctx context.Context, channelID, replyToID, content string, components []discordgo.MessageComponent) (string, error) {
	data := &discordgo.MessageSend{Content: content}
	if replyToID != "" {
		data.Reference = &discordgo.MessageReference{MessageID: replyToID, ChannelID: channelID}
	}
	if len(components) > 0 {
		data.Components = components
	}
	m, err := c.api.ChannelMessageSendComplex(channelID, data, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return m.ID, nil
}

// Edit replaces a message's content. Components are cleared so resolved
// cards lose their buttons.
func (c *DiscordChannel) Edit(ctx context.Context, channelID, messageID, content string) error {
	empty := []discordgo.MessageComponent{}
	_, err := c.api.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    channelID,
		ID:         messageID,
		Content:    &content,
		Components: &empty,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

// Typing signals activity. Best effort.
func (c *DiscordChannel) Typing(ctx context.Context, channelID string) error {
	return c.api.ChannelTyping(channelID, discordgo.WithContext(ctx))
}

// deliverOutbound sends bus-sourced messages (scheduler portions), splitting
// anything past the platform ceiling.
func (c *DiscordChannel) deliverOutbound(ctx context.Context, m *bus.OutboundMessage) {
	for _, chunk := range agent.SplitText(m.Content, messageSplitLimit) {
		if _, err := c.Send(ctx, m.ChannelID, m.ReplyToID, chunk); err != nil {
			slog.Error("discord: outbound send failed", "channel", m.ChannelID, "error", err)
			return
		}
	}
}

// ---------------------------------------------------------------------------
// HistoryProvider
// ---------------------------------------------------------------------------

// RecentMessages returns up to limit messages older than beforeID, newest
// first, as the platform reports them.
func (c *DiscordChannel) RecentMessages(ctx context.Context, channelID, beforeID string, limit int) ([]agent.ChannelMessage, error) {
	msgs, err := c.api.ChannelMessages(channelID, limit, beforeID, "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch channel history: %w", err)
	}
	out := make([]agent.ChannelMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, c.toChannelMessage(m))
	}
	return out, nil
}

// FetchMessage resolves a single message by ID.
func (c *DiscordChannel) FetchMessage(ctx context.Context, channelID, messageID string) (*agent.ChannelMessage, error) {
	m, err := c.api.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch message %s: %w", messageID, err)
	}
	cm := c.toChannelMessage(m)
	return &cm, nil
}

func (c *DiscordChannel) toChannelMessage(m *discordgo.Message) agent.ChannelMessage {
	cm := agent.ChannelMessage{ID: m.ID, Content: m.Content, Timestamp: m.Timestamp}
	if m.Author != nil {
		cm.AuthorID = m.Author.ID
		cm.AuthorName = m.Author.Username
		cm.FromBot = m.Author.ID == c.BotID()
	}
	cm.ReferenceID = referenceID(m)
	cm.AttachmentURL = firstAttachmentURL(m)
	return cm
}

// ---------------------------------------------------------------------------
// PresenceSetter
// ---------------------------------------------------------------------------

// SetPresence updates the bot's custom status. A positive duration reverts
// to the configured presence afterwards; a newer call cancels the revert.
func (c *DiscordChannel) SetPresence(text string, duration time.Duration) error {
	if err := c.api.UpdateCustomStatus(text); err != nil {
		return fmt.Errorf("update presence: %w", err)
	}
	c.presenceMu.Lock()
	defer c.presenceMu.Unlock()
	if c.presenceTimer != nil {
		c.presenceTimer.Stop()
		c.presenceTimer = nil
	}
	if duration > 0 {
		base := c.cfg.Presence
		c.presenceTimer = time.AfterFunc(duration, func() {
			if err := c.api.UpdateCustomStatus(base); err != nil {
				slog.Warn("discord: presence revert failed", "error", err)
			}
		})
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// stripLeadingMention removes one leading mention of the bot. Mentions in
// the middle of the text stay; they are part of the request.
func stripLeadingMention(content, botID string) string {
	content = strings.TrimSpace(content)
	if botID == "" {
		return content
	}
	for _, tag := range []string{"<@" + botID + ">", "<@!" + botID + ">"} {
		if strings.HasPrefix(content, tag) {
			return strings.TrimSpace(strings.TrimPrefix(content, tag))
		}
	}
	return content
}

func referenceID(m *discordgo.Message) string {
	if m.ReferencedMessage != nil {
		return m.ReferencedMessage.ID
	}
	if m.MessageReference != nil {
		return m.MessageReference.MessageID
	}
	return ""
}

func firstAttachmentURL(m *discordgo.Message) string {
	if len(m.Attachments) == 0 {
		return ""
	}
	return m.Attachments[0].URL
}

func interactionUser(ic *discordgo.InteractionCreate) *discordgo.User {
	if ic.Member != nil && ic.Member.User != nil {
		return ic.Member.User
	}
	return ic.User
}

func controlComponents(controls agent.Controls) []discordgo.MessageComponent {
	switch controls {
	case agent.ControlsApproval:
		return []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Approve ✅", Style: discordgo.SuccessButton, CustomID: customIDApprove},
			discordgo.Button{Label: "Reject ❌", Style: discordgo.DangerButton, CustomID: customIDReject},
		}}}
	case agent.ControlsCheckpoint:
		return []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Continue 🔄", Style: discordgo.PrimaryButton, CustomID: customIDContinue},
			discordgo.Button{Label: "Stop 🛑", Style: discordgo.DangerButton, CustomID: customIDStop},
		}}}
	default:
		return nil
	}
}
