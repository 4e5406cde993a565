package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wirdbot/wirdbot/internal/agent"
	"github.com/wirdbot/wirdbot/internal/approval"
	"github.com/wirdbot/wirdbot/internal/bus"
	"github.com/wirdbot/wirdbot/internal/config"
	"github.com/wirdbot/wirdbot/internal/events"
	"github.com/wirdbot/wirdbot/internal/memory"
	"github.com/wirdbot/wirdbot/internal/policy"
	"github.com/wirdbot/wirdbot/internal/provider"
	"github.com/wirdbot/wirdbot/internal/quran"
	"github.com/wirdbot/wirdbot/internal/session"
	"github.com/wirdbot/wirdbot/internal/store"
	"github.com/wirdbot/wirdbot/internal/tools"
)

// sessionKeep bounds how many messages a console session file retains.
const sessionKeep = 200

var (
	chatSessionName string
	chatMessage     string
	chatList        bool
	chatDelete      string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with WirdBot in the terminal",
	Long:  "Runs the agent loop against stdin/stdout. Conversations persist as\nsession files under ~/.wirdbot/sessions.",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatSessionName, "session", "s", "default", "Session name")
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Send a single message and exit")
	chatCmd.Flags().BoolVar(&chatList, "list", false, "List saved sessions")
	chatCmd.Flags().StringVar(&chatDelete, "delete", "", "Delete a saved session")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	mgr := session.NewManager("")
	out := cmd.OutOrStdout()

	if chatList {
		infos := mgr.List()
		if len(infos) == 0 {
			fmt.Fprintln(out, "No saved sessions.")
			return nil
		}
		for _, info := range infos {
			fmt.Fprintf(out, "%-24s %4d messages  %s\n", info.Name, info.Messages, info.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	}
	if chatDelete != "" {
		if mgr.Delete(chatDelete) {
			fmt.Fprintln(out, "Deleted session", chatDelete)
		} else {
			fmt.Fprintln(out, "No session named", chatDelete)
		}
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Keep routine turn logging out of the transcript.
	level := cfg.Logging.Level
	if !strings.EqualFold(level, "debug") {
		level = "warn"
	}
	setupLogging(level)

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	sess := mgr.GetOrCreate(chatSessionName)
	front := &consoleFront{sess: sess}

	qc := quran.NewClient(cfg.Quran.APIBase, cfg.Quran.Edition)
	markers := agent.NewMarkers()
	registry := tools.NewRegistry()
	registry.MustRegister(
		tools.NewExecCodeTool(cfg.Agent.ToolTimeout),
		tools.NewRememberTool(st),
		tools.NewMemoriesTool(st),
		tools.NewForgetTool(st),
		tools.NewPresenceTool(front),
		tools.NewClearContextTool(markers),
		tools.NewVerseTool(qc),
		tools.NewPageTool(qc),
		tools.NewSearchTool(qc),
		tools.NewServerConfigTool(st),
		tools.NewStatsTool(st),
		tools.NewMarkWirdTool(st),
		tools.NewStreakEmojiTool(st),
	)

	loop := agent.NewLoop(agent.LoopOptions{
		Config:   cfg,
		Bus:      bus.NewMessageBus(),
		Registry: registry,
		Gate:     policy.NewGate(),
		Broker:   approval.NewBroker(),
		Resolve: func(model string) (provider.LLMProvider, string, error) {
			return provider.Resolve(cfg, model)
		},
		Messenger: front,
		History:   front,
		Markers:   markers,
		Memory:    memory.NewService(st),
		Events:    events.NopPublisher{},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	channelID := "console:" + sess.Name
	reader := bufio.NewScanner(cmd.InOrStdin())

	runOne := func(text string) error {
		m := sess.AddMessage("user", text)
		start := sess.Len()
		msg := &bus.InboundMessage{
			Channel:    "console",
			MessageID:  m.ID,
			ChannelID:  channelID,
			AuthorID:   "console",
			AuthorName: "you",
			Content:    text,
			IsDM:       true,
			IsOwner:    true,
			Timestamp:  time.Now(),
		}
		if err := loop.ProcessDirect(ctx, msg); err != nil {
			return err
		}
		if err := answerSuspensions(ctx, loop, channelID, reader, out); err != nil {
			return err
		}
		printAssistant(out, sess, start)
		sess.TrimTo(sessionKeep)
		return mgr.Save(sess)
	}

	if chatMessage != "" {
		return runOne(strings.TrimSpace(chatMessage))
	}

	fmt.Fprintf(out, "Session %s (%d messages). Type 'exit' to quit.\n", sess.Name, sess.Len())
	for {
		fmt.Fprint(out, "\nyou> ")
		if !reader.Scan() {
			fmt.Fprintln(out)
			break
		}
		line := strings.TrimSpace(reader.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		if err := runOne(line); err != nil {
			if ctx.Err() != nil {
				break
			}
			fmt.Fprintln(out, "Error:", err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	fmt.Fprintln(out, "Saved session", sess.Name)
	return nil
}

// answerSuspensions walks a suspended turn through console prompts until it
// neither waits on an approval nor on a budget checkpoint.
func answerSuspensions(ctx context.Context, loop *agent.Loop, channelID string, in *bufio.Scanner, out io.Writer) error {
	for {
		if p, ok := loop.PendingApproval(channelID); ok {
			fmt.Fprintf(out, "\nProposed %s:\n%s\n", p.ToolName, p.Code)
			approved := promptYes(in, out, "Approve and run? [y/N] ")
			if err := loop.Resolve(ctx, channelID, approved, "console"); err != nil {
				return err
			}
			continue
		}
		if _, ok := loop.CheckpointOwner(channelID); ok {
			if promptYes(in, out, "Tool budget reached. Continue? [y/N] ") {
				if err := loop.Continue(ctx, channelID); err != nil {
					return err
				}
			} else {
				if err := loop.Halt(ctx, channelID); err != nil {
					return err
				}
			}
			continue
		}
		return nil
	}
}

func promptYes(in *bufio.Scanner, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	if !in.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(in.Text()))
	return answer == "y" || answer == "yes"
}

func printAssistant(out io.Writer, sess *session.Session, since int) {
	for _, m := range sess.MessagesSince(since) {
		if m.Role != "assistant" || strings.TrimSpace(m.Content) == "" {
			continue
		}
		fmt.Fprintf(out, "\nwirdbot> %s\n", m.Content)
	}
}

// consoleFront adapts the loop's messenger and history interfaces onto a
// session file. Nothing prints during the turn; runChat reads the final
// transcript back from the session once the turn settles.
type consoleFront struct {
	mu   sync.Mutex
	sess *session.Session
}

func (c *consoleFront) Send(ctx context.Context, channelID, replyToID, content string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.sess.AddMessage("assistant", content)
	return m.ID, nil
}

func (c *consoleFront) SendWithControls(ctx context.Context, channelID, replyToID, content string, _ agent.Controls) (string, error) {
	return c.Send(ctx, channelID, replyToID, content)
}

func (c *consoleFront) Edit(ctx context.Context, channelID, messageID, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sess.UpdateMessage(messageID, content) {
		return fmt.Errorf("message %s not found", messageID)
	}
	return nil
}

func (c *consoleFront) Typing(ctx context.Context, channelID string) error { return nil }

func (c *consoleFront) RecentMessages(ctx context.Context, channelID, beforeID string, limit int) ([]agent.ChannelMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []agent.ChannelMessage
	for _, m := range c.sess.RecentBefore(beforeID, limit) {
		out = append(out, toChannelMessage(m))
	}
	return out, nil
}

func (c *consoleFront) FetchMessage(ctx context.Context, channelID, messageID string) (*agent.ChannelMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.sess.Get(messageID)
	if !ok {
		return nil, fmt.Errorf("message %s not found", messageID)
	}
	cm := toChannelMessage(m)
	return &cm, nil
}

// SetPresence satisfies the presence tool; the console has no status line.
func (c *consoleFront) SetPresence(text string, duration time.Duration) error { return nil }

func toChannelMessage(m session.Message) agent.ChannelMessage {
	cm := agent.ChannelMessage{
		ID:         m.ID,
		AuthorID:   "console",
		AuthorName: "you",
		Content:    m.Content,
		Timestamp:  m.Timestamp,
	}
	if m.Role == "assistant" {
		cm.AuthorID = "wirdbot"
		cm.AuthorName = "wirdbot"
		cm.FromBot = true
	}
	return cm
}
