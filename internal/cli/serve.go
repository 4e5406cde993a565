package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wirdbot/wirdbot/internal/agent"
	"github.com/wirdbot/wirdbot/internal/approval"
	"github.com/wirdbot/wirdbot/internal/bus"
	"github.com/wirdbot/wirdbot/internal/channels"
	"github.com/wirdbot/wirdbot/internal/config"
	"github.com/wirdbot/wirdbot/internal/events"
	"github.com/wirdbot/wirdbot/internal/memory"
	"github.com/wirdbot/wirdbot/internal/policy"
	"github.com/wirdbot/wirdbot/internal/provider"
	"github.com/wirdbot/wirdbot/internal/quran"
	"github.com/wirdbot/wirdbot/internal/scheduler"
	"github.com/wirdbot/wirdbot/internal/store"
	"github.com/wirdbot/wirdbot/internal/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Discord bot",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg.Logging.Level)
	printHeader("📖 WirdBot")

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	qc := quran.NewClient(cfg.Quran.APIBase, cfg.Quran.Edition)
	msgBus := bus.NewMessageBus()

	adapter, err := channels.New(cfg.Discord, msgBus, st)
	if err != nil {
		return err
	}

	markers := agent.NewMarkers()
	registry := tools.NewRegistry()
	registry.MustRegister(
		tools.NewExecCodeTool(cfg.Agent.ToolTimeout),
		tools.NewRememberTool(st),
		tools.NewMemoriesTool(st),
		tools.NewForgetTool(st),
		tools.NewPresenceTool(adapter),
		tools.NewClearContextTool(markers),
		tools.NewVerseTool(qc),
		tools.NewPageTool(qc),
		tools.NewSearchTool(qc),
		tools.NewServerConfigTool(st),
		tools.NewStatsTool(st),
		tools.NewMarkWirdTool(st),
		tools.NewStreakEmojiTool(st),
	)

	var pub events.Publisher = events.NopPublisher{}
	if cfg.Events.Enabled {
		pub = events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		fmt.Println("📡 Audit events to Kafka:", cfg.Events.Brokers)
	}
	defer pub.Close()

	loop := agent.NewLoop(agent.LoopOptions{
		Config:   cfg,
		Bus:      msgBus,
		Registry: registry,
		Gate:     policy.NewGate(),
		Broker:   approval.NewBroker(),
		Resolve: func(model string) (provider.LLMProvider, string, error) {
			return provider.Resolve(cfg, model)
		},
		Messenger: adapter,
		History:   adapter,
		Markers:   markers,
		Memory:    memory.NewService(st),
		Events:    pub,
	})
	adapter.AttachLoop(loop)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go msgBus.DispatchOutbound(ctx)
	go func() {
		if err := loop.Run(ctx); err != nil {
			slog.Error("Agent loop stopped", "error", err)
		}
	}()

	if err := adapter.Start(); err != nil {
		return fmt.Errorf("connect discord: %w", err)
	}
	fmt.Println("✅ Connected to Discord")

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(cfg.Scheduler, st, qc, msgBus)
		go func() {
			if err := sched.Run(ctx); err != nil {
				slog.Error("Scheduler stopped", "error", err)
			}
		}()
		fmt.Println("⏰ Daily wird scheduler running")
	}

	fmt.Println("WirdBot running. Press Ctrl+C to stop.")
	<-ctx.Done()

	fmt.Println("Shutting down...")
	if err := adapter.Stop(); err != nil {
		slog.Warn("Discord shutdown", "error", err)
	}
	loop.Stop()
	return nil
}

func setupLogging(level string) {
	var lv slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lv = slog.LevelDebug
	case "warn", "warning":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv})))
}
