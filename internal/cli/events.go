package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wirdbot/wirdbot/internal/config"
	"github.com/wirdbot/wirdbot/internal/events"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the audit event stream",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow the audit topic from the newest offset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if strings.TrimSpace(cfg.Events.Brokers) == "" {
			return fmt.Errorf("events.brokers is empty, set it with: wirdbot config set events.brokers host:9092")
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		fmt.Fprintf(cmd.OutOrStdout(), "Tailing %s on %s (Ctrl+C to stop)\n", cfg.Events.Topic, cfg.Events.Brokers)
		return events.Tail(ctx, cmd.OutOrStdout(), cfg.Events.Brokers, cfg.Events.Topic)
	},
}

func init() {
	eventsCmd.AddCommand(eventsTailCmd)
	rootCmd.AddCommand(eventsCmd)
}
