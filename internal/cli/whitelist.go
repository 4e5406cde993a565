package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wirdbot/wirdbot/internal/config"
	"github.com/wirdbot/wirdbot/internal/store"
)

var whitelistCmd = &cobra.Command{
	Use:   "whitelist",
	Short: "Manage the code-execution guild whitelist",
	Long:  "Guilds on the whitelist run approved execute_discord_code tool calls.\nEverywhere else the tool call is refused outright.",
}

var whitelistAddCmd = &cobra.Command{
	Use:   "add <guild-id>",
	Short: "Allow a guild to run approved code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.WhitelistAdd(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Whitelisted guild", args[0])
		return nil
	},
}

var whitelistRemoveCmd = &cobra.Command{
	Use:   "remove <guild-id>",
	Short: "Remove a guild from the whitelist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		removed, err := st.WhitelistRemove(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !removed {
			fmt.Fprintln(cmd.OutOrStdout(), "Guild", args[0], "was not whitelisted")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Removed guild", args[0])
		return nil
	},
}

var whitelistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List whitelisted guilds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		guilds, err := st.WhitelistAll(cmd.Context())
		if err != nil {
			return err
		}
		if len(guilds) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No whitelisted guilds.")
			return nil
		}
		for _, g := range guilds {
			fmt.Fprintln(cmd.OutOrStdout(), g)
		}
		return nil
	},
}

func openStore() (*store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func init() {
	whitelistCmd.AddCommand(whitelistAddCmd, whitelistRemoveCmd, whitelistListCmd)
	rootCmd.AddCommand(whitelistCmd)
}
