// Package cli implements the wirdbot command tree.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/wirdbot/wirdbot/internal/cli.version=1.2.3"
	version = "0.9.0"
	logo    = "\n" +
		"  _       ___          ______        __\n" +
		" | |     / (_)________/ / __ )____  / /_\n" +
		" | | /| / / / ___/ __  / __  / __ \\/ __/\n" +
		" | |/ |/ / / /  / /_/ / /_/ / /_/ / /_\n" +
		" |__/|__/_/_/   \\__,_/_____/\\____/\\__/\n"
)

var rootCmd = &cobra.Command{
	Use:   "wirdbot",
	Short: "WirdBot - Quran reading companion for Discord",
	Long:  color.CyanString(logo) + "\nA Discord bot that schedules daily Quran portions, tracks reading streaks,\nand answers questions with an LLM tool loop.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "wirdbot %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
