// Package main is the entry point for the wirdbot CLI.
package main

import (
	"os"

	"github.com/wirdbot/wirdbot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
