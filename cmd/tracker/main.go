// Command tracker replays autoedit suggestion lifecycle traces through
// the tracker and reports the analytics events that come out.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Autoedit suggestion lifecycle tracker tools",
	Long: `Tools for the autoedit suggestion lifecycle tracker.

The replay command feeds a JSONL operation trace through a fresh
tracker instance and summarizes the emitted analytics events.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
