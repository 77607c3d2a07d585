package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "botline",
	Short: "Telegram bot runtime with ordered per-chat delivery",
	Long:  "Botline parses Telegram updates, routes them through handler chains and delivers replies in order per chat.",
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
