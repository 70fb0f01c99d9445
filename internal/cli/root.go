// Package cli implements the whistctl command line tool for managing player
// accounts on a running broker over its own TCP protocol.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var cfg *Config

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "whistctl",
		Short: "CLI tool for the card game broker",
		Long: `whistctl talks to a running game broker over its TCP protocol.

It supports account management (create, login check, password change,
deletion) and fetching the leaderboard.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfg.Addr, "addr", cfg.Addr, "Broker address (env: WHISTBROKER_ADDR)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")

	rootCmd.AddCommand(newAccountCmd())
	rootCmd.AddCommand(newLeaderboardCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
