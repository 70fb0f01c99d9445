package cli

import (
	"github.com/spf13/cobra"
)

func newLeaderboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Fetch the current player stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := Dial(cfg.Addr, cfg.Timeout)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			entries, err := client.Leaderboard()
			if err != nil {
				return err
			}

			NewOutput(cfg.Output).PrintLeaderboard(entries)
			return nil
		},
	}
}
