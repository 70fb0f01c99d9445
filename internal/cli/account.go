package cli

import (
	"github.com/spf13/cobra"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account management commands",
	}

	cmd.AddCommand(newAccountCreateCmd())
	cmd.AddCommand(newAccountLoginCmd())
	cmd.AddCommand(newAccountPasswordCmd())
	cmd.AddCommand(newAccountDeleteCmd())

	return cmd
}

// withSignedInClient dials the broker, signs in, runs fn, and tears the
// connection down again.
func withSignedInClient(name, password string, fn func(*Client) error) error {
	client, err := Dial(cfg.Addr, cfg.Timeout)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if err := client.SignIn(name, password, false); err != nil {
		return err
	}
	return fn(client)
}

func newAccountCreateCmd() *cobra.Command {
	var name, password string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new player account",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := Dial(cfg.Addr, cfg.Timeout)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			if err := client.SignIn(name, password, true); err != nil {
				return err
			}

			NewOutput(cfg.Output).PrintMessage("Created player " + name)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Player name (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newAccountLoginCmd() *cobra.Command {
	var name, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check that credentials are accepted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSignedInClient(name, password, func(client *Client) error {
				NewOutput(cfg.Output).PrintMessage("Signed in as " + name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Player name (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newAccountPasswordCmd() *cobra.Command {
	var name, password, newPassword string

	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change a player's password",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSignedInClient(name, password, func(client *Client) error {
				if err := client.ChangePassword(newPassword); err != nil {
					return err
				}
				NewOutput(cfg.Output).PrintMessage("Password changed")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Player name (required)")
	cmd.Flags().StringVar(&password, "password", "", "Current password (required)")
	cmd.Flags().StringVar(&newPassword, "new-password", "", "New password (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("new-password")

	return cmd
}

func newAccountDeleteCmd() *cobra.Command {
	var name, password string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a player account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSignedInClient(name, password, func(client *Client) error {
				if err := client.DeleteAccount(password); err != nil {
					return err
				}
				NewOutput(cfg.Output).PrintMessage("Deleted player " + name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Player name (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
