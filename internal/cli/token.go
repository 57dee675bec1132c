package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jrsteele09/social-connect/internal/app"
	apperrors "github.com/jrsteele09/social-connect/internal/errors"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token <account-id>",
	Short: "Print a valid access token, refreshing it if needed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return runToken(cmd.Context(), a, cmd.OutOrStdout(), args[0])
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect <account-id>",
	Short: "Forget an account and its tokens",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return runDisconnect(cmd.Context(), a, cmd.OutOrStdout(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(disconnectCmd)
}

func runToken(ctx context.Context, a *app.App, w io.Writer, accountID string) error {
	tok, err := a.Sessions.GetValidToken(ctx, accountID)
	if err != nil {
		return fmt.Errorf("%s: %w", apperrors.UserMessage(err), err)
	}
	fmt.Fprintln(w, tok)
	return nil
}

func runDisconnect(ctx context.Context, a *app.App, w io.Writer, accountID string) error {
	if err := a.Sessions.Disconnect(ctx, accountID); err != nil {
		return err
	}
	fmt.Fprintf(w, "Disconnected %s\n", accountID)
	return nil
}
