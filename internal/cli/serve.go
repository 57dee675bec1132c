package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/jrsteele09/social-connect/internal/app"
	apperrors "github.com/jrsteele09/social-connect/internal/errors"
	"github.com/jrsteele09/social-connect/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the callback listener until interrupted",
	Long: `Run the loopback callback listener. Open /auth/<platform>/start in a browser
to connect an account; completed connections are stored as they arrive.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		return runServe(ctx, a, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context, a *app.App, w io.Writer) error {
	unsubscribe := a.Sessions.OnOutcome(func(o session.Outcome) {
		if o.Err != nil {
			log.Warn().Err(o.Err).Str("platform", string(o.Platform)).Msg(apperrors.UserMessage(o.Err))
			return
		}
		log.Info().Str("platform", string(o.Platform)).Str("account", o.Account.ID).Str("identity", o.Account.Identity).Msg("account connected")
	})
	defer unsubscribe()

	if _, err := a.StartListener(ctx); err != nil {
		return err
	}
	go a.Sessions.RunKeepAlive(ctx, a.Config.GetKeepAliveInterval(), a.Config.GetKeepAliveLookahead())

	base := a.Listener.BaseURL()
	fmt.Fprintf(w, "Listening on %s\n", base)
	for _, p := range a.Registry.Platforms() {
		fmt.Fprintf(w, "  %-9s %s/auth/%s/start\n", p.DisplayName(), base, p)
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Listener.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("listener shutdown: %w", err)
	}
	fmt.Fprintln(w, "Stopped")
	return nil
}
