package cli

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/jrsteele09/social-connect/internal/app"
	apperrors "github.com/jrsteele09/social-connect/internal/errors"
	"github.com/jrsteele09/social-connect/platforms"
	"github.com/jrsteele09/social-connect/session"
	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var (
	noBrowser      bool
	connectTimeout time.Duration
)

// openBrowser is replaced in tests.
var openBrowser = browser.OpenURL

var connectCmd = &cobra.Command{
	Use:       "connect <platform>",
	Short:     "Connect an account on a platform",
	Long:      `Open the platform's authorization page and wait for the redirect back to the local listener.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"twitter", "linkedin", "mastodon", "facebook", "github"},
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := platforms.Parse(args[0])
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		timeout := connectTimeout
		if timeout <= 0 {
			timeout = a.Config.GetAttemptTTL()
		}
		return runConnect(ctx, a, cmd.OutOrStdout(), p, timeout)
	},
}

func init() {
	connectCmd.Flags().BoolVar(&noBrowser, "no-browser", false, "print the authorization URL instead of opening a browser")
	connectCmd.Flags().DurationVar(&connectTimeout, "timeout", 0, "how long to wait for the redirect (default: the attempt lifetime)")
	rootCmd.AddCommand(connectCmd)
}

func runConnect(ctx context.Context, a *app.App, w io.Writer, p platforms.Platform, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcomes := make(chan session.Outcome)
	unsubscribe := a.Sessions.OnOutcome(func(o session.Outcome) {
		if o.Platform != p {
			return
		}
		select {
		case outcomes <- o:
		case <-ctx.Done():
		}
	})
	defer unsubscribe()

	if _, err := a.StartListener(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = a.Listener.Shutdown(shutdownCtx)
	}()

	authURL, err := a.Sessions.BeginAuthorization(p)
	if err != nil {
		return fmt.Errorf("%s: %w", apperrors.UserMessage(err), err)
	}

	fmt.Fprintf(w, "Authorize %s in your browser:\n  %s\n", p.DisplayName(), authURL)
	if !noBrowser {
		if err := openBrowser(authURL); err != nil {
			fmt.Fprintln(w, "Could not open a browser, open the URL above manually.")
		}
	}
	fmt.Fprintln(w, "Waiting for the redirect...")

	state := stateOf(authURL)
	for {
		select {
		case o := <-outcomes:
			if o.State != state {
				// a stale tab or another page hit the callback
				log.Debug().Str("platform", string(p)).Msg("ignoring callback for another attempt")
				continue
			}
			if o.Err != nil {
				fmt.Fprintf(w, "Connection failed: %s\n", apperrors.UserMessage(o.Err))
				return o.Err
			}
			identity := o.Account.Identity
			if identity == "" {
				identity = "(identity unknown)"
			}
			fmt.Fprintf(w, "Connected %s account %s [%s]\n", p.DisplayName(), identity, o.Account.ID)
			return nil
		case <-ctx.Done():
			return fmt.Errorf("gave up waiting for the %s redirect: %w", p.DisplayName(), ctx.Err())
		}
	}
}

func stateOf(authURL string) string {
	u, err := url.Parse(authURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("state")
}
