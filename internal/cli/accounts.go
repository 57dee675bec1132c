package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jrsteele09/social-connect/accounts"
	"github.com/jrsteele09/social-connect/internal/app"
	"github.com/jrsteele09/social-connect/platforms"
	"github.com/jrsteele09/social-connect/session"
	"github.com/spf13/cobra"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List connected accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return runAccounts(cmd.Context(), a, cmd.OutOrStdout(), jsonOutput)
	},
}

func init() {
	rootCmd.AddCommand(accountsCmd)
}

func runAccounts(ctx context.Context, a *app.App, w io.Writer, asJSON bool) error {
	list, err := a.Sessions.ListAccounts(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(w, list)
	}
	fmt.Fprint(w, formatAccounts(list, time.Now()))

	states, err := platformStates(ctx, a)
	if err != nil {
		return err
	}
	fmt.Fprint(w, "\n"+formatPlatformStates(states))
	return nil
}

type platformState struct {
	Platform platforms.Platform
	State    session.State
}

// platformStates reports where each configured platform is in the connect
// lifecycle.
func platformStates(ctx context.Context, a *app.App) ([]platformState, error) {
	var out []platformState
	for _, p := range a.Registry.Platforms() {
		st, err := a.Sessions.AccountState(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, platformState{Platform: p, State: st})
	}
	return out, nil
}

func formatPlatformStates(states []platformState) string {
	if len(states) == 0 {
		return "No platforms configured.\n"
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PLATFORM\tSTATE")
	for _, s := range states {
		fmt.Fprintf(tw, "%s\t%s\n", s.Platform, s.State)
	}
	_ = tw.Flush()
	return b.String()
}

func formatAccounts(list []accounts.Summary, now time.Time) string {
	if len(list) == 0 {
		return "No accounts connected. Run `social-connect connect <platform>`.\n"
	}

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPLATFORM\tIDENTITY\tSTATUS\tEXPIRES")
	for _, s := range list {
		identity := s.Identity
		if identity == "" {
			identity = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Platform, identity, s.Status, expiresIn(s.AccessExpiresAt, now))
	}
	_ = tw.Flush()
	return b.String()
}

func expiresIn(at, now time.Time) string {
	d := at.Sub(now)
	switch {
	case d <= 0:
		return "expired"
	case d > 365*24*time.Hour:
		return "never"
	case d >= 48*time.Hour:
		return fmt.Sprintf("in %dd", int(d.Hours()/24))
	default:
		return "in " + d.Round(time.Minute).String()
	}
}
