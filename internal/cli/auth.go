package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/campaign-dashboard/internal/client/session"
	"github.com/magabrotheeeer/campaign-dashboard/internal/client/synchronizer"
)

func newLoginCmd(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("DASHBOARD_PASSWORD")
			}
			if password == "" {
				return fmt.Errorf("password is required: use --password or DASHBOARD_PASSWORD")
			}

			err := a.withSync(cmd.Context(), func(ctx context.Context, s *synchronizer.Synchronizer) error {
				return s.SignIn(ctx, email, password)
			})
			if err != nil {
				return err
			}

			st := a.store.State()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", st.User.Email, st.User.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (or DASHBOARD_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the local session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.provider == nil {
				a.store.Logout()
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Signed out locally")
				return nil
			}
			err := a.withSync(cmd.Context(), func(ctx context.Context, s *synchronizer.Synchronizer) error {
				return s.SignOut(ctx)
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

type whoami struct {
	Authenticated bool          `json:"authenticated"`
	User          *session.User `json:"user,omitempty"`
	BusinessID    string        `json:"businessId,omitempty"`
}

func newWhoamiCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := a.store.State()
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(whoami{Authenticated: st.Authenticated, User: st.User, BusinessID: st.BusinessID})
			}

			if !st.Authenticated {
				_, _ = fmt.Fprintln(out, "Not signed in")
				return nil
			}
			_, _ = fmt.Fprintf(out, "User:     %s <%s>\n", st.User.Name, st.User.Email)
			_, _ = fmt.Fprintf(out, "Role:     %s\n", st.User.Role)
			_, _ = fmt.Fprintf(out, "Business: %s\n", valueOr(st.BusinessID, "-"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	return cmd
}

func newSessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Session maintenance",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Keep the session refreshed until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			unsubscribe := a.store.Subscribe(func(st session.State) {
				_, _ = fmt.Fprintf(out, "session: authenticated=%t loading=%t\n", st.Authenticated, st.Loading)
			})
			defer unsubscribe()

			return a.withSync(cmd.Context(), func(ctx context.Context, s *synchronizer.Synchronizer) error {
				_, _ = fmt.Fprintf(out, "phase: %s\n", s.Phase())
				<-ctx.Done()
				return nil
			})
		},
	})

	return cmd
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
