// internal/cli/session.go
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"finflow-commitments/internal/client"
	"finflow-commitments/internal/domain"
	"finflow-commitments/internal/intent"
	"finflow-commitments/internal/util"
)

func newLoginCmd(s *session) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a session token and record any saved zakat assessment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			previous := s.cfg.Token
			s.cfg.Token = token
			cl, err := s.client()
			if err != nil {
				return err
			}

			// The saved assessment is only claimed once the service has accepted the token.
			out := cmd.OutOrStdout()
			_, err = cl.ListCommitments(cmd.Context(), domain.CommitmentStatusPending)
			switch {
			case util.KindOf(err) == util.KindUnauthenticated:
				s.cfg.Token = previous
				return fmt.Errorf("login: token rejected: %w", err)
			case err != nil:
				if err := s.save(); err != nil {
					return err
				}
				s.logger.Warn("Token not verified", "error", err)
				fmt.Fprintln(out, "Logged in, but the service could not be reached. A saved zakat assessment will be recorded at the next login.")
				return nil
			}

			if err := s.save(); err != nil {
				return err
			}
			fmt.Fprintln(out, "Logged in.")
			s.replayIntent(cmd, cl)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Bearer token issued by the identity provider")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

// replayIntent consumes the staged zakat assessment, if any. Login succeeds either way;
// the outcome is reported as a notification.
func (s *session) replayIntent(cmd *cobra.Command, cl *client.Client) {
	if !cl.Authenticated() {
		return
	}
	ctx := cmd.Context()
	store, err := s.openIntentStore(ctx)
	if err != nil {
		s.logger.Warn("Failed to open intent store", "path", s.cfg.IntentDB, "error", err)
		return
	}
	defer store.Close()

	r := intent.NewReplayer(store, cl, intent.NotifierFunc(notifyTo(cmd.OutOrStdout())), intent.DefaultMaxAge, s.logger)
	if _, err := r.ConsumeIfPresent(ctx); err != nil {
		s.logger.Debug("Deferred intent not created", "error", err)
	}
}

func notifyTo(out io.Writer) func(intent.Notification) {
	return func(n intent.Notification) {
		if n.Err != nil {
			fmt.Fprintf(out, "Your saved zakat assessment could not be recorded (%s). Please assess it again.\n",
				util.KindOf(n.Err))
			return
		}
		c := n.Commitment
		if c.Zakat == nil {
			fmt.Fprintf(out, "Recorded your saved zakat assessment as %s.\n", c.ID)
			return
		}
		fmt.Fprintf(out, "Recorded your saved zakat assessment for %d: %s due (obligation %s).\n",
			c.Zakat.Year, formatAmount(c.Zakat.AmountDue), c.ID)
	}
}

func newLogoutCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s.cfg.Token = ""
			if err := s.save(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}
