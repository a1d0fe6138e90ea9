// internal/cli/zakat.go
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"finflow-commitments/internal/domain"
	"finflow-commitments/internal/intent"
)

func newZakatCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zakat",
		Short: "Assess and manage zakat obligations",
		Long: `Assess zakat at the fixed rate of 2.5% of assessed wealth and record the
obligation. Pay it, in one or several settlements, with 'commitctl pay'.`,
	}
	cmd.AddCommand(newZakatAssessCmd(s), newZakatDeleteCmd(s))
	return cmd
}

func newZakatAssessCmd(s *session) *cobra.Command {
	var (
		year  int
		total string
	)
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Compute zakat due and record the obligation",
		Long: `Compute the zakat due on the assessed wealth. When signed in the obligation is
recorded immediately. When signed out the assessment is saved locally and
recorded once, at the next login.

Every assessment creates a new obligation; assessing the same year twice
records two obligations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(total)
			if err != nil {
				return err
			}
			terms, err := domain.AssessZakat(year, amount)
			if err != nil {
				return fmt.Errorf("assess zakat: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Zakat for %d: %s due on %s of assessed wealth.\n",
				terms.Year, formatAmount(terms.AmountDue), formatAmount(terms.TotalAssessedAmount))

			ctx := cmd.Context()
			if !s.cfg.Authenticated() {
				store, err := s.openIntentStore(ctx)
				if err != nil {
					return err
				}
				defer store.Close()
				if err := store.Stage(ctx, intent.NewPayload(terms)); err != nil {
					return err
				}
				fmt.Fprintln(out, "You are signed out. The assessment is saved and will be recorded when you log in.")
				return nil
			}

			cl, err := s.client()
			if err != nil {
				return err
			}
			c, err := cl.CreateZakat(ctx, terms)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Recorded zakat obligation %s.\n", c.ID)
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "Zakat year")
	cmd.Flags().StringVar(&total, "total", "", "Total assessed wealth")
	_ = cmd.MarkFlagRequired("total")
	return cmd
}

func newZakatDeleteCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "delete OBLIGATION_ID",
		Short: "Delete a zakat obligation that is not fully settled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := s.client()
			if err != nil {
				return err
			}
			if err := cl.DeleteCommitment(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted zakat obligation %s. Recorded settlements are kept.\n", args[0])
			return nil
		},
	}
}
