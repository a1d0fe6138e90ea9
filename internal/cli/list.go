// internal/cli/list.go
package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"finflow-commitments/internal/domain"
)

func newListCmd(s *session) *cobra.Command {
	var pending bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your commitments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := s.client()
			if err != nil {
				return err
			}
			var status domain.CommitmentStatus
			if pending {
				status = domain.CommitmentStatusPending
			}
			items, err := cl.ListCommitments(cmd.Context(), status)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No commitments.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tKIND\tREFERENCE\tSTATUS\tREMAINING\tCREATED")
			hasPending := false
			for _, c := range items {
				ref, remaining := c.ReferenceID, "-"
				if c.Zakat != nil {
					ref = fmt.Sprintf("year %d", c.Zakat.Year)
					remaining = formatAmount(c.Zakat.RemainingAmount) + " of " + formatAmount(c.Zakat.AmountDue)
				}
				hasPending = hasPending || c.IsPending()
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					c.ID, c.Kind, ref, c.Status, remaining, humanize.Time(c.CreatedAt))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if hasPending {
				fmt.Fprintln(out, "\nFund a pending commitment with 'commitctl pay <id> --amount <amount>'.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&pending, "pending", false, "Only show commitments nothing has been settled against")
	return cmd
}

func newHistoryCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "history COMMITMENT_ID",
		Short: "Show the settlements recorded against a commitment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := s.client()
			if err != nil {
				return err
			}
			items, err := cl.ListSettlements(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No settlements.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "OCCURRED\tAMOUNT\tWALLET TRANSACTION\tNEXT DUE")
			total := decimal.Zero
			for _, st := range items {
				next := "-"
				if st.NextDueAt != nil {
					next = st.NextDueAt.Format(time.DateOnly)
				}
				total = total.Add(st.Amount)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					st.OccurredAt.Format(time.RFC3339), formatAmount(st.Amount), st.WalletTransactionID, next)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%s settled in %d settlement(s).\n", formatAmount(total), len(items))
			return nil
		},
	}
}

func newBalanceCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show your wallet balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := s.client()
			if err != nil {
				return err
			}
			b, err := cl.GetBalance(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", formatAmount(b.Balance), b.Currency)
			return nil
		},
	}
}
