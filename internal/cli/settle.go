// internal/cli/settle.go
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"finflow-commitments/internal/api/types"
	"finflow-commitments/internal/domain"
	"finflow-commitments/internal/util"
	"finflow-commitments/internal/wizard"
)

// walletCodeEnv lets scripts pass the wallet code without putting it in shell history.
const walletCodeEnv = "COMMITCTL_WALLET_CODE"

type settleFlags struct {
	amount string
	code   string
}

func (f *settleFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.amount, "amount", "", "Amount to settle")
	cmd.Flags().StringVar(&f.code, "code", "", "4-digit wallet security code (or $"+walletCodeEnv+")")
	_ = cmd.MarkFlagRequired("amount")
}

func (f *settleFlags) walletCode() string {
	if f.code != "" {
		return f.code
	}
	return os.Getenv(walletCodeEnv)
}

func newInvestCmd(s *session) *cobra.Command {
	var (
		f      settleFlags
		resume bool
	)
	cmd := &cobra.Command{
		Use:   "invest PRODUCT_ID",
		Short: "Subscribe to an investment product and fund it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel := wizard.Selection{Kind: domain.CommitmentKindInvestment, ReferenceID: args[0]}
			return s.subscribe(cmd, sel, f, resume)
		},
	}
	f.bind(cmd)
	cmd.Flags().BoolVar(&resume, "resume", false, "Fund the existing subscription when one is already active")
	return cmd
}

func newTakafulCmd(s *session) *cobra.Command {
	var (
		f          settleFlags
		resume     bool
		start, end string
	)
	cmd := &cobra.Command{
		Use:   "takaful PLAN_ID",
		Short: "Subscribe to a takaful plan for a coverage period and pay the first contribution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseDate("start", start)
			if err != nil {
				return err
			}
			to, err := parseDate("end", end)
			if err != nil {
				return err
			}
			sel := wizard.Selection{
				Kind:        domain.CommitmentKindTakaful,
				ReferenceID: args[0],
				PeriodStart: from,
				PeriodEnd:   to,
			}
			return s.subscribe(cmd, sel, f, resume)
		},
	}
	f.bind(cmd)
	cmd.Flags().BoolVar(&resume, "resume", false, "Pay into the existing subscription when one is already active")
	cmd.Flags().StringVar(&start, "start", "", "Coverage start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Coverage end date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newPayCmd(s *session) *cobra.Command {
	var f settleFlags
	cmd := &cobra.Command{
		Use:   "pay COMMITMENT_ID",
		Short: "Settle an existing commitment",
		Long: `Settle an existing commitment: a pending subscription left unfunded, the next
contribution of an active one, or part of a zakat obligation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := s.client()
			if err != nil {
				return err
			}
			w, err := wizard.Resume(cmd.Context(), cl, args[0], s.logger)
			if w == nil {
				return err
			}
			defer s.closeWizard(cmd.OutOrStdout(), w)
			if err != nil {
				return err
			}
			return s.settle(cmd, w, f)
		},
	}
	f.bind(cmd)
	return cmd
}

func (s *session) subscribe(cmd *cobra.Command, sel wizard.Selection, f settleFlags, resume bool) error {
	cl, err := s.client()
	if err != nil {
		return err
	}
	w := wizard.New(cl, sel, s.logger)
	defer s.closeWizard(cmd.OutOrStdout(), w)

	err = w.Submit(cmd.Context())
	if existing, ok := util.ExistingID(err); ok {
		if !resume {
			return fmt.Errorf("%w; rerun with --resume to fund it", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Using existing commitment %s.\n", existing)
		err = w.ResumeExisting(cmd.Context())
	}
	if err != nil {
		return err
	}
	return s.settle(cmd, w, f)
}

// settle walks a wizard that is at AMOUNT through CONFIRM and AUTHENTICATE to SUCCESS.
func (s *session) settle(cmd *cobra.Command, w *wizard.Wizard, f settleFlags) error {
	out := cmd.OutOrStdout()
	amount, err := parseAmount(f.amount)
	if err != nil {
		return err
	}
	if err := w.SetAmount(amount); err != nil {
		return err
	}
	if err := w.Next(); err != nil {
		return err
	}

	c := w.Commitment()
	fmt.Fprintf(out, "Settling %s against %s commitment %s.\n", formatAmount(amount), c.Kind, c.ID)
	if err := w.Next(); err != nil {
		return err
	}
	if err := w.SetCode(f.walletCode()); err != nil {
		return err
	}
	res, err := w.Confirm(cmd.Context())
	if err != nil {
		return err
	}
	printSettlement(out, res)
	return nil
}

// closeWizard closes w and points the user at any commitment it left unfunded.
func (s *session) closeWizard(out io.Writer, w *wizard.Wizard) {
	if orphan := w.Close(); orphan != "" {
		fmt.Fprintf(out, "Commitment %s was created but not funded. Fund it later with 'commitctl pay %s --amount <amount>'.\n",
			orphan, orphan)
	}
}

func printSettlement(out io.Writer, res *types.SettleResponse) {
	st, c := res.Settlement, res.Commitment
	fmt.Fprintf(out, "Settled %s (wallet transaction %s). Commitment %s is %s.\n",
		formatAmount(st.Amount), st.WalletTransactionID, c.ID, c.Status)
	if c.Zakat != nil {
		fmt.Fprintf(out, "Remaining zakat: %s of %s (%s paid so far).\n",
			formatAmount(c.Zakat.RemainingAmount), formatAmount(c.Zakat.AmountDue), formatAmount(c.Zakat.Settled()))
	}
	if st.NextDueAt != nil {
		fmt.Fprintf(out, "Next contribution due %s.\n", st.NextDueAt.Format(time.DateOnly))
	}
}

func parseDate(name, s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s %q is not a YYYY-MM-DD date: %w", name, s, util.ErrInvalidInput)
	}
	return t, nil
}
