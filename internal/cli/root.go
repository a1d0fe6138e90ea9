// internal/cli/root.go
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"finflow-commitments/internal/client"
	"finflow-commitments/internal/config"
	"finflow-commitments/internal/intent"
	"finflow-commitments/internal/util"
)

// session is the state shared by every command of one invocation.
type session struct {
	configPath string
	logLevel   string
	cfg        config.ClientConfig
	logger     *slog.Logger
}

// NewRootCommand builds the commitctl command tree.
func NewRootCommand() *cobra.Command {
	s := &session{}
	root := &cobra.Command{
		Use:   "commitctl",
		Short: "Manage investment, takaful and zakat commitments",
		Long: `commitctl creates commitments (investment subscriptions, takaful plans and zakat
obligations) and settles them from your wallet.

Zakat can be assessed while signed out; the assessment is kept locally and
recorded the next time you log in.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.load(cmd)
		},
	}
	root.PersistentFlags().StringVar(&s.configPath, "config", "", "Config file (default ~/.commitctl/config.toml)")
	root.PersistentFlags().StringVar(&s.logLevel, "log-level", "warn", "Log level written to stderr")

	root.AddCommand(
		newLoginCmd(s),
		newLogoutCmd(s),
		newZakatCmd(s),
		newInvestCmd(s),
		newTakafulCmd(s),
		newPayCmd(s),
		newListCmd(s),
		newHistoryCmd(s),
		newBalanceCmd(s),
	)
	return root
}

// Execute runs commitctl with the process arguments and returns the exit code.
func Execute(ctx context.Context) int {
	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", explain(err))
		return 1
	}
	return 0
}

func (s *session) load(cmd *cobra.Command) error {
	util.InitLogger(util.LogOptions{Level: s.logLevel, Format: "text", Output: cmd.ErrOrStderr()})
	s.logger = util.GetLogger()

	if s.configPath == "" {
		dir, err := config.DefaultClientDir()
		if err != nil {
			return err
		}
		s.configPath = filepath.Join(dir, "config.toml")
	}
	cfg, err := config.LoadClientConfig(s.configPath)
	if err != nil {
		return err
	}
	s.cfg = cfg
	return nil
}

func (s *session) save() error {
	return config.SaveClientConfig(s.configPath, s.cfg)
}

func (s *session) client() (*client.Client, error) {
	timeout, err := s.cfg.RequestTimeout()
	if err != nil {
		return nil, err
	}
	return client.New(s.cfg.APIURL, s.cfg.Token, timeout)
}

func (s *session) openIntentStore(ctx context.Context) (*intent.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(s.cfg.IntentDB), 0o700); err != nil {
		return nil, fmt.Errorf("create intent directory: %w", err)
	}
	return intent.OpenSQLiteStore(ctx, s.cfg.IntentDB)
}

// explain turns an error into the message shown to the user.
func explain(err error) string {
	if errors.Is(err, util.ErrWalletNotFound) {
		return err.Error() + " (check your wallet, then retry with 'commitctl pay')"
	}
	switch util.KindOf(err) {
	case util.KindUnauthenticated:
		return "you are not signed in, run 'commitctl login --token <token>'"
	case util.KindAuthentication:
		return "the wallet security code was rejected, nothing was charged"
	case util.KindTransient:
		return err.Error() + " (the outcome is unknown, check 'commitctl history' before retrying a payment)"
	default:
		return err.Error()
	}
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q is not a number: %w", s, util.ErrInvalidInput)
	}
	return d, nil
}

// formatAmount renders d with two decimals and thousands separators without going through float64.
func formatAmount(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	whole, frac, _ := strings.Cut(d.StringFixed(2), ".")
	n, ok := new(big.Int).SetString(whole, 10)
	if !ok {
		return sign + d.StringFixed(2)
	}
	return sign + humanize.BigComma(n) + "." + frac
}
