// internal/domain/wallet.go
package domain

import (
	"github.com/shopspring/decimal" // For precise monetary calculations

	"finflow-commitments/internal/util"
)

// WalletCodeLength is the number of digits in a wallet security code.
const WalletCodeLength = 4

// Balance is a read-only snapshot of a wallet owned by the Wallet Gateway.
// It is advisory: the gateway re-checks funds on every debit.
type Balance struct {
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

// Covers reports whether the snapshot is large enough for amount.
func (b Balance) Covers(amount decimal.Decimal) bool {
	return b.Balance.GreaterThanOrEqual(amount)
}

// ValidateWalletCode checks the shape of a wallet security code: exactly four ASCII digits.
// The code itself is only ever compared by the gateway.
func ValidateWalletCode(code string) error {
	if len(code) != WalletCodeLength {
		return util.ErrMalformedCode
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return util.ErrMalformedCode
		}
	}
	return nil
}
