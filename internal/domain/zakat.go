// internal/domain/zakat.go
package domain

import (
	"github.com/shopspring/decimal"

	"finflow-commitments/internal/util"
)

// ZakatRate is the fixed share of assessed wealth due as zakat.
var ZakatRate = decimal.RequireFromString("0.025")

// ZakatTerms are the zakat-only fields of a commitment.
// AmountDue is computed once at creation and never recomputed; RemainingAmount only decreases.
type ZakatTerms struct {
	Year                int             `json:"year"`
	TotalAssessedAmount decimal.Decimal `json:"total_assessed_amount"`
	AmountDue           decimal.Decimal `json:"amount_due"`
	RemainingAmount     decimal.Decimal `json:"remaining_amount"`
}

// ComputeAmountDue applies ZakatRate to the assessed wealth, rounded to cents.
func ComputeAmountDue(totalAssessed decimal.Decimal) decimal.Decimal {
	return totalAssessed.Mul(ZakatRate).Round(2)
}

// AssessZakat builds fresh terms for year: nothing settled, everything remaining.
func AssessZakat(year int, totalAssessed decimal.Decimal) (ZakatTerms, error) {
	due := ComputeAmountDue(totalAssessed)
	terms := ZakatTerms{
		Year:                year,
		TotalAssessedAmount: totalAssessed,
		AmountDue:           due,
		RemainingAmount:     due,
	}
	if err := terms.Validate(); err != nil {
		return ZakatTerms{}, err
	}
	return terms, nil
}

// Validate checks terms submitted for creation: positive wealth, amount due at the fixed
// rate, and nothing settled yet.
func (t ZakatTerms) Validate() error {
	if t.Year <= 0 {
		return util.ErrInvalidInput
	}
	if !t.TotalAssessedAmount.IsPositive() || !t.AmountDue.IsPositive() {
		return util.ErrInvalidInput
	}
	if !t.AmountDue.Equal(ComputeAmountDue(t.TotalAssessedAmount)) {
		return util.ErrInvalidInput
	}
	if !t.RemainingAmount.Equal(t.AmountDue) {
		return util.ErrInvalidInput
	}
	return nil
}

// Settled returns how much has been paid against the obligation so far.
func (t ZakatTerms) Settled() decimal.Decimal {
	return t.AmountDue.Sub(t.RemainingAmount)
}
