// internal/domain/product.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"finflow-commitments/internal/util"
)

// Product is an investment product or takaful plan a user can subscribe to.
type Product struct {
	ID            string              `db:"id" json:"id"`
	Kind          CommitmentKind      `db:"kind" json:"kind"`
	Name          string              `db:"name" json:"name"`
	MinimumAmount decimal.NullDecimal `db:"minimum_amount" json:"minimum_amount"` // NULL when the product has no minimum
	CreatedAt     time.Time           `db:"created_at" json:"created_at"`
}

// CheckMinimum rejects amounts below the product minimum, if one is defined.
func (p *Product) CheckMinimum(amount decimal.Decimal) error {
	if p.MinimumAmount.Valid && amount.LessThan(p.MinimumAmount.Decimal) {
		return util.ErrBelowMinimum
	}
	return nil
}
