// internal/domain/settlement.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Settlement is one money movement against exactly one commitment.
// Settlements are append-only.
type Settlement struct {
	ID                  string          `db:"id" json:"id"`
	CommitmentID        string          `db:"commitment_id" json:"commitment_id"`
	Amount              decimal.Decimal `db:"amount" json:"amount"`                               // NUMERIC(20, 4) in DB
	WalletTransactionID string          `db:"wallet_transaction_id" json:"wallet_transaction_id"` // id returned by the wallet debit
	OccurredAt          time.Time       `db:"occurred_at" json:"occurred_at"`
	NextDueAt           *time.Time      `db:"next_due_at" json:"next_due_at,omitempty"` // recurring commitments only
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
}

// NewSettlement creates a new Settlement instance.
func NewSettlement(
	commitmentID string,
	amount decimal.Decimal,
	walletTransactionID string,
	occurredAt time.Time,
	nextDueAt *time.Time,
) *Settlement {
	return &Settlement{
		ID:                  uuid.NewString(),
		CommitmentID:        commitmentID,
		Amount:              amount,
		WalletTransactionID: walletTransactionID,
		OccurredAt:          occurredAt.UTC(),
		NextDueAt:           nextDueAt,
		CreatedAt:           time.Now().UTC(),
	}
}
