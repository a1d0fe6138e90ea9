// internal/api/types/response.go
package types

import (
	"time"

	"github.com/shopspring/decimal"

	"finflow-commitments/internal/domain"
)

// ListResponse defines a generic structure for list API responses.
// T represents the type of data contained in the 'Data' slice.
type ListResponse[T any] struct {
	Data       []T `json:"data"`
	TotalCount int `json:"total_count"`
}

// NewListResponse wraps items, never encoding a nil slice as null.
func NewListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Data: items, TotalCount: len(items)}
}

// ErrorResponse is the body of every non-2xx response. Code is the wire form of util.Kind.
type ErrorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	ExistingID string `json:"existing_id,omitempty"` // set on active-subscription conflicts
}

// CreateInvestmentRequest represents the request body for subscribing to an investment product.
type CreateInvestmentRequest struct {
	ProductID string `json:"product_id"`
}

// CreateTakafulRequest represents the request body for subscribing to a takaful plan.
type CreateTakafulRequest struct {
	PlanID      string    `json:"plan_id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

// CreateZakatRequest carries already computed zakat terms.
type CreateZakatRequest struct {
	Year                int             `json:"year"`
	TotalAssessedAmount decimal.Decimal `json:"total_assessed_amount"`
	AmountDue           decimal.Decimal `json:"amount_due"`
	RemainingAmount     decimal.Decimal `json:"remaining_amount"`
}

// Terms converts the request into domain terms.
func (r CreateZakatRequest) Terms() domain.ZakatTerms {
	return domain.ZakatTerms{
		Year:                r.Year,
		TotalAssessedAmount: r.TotalAssessedAmount,
		AmountDue:           r.AmountDue,
		RemainingAmount:     r.RemainingAmount,
	}
}

// SettleRequest represents the request body for POST /settlements.
type SettleRequest struct {
	CommitmentID string          `json:"commitment_id"`
	Amount       decimal.Decimal `json:"amount"`
	WalletCode   string          `json:"wallet_code"`
	OccurredAt   *time.Time      `json:"occurred_at,omitempty"`
	NextDueAt    *time.Time      `json:"next_due_at,omitempty"`
}

// SettleResponse returns the recorded settlement and the commitment state after it.
type SettleResponse struct {
	Settlement *domain.Settlement `json:"settlement"`
	Commitment *domain.Commitment `json:"commitment"`
}
