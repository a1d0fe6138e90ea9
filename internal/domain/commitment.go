// internal/domain/commitment.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal" // For precise monetary calculations

	"finflow-commitments/internal/util"
)

// CommitmentKind defines what a commitment promises to pay for.
type CommitmentKind string

const (
	CommitmentKindInvestment CommitmentKind = "INVESTMENT"
	CommitmentKindTakaful    CommitmentKind = "TAKAFUL"
	CommitmentKindZakat      CommitmentKind = "ZAKAT"
)

// Valid reports whether k is one of the known kinds.
func (k CommitmentKind) Valid() bool {
	switch k {
	case CommitmentKindInvestment, CommitmentKindTakaful, CommitmentKindZakat:
		return true
	}
	return false
}

// CommitmentStatus defines the lifecycle state of a commitment.
type CommitmentStatus string

const (
	CommitmentStatusPending          CommitmentStatus = "PENDING"           // created, nothing settled yet
	CommitmentStatusActive           CommitmentStatus = "ACTIVE"            // investment/takaful funded at least once
	CommitmentStatusPartiallySettled CommitmentStatus = "PARTIALLY_SETTLED" // zakat with remaining > 0
	CommitmentStatusSettled          CommitmentStatus = "SETTLED"           // zakat with remaining == 0, immutable
)

// Commitment is a promise to pay, created before any money moves.
type Commitment struct {
	ID          string           `json:"id"`
	Kind        CommitmentKind   `json:"kind"`
	OwnerID     string           `json:"owner_id"`
	ReferenceID string           `json:"reference_id,omitempty"` // product or plan id, empty for zakat
	PeriodStart *time.Time       `json:"period_start,omitempty"`
	PeriodEnd   *time.Time       `json:"period_end,omitempty"`
	Status      CommitmentStatus `json:"status"`
	Zakat       *ZakatTerms      `json:"zakat,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// NewInvestmentCommitment creates a pending investment subscription for productID.
func NewInvestmentCommitment(ownerID, productID string) *Commitment {
	now := time.Now().UTC()
	return &Commitment{
		ID:          uuid.NewString(),
		Kind:        CommitmentKindInvestment,
		OwnerID:     ownerID,
		ReferenceID: productID,
		Status:      CommitmentStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewTakafulCommitment creates a pending takaful subscription covering [start, end).
func NewTakafulCommitment(ownerID, planID string, start, end time.Time) (*Commitment, error) {
	if err := ValidatePeriod(start, end); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	start, end = start.UTC(), end.UTC()
	return &Commitment{
		ID:          uuid.NewString(),
		Kind:        CommitmentKindTakaful,
		OwnerID:     ownerID,
		ReferenceID: planID,
		PeriodStart: &start,
		PeriodEnd:   &end,
		Status:      CommitmentStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// NewZakatObligation creates a zakat obligation from already assessed terms.
func NewZakatObligation(ownerID string, terms ZakatTerms) (*Commitment, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Commitment{
		ID:        uuid.NewString(),
		Kind:      CommitmentKindZakat,
		OwnerID:   ownerID,
		Status:    CommitmentStatusPending,
		Zakat:     &terms,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ValidatePeriod checks that end is strictly after start.
func ValidatePeriod(start, end time.Time) error {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return util.ErrInvalidPeriod
	}
	return nil
}

// IsRecurring reports whether settlements of this commitment carry a next due date.
func (c *Commitment) IsRecurring() bool {
	return c.Kind == CommitmentKindInvestment || c.Kind == CommitmentKindTakaful
}

// IsFullySettled reports whether a zakat obligation has nothing left to pay.
func (c *Commitment) IsFullySettled() bool {
	return c.Kind == CommitmentKindZakat && c.Zakat != nil && !c.Zakat.RemainingAmount.IsPositive()
}

// IsPending reports whether nothing has been settled against the commitment yet.
func (c *Commitment) IsPending() bool {
	return c.Status == CommitmentStatusPending
}

// CheckSettleable verifies amount could be settled against c without mutating it.
// An overpayment is rejected, never truncated.
func (c *Commitment) CheckSettleable(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return util.ErrInvalidInput
	}
	if c.Kind != CommitmentKindZakat {
		return nil
	}
	if c.Zakat == nil {
		return util.ErrInvalidInput
	}
	if c.IsFullySettled() {
		return util.ErrFullySettled
	}
	if amount.GreaterThan(c.Zakat.RemainingAmount) {
		return util.ErrOverpayment
	}
	return nil
}

// ApplySettlement records the effect of a successful settlement of amount at time at.
func (c *Commitment) ApplySettlement(amount decimal.Decimal, at time.Time) error {
	if err := c.CheckSettleable(amount); err != nil {
		return err
	}
	switch c.Kind {
	case CommitmentKindZakat:
		c.Zakat.RemainingAmount = c.Zakat.RemainingAmount.Sub(amount)
		if c.Zakat.RemainingAmount.IsZero() {
			c.Status = CommitmentStatusSettled
		} else {
			c.Status = CommitmentStatusPartiallySettled
		}
	default:
		c.Status = CommitmentStatusActive
	}
	c.UpdatedAt = at.UTC()
	return nil
}

// CheckDeletable verifies c may be deleted by its owner. Only zakat obligations with a
// positive remaining amount qualify.
func (c *Commitment) CheckDeletable() error {
	if c.Kind != CommitmentKindZakat {
		return util.ErrInvalidInput
	}
	if c.IsFullySettled() {
		return util.ErrFullySettled
	}
	return nil
}

// NextDueAt returns when the next contribution of a recurring commitment is due after a
// settlement at occurredAt. Takaful contributions are not scheduled past the period end.
func (c *Commitment) NextDueAt(occurredAt time.Time) *time.Time {
	if !c.IsRecurring() {
		return nil
	}
	next := occurredAt.UTC().AddDate(0, 1, 0)
	if c.Kind == CommitmentKindTakaful && c.PeriodEnd != nil && next.After(*c.PeriodEnd) {
		return nil
	}
	return &next
}
