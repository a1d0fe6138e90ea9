// internal/repository/postgres/commitment_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"finflow-commitments/internal/domain"
	"finflow-commitments/internal/repository"
	"finflow-commitments/internal/util"
)

// uniqueViolation is the PostgreSQL error code for unique_violation.
const uniqueViolation = "23505"

const commitmentColumns = `id, kind, owner_id, reference_id, period_start, period_end, status,
	zakat_year, total_assessed_amount, amount_due, remaining_amount, created_at, updated_at`

// commitmentRow mirrors the commitments table; zakat and period columns are nullable.
type commitmentRow struct {
	ID                  string              `db:"id"`
	Kind                string              `db:"kind"`
	OwnerID             string              `db:"owner_id"`
	ReferenceID         sql.NullString      `db:"reference_id"`
	PeriodStart         sql.NullTime        `db:"period_start"`
	PeriodEnd           sql.NullTime        `db:"period_end"`
	Status              string              `db:"status"`
	ZakatYear           sql.NullInt64       `db:"zakat_year"`
	TotalAssessedAmount decimal.NullDecimal `db:"total_assessed_amount"`
	AmountDue           decimal.NullDecimal `db:"amount_due"`
	RemainingAmount     decimal.NullDecimal `db:"remaining_amount"`
	CreatedAt           time.Time           `db:"created_at"`
	UpdatedAt           time.Time           `db:"updated_at"`
}

func toRow(c *domain.Commitment) commitmentRow {
	row := commitmentRow{
		ID:          c.ID,
		Kind:        string(c.Kind),
		OwnerID:     c.OwnerID,
		ReferenceID: sql.NullString{String: c.ReferenceID, Valid: c.ReferenceID != ""},
		Status:      string(c.Status),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if c.PeriodStart != nil {
		row.PeriodStart = sql.NullTime{Time: *c.PeriodStart, Valid: true}
	}
	if c.PeriodEnd != nil {
		row.PeriodEnd = sql.NullTime{Time: *c.PeriodEnd, Valid: true}
	}
	if z := c.Zakat; z != nil {
		row.ZakatYear = sql.NullInt64{Int64: int64(z.Year), Valid: true}
		row.TotalAssessedAmount = decimal.NewNullDecimal(z.TotalAssessedAmount)
		row.AmountDue = decimal.NewNullDecimal(z.AmountDue)
		row.RemainingAmount = decimal.NewNullDecimal(z.RemainingAmount)
	}
	return row
}

func (r commitmentRow) toDomain() *domain.Commitment {
	c := &domain.Commitment{
		ID:          r.ID,
		Kind:        domain.CommitmentKind(r.Kind),
		OwnerID:     r.OwnerID,
		ReferenceID: r.ReferenceID.String,
		Status:      domain.CommitmentStatus(r.Status),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.PeriodStart.Valid {
		t := r.PeriodStart.Time.UTC()
		c.PeriodStart = &t
	}
	if r.PeriodEnd.Valid {
		t := r.PeriodEnd.Time.UTC()
		c.PeriodEnd = &t
	}
	if c.Kind == domain.CommitmentKindZakat {
		c.Zakat = &domain.ZakatTerms{
			Year:                int(r.ZakatYear.Int64),
			TotalAssessedAmount: r.TotalAssessedAmount.Decimal,
			AmountDue:           r.AmountDue.Decimal,
			RemainingAmount:     r.RemainingAmount.Decimal,
		}
	}
	return c
}

// CommitmentRepository implements repository.CommitmentRepository for PostgreSQL.
type CommitmentRepository struct{}

// NewCommitmentRepository creates a new CommitmentRepository.
// The db parameter is not stored; every method receives its DBExecutor.
func NewCommitmentRepository(db *sqlx.DB) repository.CommitmentRepository {
	return &CommitmentRepository{}
}

// CreateCommitment inserts a new commitment using the provided DBExecutor.
func (r *CommitmentRepository) CreateCommitment(ctx context.Context, q repository.DBExecutor, c *domain.Commitment) error {
	row := toRow(c)
	query := `INSERT INTO commitments (` + commitmentColumns + `)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := q.ExecContext(ctx, query,
		row.ID, row.Kind, row.OwnerID, row.ReferenceID, row.PeriodStart, row.PeriodEnd, row.Status,
		row.ZakatYear, row.TotalAssessedAmount, row.AmountDue, row.RemainingAmount, row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("failed to create commitment: %w", util.ErrActiveSubscription)
		}
		return fmt.Errorf("failed to create commitment: %w", err)
	}
	return nil
}

// GetCommitmentByID retrieves a commitment by its ID using the provided DBExecutor.
func (r *CommitmentRepository) GetCommitmentByID(ctx context.Context, q repository.DBExecutor, id string) (*domain.Commitment, error) {
	query := `SELECT ` + commitmentColumns + ` FROM commitments WHERE id = $1 AND deleted_at IS NULL`
	return r.getOne(ctx, q, query, id)
}

// GetCommitmentForUpdate retrieves a commitment and locks its row for the current transaction.
func (r *CommitmentRepository) GetCommitmentForUpdate(ctx context.Context, q repository.DBExecutor, id string) (*domain.Commitment, error) {
	query := `SELECT ` + commitmentColumns + ` FROM commitments WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`
	return r.getOne(ctx, q, query, id)
}

// FindActiveSubscription returns the pending or active subscription of an owner to a product.
func (r *CommitmentRepository) FindActiveSubscription(ctx context.Context, q repository.DBExecutor, ownerID string, kind domain.CommitmentKind, referenceID string) (*domain.Commitment, error) {
	query := `SELECT ` + commitmentColumns + ` FROM commitments
		WHERE owner_id = $1 AND kind = $2 AND reference_id = $3
		  AND deleted_at IS NULL AND status IN ('PENDING', 'ACTIVE')
		ORDER BY created_at DESC
		LIMIT 1`
	return r.getOne(ctx, q, query, ownerID, string(kind), referenceID)
}

func (r *CommitmentRepository) getOne(ctx context.Context, q repository.DBExecutor, query string, args ...interface{}) (*domain.Commitment, error) {
	var row commitmentRow
	if err := q.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get commitment: %w", err)
	}
	return row.toDomain(), nil
}

// ListCommitmentsByOwner retrieves the commitments of an owner, newest first.
func (r *CommitmentRepository) ListCommitmentsByOwner(ctx context.Context, q repository.DBExecutor, ownerID string) ([]domain.Commitment, error) {
	rows := []commitmentRow{}
	query := `SELECT ` + commitmentColumns + ` FROM commitments
		WHERE owner_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC`
	if err := q.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list commitments for owner %s: %w", ownerID, err)
	}

	commitments := make([]domain.Commitment, 0, len(rows))
	for _, row := range rows {
		commitments = append(commitments, *row.toDomain())
	}
	return commitments, nil
}

// UpdateCommitmentState persists status and remaining amount of a commitment.
func (r *CommitmentRepository) UpdateCommitmentState(ctx context.Context, q repository.DBExecutor, c *domain.Commitment) error {
	row := toRow(c)
	query := `UPDATE commitments SET status = $1, remaining_amount = $2, updated_at = $3
		WHERE id = $4 AND deleted_at IS NULL`
	result, err := q.ExecContext(ctx, query, row.Status, row.RemainingAmount, row.UpdatedAt, row.ID)
	if err != nil {
		return fmt.Errorf("failed to update commitment %s: %w", c.ID, err)
	}
	return expectOneRow(result, c.ID)
}

// SoftDeleteCommitment marks a commitment deleted; its settlements stay untouched.
func (r *CommitmentRepository) SoftDeleteCommitment(ctx context.Context, q repository.DBExecutor, id string, at time.Time) error {
	query := `UPDATE commitments SET deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`
	result, err := q.ExecContext(ctx, query, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete commitment %s: %w", id, err)
	}
	return expectOneRow(result, id)
}

func expectOneRow(result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for commitment %s: %w", id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("commitment %s: %w", id, util.ErrNotFound)
	}
	return nil
}
